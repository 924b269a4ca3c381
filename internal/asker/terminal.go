package asker

import (
	"fmt"

	"github.com/charmbracelet/huh"
)

// Terminal renders questions as interactive terminal forms.
type Terminal struct{}

// NewTerminal returns the interactive asker.
func NewTerminal() *Terminal { return &Terminal{} }

// Ask presents each question as a select (or multi-select) and returns the
// chosen labels keyed as question_1, question_2, ...
func (t *Terminal) Ask(questions []Question) (Answers, error) {
	answers := make(Answers, len(questions))
	singles := make([]string, len(questions))
	multis := make([][]string, len(questions))

	var fields []huh.Field
	for i, q := range questions {
		opts := make([]huh.Option[string], 0, len(q.Options))
		for _, o := range q.Options {
			label := o.Label
			if o.Description != "" {
				label = fmt.Sprintf("%s — %s", o.Label, o.Description)
			}
			opts = append(opts, huh.NewOption(label, o.Label))
		}
		if q.MultiSelect {
			fields = append(fields, huh.NewMultiSelect[string]().
				Title(q.Question).
				Description(q.Header).
				Options(opts...).
				Value(&multis[i]))
		} else {
			fields = append(fields, huh.NewSelect[string]().
				Title(q.Question).
				Description(q.Header).
				Options(opts...).
				Value(&singles[i]))
		}
	}

	form := huh.NewForm(huh.NewGroup(fields...))
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("question form failed: %w", err)
	}

	for i, q := range questions {
		key := fmt.Sprintf("question_%d", i+1)
		if q.MultiSelect {
			answers[key] = multis[i]
		} else {
			answers[key] = singles[i]
		}
	}
	return answers, nil
}
