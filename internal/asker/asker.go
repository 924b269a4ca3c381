// Package asker defines the human questioner boundary: structured questions
// go out, selected labels come back. The interactive implementation renders
// terminal forms; tests use a scripted asker.
package asker

// Option is one selectable answer.
type Option struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Question is one prompt shown to the human. Header is a short category
// label of at most 20 characters.
type Question struct {
	Question    string   `json:"question"`
	Header      string   `json:"header"`
	Options     []Option `json:"options"`
	MultiSelect bool     `json:"multiSelect"`
}

// Answers maps question keys (question_1, question_2, ...) to the selected
// label, or labels for multi-select questions.
type Answers map[string]any

// Asker poses questions to the human and collects their selections.
type Asker interface {
	Ask(questions []Question) (Answers, error)
}
