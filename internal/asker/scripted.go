package asker

import "fmt"

// Scripted answers questions from a fixed script, for tests and
// non-interactive runs. Each call consumes one answer per question in order.
type Scripted struct {
	// Script holds the label to return for each question, in ask order.
	Script []string

	next int
	// Asked records every question posed, for assertions.
	Asked []Question
}

// Ask returns the next scripted label for each question.
func (s *Scripted) Ask(questions []Question) (Answers, error) {
	answers := make(Answers, len(questions))
	for i, q := range questions {
		s.Asked = append(s.Asked, q)
		if s.next >= len(s.Script) {
			return nil, fmt.Errorf("scripted asker exhausted at question %d", s.next+1)
		}
		answers[fmt.Sprintf("question_%d", i+1)] = s.Script[s.next]
		s.next++
	}
	return answers, nil
}
