// Package prompt abstracts interactive confirmation behind an injectable capability,
// so workflows can be exercised in tests without a real terminal.
package prompt

import (
	"github.com/AlecAivazis/survey/v2"
)

// Confirmer answers yes/no questions before destructive work proceeds.
type Confirmer interface {
	Confirm(message string, def bool) (bool, error)
}

// Interactive asks through the terminal using survey.
type Interactive struct{}

func (Interactive) Confirm(message string, def bool) (bool, error) {
	confirm := survey.Confirm{
		Message: message,
		Default: def,
	}

	var response bool
	if err := survey.AskOne(&confirm, &response); err != nil {
		return false, err
	}
	return response, nil
}

// Static answers every question the same way. Used for --force paths and tests.
type Static struct {
	Answer bool
	Err    error
}

func (s Static) Confirm(string, bool) (bool, error) {
	return s.Answer, s.Err
}
