package prompt

import (
	"context"
	"errors"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"golang.org/x/term"
)

var (
	// ErrAborted is returned when the user interrupts a prompt.
	ErrAborted = errors.New("prompt: aborted")
	// ErrNotInteractive is returned when a confirmation is needed but stdin
	// is not a terminal.
	ErrNotInteractive = errors.New("prompt: confirmation required but stdin is not a terminal (use --yes)")
)

// Confirmer asks a yes/no question before a mutation is submitted.
type Confirmer interface {
	Confirm(ctx context.Context, message string, def bool) (bool, error)
}

// Survey prompts on a terminal.
type Survey struct {
	in  *os.File
	out *os.File
}

// NewSurvey builds a Confirmer reading from in and writing to out. Nil files
// fall back to stdin and stderr.
func NewSurvey(in, out *os.File) *Survey {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}
	return &Survey{in: in, out: out}
}

func (s *Survey) Confirm(ctx context.Context, message string, def bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !IsTerminal(s.in) {
		return false, ErrNotInteractive
	}
	var out bool
	prompt := &survey.Confirm{
		Message: message,
		Default: def,
	}
	if err := survey.AskOne(prompt, &out, survey.WithStdio(s.in, s.out, s.out)); err != nil {
		return false, translateSurveyErr(err)
	}
	return out, nil
}

// Static answers every question with the same value without asking.
type Static bool

func (s Static) Confirm(ctx context.Context, _ string, _ bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return bool(s), nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

func translateSurveyErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return ErrAborted
	}
	return err
}
