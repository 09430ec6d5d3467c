package handlers

import (
	"context"
	"errors"

	"github.com/charmbracelet/huh"
)

// errNotConfirmed is returned when the user declines a prompt.
var errNotConfirmed = errors.New("aborted")

// confirm asks a yes/no question. Without a terminal there is nobody to
// ask, so the caller must pass --yes.
var confirm = func(ctx context.Context, question, description string) error {
	if !isTerminal() {
		return errors.New("refusing to continue without a terminal, pass --yes")
	}
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(question).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errNotConfirmed
	}
	return nil
}
