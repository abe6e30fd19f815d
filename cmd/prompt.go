package cmd

import (
	"errors"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"
)

var errNoTerminal = errors.New("confirmation needed but stdin is not a terminal; pass --yes to proceed")

// interactive reports whether stdin and stdout are attached to a terminal.
func interactive() bool {
	in, out := os.Stdin.Fd(), os.Stdout.Fd()
	return (isatty.IsTerminal(in) || isatty.IsCygwinTerminal(in)) &&
		(isatty.IsTerminal(out) || isatty.IsCygwinTerminal(out))
}

// confirm asks before an outward action. --yes answers for the user and a
// missing terminal refuses.
func confirm(s settings, message string) (bool, error) {
	if s.yes {
		return true, nil
	}
	if !interactive() {
		return false, errNoTerminal
	}
	ok := false
	if err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok); err != nil {
		return false, err
	}
	return ok, nil
}
