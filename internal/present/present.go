// Package present turns the outcome of a run into output and an exit code.
package present

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/stablekernel/ghd/internal/config"
	"github.com/stablekernel/ghd/internal/deploy"
	"github.com/stablekernel/ghd/internal/github"
)

// Exit codes, one per failure class.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitConfig         = 2
	ExitInvalidURL     = 3
	ExitTransport      = 4
	ExitUpstreamStatus = 5
	ExitDecode         = 6
	ExitNotFound       = 7
)

// Presenter writes the commit message or a one-line diagnostic.
type Presenter struct {
	stdout     io.Writer
	stderr     io.Writer
	errorStyle lipgloss.Style
}

// New creates a Presenter. The diagnostic prefix is styled for stderr's
// terminal and left plain when stderr is not one.
func New(stdout, stderr io.Writer) *Presenter {
	r := lipgloss.NewRenderer(stderr)
	return &Presenter{
		stdout:     stdout,
		stderr:     stderr,
		errorStyle: r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}

// Present prints message on success or err as a single stderr line, and
// returns the process exit code.
func (p *Presenter) Present(message string, err error) int {
	if err != nil {
		p.Error(err)
		return ExitCode(err)
	}
	fmt.Fprintln(p.stdout, message)
	return ExitOK
}

// Error writes err to stderr as exactly one line.
func (p *Presenter) Error(err error) {
	fmt.Fprintln(p.stderr, p.errorStyle.Render("Error:")+" "+singleLine(err.Error()))
}

// ExitCode maps err to its failure class.
func ExitCode(err error) int {
	var (
		urlErr       *github.InvalidURLError
		statusErr    *github.StatusError
		decodeErr    *github.DecodeError
		transportErr *github.TransportError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, config.ErrInvalid):
		return ExitConfig
	case errors.As(err, &urlErr):
		return ExitInvalidURL
	case errors.As(err, &statusErr):
		return ExitUpstreamStatus
	case errors.As(err, &decodeErr):
		return ExitDecode
	case errors.As(err, &transportErr):
		return ExitTransport
	case errors.Is(err, deploy.ErrNoSuccessfulDeployment):
		return ExitNotFound
	default:
		return ExitFailure
	}
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
