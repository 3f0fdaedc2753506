package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errNonInteractive = errors.New("input required but --non-interactive is set")

// prompter reads answers from the command's input. Secrets are read without
// echo when the input is a terminal.
type prompter struct {
	in       io.Reader
	reader   *bufio.Reader
	out      io.Writer
	disabled bool
}

func newPrompter(cmd *cobra.Command, disabled bool) *prompter {
	in := cmd.InOrStdin()
	return &prompter{in: in, reader: bufio.NewReader(in), out: cmd.ErrOrStderr(), disabled: disabled}
}

// Line prompts for a visible answer.
func (p *prompter) Line(label string) (string, error) {
	if p.disabled {
		return "", fmt.Errorf("%s: %w", strings.ToLower(label), errNonInteractive)
	}
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

// Secret prompts for a hidden answer.
func (p *prompter) Secret(label string) (string, error) {
	if p.disabled {
		return "", fmt.Errorf("%s: %w", strings.ToLower(label), errNonInteractive)
	}
	f, ok := p.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return p.Line(label)
	}

	fmt.Fprintf(p.out, "%s: ", label)
	secret, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return string(secret), nil
}
