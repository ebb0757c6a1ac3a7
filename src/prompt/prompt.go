// Package prompt wraps the interactive confirmations and menus. Every entry
// point honors auto-confirm so scripted runs never block on a terminal.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/openshift-eng/kueue-dev/src/output"
)

// AutoConfirmEnv skips all confirmations when set to a truthy value, the same
// effect as turning off behavior.confirm_destructive in the settings file.
const AutoConfirmEnv = "KUEUE_DEV_AUTO_CONFIRM"

// Prompter asks the user questions. AutoConfirm answers yes to everything.
type Prompter struct {
	AutoConfirm bool
	In          io.Reader
	Out         io.Writer
}

// New builds a prompter on stdin/stdout.
func New(autoConfirm bool) *Prompter {
	if v := os.Getenv(AutoConfirmEnv); v == "1" || v == "true" {
		autoConfirm = true
	}
	// CI has no terminal to answer on.
	if output.IsCI() {
		autoConfirm = true
	}
	return &Prompter{AutoConfirm: autoConfirm, In: os.Stdin, Out: os.Stdout}
}

// Confirm asks a yes/no question, returning defaultYes without asking when
// auto-confirm is on.
func (p *Prompter) Confirm(question string, defaultYes bool) (bool, error) {
	if p.AutoConfirm {
		return defaultYes, nil
	}

	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}

	reader := bufio.NewReader(p.In)
	for {
		fmt.Fprintf(p.Out, "%s %s: ", question, suffix)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			return defaultYes, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.Out, "input must be 'y' or 'n'")
	}
}

// Select presents a menu of options and returns the chosen one.
func (p *Prompter) Select(label string, options []string) (string, error) {
	if p.AutoConfirm {
		return "", fmt.Errorf("cannot prompt for %q with auto-confirm enabled", label)
	}

	sel := promptui.Select{
		Label: label,
		Items: options,
		Size:  len(options),
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Selected: " ✓  {{ . }}",
			Active:   fmt.Sprintf("%s {{ . | cyan }}", promptui.IconSelect),
			Inactive: "  {{ . }}",
			FuncMap:  promptui.FuncMap,
		},
	}

	i, _, err := sel.Run()
	if err != nil {
		return "", fmt.Errorf("selection aborted: %w", err)
	}
	return options[i], nil
}

// WaitForEnter blocks until the user presses Enter.
func (p *Prompter) WaitForEnter(message string) error {
	if p.AutoConfirm {
		return nil
	}
	fmt.Fprintln(p.Out, message)
	reader := bufio.NewReader(p.In)
	_, err := reader.ReadString('\n')
	if err == io.EOF {
		return nil
	}
	return err
}
