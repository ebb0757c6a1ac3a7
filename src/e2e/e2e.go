// Package e2e drives the operator and upstream ginkgo suites as subprocesses.
package e2e

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/openshift-eng/kueue-dev/src/output"
)

// test seam
var execCommand = exec.CommandContext

// ginkgoVersion pins the CLI installed into the source tree's bin directory.
const ginkgoVersion = "v2.1.4"

// DefaultLabelFilter excludes the suites that tear the cluster down.
const DefaultLabelFilter = "!disruptive"

// SkipPattern joins skip patterns into the single alternation regex ginkgo
// expects. Empty input yields an empty pattern.
func SkipPattern(patterns []string) string {
	if len(patterns) == 0 {
		return ""
	}
	return "(" + strings.Join(patterns, "|") + ")"
}

// EnsureGinkgo returns the path to a ginkgo binary, installing it into
// <source>/bin when absent.
func EnsureGinkgo(ctx context.Context, source string, log *output.Logger) (string, error) {
	binDir := filepath.Join(source, "bin")
	bin := filepath.Join(binDir, "ginkgo")

	if _, err := os.Stat(bin); err == nil {
		log.Debug("using existing ginkgo at %s", bin)
		return bin, nil
	}

	log.Info("Installing ginkgo %s", ginkgoVersion)
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return "", err
	}

	cmd := execCommand(ctx, "go", "install", "-mod=mod",
		"github.com/onsi/ginkgo/v2/ginkgo@"+ginkgoVersion)
	cmd.Env = append(os.Environ(), "GOBIN="+binDir, "GO111MODULE=on")
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("installing ginkgo: %w\n%s", err, strings.TrimSpace(string(out)))
	}
	if _, err := os.Stat(bin); err != nil {
		return "", fmt.Errorf("ginkgo binary missing after install: %s", bin)
	}
	return bin, nil
}

// Options configures one ginkgo invocation.
type Options struct {
	Focus       string
	LabelFilter string
	Skip        []string
	// Suite is the path under test/e2e to run; empty runs everything.
	Suite string
	// Reports adds junit and json report flags for CI consumption.
	Reports bool
}

// Args assembles the ginkgo argument list.
func (o Options) Args() []string {
	filter := o.LabelFilter
	if filter == "" {
		filter = DefaultLabelFilter
	}
	args := []string{"--label-filter=" + filter, "-v"}

	if skip := SkipPattern(o.Skip); skip != "" {
		args = append(args, "--skip", skip)
	}
	if o.Focus != "" {
		args = append(args, "--focus", o.Focus)
	}
	if o.Reports {
		args = append(args, "--junit-report=junit.xml", "--json-report=e2e.json")
	}

	path := "./test/e2e/..."
	if o.Suite != "" {
		path = "./test/e2e/" + o.Suite + "/..."
	}
	return append(args, path)
}

// Runner executes ginkgo in a source tree.
type Runner struct {
	Ginkgo     string
	Dir        string
	Kubeconfig string
	// Extra environment entries, KEY=VALUE.
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// NewRunner builds a runner with output passed through.
func NewRunner(ginkgo, dir, kubeconfig string) *Runner {
	return &Runner{
		Ginkgo:     ginkgo,
		Dir:        dir,
		Kubeconfig: kubeconfig,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
}

// Run executes the suite and returns an error when any spec failed.
func (r *Runner) Run(ctx context.Context, opts Options) error {
	cmd := execCommand(ctx, r.Ginkgo, opts.Args()...)
	cmd.Dir = r.Dir
	cmd.Env = os.Environ()
	if r.Kubeconfig != "" {
		cmd.Env = append(cmd.Env, "KUBECONFIG="+r.Kubeconfig)
	}
	cmd.Env = append(cmd.Env, r.Env...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("e2e tests failed: %w", err)
	}
	return nil
}
