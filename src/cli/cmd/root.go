// Package cmd wires the kueue-dev command tree.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openshift-eng/kueue-dev/src/config"
	"github.com/openshift-eng/kueue-dev/src/container"
	"github.com/openshift-eng/kueue-dev/src/install"
	"github.com/openshift-eng/kueue-dev/src/kube"
	"github.com/openshift-eng/kueue-dev/src/output"
	"github.com/openshift-eng/kueue-dev/src/prompt"
)

// DryRunEnv enables dry-run mode without the flag.
const DryRunEnv = "KUEUE_DEV_DRY_RUN"

var (
	cfgFile        string
	verbosity      int
	dryRun         bool
	sourceFlag     string
	kubeconfigFlag string

	settings *config.Settings
	log      *output.Logger
)

var rootCmd = &cobra.Command{
	Use:   "kueue-dev",
	Short: "Development workflows for the kueue-operator",
	Long: `kueue-dev wraps the kueue-operator development loop: kind clusters,
component image builds, operator deployment, and the e2e suites.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			log = output.NewLogger(verbosity)
			return nil
		}
		var err error
		settings, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if v := os.Getenv(DryRunEnv); v == "1" || v == "true" {
			dryRun = true
		}
		log = output.NewLogger(verbosity)
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .kueue-dev.toml)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase verbosity (-v, -vv, -vvv)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "print mutating commands instead of running them")
	rootCmd.PersistentFlags().StringVar(&sourceFlag, "source", "", "kueue-operator source root (default: config, then cwd)")
	rootCmd.PersistentFlags().StringVar(&kubeconfigFlag, "kubeconfig", "", "kubeconfig path (default: <source>/kube.kubeconfig)")
}

// Execute runs the root command. The context cancels on SIGINT/SIGTERM so
// in-flight subprocesses shut down instead of leaking.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if hint := errorHint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "       hint: %s\n", hint)
		}
		return err
	}
	return nil
}

// errorHint maps well-known failure text to a next step.
func errorHint(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Cannot connect to the Docker daemon"):
		return "is the docker daemon running?"
	case strings.Contains(msg, "Unable to connect to the server"),
		strings.Contains(msg, "connection refused"):
		return "is the cluster up? try: kueue-dev cluster list"
	case strings.Contains(msg, "executable file not found"):
		return "run: kueue-dev check"
	}
	return ""
}

// sourceRoot resolves the operator source tree from flag, config, then cwd.
func sourceRoot() (string, error) {
	return settings.SourceRoot(sourceFlag)
}

// kubeconfigPath resolves where cluster credentials live. The path does not
// have to exist yet; cluster create writes it.
func kubeconfigPath(source string) string {
	if kubeconfigFlag != "" {
		return kubeconfigFlag
	}
	if settings.Defaults.KubeconfigPath != "" {
		return settings.Defaults.KubeconfigPath
	}
	return filepath.Join(source, "kube.kubeconfig")
}

// requireKubeconfig is kubeconfigPath plus an existence check, for commands
// that need a cluster to already be there.
func requireKubeconfig(source string) (string, error) {
	path := kubeconfigPath(source)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("kubeconfig not found at %s; create a cluster first with: kueue-dev cluster create", path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, nil
}

// imagesPath resolves the images file relative to the source root.
func imagesPath(source, flag string) string {
	file := flag
	if file == "" {
		file = settings.Defaults.ImagesFile
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(source, file)
}

func newRuntime() (*container.Runtime, error) {
	rt, err := container.Detect()
	if err != nil {
		return nil, err
	}
	rt.Verbose = verbosity >= 1
	rt.DryRun = dryRun
	return rt, nil
}

func newClient(kubeconfig string) *kube.Client {
	c := kube.NewClient(kubeconfig)
	c.Verbose = verbosity >= 1
	c.DryRun = dryRun
	return c
}

func newInstaller(client *kube.Client) *install.Installer {
	return install.New(client, log, settings.Versions)
}

func newPrompter() *prompt.Prompter {
	return prompt.New(!settings.Behavior.ConfirmDestructive)
}
