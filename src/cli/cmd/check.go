package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openshift-eng/kueue-dev/src/prereqs"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify required tools and the cluster connection",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	log.Info("Checking required tools")
	if err := prereqs.CheckAll(ctx, log); err != nil {
		return err
	}
	if err := prereqs.CheckRuntime(); err != nil {
		return err
	}

	// Cluster checks only make sense once a kubeconfig exists.
	source, err := sourceRoot()
	if err != nil {
		return err
	}
	kubeconfig := kubeconfigPath(source)
	if _, err := os.Stat(kubeconfig); err != nil {
		log.Info("No kubeconfig at %s, skipping cluster checks", kubeconfig)
		return nil
	}

	pf := prereqs.NewPreflight(newClient(kubeconfig), log)
	pf.Run(ctx)
	if !pf.Report() {
		return fmt.Errorf("preflight checks failed")
	}
	log.Success("All checks passed")
	return nil
}
