package cmd

import (
	"github.com/spf13/cobra"

	"github.com/openshift-eng/kueue-dev/src/kube"
	"github.com/openshift-eng/kueue-dev/src/prereqs"
)

var cleanupForce bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove leftover e2e test resources",
	Long: `Delete the resources the e2e suites leave behind after a failed run:
kueue custom resources with stuck finalizers, test workloads, and the
per-suite namespaces. The operator itself is left alone.`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupForce, "force", false, "skip the confirmation prompt")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if err := prereqs.Ensure("kubectl"); err != nil {
		return err
	}
	source, err := sourceRoot()
	if err != nil {
		return err
	}
	kubeconfig, err := requireKubeconfig(source)
	if err != nil {
		return err
	}

	if !cleanupForce {
		ok, err := newPrompter().Confirm("Delete all kueue test resources?", false)
		if err != nil {
			return err
		}
		if !ok {
			log.Info("Cleanup cancelled")
			return nil
		}
	}

	log.Info("Cleaning up test resources")
	return kube.CleanupTestResources(cmd.Context(), newClient(kubeconfig), log)
}
