package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openshift-eng/kueue-dev/src/kube"
	"github.com/openshift-eng/kueue-dev/src/output"
	"github.com/openshift-eng/kueue-dev/src/prereqs"
)

var (
	clusterName    string
	clusterCNI     string
	skipComponents []string
	forceDelete    bool
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage kind development clusters",
}

var clusterCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a kind cluster with the kueue dependency stack",
	RunE:  runClusterCreate,
}

var clusterDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a kind cluster",
	RunE:  runClusterDelete,
}

var clusterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List kind clusters",
	RunE:  runClusterList,
}

func init() {
	clusterCreateCmd.Flags().StringVar(&clusterName, "name", "", "cluster name (default from config)")
	clusterCreateCmd.Flags().StringVar(&clusterCNI, "cni", "", "CNI provider: calico or default")
	clusterCreateCmd.Flags().StringSliceVar(&skipComponents, "skip-components", nil,
		"components to skip (cert-manager, jobset, leaderworkerset, appwrapper, training-operator, prometheus)")

	clusterDeleteCmd.Flags().StringVar(&clusterName, "name", "", "cluster name (default from config)")
	clusterDeleteCmd.Flags().BoolVar(&forceDelete, "force", false, "delete without confirmation")

	clusterCmd.AddCommand(clusterCreateCmd)
	clusterCmd.AddCommand(clusterDeleteCmd)
	clusterCmd.AddCommand(clusterListCmd)
	rootCmd.AddCommand(clusterCmd)
}

func resolvedClusterName() string {
	if clusterName != "" {
		return clusterName
	}
	return settings.Defaults.ClusterName
}

func runClusterCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := prereqs.Ensure("kind", "kubectl"); err != nil {
		return err
	}
	if err := prereqs.CheckRuntime(); err != nil {
		return err
	}

	cniName := clusterCNI
	if cniName == "" {
		cniName = settings.Defaults.CNIProvider
	}
	cni, err := kube.ParseCNIProvider(cniName)
	if err != nil {
		return err
	}

	source, err := sourceRoot()
	if err != nil {
		return err
	}
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	name := resolvedClusterName()
	log.Info("Creating kind cluster %s (CNI: %s, runtime: %s)", name, cni, rt.Name)

	cluster := kube.NewKind(name, cni, rt)
	cluster.Verbose = verbosity >= 1
	cluster.DryRun = dryRun

	if exists, err := cluster.Exists(ctx); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("cluster %q already exists; delete it first with: kueue-dev cluster delete --name %s", name, name)
	}

	sp := output.NewSpinner("creating cluster " + name)
	sp.Start()
	if err := cluster.Create(ctx); err != nil {
		sp.Fail("cluster creation failed")
		return err
	}
	sp.Success("cluster " + name + " created")

	kubeconfig, err := cluster.ExportKubeconfig(ctx, kubeconfigPath(source))
	if err != nil {
		return err
	}
	log.Info("Kubeconfig written to %s", kubeconfig)

	client := newClient(kubeconfig)
	installer := newInstaller(client)

	if cni == kube.CNICalico {
		if err := installer.Calico(ctx); err != nil {
			return err
		}
	} else {
		log.Info("Waiting for nodes to become ready")
		if err := client.WaitFor(ctx, "nodes", "condition=Ready", "", 3*time.Minute); err != nil {
			return err
		}
	}

	workers, err := kube.LabelWorkers(ctx, client)
	if err != nil {
		return err
	}
	log.Info("Labeled %d worker nodes", len(workers))

	skip := make(map[string]bool, len(skipComponents))
	for _, c := range skipComponents {
		skip[strings.TrimSpace(c)] = true
	}
	if err := installer.Components(ctx, settings.Behavior.ParallelOperations, skip); err != nil {
		return err
	}

	log.Success("Cluster %s is ready", name)
	log.Info("To use it, run: export KUBECONFIG=%s", kubeconfig)
	return nil
}

func runClusterDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := prereqs.Ensure("kind"); err != nil {
		return err
	}
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	name := resolvedClusterName()
	cluster := kube.NewKind(name, kube.CNIDefault, rt)
	cluster.Verbose = verbosity >= 1
	cluster.DryRun = dryRun

	if exists, err := cluster.Exists(ctx); err != nil {
		return err
	} else if !exists {
		log.Warn("Cluster %q does not exist", name)
		return nil
	}

	if !forceDelete {
		ok, err := newPrompter().Confirm(fmt.Sprintf("Delete cluster %q?", name), false)
		if err != nil {
			return err
		}
		if !ok {
			log.Info("Deletion cancelled")
			return nil
		}
	}

	if err := cluster.Delete(ctx); err != nil {
		return err
	}
	log.Success("Cluster %s deleted", name)
	return nil
}

func runClusterList(cmd *cobra.Command, args []string) error {
	if err := prereqs.Ensure("kind"); err != nil {
		return err
	}
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	clusters, err := kube.ListClusters(cmd.Context(), rt)
	if err != nil {
		return err
	}
	if len(clusters) == 0 {
		log.Info("No kind clusters found")
		return nil
	}
	log.Info("Found %d cluster(s):", len(clusters))
	for _, c := range clusters {
		fmt.Printf("  - %s\n", c)
	}
	return nil
}
