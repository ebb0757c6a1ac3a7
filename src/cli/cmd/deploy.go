package cmd

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openshift-eng/kueue-dev/src/config"
	"github.com/openshift-eng/kueue-dev/src/install"
	"github.com/openshift-eng/kueue-dev/src/kube"
	"github.com/openshift-eng/kueue-dev/src/prereqs"
)

var (
	skipKueueCR     bool
	kueueFrameworks string
	kueueNamespace  string

	upstreamMethod string
	upstreamSource string
	upstreamImage  string
	helmValuesFile string
	helmSetValues  []string
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the operator or upstream kueue",
}

var deployOperatorCmd = &cobra.Command{
	Use:   "operator",
	Short: "Deploy the kueue-operator",
}

var deployOperatorKindCmd = &cobra.Command{
	Use:   "kind",
	Short: "Deploy the operator to a kind cluster from manifests",
	RunE:  runDeployOperatorKind,
}

var deployOperatorOLMCmd = &cobra.Command{
	Use:   "olm",
	Short: "Deploy the operator to a kind cluster through an OLM bundle",
	RunE:  runDeployOperatorOLM,
}

var deployOperatorOpenShiftCmd = &cobra.Command{
	Use:   "openshift",
	Short: "Deploy the operator to the current OpenShift cluster",
	RunE:  runDeployOperatorOpenShift,
}

var deployUpstreamCmd = &cobra.Command{
	Use:   "upstream",
	Short: "Deploy upstream kueue via kustomize or helm",
	RunE:  runDeployUpstream,
}

func init() {
	for _, c := range []*cobra.Command{deployOperatorKindCmd, deployOperatorOLMCmd} {
		c.Flags().StringVar(&clusterName, "name", "", "cluster name (default from config)")
		c.Flags().StringVar(&imagesFileFlag, "images-file", "", "images JSON file (default from config)")
	}
	deployOperatorOpenShiftCmd.Flags().StringVar(&imagesFileFlag, "images-file", "", "images JSON file (default from config)")

	for _, c := range []*cobra.Command{deployOperatorKindCmd, deployOperatorOpenShiftCmd} {
		c.Flags().BoolVar(&skipKueueCR, "skip-kueue-cr", false, "install the operator without creating a Kueue CR")
		c.Flags().StringVar(&kueueFrameworks, "frameworks", "", "comma-separated framework override for the Kueue CR")
		c.Flags().StringVar(&kueueNamespace, "namespace", "", "namespace override for the Kueue CR")
	}

	deployUpstreamCmd.Flags().StringVar(&upstreamMethod, "method", "kustomize", "deploy method: kustomize or helm")
	deployUpstreamCmd.Flags().StringVar(&upstreamSource, "upstream-source", "", "upstream kueue checkout")
	deployUpstreamCmd.Flags().StringVar(&upstreamImage, "image", "", "controller image override")
	deployUpstreamCmd.Flags().StringVar(&helmValuesFile, "values", "", "helm values file")
	deployUpstreamCmd.Flags().StringArrayVar(&helmSetValues, "set", nil, "helm --set values")

	deployOperatorCmd.AddCommand(deployOperatorKindCmd)
	deployOperatorCmd.AddCommand(deployOperatorOLMCmd)
	deployOperatorCmd.AddCommand(deployOperatorOpenShiftCmd)
	deployCmd.AddCommand(deployOperatorCmd)
	deployCmd.AddCommand(deployUpstreamCmd)
	rootCmd.AddCommand(deployCmd)
}

// kueueCR builds the Kueue custom resource from settings plus CLI overrides,
// or nil when the CR is skipped.
func kueueCR() (*config.KueueCR, error) {
	if skipKueueCR {
		log.Info("Skipping Kueue CR creation")
		return nil, nil
	}
	ks := settings.Kueue
	if kueueNamespace != "" {
		ks.Namespace = kueueNamespace
	}
	if kueueFrameworks != "" {
		ks.Frameworks = nil
		for _, f := range strings.Split(kueueFrameworks, ",") {
			ks.Frameworks = append(ks.Frameworks, strings.TrimSpace(f))
		}
	}
	return config.NewKueueCR(ks)
}

func logDeployImages(images *config.ImageConfig) {
	log.Info("Images to be used:")
	for _, ri := range images.List() {
		log.Info("  %-12s %s", ri.Name+":", ri.Image)
	}
}

func runDeployOperatorKind(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := prereqs.Ensure("kind", "kubectl"); err != nil {
		return err
	}

	source, err := sourceRoot()
	if err != nil {
		return err
	}
	images, path, err := loadImageConfig(source)
	if err != nil {
		return err
	}
	log.Info("Using images from %s", path)
	logDeployImages(images)

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
		return fmt.Errorf("cluster %q does not exist; create it first with: kueue-dev cluster create --name %s", name, name)
	}

	kubeconfig, err := requireKubeconfig(source)
	if err != nil {
		return err
	}
	client := newClient(kubeconfig)
	installer := newInstaller(client)

	pf := prereqs.NewPreflight(client, log)
	pf.Run(ctx)
	pf.CheckCRDs(ctx, install.KueueCRDs)
	if !pf.Report() {
		return fmt.Errorf("preflight checks failed")
	}

	if err := kube.LoadImages(ctx, cluster, images, true); err != nil {
		return err
	}

	// Idempotent; no-ops when the cluster already has them.
	if err := installer.CertManager(ctx); err != nil {
		return err
	}
	if err := installer.JobSet(ctx); err != nil {
		return err
	}
	if err := installer.LeaderWorkerSet(ctx); err != nil {
		return err
	}

	if err := installer.OperatorCRDs(ctx, source); err != nil {
		return err
	}
	cr, err := kueueCR()
	if err != nil {
		return err
	}
	if err := installer.Operator(ctx, source, images, cr); err != nil {
		return err
	}

	log.Success("Deployment complete on cluster %s", name)
	log.Info("Operator logs: kubectl logs -n openshift-kueue-operator -l name=openshift-kueue-operator -f")
	return nil
}

func runDeployOperatorOLM(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := prereqs.Ensure("kind", "kubectl", "operator-sdk"); err != nil {
		return err
	}

	source, err := sourceRoot()
	if err != nil {
		return err
	}
	images, path, err := loadImageConfig(source)
	if err != nil {
		return err
	}
	bundleImage, err := images.Get("bundle")
	if err != nil {
		return fmt.Errorf("%w (in %s)", err, path)
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
		return fmt.Errorf("cluster %q does not exist", name)
	}

	kubeconfig, err := requireKubeconfig(source)
	if err != nil {
		return err
	}
	installer := newInstaller(newClient(kubeconfig))

	if err := kube.LoadImages(ctx, cluster, images, true); err != nil {
		return err
	}
	if err := installer.OLM(ctx); err != nil {
		return err
	}
	return installer.Bundle(ctx, bundleImage)
}

func runDeployOperatorOpenShift(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := prereqs.Ensure("oc", "kubectl"); err != nil {
		return err
	}
	if err := verifyOpenShiftConnection(ctx); err != nil {
		return err
	}

	source, err := sourceRoot()
	if err != nil {
		return err
	}
	images, path, err := loadImageConfig(source)
	if err != nil {
		return err
	}
	log.Info("Using images from %s", path)
	logDeployImages(images)

	// The current oc login context is the target; no kubeconfig override.
	client := newClient(kubeconfigFlag)
	installer := newInstaller(client)

	if err := installer.CertManager(ctx); err != nil {
		return err
	}
	if err := installer.JobSet(ctx); err != nil {
		return err
	}
	if err := installer.LeaderWorkerSet(ctx); err != nil {
		return err
	}
	if err := installer.OperatorCRDs(ctx, source); err != nil {
		return err
	}
	cr, err := kueueCR()
	if err != nil {
		return err
	}
	if err := installer.Operator(ctx, source, images, cr); err != nil {
		return err
	}

	log.Success("Deployment complete")
	log.Info("Operator logs: oc logs -n openshift-kueue-operator -l name=openshift-kueue-operator -f")
	return nil
}

// verifyOpenShiftConnection checks the oc login and cluster-admin access.
func verifyOpenShiftConnection(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, "oc", "whoami").Output()
	if err != nil {
		return fmt.Errorf("not logged into an OpenShift cluster; run 'oc login' first")
	}
	user := strings.TrimSpace(string(out))

	server := ""
	if out, err := exec.CommandContext(ctx, "oc", "whoami", "--show-server").Output(); err == nil {
		server = strings.TrimSpace(string(out))
	}
	log.Info("Connected to %s as %s", server, user)

	if err := exec.CommandContext(ctx, "oc", "auth", "can-i", "*", "*", "--all-namespaces").Run(); err != nil {
		log.Warn("You may not have cluster-admin permissions; installing cert-manager and CRDs needs them")
		ok, perr := newPrompter().Confirm("Continue anyway?", false)
		if perr != nil {
			return perr
		}
		if !ok {
			return fmt.Errorf("aborted")
		}
	}
	return nil
}

func runDeployUpstream(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	source, err := sourceRoot()
	if err != nil {
		return err
	}
	kubeconfig, err := requireKubeconfig(source)
	if err != nil {
		return err
	}
	installer := newInstaller(newClient(kubeconfig))

	upSource := upstreamSource
	if upSource == "" {
		upSource = settings.Defaults.UpstreamSourcePath
	}
	if upSource == "" {
		// Sibling checkout next to the operator tree.
		sibling := filepath.Join(filepath.Dir(source), "kueue")
		if install.ValidateUpstreamSource(sibling) == nil {
			log.Debug("using sibling kueue checkout at %s", sibling)
			upSource = sibling
		}
	}
	if upSource == "" {
		return fmt.Errorf("no upstream kueue source specified; pass --upstream-source or set defaults.upstream_source_path")
	}
	if err := install.ValidateUpstreamSource(upSource); err != nil {
		return err
	}

	switch upstreamMethod {
	case "kustomize":
		if err := prereqs.Ensure("kustomize", "kubectl"); err != nil {
			return err
		}
		return installer.UpstreamKustomize(ctx, install.KustomizeOptions{
			Source: upSource,
			Image:  upstreamImage,
		})
	case "helm":
		if err := prereqs.Ensure("helm", "kubectl"); err != nil {
			return err
		}
		return installer.UpstreamHelm(ctx, install.HelmOptions{
			Source:     upSource,
			ValuesFile: helmValuesFile,
			SetValues:  helmSetValues,
		})
	default:
		return fmt.Errorf("unknown deploy method %q; use kustomize or helm", upstreamMethod)
	}
}
