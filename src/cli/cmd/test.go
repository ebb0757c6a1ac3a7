package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/openshift-eng/kueue-dev/src/e2e"
	"github.com/openshift-eng/kueue-dev/src/kube"
	"github.com/openshift-eng/kueue-dev/src/prereqs"
)

var (
	testFocus       string
	testLabelFilter string
	testSkip        []string
	upstreamTarget  string
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run the e2e suites",
}

var testRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the operator e2e suite with a retry loop",
	Long: `Run the operator e2e suite against the existing cluster. On failure the
cluster stays up for debugging; press Enter to re-run without reprovisioning.`,
	RunE: runTestRun,
}

var testOperatorCmd = &cobra.Command{
	Use:   "operator",
	Short: "Run the operator e2e suite once",
	RunE:  runTestOperator,
}

var testUpstreamCmd = &cobra.Command{
	Use:   "upstream",
	Short: "Run the upstream kueue e2e suite",
	RunE:  runTestUpstream,
}

func init() {
	for _, c := range []*cobra.Command{testRunCmd, testOperatorCmd, testUpstreamCmd} {
		c.Flags().StringVar(&testFocus, "focus", "", "ginkgo focus pattern")
		c.Flags().StringVar(&testLabelFilter, "label-filter", "", "ginkgo label filter (default: !disruptive)")
		c.Flags().StringSliceVar(&testSkip, "skip", nil, "extra ginkgo skip patterns, added to the configured ones")
	}
	testUpstreamCmd.Flags().StringVar(&upstreamTarget, "target", "singlecluster", "upstream suite under test/e2e")

	testCmd.AddCommand(testRunCmd)
	testCmd.AddCommand(testOperatorCmd)
	testCmd.AddCommand(testUpstreamCmd)
	rootCmd.AddCommand(testCmd)
}

func operatorSuiteRunner(cmd *cobra.Command) (*e2e.Runner, e2e.Options, error) {
	if err := prereqs.Ensure("go", "kubectl"); err != nil {
		return nil, e2e.Options{}, err
	}
	source, err := sourceRoot()
	if err != nil {
		return nil, e2e.Options{}, err
	}
	kubeconfig, err := requireKubeconfig(source)
	if err != nil {
		return nil, e2e.Options{}, err
	}
	ginkgo, err := e2e.EnsureGinkgo(cmd.Context(), source, log)
	if err != nil {
		return nil, e2e.Options{}, err
	}

	runner := e2e.NewRunner(ginkgo, source, kubeconfig)
	opts := e2e.Options{
		Focus:       testFocus,
		LabelFilter: testLabelFilter,
		Skip:        append(settings.Tests.OperatorSkipPatterns, testSkip...),
	}
	return runner, opts, nil
}

func runTestOperator(cmd *cobra.Command, args []string) error {
	runner, opts, err := operatorSuiteRunner(cmd)
	if err != nil {
		return err
	}
	log.Info("Running the operator e2e suite")
	if err := runner.Run(cmd.Context(), opts); err != nil {
		return err
	}
	log.Success("E2E tests passed")
	return nil
}

func runTestRun(cmd *cobra.Command, args []string) error {
	runner, opts, err := operatorSuiteRunner(cmd)
	if err != nil {
		return err
	}
	prompter := newPrompter()

	log.Info("Running the operator e2e suite")
	for {
		err := runner.Run(cmd.Context(), opts)
		if err == nil {
			log.Success("All tests passed")
			return nil
		}
		if cmd.Context().Err() != nil {
			return err
		}

		log.Warn("Tests failed: %v", err)
		log.Warn("The cluster is still up for debugging.")
		if prompter.AutoConfirm {
			// Nobody to press Enter; fail straight through.
			return err
		}
		if werr := prompter.WaitForEnter("Press Enter to re-run the tests, or Ctrl+C to exit"); werr != nil {
			return err
		}
		log.Info("Re-running tests")
	}
}

func runTestUpstream(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := prereqs.Ensure("go", "kubectl", "git"); err != nil {
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
	client := newClient(kubeconfig)

	upstreamDir := filepath.Join(source, "upstream", "kueue")
	srcDir := filepath.Join(upstreamDir, "src")

	if err := e2e.ApplyPatches(ctx, upstreamDir, log); err != nil {
		return err
	}

	if e2e.IsKindCluster(ctx, client) {
		log.Info("Kind cluster detected, preparing it for the upstream suite")
		if err := e2e.ScaleDownOperator(ctx, client, log); err != nil {
			return err
		}
		if err := e2e.DeleteNetworkPolicies(ctx, client, log); err != nil {
			return err
		}
	} else {
		if err := prereqs.Ensure("oc"); err != nil {
			return err
		}
		if err := e2e.AllowPrivileged(ctx, kubeconfig, log); err != nil {
			return err
		}
	}

	if _, err := kube.LabelWorkers(ctx, client); err != nil {
		return err
	}

	ginkgo, err := e2e.EnsureGinkgo(ctx, srcDir, log)
	if err != nil {
		return err
	}

	runner := e2e.NewRunner(ginkgo, srcDir, kubeconfig)
	runner.Env = e2e.UpstreamEnv()
	opts := e2e.Options{
		Focus:       testFocus,
		LabelFilter: testLabelFilter,
		Skip:        append(settings.Tests.UpstreamSkipPatterns, testSkip...),
		Suite:       upstreamTarget,
		Reports:     true,
	}

	log.Info("Running the upstream e2e suite (%s)", upstreamTarget)
	if err := runner.Run(ctx, opts); err != nil {
		return err
	}
	log.Success("Upstream e2e tests passed")
	return nil
}
