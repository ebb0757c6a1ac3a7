package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openshift-eng/kueue-dev/src/build"
	"github.com/openshift-eng/kueue-dev/src/config"
	"github.com/openshift-eng/kueue-dev/src/kube"
	"github.com/openshift-eng/kueue-dev/src/output"
	"github.com/openshift-eng/kueue-dev/src/prereqs"
)

var (
	buildComponents []string
	buildAll        bool
	imagesFileFlag  string
	buildPush       bool
	buildNoPush     bool
	buildLoad       bool
	buildSequential bool
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Build, list, and load component images",
}

var imagesBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build and push the component images in parallel",
	Long: `Build the operator, operand, must-gather, and bundle images concurrently,
one worker per component, with a live per-component status display.
A component failure never stops its siblings.`,
	RunE: runImagesBuild,
}

var imagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List locally present component images",
	RunE:  runImagesList,
}

var imagesLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the component images into a kind cluster",
	RunE:  runImagesLoad,
}

func init() {
	imagesBuildCmd.Flags().StringSliceVar(&buildComponents, "component", nil,
		"components to build (operator, operand, must-gather, bundle); default all")
	imagesBuildCmd.Flags().BoolVar(&buildAll, "all", false, "build the full catalog")
	imagesBuildCmd.Flags().StringVar(&imagesFileFlag, "images-file", "", "images JSON file (default from config)")
	imagesBuildCmd.Flags().BoolVar(&buildPush, "push", true, "push images after building")
	imagesBuildCmd.Flags().BoolVar(&buildNoPush, "no-push", false, "build only, do not push")
	imagesBuildCmd.Flags().BoolVar(&buildLoad, "load", false, "load built images into the kind cluster")
	imagesBuildCmd.Flags().BoolVar(&buildSequential, "sequential", false, "build one component at a time")

	imagesListCmd.Flags().StringVar(&imagesFileFlag, "images-file", "", "images JSON file (default from config)")

	imagesLoadCmd.Flags().StringVar(&clusterName, "name", "", "cluster name (default from config)")
	imagesLoadCmd.Flags().StringVar(&imagesFileFlag, "images-file", "", "images JSON file (default from config)")

	imagesCmd.AddCommand(imagesBuildCmd)
	imagesCmd.AddCommand(imagesListCmd)
	imagesCmd.AddCommand(imagesLoadCmd)
	rootCmd.AddCommand(imagesCmd)
}

// loadImageConfig resolves and parses the images file against the source root.
func loadImageConfig(source string) (*config.ImageConfig, string, error) {
	path := imagesPath(source, imagesFileFlag)
	ic, err := config.LoadImages(path)
	if err != nil {
		return nil, "", err
	}
	return ic, path, nil
}

func runImagesBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	source, err := sourceRoot()
	if err != nil {
		return err
	}
	images, path, err := loadImageConfig(source)
	if err != nil {
		return err
	}

	names := buildComponents
	if buildAll {
		names = nil
	}
	components, err := build.Resolve(names)
	if err != nil {
		return err
	}

	refs := make(map[string]string, len(components))
	for _, c := range components {
		ref, err := images.Get(c.Name)
		if err != nil {
			return fmt.Errorf("%w (in %s)", err, path)
		}
		refs[c.Name] = ref
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}

	runner := build.NewRunner(rt, source, path)
	runner.Verbosity = verbosity
	runner.Push = buildPush && !buildNoPush

	coord := build.NewCoordinator(runner, refs)
	coord.Sequential = buildSequential

	reporter := build.NewReporter(components)
	// Streamed subprocess output and the animated display would fight over
	// the terminal; plain lines win.
	if verbosity >= 2 {
		reporter.Animate = false
	}

	mode := "parallel"
	if coord.Sequential {
		mode = "sequential"
	}
	push := "no"
	if runner.Push {
		push = "yes"
	}
	output.ContextBlock(os.Stdout, []output.KV{
		{Key: "runtime", Value: rt.Name},
		{Key: "mode", Value: mode},
		{Key: "components", Value: strconv.Itoa(len(components))},
		{Key: "push", Value: push},
	})

	start := time.Now()
	events := make(chan build.Event, 64)
	done := make(chan struct{})
	go func() {
		reporter.Run(events)
		close(done)
	}()

	result, err := coord.Run(ctx, components, events)
	<-done
	if err != nil {
		return err
	}

	color := output.UseColor()
	sec := output.NewSection(os.Stdout, "Summary", 0, color)
	for _, r := range result.Results {
		output.SummaryRow(os.Stdout, r.Component, r.Status.String(), formatBuildDuration(r.Duration), color)
	}
	sec.Separator()
	total := "success"
	if !result.OK() {
		total = "failed"
	}
	output.SummaryTotal(os.Stdout, time.Since(start), total, color)
	sec.Close()

	if n := reporter.Anomalies(); n > 0 {
		log.Debug("%d late or unknown status event(s) ignored", n)
	}

	if err := result.Err(); err != nil {
		return err
	}

	if buildLoad {
		if err := loadIntoKind(ctx, images); err != nil {
			return err
		}
	}
	return nil
}

func formatBuildDuration(d time.Duration) string {
	return d.Round(100 * time.Millisecond).String()
}

func runImagesList(cmd *cobra.Command, args []string) error {
	source, err := sourceRoot()
	if err != nil {
		return err
	}
	images, _, err := loadImageConfig(source)
	if err != nil {
		return err
	}
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	local, err := rt.ListImages(cmd.Context())
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(local))
	for _, img := range local {
		present[img] = true
	}

	color := output.UseColor()
	sec := output.NewSection(os.Stdout, "Images", 0, color)
	for _, ri := range images.List() {
		status := "missing"
		icon := output.StatusIcon("failed", color)
		if present[ri.Image] || present[strings.TrimPrefix(ri.Image, "localhost/")] {
			status = "present"
			icon = output.StatusIcon("success", color)
		}
		sec.Row("%s %-14s %-60s %s", icon, ri.Name, ri.Image, status)
	}
	sec.Close()
	return nil
}

func runImagesLoad(cmd *cobra.Command, args []string) error {
	source, err := sourceRoot()
	if err != nil {
		return err
	}
	images, _, err := loadImageConfig(source)
	if err != nil {
		return err
	}
	return loadIntoKind(cmd.Context(), images)
}

// loadIntoKind pushes the configured images into the kind cluster's nodes.
func loadIntoKind(ctx context.Context, images *config.ImageConfig) error {
	if err := prereqs.Ensure("kind"); err != nil {
		return err
	}
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	cluster := kube.NewKind(resolvedClusterName(), kube.CNIDefault, rt)
	cluster.Verbose = verbosity >= 1
	cluster.DryRun = dryRun

	if exists, err := cluster.Exists(ctx); err != nil {
		return err
	} else if !exists {
		return fmt.Errorf("cluster %q does not exist", resolvedClusterName())
	}

	return kube.LoadImages(ctx, cluster, images, true)
}
