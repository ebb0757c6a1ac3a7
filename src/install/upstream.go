package install

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Defaults for upstream Kueue deployments.
const (
	DefaultOverlay     = "default"
	DefaultReleaseName = "kueue"
	UpstreamNamespace  = "kueue-system"

	upstreamImageRegistry = "localhost"
	upstreamImageTag      = "dev"
)

// KueueCRDs lists the CRDs the kueue controller needs established before it
// starts; preflight reports which ones a cluster already has.
var KueueCRDs = []string{
	"workloads.kueue.x-k8s.io",
	"clusterqueues.kueue.x-k8s.io",
	"localqueues.kueue.x-k8s.io",
	"resourceflavors.kueue.x-k8s.io",
	"admissionchecks.kueue.x-k8s.io",
}

// KustomizeOptions configures an upstream deploy from the source tree's
// kustomize overlays.
type KustomizeOptions struct {
	Source    string
	Overlay   string // default, dev, alpha-enabled
	Image     string // optional controller image override
	Namespace string
}

// HelmOptions configures an upstream deploy from the source tree's chart.
type HelmOptions struct {
	Source      string
	ReleaseName string
	Namespace   string
	ValuesFile  string
	SetValues   []string
}

// ValidateUpstreamSource checks that the path looks like an upstream Kueue
// checkout: a kustomize config, a helm chart, or both.
func ValidateUpstreamSource(source string) error {
	kustomization := filepath.Join(source, "config", "default", "kustomization.yaml")
	chart := filepath.Join(source, "charts", "kueue", "Chart.yaml")

	_, kerr := os.Stat(kustomization)
	_, herr := os.Stat(chart)
	if kerr != nil && herr != nil {
		return fmt.Errorf("not an upstream kueue source tree: neither %s nor %s exists",
			kustomization, chart)
	}
	return nil
}

// UpstreamRevision reports the short HEAD hash of the upstream checkout, or
// "" when the source is not a git repository.
func UpstreamRevision(source string) string {
	repo, err := git.PlainOpenWithOptions(source, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()[:12]
}

// UpstreamImage returns the image reference a local upstream build produces.
// The tag defaults to the checkout's HEAD revision so successive builds from
// different commits never collide.
func UpstreamImage(source string) string {
	tag := upstreamImageTag
	if rev := UpstreamRevision(source); rev != "" {
		tag = rev
	}
	return fmt.Sprintf("%s/kueue:%s", upstreamImageRegistry, tag)
}

// upstreamBranch reports the checked-out branch name for logging, or "" for
// a detached HEAD or non-repository.
func upstreamBranch(source string) string {
	repo, err := git.PlainOpenWithOptions(source, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil || head.Name() == plumbing.HEAD {
		return ""
	}
	return head.Name().Short()
}

// UpstreamKustomize deploys upstream Kueue from its kustomize overlay, then
// waits for the CRDs and the controller-manager.
func (in *Installer) UpstreamKustomize(ctx context.Context, opts KustomizeOptions) error {
	if opts.Overlay == "" {
		opts.Overlay = DefaultOverlay
	}
	if opts.Namespace == "" {
		opts.Namespace = UpstreamNamespace
	}

	in.Log.Info("Deploying upstream kueue via kustomize")
	in.Log.Info("  source:  %s", opts.Source)
	if branch := upstreamBranch(opts.Source); branch != "" {
		in.Log.Info("  branch:  %s", branch)
	}
	in.Log.Info("  overlay: %s", opts.Overlay)

	if err := ValidateUpstreamSource(opts.Source); err != nil {
		return err
	}
	if _, err := exec.LookPath("kustomize"); err != nil {
		return fmt.Errorf("kustomize is required but not found in PATH")
	}

	overlay := filepath.Join(opts.Source, "config", opts.Overlay)
	if _, err := os.Stat(overlay); err != nil {
		return fmt.Errorf("kustomize overlay %q not found at %s", opts.Overlay, overlay)
	}

	if opts.Image != "" {
		in.Log.Info("  image:   %s", opts.Image)

		// Copy the whole config tree so the overlay's relative refs
		// (../components/crd) survive, then edit the copy.
		tmp, err := os.MkdirTemp("", "kueue-dev-kustomize-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmp)

		tmpConfig := filepath.Join(tmp, "config")
		if err := copyDir(filepath.Join(opts.Source, "config"), tmpConfig); err != nil {
			return err
		}
		overlay = filepath.Join(tmpConfig, opts.Overlay)

		edit := execCommand(ctx, "kustomize", "edit", "set", "image", "controller="+opts.Image)
		edit.Dir = overlay
		if out, err := edit.CombinedOutput(); err != nil {
			return fmt.Errorf("kustomize edit set image: %w\n%s", err, strings.TrimSpace(string(out)))
		}
	}

	if err := in.applyKustomizeBuild(ctx, overlay); err != nil {
		return err
	}

	in.Log.Info("Waiting for Kueue CRDs to be established")
	for _, crd := range KueueCRDs {
		if err := in.Client.WaitFor(ctx, "crd/"+crd, "condition=Established", "", 2*time.Minute); err != nil {
			return fmt.Errorf("CRD %s did not become established: %w", crd, err)
		}
	}

	if err := in.waitDeployment(ctx, "kueue-controller-manager", opts.Namespace, 5*time.Minute); err != nil {
		return fmt.Errorf("kueue-controller-manager not available: %w", err)
	}

	in.Log.Success("Upstream kueue deployed via kustomize")
	return nil
}

// applyKustomizeBuild renders the overlay and server-side applies it. The
// workloads CRD exceeds the last-applied-configuration annotation limit, so
// client-side apply cannot be used here.
func (in *Installer) applyKustomizeBuild(ctx context.Context, overlay string) error {
	in.Log.Info("Building kustomize overlay %s", overlay)

	build := execCommand(ctx, "kustomize", "build", overlay)
	out, err := build.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("kustomize build failed: %s", strings.TrimSpace(string(ee.Stderr)))
		}
		return fmt.Errorf("kustomize build failed: %w", err)
	}

	return in.Client.ApplyServerSideForced(ctx, out)
}

// UpstreamHelm deploys upstream Kueue from its bundled chart.
func (in *Installer) UpstreamHelm(ctx context.Context, opts HelmOptions) error {
	if opts.ReleaseName == "" {
		opts.ReleaseName = DefaultReleaseName
	}
	if opts.Namespace == "" {
		opts.Namespace = UpstreamNamespace
	}

	in.Log.Info("Deploying upstream kueue via helm")
	in.Log.Info("  source:  %s", opts.Source)
	in.Log.Info("  release: %s", opts.ReleaseName)

	if err := ValidateUpstreamSource(opts.Source); err != nil {
		return err
	}
	if _, err := exec.LookPath("helm"); err != nil {
		return fmt.Errorf("helm is required but not found in PATH")
	}

	chart := filepath.Join(opts.Source, "charts", "kueue")
	if _, err := os.Stat(chart); err != nil {
		return fmt.Errorf("helm chart not found at %s", chart)
	}

	args := []string{"upgrade", "--install", opts.ReleaseName, chart,
		"--namespace", opts.Namespace, "--create-namespace"}
	if in.Client.Kubeconfig != "" {
		args = append(args, "--kubeconfig", in.Client.Kubeconfig)
	}
	if opts.ValuesFile != "" {
		if _, err := os.Stat(opts.ValuesFile); err != nil {
			return fmt.Errorf("values file not found: %s", opts.ValuesFile)
		}
		args = append(args, "-f", opts.ValuesFile)
	}
	for _, set := range opts.SetValues {
		args = append(args, "--set", set)
	}

	cmd := execCommand(ctx, "helm", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("helm upgrade --install failed: %w\n%s", err, strings.TrimSpace(string(out)))
	}

	if err := in.waitDeployment(ctx, "kueue-controller-manager", opts.Namespace, 5*time.Minute); err != nil {
		return fmt.Errorf("kueue-controller-manager not available: %w", err)
	}

	in.Log.Success("Upstream kueue deployed via helm")
	return nil
}

// UninstallUpstreamHelm removes an upstream helm release. A failed uninstall
// is reported but not fatal.
func (in *Installer) UninstallUpstreamHelm(ctx context.Context, releaseName, namespace string) error {
	if releaseName == "" {
		releaseName = DefaultReleaseName
	}
	if namespace == "" {
		namespace = UpstreamNamespace
	}

	in.Log.Info("Uninstalling helm release %s from %s", releaseName, namespace)

	args := []string{"uninstall", releaseName, "--namespace", namespace}
	if in.Client.Kubeconfig != "" {
		args = append(args, "--kubeconfig", in.Client.Kubeconfig)
	}
	cmd := execCommand(ctx, "helm", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		in.Log.Warn("helm uninstall: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

// BuildUpstreamImage builds the controller image through the upstream
// Makefile's kind-image-build target and returns the resulting reference.
func (in *Installer) BuildUpstreamImage(ctx context.Context, source, image string) (string, error) {
	if _, err := os.Stat(filepath.Join(source, "Makefile")); err != nil {
		return "", fmt.Errorf("Makefile not found in %s", source)
	}
	if _, err := exec.LookPath("make"); err != nil {
		return "", fmt.Errorf("make is required to build images but not found in PATH")
	}

	if image == "" {
		image = UpstreamImage(source)
	}
	registry, tag := splitUpstreamImage(image)
	full := fmt.Sprintf("%s/kueue:%s", registry, tag)

	in.Log.Info("Building upstream kueue image %s", full)

	cmd := execCommand(ctx, "make", "kind-image-build",
		"IMAGE_REGISTRY="+registry, "GIT_TAG="+tag)
	cmd.Dir = source
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("make kind-image-build failed: %w", err)
	}

	in.Log.Success("Image built: %s", full)
	return full, nil
}

// splitUpstreamImage breaks an image reference into the IMAGE_REGISTRY and
// GIT_TAG pieces the upstream Makefile expects. The Makefile appends /kueue
// to the registry, so a trailing /kueue in the input is stripped.
func splitUpstreamImage(image string) (registry, tag string) {
	registry, tag = image, upstreamImageTag
	if i := strings.LastIndex(image, ":"); i >= 0 {
		registry, tag = image[:i], image[i+1:]
	}
	registry = strings.TrimSuffix(registry, "/kueue")
	if registry == "" {
		registry = upstreamImageRegistry
	}
	return registry, tag
}

// copyDir recursively copies a directory tree.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}
