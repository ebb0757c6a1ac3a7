package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openshift-eng/kueue-dev/src/kube"
	"github.com/openshift-eng/kueue-dev/src/output"
)

// upstreamKueueNamespace is where the operator runs the operand; the
// upstream suite is pointed there instead of its default kueue-system.
const upstreamKueueNamespace = "openshift-kueue-operator"

// UpstreamEnv returns the environment the upstream suite expects.
func UpstreamEnv() []string {
	return []string{
		"KUEUE_NAMESPACE=" + upstreamKueueNamespace,
		// Empty silences the suite's kind version assertion on OCP.
		"E2E_KIND_VERSION=",
	}
}

// IsKindCluster reports whether the current kubectl context belongs to kind.
func IsKindCluster(ctx context.Context, c *kube.Client) bool {
	out, err := c.Output(ctx, "config", "current-context")
	if err != nil {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(out), "kind-")
}

// ScaleDownOperator stops the operator so the upstream suite can manage the
// operand directly, and waits for its pods to terminate.
func ScaleDownOperator(ctx context.Context, c *kube.Client, log *output.Logger) error {
	log.Info("Scaling down the operator deployment")
	if err := c.Run(ctx, "scale", "deployment/openshift-kueue-operator",
		"--replicas=0", "-n", upstreamKueueNamespace); err != nil {
		return fmt.Errorf("scaling down operator: %w", err)
	}
	return c.Run(ctx, "wait", "--for=delete", "pod",
		"-l", "name=openshift-kueue-operator",
		"-n", upstreamKueueNamespace, "--timeout=60s")
}

// DeleteNetworkPolicies removes all NetworkPolicies; the upstream suite's
// traffic assumptions do not survive the operator's policies. A cluster with
// none is fine.
func DeleteNetworkPolicies(ctx context.Context, c *kube.Client, log *output.Logger) error {
	log.Info("Deleting NetworkPolicies")
	err := c.Run(ctx, "delete", "networkpolicies", "--all", "--all-namespaces")
	if err != nil && (strings.Contains(err.Error(), "No resources found") ||
		strings.Contains(err.Error(), "doesn't have a resource type")) {
		return nil
	}
	return err
}

// AllowPrivileged grants the SCCs the upstream workloads need on OpenShift.
func AllowPrivileged(ctx context.Context, kubeconfig string, log *output.Logger) error {
	log.Info("Granting privileged and anyuid SCCs")
	for _, scc := range []string{"privileged", "anyuid"} {
		cmd := execCommand(ctx, "oc", "adm", "policy", "add-scc-to-group", scc,
			"system:authenticated", "system:serviceaccounts")
		cmd.Env = os.Environ()
		if kubeconfig != "" {
			cmd.Env = append(cmd.Env, "KUBECONFIG="+kubeconfig)
		}
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("adding %s SCC: %w\n%s", scc, err, strings.TrimSpace(string(out)))
		}
	}
	return nil
}

// ApplyPatches applies every .patch file under <upstreamDir>/patch to the
// checkout at <upstreamDir>/src, skipping patches that no longer apply
// cleanly (usually because they already did).
func ApplyPatches(ctx context.Context, upstreamDir string, log *output.Logger) error {
	patchDir := filepath.Join(upstreamDir, "patch")
	entries, err := os.ReadDir(patchDir)
	if err != nil {
		log.Debug("no patch directory at %s", patchDir)
		return nil
	}

	srcDir := filepath.Join(upstreamDir, "src")
	if _, err := os.Stat(srcDir); err != nil {
		return fmt.Errorf("upstream source directory not found: %s", srcDir)
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".patch" {
			continue
		}
		patch := filepath.Join(patchDir, e.Name())

		check := execCommand(ctx, "git", "apply", "--check", patch)
		check.Dir = srcDir
		if check.Run() != nil {
			log.Debug("patch %s already applied, skipping", e.Name())
			continue
		}

		log.Info("Applying patch %s", e.Name())
		apply := execCommand(ctx, "git", "apply", patch)
		apply.Dir = srcDir
		if out, err := apply.CombinedOutput(); err != nil {
			return fmt.Errorf("applying %s: %w\n%s", e.Name(), err, strings.TrimSpace(string(out)))
		}
	}
	return nil
}
