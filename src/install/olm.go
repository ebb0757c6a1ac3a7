package install

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// test seam for operator-sdk invocations
var execCommand = exec.CommandContext

const olmReleaseAPI = "https://api.github.com/repos/operator-framework/operator-lifecycle-manager/releases/latest"

// OLMInstalled reports whether OLM's core deployments are present.
func (in *Installer) OLMInstalled(ctx context.Context) bool {
	if !in.namespaceExists(ctx, "olm") {
		return false
	}
	for _, d := range []string{"olm-operator", "catalog-operator"} {
		if _, err := in.Client.Output(ctx, "get", "deployment", d, "-n", "olm"); err != nil {
			return false
		}
	}
	return true
}

// OLM installs the latest Operator Lifecycle Manager release.
func (in *Installer) OLM(ctx context.Context) error {
	if in.OLMInstalled(ctx) {
		in.Log.Info("OLM already installed, skipping")
		return nil
	}

	version, err := in.latestOLMVersion(ctx)
	if err != nil {
		return err
	}
	in.Log.Info("Installing OLM %s", version)

	base := fmt.Sprintf("https://github.com/operator-framework/operator-lifecycle-manager/releases/download/%s", version)
	for _, file := range []string{"crds.yaml", "olm.yaml"} {
		manifest, err := in.fetch(ctx, base+"/"+file)
		if err != nil {
			return err
		}
		if err := in.Client.ApplyServerSide(ctx, manifest); err != nil {
			return err
		}
	}

	// Availability waits are best effort; run bundle will surface a broken
	// OLM anyway.
	in.waitDeployment(ctx, "catalog-operator", "olm", 5*time.Minute)
	in.waitDeployment(ctx, "olm-operator", "olm", 5*time.Minute)
	in.waitDeployment(ctx, "packageserver", "olm", 5*time.Minute)

	in.Log.Success("OLM installed")
	return nil
}

func (in *Installer) latestOLMVersion(ctx context.Context) (string, error) {
	body, err := in.fetch(ctx, olmReleaseAPI)
	if err != nil {
		return "", fmt.Errorf("fetching latest OLM release: %w", err)
	}

	var release struct {
		TagName string `json:"tag_name"`
	}
	if err := json.Unmarshal(body, &release); err != nil {
		return "", fmt.Errorf("parsing OLM release response: %w", err)
	}
	if release.TagName == "" {
		return "", fmt.Errorf("OLM release response missing tag_name")
	}
	return release.TagName, nil
}

// OperatorInstalled reports whether an operator install (manifest or OLM
// based) is already present.
func (in *Installer) OperatorInstalled(ctx context.Context) bool {
	if !in.namespaceExists(ctx, operatorNamespace) {
		return false
	}
	if _, err := in.Client.Output(ctx, "get", "deployment", "openshift-kueue-operator", "-n", operatorNamespace); err == nil {
		return true
	}
	_, err := in.Client.Output(ctx, "get", "catalogsource", "kueue-operator-catalog", "-n", operatorNamespace)
	return err == nil
}

// UninstallOperator removes an existing operator install via operator-sdk
// cleanup, then deletes the namespace and any leftover Kueue CRs.
func (in *Installer) UninstallOperator(ctx context.Context) error {
	if !in.OperatorInstalled(ctx) {
		in.Log.Info("No existing operator installation detected")
		return nil
	}

	in.Log.Info("Existing operator installation detected, uninstalling")
	if _, err := exec.LookPath("operator-sdk"); err != nil {
		in.Log.Warn("operator-sdk not found, skipping OLM cleanup")
	} else if out, err := in.operatorSDK(ctx, "cleanup", "kueue-operator", "-n", operatorNamespace); err != nil {
		in.Log.Warn("operator-sdk cleanup: %s", strings.TrimSpace(out))
	}

	// Poll until the deployment is gone, up to a minute.
	deadline := time.Now().Add(time.Minute)
	for time.Now().Before(deadline) {
		if _, err := in.Client.Output(ctx, "get", "deployment", "openshift-kueue-operator", "-n", operatorNamespace); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}

	in.Client.Run(ctx, "delete", "namespace", operatorNamespace, "--ignore-not-found", "--timeout=60s")
	in.Client.Run(ctx, "delete", "kueue", "--all", "--all-namespaces", "--timeout=30s", "--ignore-not-found")

	in.Log.Success("Operator uninstalled")
	return nil
}

// Bundle installs the operator through operator-sdk run bundle, cleaning up
// a stale catalog source from a previous run when needed.
func (in *Installer) Bundle(ctx context.Context, bundleImage string) error {
	in.Log.Info("Installing kueue-operator via OLM bundle")

	ns := "apiVersion: v1\nkind: Namespace\nmetadata:\n  name: " + operatorNamespace + "\n"
	if err := in.Client.Apply(ctx, []byte(ns)); err != nil {
		return err
	}

	_, catalogErr := in.Client.Output(ctx, "get", "catalogsource", "kueue-operator-catalog", "-n", operatorNamespace)
	if catalogErr == nil {
		in.Log.Warn("Stale operator catalog source found, cleaning up first")
		if err := in.cleanupAndRunBundle(ctx, bundleImage); err != nil {
			return err
		}
	} else if err := in.runBundle(ctx, bundleImage); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			if err := in.cleanupAndRunBundle(ctx, bundleImage); err != nil {
				return err
			}
		} else {
			return err
		}
	}

	in.Log.Success("Operator installed via OLM bundle")
	in.Client.Run(ctx, "get", "deployments", "-n", operatorNamespace)
	return nil
}

func (in *Installer) runBundle(ctx context.Context, bundleImage string) error {
	out, err := in.operatorSDK(ctx, "run", "bundle", bundleImage,
		"--namespace", operatorNamespace, "--timeout", "10m")
	if err != nil {
		return fmt.Errorf("operator-sdk run bundle failed: %w\n%s", err, strings.TrimSpace(out))
	}
	return nil
}

func (in *Installer) cleanupAndRunBundle(ctx context.Context, bundleImage string) error {
	if out, err := in.operatorSDK(ctx, "cleanup", "kueue-operator", "-n", operatorNamespace); err != nil {
		in.Log.Warn("operator-sdk cleanup: %s", strings.TrimSpace(out))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(3 * time.Second):
	}
	return in.runBundle(ctx, bundleImage)
}

// operatorSDK runs operator-sdk with the client's kubeconfig and returns the
// combined output.
func (in *Installer) operatorSDK(ctx context.Context, args ...string) (string, error) {
	cmd := execCommand(ctx, "operator-sdk", args...)
	cmd.Env = os.Environ()
	if in.Client.Kubeconfig != "" {
		cmd.Env = append(cmd.Env, "KUBECONFIG="+in.Client.Kubeconfig)
	}
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), err
}
