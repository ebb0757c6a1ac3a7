package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openshift-eng/kueue-dev/src/config"
)

// operatorNamespace is where the operator's own manifests deploy it.
const operatorNamespace = "openshift-kueue-operator"

// Manifests are applied in this order; RBAC before the deployment.
var operatorManifests = []string{
	"01_namespace.yaml",
	"02_clusterrole.yaml",
	"02_role.yaml",
	"03_clusterrolebinding.yaml",
	"03_rolebinding.yaml",
	"04_serviceaccount.yaml",
	"05_clusterrole_kueue-batch.yaml",
	"06_clusterrole_kueue-admin.yaml",
	"07_deployment.yaml",
}

// Downstream image references the deployment manifest ships with. They are
// swapped for the developer's images before apply.
const (
	defaultOperatorImage   = "registry.redhat.io/kueue/kueue-rhel9-operator:latest"
	defaultOperandImage    = "registry.redhat.io/kueue/kueue-rhel9:latest"
	defaultMustGatherImage = "registry.redhat.io/kueue/kueue-must-gather-rhel9:latest"
)

// OperatorCRDs applies the CRDs from the source tree's deploy/crd directory.
func (in *Installer) OperatorCRDs(ctx context.Context, source string) error {
	crdDir := filepath.Join(source, "deploy", "crd")
	if _, err := os.Stat(crdDir); err != nil {
		return fmt.Errorf("CRD directory not found: %s", crdDir)
	}
	in.Log.Info("Installing CRDs from %s", crdDir)
	return in.Client.Run(ctx, "apply", "-f", crdDir)
}

// Operator deploys the operator from the source tree's numbered manifests,
// with the deployment rewritten to use the developer's images, then applies
// the Kueue CR and waits for the operand.
func (in *Installer) Operator(ctx context.Context, source string, images *config.ImageConfig, cr *config.KueueCR) error {
	operatorImage, err := images.Operator()
	if err != nil {
		return err
	}
	operandImage, err := images.Operand()
	if err != nil {
		return err
	}
	mustGatherImage, err := images.MustGather()
	if err != nil {
		return err
	}

	in.Log.Info("Deploying kueue-operator")
	in.Log.Info("  operator image:    %s", operatorImage)
	in.Log.Info("  operand image:     %s", operandImage)
	in.Log.Info("  must-gather image: %s", mustGatherImage)

	tmp, err := os.MkdirTemp("", "kueue-dev-deploy-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	if err := stageManifests(filepath.Join(source, "deploy"), tmp); err != nil {
		return err
	}

	deployment := filepath.Join(tmp, "07_deployment.yaml")
	content, err := os.ReadFile(deployment)
	if err != nil {
		return fmt.Errorf("deployment manifest not found: %w", err)
	}
	rewritten, err := rewriteDeployment(string(content), operatorImage, operandImage, mustGatherImage)
	if err != nil {
		return err
	}
	if err := os.WriteFile(deployment, []byte(rewritten), 0o644); err != nil {
		return err
	}

	for _, name := range operatorManifests {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			in.Log.Warn("Manifest %s not found, skipping", name)
			continue
		}
		in.Log.Info("Applying %s", name)
		if err := in.Client.Run(ctx, "apply", "-f", path); err != nil {
			return err
		}
	}

	if err := in.waitDeployment(ctx, "openshift-kueue-operator", operatorNamespace, 5*time.Minute); err != nil {
		return fmt.Errorf("operator deployment not available: %w", err)
	}

	if cr == nil {
		return nil
	}

	// Give the operator's controllers time to start before it sees the CR.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
	}

	return in.KueueCR(ctx, cr)
}

// KueueCR applies the Kueue custom resource and waits for the operator to
// reconcile the operand into existence and availability.
func (in *Installer) KueueCR(ctx context.Context, cr *config.KueueCR) error {
	in.Log.Info("Creating Kueue CR %s/%s", cr.Namespace, cr.Name)

	manifest, err := cr.YAML()
	if err != nil {
		return err
	}
	if err := in.Client.Apply(ctx, manifest); err != nil {
		return fmt.Errorf("creating Kueue CR: %w", err)
	}

	if err := in.waitDeploymentExists(ctx, "kueue-controller-manager", cr.Namespace, time.Minute); err != nil {
		return fmt.Errorf("operator did not create the controller-manager deployment: %w", err)
	}
	if err := in.waitDeployment(ctx, "kueue-controller-manager", cr.Namespace, 5*time.Minute); err != nil {
		return fmt.Errorf("kueue-controller-manager not available: %w", err)
	}

	in.Log.Success("Kueue operand is running")
	return nil
}

// stageManifests copies the deploy directory's YAML files into a scratch
// directory so image rewrites never touch the source tree.
func stageManifests(deployDir, dest string) error {
	entries, err := os.ReadDir(deployDir)
	if err != nil {
		return fmt.Errorf("deploy directory not found: %s", deployDir)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(deployDir, e.Name()))
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dest, e.Name()), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// rewriteDeployment swaps the released image references for the developer's
// and forces IfNotPresent so kind uses the locally loaded images.
func rewriteDeployment(content, operatorImage, operandImage, mustGatherImage string) (string, error) {
	content = strings.ReplaceAll(content, "image: "+defaultOperatorImage, "image: "+operatorImage)
	content = strings.ReplaceAll(content, "value: "+defaultOperandImage, "value: "+operandImage)
	content = strings.ReplaceAll(content, "value: "+defaultMustGatherImage, "value: "+mustGatherImage)
	content = strings.ReplaceAll(content, "imagePullPolicy: Always", "imagePullPolicy: IfNotPresent")

	for _, img := range []string{operatorImage, operandImage, mustGatherImage} {
		if !strings.Contains(content, img) {
			return "", fmt.Errorf("deployment manifest does not reference %s after rewrite; "+
				"its image defaults may have changed", img)
		}
	}
	return content, nil
}
