package install

import (
	"context"
	"fmt"
	"time"
)

// CertManager installs cert-manager, which the JobSet and operator webhooks
// require.
func (in *Installer) CertManager(ctx context.Context) error {
	if in.namespaceExists(ctx, "cert-manager") {
		in.Log.Info("cert-manager already installed, skipping")
		return nil
	}

	version := in.Versions.CertManager
	in.Log.Info("Installing cert-manager %s", version)

	url := fmt.Sprintf("https://github.com/cert-manager/cert-manager/releases/download/%s/cert-manager.yaml", version)
	manifest, err := in.fetch(ctx, url)
	if err != nil {
		return err
	}
	if err := in.Client.Apply(ctx, manifest); err != nil {
		return err
	}

	for _, d := range []string{"cert-manager", "cert-manager-webhook", "cert-manager-cainjector"} {
		if err := in.waitDeployment(ctx, d, "cert-manager", 5*time.Minute); err != nil {
			return err
		}
	}

	in.Log.Success("cert-manager installed")
	return nil
}

// JobSet installs the JobSet controller.
func (in *Installer) JobSet(ctx context.Context) error {
	if in.namespaceExists(ctx, "jobset-system") {
		in.Log.Info("JobSet already installed, skipping")
		return nil
	}

	version := in.Versions.JobSet
	in.Log.Info("Installing JobSet %s", version)

	url := fmt.Sprintf("https://github.com/kubernetes-sigs/jobset/releases/download/%s/manifests.yaml", version)
	manifest, err := in.fetch(ctx, url)
	if err != nil {
		return err
	}
	// Server-side apply: the CRD annotations exceed client-side limits.
	if err := in.Client.ApplyServerSide(ctx, manifest); err != nil {
		return err
	}

	if err := in.waitDeployment(ctx, "jobset-controller-manager", "jobset-system", 5*time.Minute); err != nil {
		return err
	}

	in.Log.Success("JobSet installed")
	return nil
}

// LeaderWorkerSet installs the LeaderWorkerSet controller.
func (in *Installer) LeaderWorkerSet(ctx context.Context) error {
	if in.namespaceExists(ctx, "lws-system") {
		in.Log.Info("LeaderWorkerSet already installed, skipping")
		return nil
	}

	version := in.Versions.LeaderWorkerSet
	in.Log.Info("Installing LeaderWorkerSet %s", version)

	url := fmt.Sprintf("https://github.com/kubernetes-sigs/lws/releases/download/%s/manifests.yaml", version)
	manifest, err := in.fetch(ctx, url)
	if err != nil {
		return err
	}
	if err := in.Client.Apply(ctx, manifest); err != nil {
		return err
	}

	if err := in.waitDeployment(ctx, "lws-controller-manager", "lws-system", 5*time.Minute); err != nil {
		return err
	}

	in.Log.Success("LeaderWorkerSet installed")
	return nil
}

// appWrapperVersion pins the AppWrapper release; it has no settings entry
// because the e2e suites that exercise it are skipped by default.
const appWrapperVersion = "v1.1.2"

// AppWrapper installs the AppWrapper controller.
func (in *Installer) AppWrapper(ctx context.Context) error {
	if in.namespaceExists(ctx, "appwrapper-system") {
		in.Log.Info("AppWrapper already installed, skipping")
		return nil
	}

	in.Log.Info("Installing AppWrapper %s", appWrapperVersion)

	url := fmt.Sprintf("https://github.com/project-codeflare/appwrapper/releases/download/%s/install.yaml", appWrapperVersion)
	manifest, err := in.fetch(ctx, url)
	if err != nil {
		return err
	}
	if err := in.Client.ApplyServerSide(ctx, manifest); err != nil {
		return err
	}

	if err := in.waitDeployment(ctx, "appwrapper-controller-manager", "appwrapper-system", 5*time.Minute); err != nil {
		return err
	}

	in.Log.Success("AppWrapper installed")
	return nil
}

// trainingOperatorRef pins the Kubeflow Training Operator kustomize ref.
const trainingOperatorRef = "v1.9.3"

// TrainingOperator installs the Kubeflow Training Operator straight from its
// kustomize overlay on GitHub.
func (in *Installer) TrainingOperator(ctx context.Context) error {
	if in.namespaceExists(ctx, "kubeflow") {
		in.Log.Info("Training Operator already installed, skipping")
		return nil
	}

	in.Log.Info("Installing Kubeflow Training Operator %s", trainingOperatorRef)

	ref := fmt.Sprintf("github.com/kubeflow/training-operator.git/manifests/overlays/standalone?ref=%s", trainingOperatorRef)
	if err := in.Client.Run(ctx, "apply", "--server-side", "-k", ref); err != nil {
		return err
	}

	if err := in.waitDeployment(ctx, "training-operator", "kubeflow", 5*time.Minute); err != nil {
		return err
	}

	in.Log.Success("Training Operator installed")
	return nil
}
