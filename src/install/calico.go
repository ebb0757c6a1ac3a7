package install

import (
	"context"
	"fmt"
	"time"
)

const calicoCustomResources = `apiVersion: operator.tigera.io/v1
kind: Installation
metadata:
  name: default
spec:
  calicoNetwork:
    ipPools:
    - blockSize: 26
      cidr: 10.244.0.0/16
      encapsulation: VXLANCrossSubnet
      natOutgoing: Enabled
      nodeSelector: all()
---
apiVersion: operator.tigera.io/v1
kind: APIServer
metadata:
  name: default
spec: {}
`

// Calico installs the Calico CNI. Until it runs, no node in a
// disableDefaultCNI cluster reports Ready.
func (in *Installer) Calico(ctx context.Context) error {
	version := in.Versions.Calico
	in.Log.Info("Installing Calico CNI %s", version)

	url := fmt.Sprintf("https://raw.githubusercontent.com/projectcalico/calico/%s/manifests/tigera-operator.yaml", version)
	manifest, err := in.fetch(ctx, url)
	if err != nil {
		return err
	}
	if err := in.Client.Create(ctx, manifest); err != nil {
		return fmt.Errorf("applying calico operator: %w", err)
	}

	for _, crd := range []string{"crd/installations.operator.tigera.io", "crd/apiservers.operator.tigera.io"} {
		if err := in.Client.WaitFor(ctx, crd, "condition=established", "", time.Minute); err != nil {
			return err
		}
	}

	if err := in.Client.Apply(ctx, []byte(calicoCustomResources)); err != nil {
		return fmt.Errorf("applying calico custom resources: %w", err)
	}

	// Pod readiness waits are best effort; the node wait below is the
	// actual gate.
	in.Client.WaitFor(ctx, "pod", "condition=ready", "tigera-operator", 5*time.Minute)
	in.Client.WaitFor(ctx, "pod", "condition=ready", "calico-system", 5*time.Minute)
	in.Client.WaitFor(ctx, "pod", "condition=ready", "calico-apiserver", time.Minute)

	if err := in.Client.WaitFor(ctx, "nodes", "condition=Ready", "", 3*time.Minute); err != nil {
		return fmt.Errorf("nodes did not become ready: %w", err)
	}

	in.Log.Success("Calico CNI installed")
	return nil
}
