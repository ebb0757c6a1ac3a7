// Package install provisions the dependency components a Kueue development
// cluster needs. Each installer downloads a pinned upstream manifest and
// drives kubectl; none of them owns cluster state beyond that.
package install

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openshift-eng/kueue-dev/src/config"
	"github.com/openshift-eng/kueue-dev/src/kube"
	"github.com/openshift-eng/kueue-dev/src/output"
)

// Installer carries the shared plumbing for all component installs.
type Installer struct {
	Client   *kube.Client
	Log      *output.Logger
	Versions config.Versions

	// test seam for manifest downloads
	fetch func(ctx context.Context, url string) ([]byte, error)
}

// New creates an installer bound to a kubectl client.
func New(client *kube.Client, log *output.Logger, versions config.Versions) *Installer {
	return &Installer{
		Client:   client,
		Log:      log,
		Versions: versions,
		fetch:    fetchURL,
	}
}

func fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "kueue-dev")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading %s: HTTP %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// namespaceExists is the idempotency check most installers use.
func (in *Installer) namespaceExists(ctx context.Context, name string) bool {
	_, err := in.Client.Output(ctx, "get", "namespace", name)
	return err == nil
}

// Components installs everything a fresh cluster needs after its CNI is up.
// cert-manager goes first (JobSet webhooks depend on it); the rest can run
// concurrently.
func (in *Installer) Components(ctx context.Context, parallel bool, skip map[string]bool) error {
	if !skip["cert-manager"] {
		if err := in.CertManager(ctx); err != nil {
			return err
		}
	}

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"jobset", in.JobSet},
		{"leaderworkerset", in.LeaderWorkerSet},
		{"appwrapper", in.AppWrapper},
		{"training-operator", in.TrainingOperator},
		{"prometheus", in.Prometheus},
	}

	if !parallel {
		for _, s := range steps {
			if skip[s.name] {
				continue
			}
			if err := s.run(ctx); err != nil {
				return fmt.Errorf("installing %s: %w", s.name, err)
			}
		}
		return nil
	}

	var g errgroup.Group
	for _, s := range steps {
		if skip[s.name] {
			continue
		}
		s := s
		g.Go(func() error {
			if err := s.run(ctx); err != nil {
				return fmt.Errorf("installing %s: %w", s.name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// waitDeployment waits for a deployment to report Available.
func (in *Installer) waitDeployment(ctx context.Context, name, namespace string, timeout time.Duration) error {
	return in.Client.WaitFor(ctx, "deployment/"+name, "condition=Available", namespace, timeout)
}

// waitDeploymentExists polls until the named deployment is created at all,
// for deployments that a controller reconciles into existence.
func (in *Installer) waitDeploymentExists(ctx context.Context, name, namespace string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := in.Client.Output(ctx, "get", "deployment", name, "-n", namespace); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for deployment/%s in %s to be created", name, namespace)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}
