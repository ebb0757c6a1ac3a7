// Package kube wraps the kind and kubectl binaries. All cluster state lives
// behind those tools; this package only composes their invocations.
package kube

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openshift-eng/kueue-dev/src/container"
)

// test seam
var execCommand = exec.CommandContext

// CNIProvider selects the cluster network plugin.
type CNIProvider string

const (
	CNICalico  CNIProvider = "calico"
	CNIDefault CNIProvider = "default"
)

// ParseCNIProvider validates a --cni flag value.
func ParseCNIProvider(s string) (CNIProvider, error) {
	switch strings.ToLower(s) {
	case "calico":
		return CNICalico, nil
	case "default":
		return CNIDefault, nil
	default:
		return "", fmt.Errorf("invalid CNI provider %q (must be calico or default)", s)
	}
}

// Kind drives the kind binary for one named cluster.
type Kind struct {
	Name    string
	CNI     CNIProvider
	Runtime *container.Runtime
	Verbose bool
	DryRun  bool
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewKind creates a kind wrapper bound to the detected container runtime.
func NewKind(name string, cni CNIProvider, rt *container.Runtime) *Kind {
	return &Kind{
		Name:    name,
		CNI:     cni,
		Runtime: rt,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

func (k *Kind) command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := execCommand(ctx, "kind", args...)
	cmd.Env = append(os.Environ(), k.Runtime.KindEnv()...)
	return cmd
}

func (k *Kind) run(ctx context.Context, stdin []byte, args ...string) error {
	if k.Verbose {
		fmt.Fprintf(k.Stderr, "exec: kind %s\n", strings.Join(args, " "))
	}
	if k.DryRun {
		fmt.Fprintf(k.Stderr, "dry-run: kind %s\n", strings.Join(args, " "))
		return nil
	}
	cmd := k.command(ctx, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	cmd.Stdout = k.Stdout
	cmd.Stderr = k.Stderr
	return cmd.Run()
}

// Exists reports whether the cluster is already registered with kind.
func (k *Kind) Exists(ctx context.Context) (bool, error) {
	clusters, err := ListClusters(ctx, k.Runtime)
	if err != nil {
		return false, err
	}
	for _, c := range clusters {
		if c == k.Name {
			return true, nil
		}
	}
	return false, nil
}

// ListClusters returns the names of all kind clusters.
func ListClusters(ctx context.Context, rt *container.Runtime) ([]string, error) {
	cmd := execCommand(ctx, "kind", "get", "clusters")
	cmd.Env = append(os.Environ(), rt.KindEnv()...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("listing kind clusters: %w", err)
	}

	var clusters []string
	for _, line := range strings.Split(string(out), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			clusters = append(clusters, name)
		}
	}
	return clusters, nil
}

// Create provisions the cluster, feeding the generated config over stdin.
func (k *Kind) Create(ctx context.Context) error {
	cfg, err := k.ClusterConfig()
	if err != nil {
		return err
	}
	if err := k.run(ctx, cfg, "create", "cluster", "--name", k.Name, "--config", "-"); err != nil {
		return fmt.Errorf("creating kind cluster %s: %w", k.Name, err)
	}
	return nil
}

// Delete removes the cluster.
func (k *Kind) Delete(ctx context.Context) error {
	if err := k.run(ctx, nil, "delete", "cluster", "--name", k.Name); err != nil {
		return fmt.Errorf("deleting kind cluster %s: %w", k.Name, err)
	}
	return nil
}

// ExportKubeconfig writes the cluster's kubeconfig to path and returns the
// absolute location.
func (k *Kind) ExportKubeconfig(ctx context.Context, path string) (string, error) {
	cmd := k.command(ctx, "get", "kubeconfig", "--name", k.Name)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("getting kubeconfig for %s: %w", k.Name, err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return "", fmt.Errorf("writing kubeconfig: %w", err)
	}
	return filepath.Abs(path)
}

// LoadImage loads a local image into every cluster node. podman cannot hand
// images to kind directly, so it goes through a tar archive.
func (k *Kind) LoadImage(ctx context.Context, image string) error {
	if !k.Runtime.IsPodman() {
		return k.run(ctx, nil, "load", "docker-image", image, "--name", k.Name)
	}

	tmp, err := os.CreateTemp("", "kueue-dev-image-*.tar")
	if err != nil {
		return err
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	if err := k.Runtime.Save(ctx, image, tmp.Name()); err != nil {
		return err
	}
	return k.run(ctx, nil, "load", "image-archive", tmp.Name(), "--name", k.Name)
}

// cluster config generation

type kindConfig struct {
	Kind       string         `yaml:"kind"`
	APIVersion string         `yaml:"apiVersion"`
	Networking kindNetworking `yaml:"networking"`
	Nodes      []kindNode     `yaml:"nodes"`
}

type kindNetworking struct {
	DisableDefaultCNI bool   `yaml:"disableDefaultCNI"`
	PodSubnet         string `yaml:"podSubnet"`
	ServiceSubnet     string `yaml:"serviceSubnet"`
}

type kindNode struct {
	Role                 string   `yaml:"role"`
	KubeadmConfigPatches []string `yaml:"kubeadmConfigPatches,omitempty"`
}

// apiServerPatch raises api-server log verbosity so e2e failures are
// diagnosable from the control-plane logs.
const apiServerPatch = `apiVersion: kubeadm.k8s.io/v1beta3
kind: ClusterConfiguration
apiServer:
  extraArgs:
    v: "4"
`

// ClusterConfig renders the kind cluster config: two control-plane nodes,
// two workers, and the default CNI disabled when calico takes over.
func (k *Kind) ClusterConfig() ([]byte, error) {
	cfg := kindConfig{
		Kind:       "Cluster",
		APIVersion: "kind.x-k8s.io/v1alpha4",
		Networking: kindNetworking{
			DisableDefaultCNI: k.CNI == CNICalico,
			PodSubnet:         "10.244.0.0/16",
			ServiceSubnet:     "10.96.0.0/16",
		},
		Nodes: []kindNode{
			{Role: "control-plane", KubeadmConfigPatches: []string{apiServerPatch}},
			{Role: "control-plane", KubeadmConfigPatches: []string{apiServerPatch}},
			{Role: "worker"},
			{Role: "worker"},
		},
	}
	return yaml.Marshal(cfg)
}
