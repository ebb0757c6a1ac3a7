package container

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"testing"
)

func withLookPath(t *testing.T, available map[string]bool) {
	t.Helper()

	orig := lookPath
	lookPath = func(name string) (string, error) {
		if available[name] {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("not found")
	}
	t.Cleanup(func() { lookPath = orig })
}

func TestDetectPrefersDocker(t *testing.T) {
	withLookPath(t, map[string]bool{"docker": true, "podman": true})

	r, err := Detect()
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if r.Name != "docker" {
		t.Errorf("runtime = %q, want docker", r.Name)
	}
	if r.IsPodman() {
		t.Error("IsPodman should be false for docker")
	}
	if env := r.KindEnv(); env != nil {
		t.Errorf("docker should not set kind env, got %v", env)
	}
}

func TestDetectFallsBackToPodman(t *testing.T) {
	withLookPath(t, map[string]bool{"podman": true})

	r, err := Detect()
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if r.Name != "podman" {
		t.Errorf("runtime = %q, want podman", r.Name)
	}
	if got := r.KindEnv(); len(got) != 1 || got[0] != "KIND_EXPERIMENTAL_PROVIDER=podman" {
		t.Errorf("kind env = %v", got)
	}
}

func TestDetectNeitherInstalled(t *testing.T) {
	withLookPath(t, nil)

	if _, err := Detect(); err == nil {
		t.Fatal("expected error when no runtime is installed")
	}
}

func TestDryRunSkipsExecution(t *testing.T) {
	orig := execCommand
	execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		t.Fatalf("dry-run must not spawn subprocesses (tried %s %v)", name, args)
		return nil
	}
	t.Cleanup(func() { execCommand = orig })

	var stderr bytes.Buffer
	r := &Runtime{Name: "docker", DryRun: true, Stdout: &stderr, Stderr: &stderr}
	if err := r.Pull(context.Background(), "quay.io/example/operator:latest"); err != nil {
		t.Fatalf("pull: %v", err)
	}
	if !bytes.Contains(stderr.Bytes(), []byte("dry-run: docker pull")) {
		t.Errorf("dry-run line missing: %q", stderr.String())
	}
}
