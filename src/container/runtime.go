// Package container wraps the local container runtime (docker or podman)
// behind one type so callers never branch on which binary is installed.
package container

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// test seams
var (
	execCommand = exec.CommandContext
	lookPath    = exec.LookPath
)

// Runtime is a detected container runtime.
type Runtime struct {
	// Name is the binary: "docker" or "podman".
	Name string

	Verbose bool
	DryRun  bool
	Stdout  io.Writer
	Stderr  io.Writer
}

// Detect returns the available runtime, preferring docker over podman.
func Detect() (*Runtime, error) {
	for _, name := range []string{"docker", "podman"} {
		if _, err := lookPath(name); err == nil {
			return &Runtime{Name: name, Stdout: os.Stdout, Stderr: os.Stderr}, nil
		}
	}
	return nil, fmt.Errorf("neither docker nor podman found in PATH\n" +
		"  - Docker: https://docs.docker.com/get-docker/\n" +
		"  - Podman: https://podman.io/getting-started/installation")
}

// IsPodman reports whether the detected runtime is podman.
func (r *Runtime) IsPodman() bool {
	return r.Name == "podman"
}

// KindEnv returns extra environment entries for kind invocations.
// kind only talks to podman when the experimental provider is set.
func (r *Runtime) KindEnv() []string {
	if r.IsPodman() {
		return []string{"KIND_EXPERIMENTAL_PROVIDER=podman"}
	}
	return nil
}

// Command builds a runtime subprocess with the given arguments.
func (r *Runtime) Command(ctx context.Context, args ...string) *exec.Cmd {
	return execCommand(ctx, r.Name, args...)
}

func (r *Runtime) run(ctx context.Context, args ...string) error {
	if r.Verbose {
		fmt.Fprintf(r.Stderr, "exec: %s %s\n", r.Name, strings.Join(args, " "))
	}
	if r.DryRun {
		fmt.Fprintf(r.Stderr, "dry-run: %s %s\n", r.Name, strings.Join(args, " "))
		return nil
	}
	cmd := r.Command(ctx, args...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	return cmd.Run()
}

// ImageExists checks whether an image is present locally.
func (r *Runtime) ImageExists(ctx context.Context, image string) bool {
	cmd := r.Command(ctx, "image", "inspect", image)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run() == nil
}

// Pull fetches an image from its registry.
func (r *Runtime) Pull(ctx context.Context, image string) error {
	if err := r.run(ctx, "pull", image); err != nil {
		return fmt.Errorf("pulling %s: %w", image, err)
	}
	return nil
}

// EnsureImage verifies an image exists locally, pulling it when allowed.
func (r *Runtime) EnsureImage(ctx context.Context, image string, pullIfMissing bool) error {
	if r.ImageExists(ctx, image) {
		return nil
	}
	if !pullIfMissing {
		return fmt.Errorf("image %s not found locally; build or pull it first", image)
	}
	return r.Pull(ctx, image)
}

// ListImages returns local images as repository:tag strings.
func (r *Runtime) ListImages(ctx context.Context) ([]string, error) {
	cmd := r.Command(ctx, "images", "--format", "{{.Repository}}:{{.Tag}}")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}

	var images []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line != "" {
			images = append(images, line)
		}
	}
	return images, nil
}

// Save exports an image to a tar archive. Used on podman, where kind cannot
// read images from the runtime store directly.
func (r *Runtime) Save(ctx context.Context, image, path string) error {
	if err := r.run(ctx, "save", "-o", path, image); err != nil {
		return fmt.Errorf("saving %s: %w", image, err)
	}
	return nil
}
