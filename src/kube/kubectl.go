package kube

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Client wraps kubectl invocations against one kubeconfig.
type Client struct {
	// Kubeconfig is passed via the KUBECONFIG environment variable.
	// Empty means kubectl's own default resolution.
	Kubeconfig string
	Verbose    bool
	DryRun     bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// NewClient creates a kubectl wrapper for the given kubeconfig path.
func NewClient(kubeconfig string) *Client {
	return &Client{
		Kubeconfig: kubeconfig,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
}

func (c *Client) command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := execCommand(ctx, "kubectl", args...)
	cmd.Env = os.Environ()
	if c.Kubeconfig != "" {
		cmd.Env = append(cmd.Env, "KUBECONFIG="+c.Kubeconfig)
	}
	return cmd
}

// Run executes kubectl with output passed through.
func (c *Client) Run(ctx context.Context, args ...string) error {
	if c.Verbose {
		fmt.Fprintf(c.Stderr, "exec: kubectl %s\n", strings.Join(args, " "))
	}
	if c.DryRun && mutating(args) {
		fmt.Fprintf(c.Stderr, "dry-run: kubectl %s\n", strings.Join(args, " "))
		return nil
	}
	cmd := c.command(ctx, args...)
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("kubectl %s: %w", strings.Join(args, " "), err)
	}
	return nil
}

// Output executes kubectl and returns trimmed stdout.
func (c *Client) Output(ctx context.Context, args ...string) (string, error) {
	if c.Verbose {
		fmt.Fprintf(c.Stderr, "exec: kubectl %s\n", strings.Join(args, " "))
	}
	cmd := c.command(ctx, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("kubectl %s: %w\n%s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(string(out)), nil
}

// mutating guards the dry-run mode: reads still execute so later steps can
// make decisions, writes are printed instead.
func mutating(args []string) bool {
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "get", "logs", "version", "auth", "cluster-info":
		return false
	default:
		return true
	}
}

// applyStdin pipes a manifest into kubectl.
func (c *Client) applyStdin(ctx context.Context, manifest []byte, args ...string) error {
	if c.Verbose {
		fmt.Fprintf(c.Stderr, "exec: kubectl %s (manifest on stdin)\n", strings.Join(args, " "))
	}
	if c.DryRun {
		fmt.Fprintf(c.Stderr, "dry-run: kubectl %s <<EOF\n%sEOF\n", strings.Join(args, " "), manifest)
		return nil
	}
	cmd := c.command(ctx, args...)
	cmd.Stdin = bytes.NewReader(manifest)
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("kubectl %s: %w", strings.Join(args, " "), err)
	}
	return nil
}

// Apply applies a manifest from memory.
func (c *Client) Apply(ctx context.Context, manifest []byte) error {
	return c.applyStdin(ctx, manifest, "apply", "-f", "-")
}

// ApplyServerSide applies a manifest with server-side apply. Needed for CRDs
// whose annotations overflow the client-side apply size limit.
func (c *Client) ApplyServerSide(ctx context.Context, manifest []byte) error {
	return c.applyStdin(ctx, manifest, "apply", "--server-side", "-f", "-")
}

// ApplyServerSideForced server-side applies a manifest, taking over fields
// owned by other managers.
func (c *Client) ApplyServerSideForced(ctx context.Context, manifest []byte) error {
	return c.applyStdin(ctx, manifest, "apply", "--server-side", "--force-conflicts", "-f", "-")
}

// Create creates resources from a manifest in memory.
func (c *Client) Create(ctx context.Context, manifest []byte) error {
	return c.applyStdin(ctx, manifest, "create", "-f", "-")
}

// ApplyURL applies a remote manifest by URL.
func (c *Client) ApplyURL(ctx context.Context, url string, serverSide bool) error {
	args := []string{"apply"}
	if serverSide {
		args = append(args, "--server-side")
	}
	args = append(args, "-f", url)
	return c.Run(ctx, args...)
}

// CreateURL creates resources from a remote manifest by URL.
func (c *Client) CreateURL(ctx context.Context, url string) error {
	return c.Run(ctx, "create", "-f", url)
}

// WaitFor blocks until the condition holds on the resource. Bare resource
// types (no name) wait on all instances.
func (c *Client) WaitFor(ctx context.Context, resource, condition, namespace string, timeout time.Duration) error {
	args := []string{"wait", "--for", condition, "--timeout", timeout.String()}
	if namespace != "" {
		args = append(args, "-n", namespace)
	}
	args = append(args, resource)
	if !strings.Contains(resource, "/") {
		args = append(args, "--all")
	}
	return c.Run(ctx, args...)
}

// JSONPath fetches a resource field with a jsonpath expression.
func (c *Client) JSONPath(ctx context.Context, resource, path string, extra ...string) (string, error) {
	args := append([]string{"get", resource}, extra...)
	args = append(args, "-o", "jsonpath="+path)
	return c.Output(ctx, args...)
}

// LabelNode sets a label on a node, overwriting any previous value.
func (c *Client) LabelNode(ctx context.Context, node, label string) error {
	return c.Run(ctx, "label", "nodes", node, label, "--overwrite")
}

// PodVersion extracts a version string from the first matching pod's logs.
func (c *Client) PodVersion(ctx context.Context, namespace, selector string) (string, error) {
	pod, err := c.JSONPath(ctx, "pods", "{.items[0].metadata.name}", "-n", namespace, "-l", selector)
	if err != nil {
		return "", err
	}
	if pod == "" {
		return "", fmt.Errorf("no pod matching %q in %s", selector, namespace)
	}

	logs, err := c.Output(ctx, "logs", pod, "-n", namespace, "--tail=10")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(logs, "\n") {
		if v := extractVersion(line); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("version not found in logs of %s", pod)
}

// extractVersion pulls a version token out of a log line. Handles the
// operator's plain-text banner, the controller-manager's JSON gitVersion
// field, and a generic version: / version= fallback.
func extractVersion(line string) string {
	if pos := strings.Index(line, `"gitVersion"`); pos >= 0 {
		rest := line[pos+len(`"gitVersion"`):]
		if colon := strings.Index(rest, ":"); colon >= 0 {
			return quoted(rest[colon+1:])
		}
	}

	const banner = "openshift-kueue-operator version"
	if pos := strings.Index(line, banner); pos >= 0 {
		rest := strings.TrimSpace(line[pos+len(banner):])
		if end := strings.IndexFunc(rest, isSpace); end >= 0 {
			return rest[:end]
		}
		return rest
	}

	if pos := strings.Index(strings.ToLower(line), "version"); pos >= 0 {
		rest := line[pos:]
		if v := quoted(rest); v != "" {
			return v
		}
		sep := strings.IndexAny(rest, ":=")
		if sep < 0 {
			return ""
		}
		v := strings.TrimSpace(rest[sep+1:])
		if end := strings.IndexFunc(v, func(r rune) bool { return isSpace(r) || r == ',' }); end >= 0 {
			v = v[:end]
		}
		return v
	}
	return ""
}

func quoted(s string) string {
	start := strings.Index(s, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(s[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return s[start+1 : start+1+end]
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}
