// Package prereqs verifies the external tools kueue-dev drives and runs the
// preflight checks that gate a deployment.
package prereqs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/openshift-eng/kueue-dev/src/output"
)

// test seams
var (
	lookPath    = exec.LookPath
	execCommand = exec.CommandContext
)

// Tool is one external command kueue-dev may invoke.
type Tool struct {
	Name string
	// Hint tells the user where to install the tool from.
	Hint string
	// MinVersion, when set, is checked against the tool's reported version.
	MinVersion string
	// versionArgs invokes the tool's version output; empty means no check.
	versionArgs []string
	// Optional tools produce a warning instead of a failure.
	Optional bool
}

// Required returns the tools every kueue-dev workflow needs.
func Required() []Tool {
	return []Tool{
		{Name: "kind", Hint: "https://kind.sigs.k8s.io/docs/user/quick-start/#installation",
			versionArgs: []string{"version"}},
		{Name: "kubectl", Hint: "https://kubernetes.io/docs/tasks/tools/",
			versionArgs: []string{"version", "--client", "-o", "yaml"}},
		{Name: "go", Hint: "https://golang.org/doc/install",
			MinVersion: "1.23.0", versionArgs: []string{"version"}},
		{Name: "operator-sdk", Hint: "https://sdk.operatorframework.io/docs/installation/",
			versionArgs: []string{"version"}},
		{Name: "git", Hint: "https://git-scm.com/downloads",
			versionArgs: []string{"--version"}},
	}
}

// Optional returns the tools only some workflows need.
func Optional() []Tool {
	return []Tool{
		{Name: "helm", Hint: "https://helm.sh/docs/intro/install/", Optional: true,
			versionArgs: []string{"version", "--short"}},
		{Name: "kustomize", Hint: "https://kubectl.docs.kubernetes.io/installation/kustomize/", Optional: true,
			versionArgs: []string{"version"}},
		{Name: "oc", Hint: "https://docs.openshift.com/container-platform/latest/cli_reference/openshift_cli/getting-started-cli.html", Optional: true,
			versionArgs: []string{"version", "--client"}},
		{Name: "ginkgo", Hint: "go install github.com/onsi/ginkgo/v2/ginkgo@latest", Optional: true,
			versionArgs: []string{"version"}},
	}
}

// ToolStatus is the outcome of checking one tool.
type ToolStatus struct {
	Tool    Tool
	Found   bool
	Version string
	// Outdated is set when the found version is below Tool.MinVersion.
	Outdated bool
}

// Check probes a single tool and captures its version when possible.
func Check(ctx context.Context, t Tool) ToolStatus {
	st := ToolStatus{Tool: t}
	if _, err := lookPath(t.Name); err != nil {
		return st
	}
	st.Found = true

	if len(t.versionArgs) == 0 {
		return st
	}
	out, err := execCommand(ctx, t.Name, t.versionArgs...).Output()
	if err != nil {
		return st
	}
	st.Version = extractSemver(string(out))

	if t.MinVersion != "" && st.Version != "" {
		min, err := semver.NewVersion(t.MinVersion)
		if err != nil {
			return st
		}
		if v, err := semver.NewVersion(st.Version); err == nil && v.LessThan(min) {
			st.Outdated = true
		}
	}
	return st
}

// CheckRuntime verifies that docker or podman is installed.
func CheckRuntime() error {
	_, dockerErr := lookPath("docker")
	_, podmanErr := lookPath("podman")
	if dockerErr != nil && podmanErr != nil {
		return fmt.Errorf("neither docker nor podman found; install one of them:\n" +
			"  docker: https://docs.docker.com/get-docker/\n" +
			"  podman: https://podman.io/getting-started/installation")
	}
	return nil
}

// CheckAll probes the runtime plus every tool and reports through the logger.
// It returns an error when a required tool is missing or outdated.
func CheckAll(ctx context.Context, log *output.Logger) error {
	var failures []string

	if err := CheckRuntime(); err != nil {
		log.Error("container runtime: %v", err)
		failures = append(failures, "docker|podman")
	} else {
		log.Success("container runtime found")
	}

	for _, t := range append(Required(), Optional()...) {
		st := Check(ctx, t)
		switch {
		case !st.Found && t.Optional:
			log.Warn("%s not found (optional)", t.Name)
			log.Suggest("install from " + t.Hint)
		case !st.Found:
			log.Error("%s not found", t.Name)
			log.Suggest("install from " + t.Hint)
			failures = append(failures, t.Name)
		case st.Outdated:
			log.Error("%s %s is older than the required %s", t.Name, st.Version, t.MinVersion)
			failures = append(failures, t.Name)
		case st.Version != "":
			log.Success("%s %s", t.Name, st.Version)
		default:
			log.Success("%s found", t.Name)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("missing or outdated prerequisites: %s", strings.Join(failures, ", "))
	}
	return nil
}

// Ensure checks just the named tools, failing fast on the first missing one.
func Ensure(names ...string) error {
	for _, name := range names {
		if _, err := lookPath(name); err != nil {
			hint := ""
			for _, t := range append(Required(), Optional()...) {
				if t.Name == name {
					hint = t.Hint
					break
				}
			}
			if hint != "" {
				return fmt.Errorf("%s is required but not found in PATH; install from %s", name, hint)
			}
			return fmt.Errorf("%s is required but not found in PATH", name)
		}
	}
	return nil
}

// extractSemver pulls the first x.y.z token out of arbitrary version output.
func extractSemver(s string) string {
	for _, field := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t' || r == '"' || r == ','
	}) {
		field = strings.TrimPrefix(field, "v")
		field = strings.TrimPrefix(field, "go")
		if v, err := semver.StrictNewVersion(field); err == nil {
			return v.String()
		}
	}
	return ""
}
