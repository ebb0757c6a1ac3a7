package prereqs

import (
	"context"
	"fmt"
	"strings"

	"github.com/openshift-eng/kueue-dev/src/kube"
	"github.com/openshift-eng/kueue-dev/src/output"
)

// CheckLevel classifies a preflight outcome.
type CheckLevel int

const (
	CheckPass CheckLevel = iota
	CheckWarn
	CheckFail
)

// CheckResult is one preflight finding.
type CheckResult struct {
	Level   CheckLevel
	Message string
}

func (r CheckResult) icon(color bool) string {
	switch r.Level {
	case CheckPass:
		return output.StatusIcon("success", color)
	case CheckWarn:
		return output.StatusIcon("warning", color)
	default:
		return output.StatusIcon("failed", color)
	}
}

// Preflight validates a cluster before a deployment touches it.
type Preflight struct {
	Client *kube.Client
	Log    *output.Logger

	results []CheckResult
}

// NewPreflight creates a checker against the given kubectl client.
func NewPreflight(client *kube.Client, log *output.Logger) *Preflight {
	return &Preflight{Client: client, Log: log}
}

func (p *Preflight) pass(format string, args ...any) {
	p.results = append(p.results, CheckResult{CheckPass, fmt.Sprintf(format, args...)})
}

func (p *Preflight) warn(format string, args ...any) {
	p.results = append(p.results, CheckResult{CheckWarn, fmt.Sprintf(format, args...)})
}

func (p *Preflight) fail(format string, args ...any) {
	p.results = append(p.results, CheckResult{CheckFail, fmt.Sprintf(format, args...)})
}

// Results returns all findings so far.
func (p *Preflight) Results() []CheckResult {
	return p.results
}

// Run executes the standard deployment checks.
func (p *Preflight) Run(ctx context.Context) {
	p.checkConnection(ctx)
	p.checkVersion(ctx)
	p.checkNodeCount(ctx)
	p.checkExistingInstall(ctx)
}

func (p *Preflight) checkConnection(ctx context.Context) {
	if _, err := p.Client.Output(ctx, "cluster-info"); err != nil {
		p.fail("cannot connect to cluster")
		return
	}
	p.pass("cluster is reachable")
}

func (p *Preflight) checkVersion(ctx context.Context) {
	out, err := p.Client.Output(ctx, "version", "-o", "json")
	if err != nil || !strings.Contains(out, "v1.") {
		p.warn("could not determine Kubernetes version")
		return
	}
	p.pass("Kubernetes version compatible")
}

func (p *Preflight) checkNodeCount(ctx context.Context) {
	out, err := p.Client.Output(ctx, "get", "nodes", "--no-headers")
	if err != nil {
		p.warn("could not count cluster nodes")
		return
	}
	count := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	if count >= 2 {
		p.pass("cluster has %d nodes", count)
	} else {
		p.warn("cluster has only %d node(s), 2 or more recommended", count)
	}
}

func (p *Preflight) checkExistingInstall(ctx context.Context) {
	if _, err := p.Client.Output(ctx, "get", "namespace", "openshift-kueue-operator"); err == nil {
		p.warn("existing kueue installation detected, it will be replaced")
		return
	}
	p.pass("no existing kueue installation")
}

// CheckCRDs records whether each named CRD already exists.
func (p *Preflight) CheckCRDs(ctx context.Context, crds []string) {
	for _, crd := range crds {
		if _, err := p.Client.Output(ctx, "get", "crd", crd); err == nil {
			p.pass("CRD %s exists", crd)
		} else {
			p.warn("CRD %s not found, it will be created", crd)
		}
	}
}

// Report prints all findings and returns whether deployment may proceed.
// Failures block; warnings do not.
func (p *Preflight) Report() bool {
	errors, warnings := 0, 0
	for _, r := range p.results {
		fmt.Fprintf(p.Log.Writer, "  %s %s\n", r.icon(p.Log.Color), r.Message)
		switch r.Level {
		case CheckFail:
			errors++
		case CheckWarn:
			warnings++
		}
	}

	switch {
	case errors > 0:
		p.Log.Error("%d preflight error(s), %d warning(s)", errors, warnings)
		return false
	case warnings > 0:
		p.Log.Warn("%d preflight warning(s)", warnings)
		return true
	default:
		p.Log.Success("all preflight checks passed")
		return true
	}
}

// HasWarnings reports whether any finding is a warning.
func (p *Preflight) HasWarnings() bool {
	for _, r := range p.results {
		if r.Level == CheckWarn {
			return true
		}
	}
	return false
}
