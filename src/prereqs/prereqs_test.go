package prereqs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openshift-eng/kueue-dev/src/kube"
	"github.com/openshift-eng/kueue-dev/src/output"
)

func withLookPath(t *testing.T, fn func(string) (string, error)) {
	t.Helper()
	orig := lookPath
	lookPath = fn
	t.Cleanup(func() { lookPath = orig })
}

func TestExtractSemver(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"kind v0.23.0 go1.22.3 linux/amd64", "0.23.0"},
		{"go version go1.23.1 linux/amd64", "1.23.1"},
		{"git version 2.45.2", "2.45.2"},
		{`{"clientVersion": {"gitVersion": "v1.30.2"}}`, "1.30.2"},
		{"v3.15.2+g1a500d5", "3.15.2+g1a500d5"},
		{"no version here", ""},
	}
	for _, tc := range cases {
		if got := extractSemver(tc.in); got != tc.want {
			t.Errorf("extractSemver(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCheckMissingTool(t *testing.T) {
	withLookPath(t, func(string) (string, error) {
		return "", fmt.Errorf("not found")
	})

	st := Check(context.Background(), Tool{Name: "kind"})
	if st.Found {
		t.Error("missing tool reported as found")
	}
}

func TestCheckCapturesVersion(t *testing.T) {
	withLookPath(t, func(name string) (string, error) { return "/usr/bin/" + name, nil })

	// echo stands in for the tool; its "version output" is its arguments.
	st := Check(context.Background(), Tool{
		Name:        "echo",
		versionArgs: []string{"tool version 1.2.3"},
	})
	if !st.Found {
		t.Fatal("tool not found")
	}
	if st.Version != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", st.Version)
	}
}

func TestCheckFlagsOutdated(t *testing.T) {
	withLookPath(t, func(name string) (string, error) { return "/usr/bin/" + name, nil })

	st := Check(context.Background(), Tool{
		Name:        "echo",
		MinVersion:  "2.0.0",
		versionArgs: []string{"tool version 1.2.3"},
	})
	if !st.Outdated {
		t.Error("1.2.3 against minimum 2.0.0 not flagged as outdated")
	}

	st = Check(context.Background(), Tool{
		Name:        "echo",
		MinVersion:  "1.0.0",
		versionArgs: []string{"tool version 1.2.3"},
	})
	if st.Outdated {
		t.Error("1.2.3 against minimum 1.0.0 flagged as outdated")
	}
}

func TestCheckRuntime(t *testing.T) {
	withLookPath(t, func(name string) (string, error) {
		if name == "podman" {
			return "/usr/bin/podman", nil
		}
		return "", fmt.Errorf("not found")
	})
	if err := CheckRuntime(); err != nil {
		t.Errorf("podman alone should satisfy the runtime check: %v", err)
	}

	withLookPath(t, func(string) (string, error) { return "", fmt.Errorf("not found") })
	if err := CheckRuntime(); err == nil {
		t.Error("expected an error with no runtime installed")
	}
}

func TestEnsureNamesMissingTool(t *testing.T) {
	withLookPath(t, func(name string) (string, error) {
		if name == "helm" {
			return "", fmt.Errorf("not found")
		}
		return "/usr/bin/" + name, nil
	})

	err := Ensure("kubectl", "helm")
	if err == nil {
		t.Fatal("expected an error for missing helm")
	}
	if !strings.Contains(err.Error(), "helm") {
		t.Errorf("error does not name the missing tool: %v", err)
	}
	if !strings.Contains(err.Error(), "helm.sh") {
		t.Errorf("error does not carry the install hint: %v", err)
	}
}

func TestPreflightCheckCRDs(t *testing.T) {
	// Fake kubectl: only the workloads CRD exists.
	dir := t.TempDir()
	script := "#!/bin/sh\ncase \"$3\" in\nworkloads.kueue.x-k8s.io) exit 0 ;;\n*) exit 1 ;;\nesac\n"
	if err := os.WriteFile(filepath.Join(dir, "kubectl"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	var buf bytes.Buffer
	client := kube.NewClient("")
	client.Stdout = &buf
	client.Stderr = &buf

	p := NewPreflight(client, &output.Logger{Writer: &buf})
	p.CheckCRDs(context.Background(), []string{"workloads.kueue.x-k8s.io", "clusterqueues.kueue.x-k8s.io"})

	results := p.Results()
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Level != CheckPass || !strings.Contains(results[0].Message, "workloads.kueue.x-k8s.io") {
		t.Errorf("existing CRD should pass: %+v", results[0])
	}
	if results[1].Level != CheckWarn || !strings.Contains(results[1].Message, "clusterqueues.kueue.x-k8s.io") {
		t.Errorf("missing CRD should warn: %+v", results[1])
	}
	if !p.Report() {
		t.Error("a missing CRD is created later; it must not block deployment")
	}
}

func TestPreflightReportBlocksOnFailure(t *testing.T) {
	var buf bytes.Buffer
	log := &output.Logger{Writer: &buf}

	p := &Preflight{Log: log}
	p.pass("cluster is reachable")
	p.fail("cannot connect to cluster")

	if p.Report() {
		t.Error("report with a failure should block deployment")
	}
	if !strings.Contains(buf.String(), "cannot connect to cluster") {
		t.Error("failure message not printed")
	}
}

func TestPreflightReportAllowsWarnings(t *testing.T) {
	var buf bytes.Buffer
	log := &output.Logger{Writer: &buf}

	p := &Preflight{Log: log}
	p.pass("cluster is reachable")
	p.warn("cluster has only 1 node(s), 2 or more recommended")

	if !p.Report() {
		t.Error("warnings alone should not block deployment")
	}
	if !p.HasWarnings() {
		t.Error("HasWarnings should be true")
	}
}
