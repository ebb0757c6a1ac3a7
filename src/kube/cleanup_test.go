package kube

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"testing"

	"github.com/openshift-eng/kueue-dev/src/output"
)

// scriptCommands swaps the exec seam for one that records invocations and
// answers "get" queries from canned output keyed by an args prefix.
// Unmatched commands run "true".
func scriptCommands(t *testing.T, outputs map[string]string) *[][]string {
	t.Helper()

	var recorded [][]string
	orig := execCommand
	execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		recorded = append(recorded, append([]string{name}, args...))
		joined := strings.Join(args, " ")
		for prefix, out := range outputs {
			if strings.HasPrefix(joined, prefix) {
				if out == "" {
					return exec.CommandContext(ctx, "false")
				}
				return exec.CommandContext(ctx, "echo", out)
			}
		}
		return exec.CommandContext(ctx, "true")
	}
	t.Cleanup(func() { execCommand = orig })
	return &recorded
}

func quietClient() *Client {
	c := NewClient("")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c
}

func TestTestNamespacesFiltersPrefixes(t *testing.T) {
	scriptCommands(t, map[string]string{
		"get ns": "namespace/default\nnamespace/e2e-tas-abc\nnamespace/kube-system\nnamespace/jobset-e2e-xyz",
	})

	got := testNamespaces(context.Background(), quietClient())
	want := []string{"e2e-tas-abc", "jobset-e2e-xyz"}
	if len(got) != len(want) {
		t.Fatalf("testNamespaces = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("testNamespaces[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCleanupResourceTypeSkipsMissingCRD(t *testing.T) {
	recorded := scriptCommands(t, map[string]string{
		"get clusterqueue": "",
	})
	log := &output.Logger{Writer: io.Discard}

	cleanupResourceType(context.Background(), quietClient(), log, "clusterqueue")

	if len(*recorded) != 1 {
		t.Errorf("missing CRD should stop after the get, ran %d commands", len(*recorded))
	}
}

func TestCleanupResourceTypeStripsFinalizersFirst(t *testing.T) {
	recorded := scriptCommands(t, map[string]string{
		"get clusterqueue": "clusterqueue/cq-main\nclusterqueue/cq-spot",
	})
	log := &output.Logger{Writer: io.Discard}

	cleanupResourceType(context.Background(), quietClient(), log, "clusterqueue")

	var patches, deletes int
	for _, cmd := range *recorded {
		joined := strings.Join(cmd, " ")
		if strings.Contains(joined, "patch clusterqueue/") {
			if !strings.Contains(joined, `"finalizers":[]`) {
				t.Errorf("patch without finalizer strip: %v", joined)
			}
			if deletes > 0 {
				t.Error("delete ran before finalizers were stripped")
			}
			patches++
		}
		if strings.Contains(joined, "delete clusterqueue --all") {
			deletes++
		}
	}
	if patches != 2 || deletes != 1 {
		t.Errorf("patches = %d, deletes = %d, want 2 and 1", patches, deletes)
	}
}

func TestCleanupPriorityClassesSparesSystem(t *testing.T) {
	recorded := scriptCommands(t, map[string]string{
		"get priorityclasses": "priorityclass/system-node-critical\npriorityclass/high-priority",
	})
	log := &output.Logger{Writer: io.Discard}

	cleanupPriorityClasses(context.Background(), quietClient(), log)

	for _, cmd := range *recorded {
		joined := strings.Join(cmd, " ")
		if strings.Contains(joined, "system-node-critical") && !strings.HasPrefix(strings.Join(cmd[1:], " "), "get ") {
			t.Errorf("system priority class must be left alone: %v", joined)
		}
	}
	var deleted bool
	for _, cmd := range *recorded {
		if strings.Contains(strings.Join(cmd, " "), "delete priorityclass/high-priority") {
			deleted = true
		}
	}
	if !deleted {
		t.Error("test priority class was not deleted")
	}
}
