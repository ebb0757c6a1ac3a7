package build

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openshift-eng/kueue-dev/src/container"
)

// fakeRuntime returns a Runtime whose "container" binary is the given
// command, so build/push invocations exit with its status.
func fakeRuntime(command string) *container.Runtime {
	return &container.Runtime{Name: command, Stdout: os.Stdout, Stderr: os.Stderr}
}

func sourceWithDockerfile(t *testing.T, name string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("FROM scratch\n"), 0o644); err != nil {
		t.Fatalf("write dockerfile: %v", err)
	}
	return dir
}

func TestRunnerStageSequence(t *testing.T) {
	source := sourceWithDockerfile(t, "Dockerfile")
	r := NewRunner(fakeRuntime("true"), source, "related_images.json")
	r.Stderr = &bytes.Buffer{}

	var stages []Stage
	operator, _ := Lookup("operator")
	err := r.Run(context.Background(), operator, "quay.io/example/operator:latest", func(e Event) {
		stages = append(stages, e.Stage)
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []Stage{StageLocate, StageBuild, StagePush}
	if len(stages) != len(want) {
		t.Fatalf("stages = %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("stages[%d] = %v, want %v", i, stages[i], want[i])
		}
	}
	// events must arrive in non-decreasing stage order
	for i := 1; i < len(stages); i++ {
		if stages[i] < stages[i-1] {
			t.Errorf("stage order regressed: %v", stages)
		}
	}
}

func TestRunnerMissingDockerfile(t *testing.T) {
	r := NewRunner(fakeRuntime("true"), t.TempDir(), "related_images.json")
	r.Stderr = &bytes.Buffer{}

	operand, _ := Lookup("operand")
	err := r.Run(context.Background(), operand, "quay.io/example/operand:latest", func(Event) {})
	if err == nil {
		t.Fatal("expected locate failure")
	}

	var step *StepError
	if !errors.As(err, &step) {
		t.Fatalf("error type = %T, want *StepError", err)
	}
	if step.Step != StageLocate {
		t.Errorf("failed step = %v, want locate", step.Step)
	}
	if !strings.Contains(err.Error(), "file not found") {
		t.Errorf("error = %v, want file not found", err)
	}
}

func TestRunnerBuildFailureClassified(t *testing.T) {
	source := sourceWithDockerfile(t, "Dockerfile")
	r := NewRunner(fakeRuntime("false"), source, "related_images.json")
	r.Stderr = &bytes.Buffer{}

	operator, _ := Lookup("operator")
	var stages []Stage
	err := r.Run(context.Background(), operator, "img", func(e Event) {
		stages = append(stages, e.Stage)
	})

	var step *StepError
	if !errors.As(err, &step) {
		t.Fatalf("error type = %T, want *StepError", err)
	}
	if step.Step != StageBuild {
		t.Errorf("failed step = %v, want build", step.Step)
	}
	// push must never start after a failed build
	for _, s := range stages {
		if s == StagePush {
			t.Error("push stage emitted after build failure")
		}
	}
}

func TestRunnerSkipsPushWhenDisabled(t *testing.T) {
	source := sourceWithDockerfile(t, "Dockerfile")
	r := NewRunner(fakeRuntime("true"), source, "related_images.json")
	r.Stderr = &bytes.Buffer{}
	r.Push = false

	operator, _ := Lookup("operator")
	var stages []Stage
	if err := r.Run(context.Background(), operator, "img", func(e Event) {
		stages = append(stages, e.Stage)
	}); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, s := range stages {
		if s == StagePush {
			t.Error("push stage emitted with Push disabled")
		}
	}
}

func TestRunnerBuildArgs(t *testing.T) {
	r := NewRunner(fakeRuntime("true"), "/src", "/src/related_images.json")

	bundle, _ := Lookup("bundle")
	args := r.buildArgs(bundle, "/src/bundle.developer.Dockerfile", "quay.io/example/bundle:latest")

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"build",
		"-f /src/bundle.developer.Dockerfile",
		"-t quay.io/example/bundle:latest",
		"--build-arg RELATED_IMAGE_FILE=related_images.json",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}
	if args[len(args)-1] != "/src" {
		t.Errorf("build context should be last arg: %v", args)
	}
}

func TestTail(t *testing.T) {
	if got := tail("", 3); got != "" {
		t.Errorf("tail of empty = %q", got)
	}
	if got := tail("a\nb\nc\nd\n", 2); got != "c\nd" {
		t.Errorf("tail = %q, want c\\nd", got)
	}
	if got := tail("a\nb", 5); got != "a\nb" {
		t.Errorf("tail = %q, want a\\nb", got)
	}
}
