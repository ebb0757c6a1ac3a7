package e2e

import (
	"strings"
	"testing"
)

func TestSkipPattern(t *testing.T) {
	got := SkipPattern([]string{"AppWrapper", "PyTorch", "JobSet"})
	if got != "(AppWrapper|PyTorch|JobSet)" {
		t.Errorf("SkipPattern = %q", got)
	}
	if got := SkipPattern(nil); got != "" {
		t.Errorf("SkipPattern(nil) = %q, want empty", got)
	}
}

func TestArgsDefaults(t *testing.T) {
	args := Options{}.Args()
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "--label-filter=!disruptive") {
		t.Errorf("missing default label filter: %v", args)
	}
	if args[len(args)-1] != "./test/e2e/..." {
		t.Errorf("suite path should come last: %v", args)
	}
	if strings.Contains(joined, "--skip") {
		t.Errorf("no skip patterns given, but --skip present: %v", args)
	}
	if strings.Contains(joined, "--junit-report") {
		t.Errorf("reports not requested, but junit flag present: %v", args)
	}
}

func TestArgsFull(t *testing.T) {
	args := Options{
		Focus:       "ClusterQueue",
		LabelFilter: "slow",
		Skip:        []string{"Metrics", "Fair"},
		Suite:       "singlecluster",
		Reports:     true,
	}.Args()
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"--label-filter=slow",
		"--skip (Metrics|Fair)",
		"--focus ClusterQueue",
		"--junit-report=junit.xml",
		"--json-report=e2e.json",
		"./test/e2e/singlecluster/...",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}
}
