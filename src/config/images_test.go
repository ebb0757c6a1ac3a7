package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeImages(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "related_images.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write images file: %v", err)
	}
	return path
}

func TestLoadImages(t *testing.T) {
	path := writeImages(t, `[
		{"name": "operator", "image": "quay.io/example/operator:latest"},
		{"name": "operand", "image": "quay.io/example/operand:latest"}
	]`)

	ic, err := LoadImages(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	op, err := ic.Operator()
	if err != nil {
		t.Fatalf("operator: %v", err)
	}
	if op != "quay.io/example/operator:latest" {
		t.Errorf("operator = %q", op)
	}

	if _, err := ic.Get("nonexistent"); err == nil {
		t.Error("expected error for missing entry")
	}
}

func TestLoadImagesRejectsMalformedJSON(t *testing.T) {
	path := writeImages(t, `{"name": "operator"}`)
	if _, err := LoadImages(path); err == nil {
		t.Fatal("expected parse error for non-array document")
	}
}

func TestLoadImagesRejectsEmptyFields(t *testing.T) {
	path := writeImages(t, `[{"name": "", "image": "quay.io/x"}]`)
	if _, err := LoadImages(path); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestImagesListSorted(t *testing.T) {
	path := writeImages(t, `[
		{"name": "operand", "image": "b"},
		{"name": "bundle", "image": "c"},
		{"name": "operator", "image": "a"}
	]`)

	ic, err := LoadImages(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	list := ic.List()
	want := []string{"bundle", "operand", "operator"}
	for i, name := range want {
		if list[i].Name != name {
			t.Errorf("list[%d] = %q, want %q", i, list[i].Name, name)
		}
	}
}
