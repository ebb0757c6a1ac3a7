package build

import (
	"strings"
	"testing"
)

func TestResolveDefaultsToFullCatalog(t *testing.T) {
	components, err := Resolve(nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(components) != len(Catalog) {
		t.Fatalf("got %d components, want %d", len(components), len(Catalog))
	}
	for i, c := range components {
		if c.Name != Catalog[i] {
			t.Errorf("components[%d] = %q, want %q", i, c.Name, Catalog[i])
		}
	}
}

func TestResolveKeepsCatalogOrder(t *testing.T) {
	components, err := Resolve([]string{"bundle", "operator"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(components) != 2 || components[0].Name != "operator" || components[1].Name != "bundle" {
		t.Errorf("order wrong: %+v", components)
	}
}

func TestResolveRejectsUnknownName(t *testing.T) {
	_, err := Resolve([]string{"operator", "bogus"})
	if err == nil {
		t.Fatal("expected error for unknown component")
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("error should name the offender: %v", err)
	}
}

func TestResolveRejectsDuplicates(t *testing.T) {
	if _, err := Resolve([]string{"operator", "operator"}); err == nil {
		t.Fatal("expected error for duplicate component")
	}
}

func TestDockerfileLocations(t *testing.T) {
	want := map[string]string{
		"operator":    "Dockerfile",
		"operand":     "Dockerfile.kueue",
		"must-gather": "must-gather/Dockerfile",
		"bundle":      "bundle.developer.Dockerfile",
	}
	for name, df := range want {
		c, ok := Lookup(name)
		if !ok {
			t.Fatalf("lookup %q failed", name)
		}
		if c.Dockerfile != df {
			t.Errorf("%s dockerfile = %q, want %q", name, c.Dockerfile, df)
		}
	}
	if _, ok := Lookup("bogus"); ok {
		t.Error("lookup of unknown name should fail")
	}
}

func TestBundleBuildArgs(t *testing.T) {
	bundle, _ := Lookup("bundle")
	args := bundle.BuildArgs("/home/dev/src/related_images.json")
	if got := args["RELATED_IMAGE_FILE"]; got != "related_images.json" {
		t.Errorf("RELATED_IMAGE_FILE = %q, want bare filename", got)
	}

	operator, _ := Lookup("operator")
	if args := operator.BuildArgs("related_images.json"); args != nil {
		t.Errorf("operator should have no build args, got %v", args)
	}
}
