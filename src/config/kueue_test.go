package config

import (
	"strings"
	"testing"
)

func TestNewKueueCRDefaults(t *testing.T) {
	cr, err := NewKueueCR(KueueSettings{})
	if err != nil {
		t.Fatalf("new CR: %v", err)
	}
	if cr.Name != "cluster" {
		t.Errorf("name = %q", cr.Name)
	}
	if cr.Namespace != "openshift-kueue-operator" {
		t.Errorf("namespace = %q", cr.Namespace)
	}
	if len(cr.Frameworks) != 6 {
		t.Errorf("frameworks = %d, want 6", len(cr.Frameworks))
	}
	if cr.ManagementState != "Managed" {
		t.Errorf("management state = %q", cr.ManagementState)
	}
}

func TestNewKueueCRRejectsUnknownFramework(t *testing.T) {
	_, err := NewKueueCR(KueueSettings{Frameworks: []string{"BatchJob", "Bogus"}})
	if err == nil {
		t.Fatal("expected error for unknown framework")
	}
	if !strings.Contains(err.Error(), "Bogus") {
		t.Errorf("error should name the framework: %v", err)
	}
}

func TestKueueCRYAML(t *testing.T) {
	cr, err := NewKueueCR(KueueSettings{
		Name:       "cluster",
		Namespace:  "openshift-kueue-operator",
		Frameworks: []string{"BatchJob", "Pod"},
	})
	if err != nil {
		t.Fatalf("new CR: %v", err)
	}

	data, err := cr.YAML()
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}

	out := string(data)
	for _, want := range []string{
		"apiVersion: kueue.openshift.io/v1",
		"kind: Kueue",
		"name: cluster",
		"namespace: openshift-kueue-operator",
		"managementState: Managed",
		"- BatchJob",
		"- Pod",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("manifest missing %q:\n%s", want, out)
		}
	}
}
