package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Frameworks accepted by the Kueue CR integrations list.
var knownFrameworks = map[string]bool{
	"BatchJob":        true,
	"Pod":             true,
	"Deployment":      true,
	"StatefulSet":     true,
	"JobSet":          true,
	"LeaderWorkerSet": true,
}

// DefaultFrameworks returns the integrations enabled on a fresh deploy.
func DefaultFrameworks() []string {
	return []string{"BatchJob", "Pod", "Deployment", "StatefulSet", "JobSet", "LeaderWorkerSet"}
}

// KueueCR describes the Kueue custom resource applied after the operator
// deployment is ready.
type KueueCR struct {
	Name            string
	Namespace       string
	ManagementState string
	Frameworks      []string
}

// NewKueueCR builds a CR from settings, falling back to defaults for any
// empty field and rejecting unknown framework names.
func NewKueueCR(s KueueSettings) (*KueueCR, error) {
	cr := &KueueCR{
		Name:            s.Name,
		Namespace:       s.Namespace,
		ManagementState: "Managed",
		Frameworks:      s.Frameworks,
	}
	if cr.Name == "" {
		cr.Name = "cluster"
	}
	if cr.Namespace == "" {
		cr.Namespace = "openshift-kueue-operator"
	}
	if len(cr.Frameworks) == 0 {
		cr.Frameworks = DefaultFrameworks()
	}
	for _, f := range cr.Frameworks {
		if !knownFrameworks[f] {
			return nil, fmt.Errorf("unknown kueue framework %q", f)
		}
	}
	return cr, nil
}

type kueueManifest struct {
	APIVersion string        `yaml:"apiVersion"`
	Kind       string        `yaml:"kind"`
	Metadata   kueueMetadata `yaml:"metadata"`
	Spec       kueueSpec     `yaml:"spec"`
}

type kueueMetadata struct {
	Labels    map[string]string `yaml:"labels"`
	Name      string            `yaml:"name"`
	Namespace string            `yaml:"namespace"`
}

type kueueSpec struct {
	ManagementState string      `yaml:"managementState"`
	Config          kueueConfig `yaml:"config"`
}

type kueueConfig struct {
	Integrations kueueIntegrations `yaml:"integrations"`
}

type kueueIntegrations struct {
	Frameworks []string `yaml:"frameworks"`
}

// YAML renders the CR manifest for kubectl apply.
func (cr *KueueCR) YAML() ([]byte, error) {
	m := kueueManifest{
		APIVersion: "kueue.openshift.io/v1",
		Kind:       "Kueue",
		Metadata: kueueMetadata{
			Labels: map[string]string{
				"app.kubernetes.io/name":       "kueue-operator",
				"app.kubernetes.io/managed-by": "kustomize",
			},
			Name:      cr.Name,
			Namespace: cr.Namespace,
		},
		Spec: kueueSpec{
			ManagementState: cr.ManagementState,
			Config: kueueConfig{
				Integrations: kueueIntegrations{Frameworks: cr.Frameworks},
			},
		},
	}
	return yaml.Marshal(m)
}
