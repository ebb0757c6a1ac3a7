package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"
)

const localSettingsFile = ".kueue-dev.toml"

// Settings is the top-level kueue-dev configuration, loaded from TOML.
type Settings struct {
	Defaults Defaults      `toml:"defaults"`
	Colors   Colors        `toml:"colors"`
	Behavior Behavior      `toml:"behavior"`
	Kueue    KueueSettings `toml:"kueue"`
	Tests    TestSettings  `toml:"tests"`
	Versions Versions      `toml:"versions"`
}

// Defaults holds values shared by most commands.
type Defaults struct {
	ClusterName string `toml:"cluster_name"`
	CNIProvider string `toml:"cni_provider"`
	ImagesFile  string `toml:"images_file"`
	// Optional path to the kueue-operator source checkout.
	// Empty means the current working directory.
	OperatorSourcePath string `toml:"kueue_operator_source_path"`
	// Optional path to an upstream kueue checkout, for deploy upstream.
	UpstreamSourcePath string `toml:"upstream_source_path"`
	// Optional path where kind kubeconfigs are written.
	KubeconfigPath string `toml:"kubeconfig_path"`
}

// Colors controls terminal color usage.
type Colors struct {
	Enabled bool   `toml:"enabled"`
	Theme   string `toml:"theme"`
}

// Behavior controls prompting and parallelism.
type Behavior struct {
	ConfirmDestructive bool `toml:"confirm_destructive"`
	ParallelOperations bool `toml:"parallel_operations"`
	ShowProgress       bool `toml:"show_progress"`
}

// KueueSettings describes the Kueue custom resource to deploy.
type KueueSettings struct {
	Name       string   `toml:"name"`
	Namespace  string   `toml:"namespace"`
	Frameworks []string `toml:"frameworks"`
}

// TestSettings holds the ginkgo skip pattern lists.
type TestSettings struct {
	OperatorSkipPatterns []string `toml:"operator_skip_patterns"`
	UpstreamSkipPatterns []string `toml:"upstream_skip_patterns"`
}

// Versions pins the dependency components installed into new clusters.
type Versions struct {
	CertManager        string `toml:"cert_manager"`
	JobSet             string `toml:"jobset"`
	LeaderWorkerSet    string `toml:"leaderworkerset"`
	Calico             string `toml:"calico"`
	PrometheusOperator string `toml:"prometheus_operator"`
}

// Load reads settings from path, or from the standard locations when path is
// empty (./.kueue-dev.toml, then ~/.config/kueue-dev/config.toml). A missing
// file yields defaults; a malformed file is an error.
func Load(path string) (*Settings, error) {
	if path == "" {
		path = findSettingsFile()
		if path == "" {
			return DefaultSettings(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	s := DefaultSettings()
	if err := toml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := s.Versions.Validate(); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return s, nil
}

func findSettingsFile() string {
	if _, err := os.Stat(localSettingsFile); err == nil {
		return localSettingsFile
	}
	if dir, err := os.UserConfigDir(); err == nil {
		p := filepath.Join(dir, "kueue-dev", "config.toml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// DefaultSettings returns the built-in configuration.
func DefaultSettings() *Settings {
	return &Settings{
		Defaults: Defaults{
			ClusterName: "kueue-test",
			CNIProvider: "calico",
			ImagesFile:  "related_images.json",
		},
		Colors: Colors{
			Enabled: true,
			Theme:   "default",
		},
		Behavior: Behavior{
			ConfirmDestructive: true,
			ParallelOperations: true,
			ShowProgress:       true,
		},
		Kueue: KueueSettings{
			Name:       "cluster",
			Namespace:  "openshift-kueue-operator",
			Frameworks: DefaultFrameworks(),
		},
		Tests: TestSettings{
			OperatorSkipPatterns: defaultOperatorSkipPatterns(),
			UpstreamSkipPatterns: defaultUpstreamSkipPatterns(),
		},
		Versions: Versions{
			CertManager:        "v1.18.0",
			JobSet:             "v0.10.1",
			LeaderWorkerSet:    "v0.7.0",
			Calico:             "v3.28.2",
			PrometheusOperator: "v0.82.2",
		},
	}
}

// Validate checks that every pinned version parses as semver.
func (v Versions) Validate() error {
	pins := map[string]string{
		"cert_manager":        v.CertManager,
		"jobset":              v.JobSet,
		"leaderworkerset":     v.LeaderWorkerSet,
		"calico":              v.Calico,
		"prometheus_operator": v.PrometheusOperator,
	}
	for name, pin := range pins {
		if _, err := semver.NewVersion(pin); err != nil {
			return fmt.Errorf("versions.%s: %q is not a valid version", name, pin)
		}
	}
	return nil
}

func defaultOperatorSkipPatterns() []string {
	return []string{
		"AppWrapper",
		"PyTorch",
		"JobSet",
		"LeaderWorkerSet",
		"JAX",
		"Kuberay",
		"Metrics",
		"Fair",
		"TopologyAwareScheduling",
		"Kueue visibility server",
		"Failed Pod can be replaced in group",
		"should allow to schedule a group of diverse pods",
		"StatefulSet created with WorkloadPriorityClass",
	}
}

func defaultUpstreamSkipPatterns() []string {
	return []string{
		"AppWrapper",
		"PyTorch",
		"TrainJob",
		"JAX",
		"Kuberay",
		"Metrics",
		"Fair",
		"TopologyAwareScheduling",
		"Failed Pod can be replaced in group",
		"should allow to schedule a group of diverse pods",
		"StatefulSet created with WorkloadPriorityClass",
		"Kueuectl",
	}
}

// SourceRoot resolves the operator source directory: explicit flag first,
// then the configured path, then the current directory.
func (s *Settings) SourceRoot(flag string) (string, error) {
	switch {
	case flag != "":
		return checkSourceDir(flag)
	case s.Defaults.OperatorSourcePath != "":
		return checkSourceDir(s.Defaults.OperatorSourcePath)
	default:
		return os.Getwd()
	}
}

func checkSourceDir(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("operator source path %s: %w", path, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("operator source path %s is not a directory", path)
	}
	return filepath.Abs(path)
}
