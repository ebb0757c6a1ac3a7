package kube

import (
	"context"
	"fmt"
	"os"

	"github.com/openshift-eng/kueue-dev/src/config"
)

// WorkloadImageEnv overrides the image test workloads run with.
const WorkloadImageEnv = "CONTAINER_IMAGE"

const defaultWorkloadImage = "quay.io/openshift/origin-cli:latest"

// WorkloadImage returns the image used by e2e test Jobs and Pods.
func WorkloadImage() string {
	if img := os.Getenv(WorkloadImageEnv); img != "" {
		return img
	}
	return defaultWorkloadImage
}

// LoadImages pushes every configured image plus the test workload image into
// the kind cluster, ensuring each exists locally first.
func LoadImages(ctx context.Context, k *Kind, images *config.ImageConfig, pullIfMissing bool) error {
	refs := make([]config.RelatedImage, 0, 8)
	for _, name := range []string{"operator", "operand", "must-gather", "bundle"} {
		img, err := images.Get(name)
		if err != nil {
			return err
		}
		refs = append(refs, config.RelatedImage{Name: name, Image: img})
	}
	refs = append(refs, config.RelatedImage{Name: "workload", Image: WorkloadImage()})

	for _, ref := range refs {
		if err := k.Runtime.EnsureImage(ctx, ref.Image, pullIfMissing); err != nil {
			return fmt.Errorf("ensuring %s image: %w", ref.Name, err)
		}
	}
	for _, ref := range refs {
		if err := k.LoadImage(ctx, ref.Image); err != nil {
			return fmt.Errorf("loading %s image into kind: %w", ref.Name, err)
		}
	}
	return nil
}
