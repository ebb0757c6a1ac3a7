package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// RelatedImage is one entry of the images JSON file.
type RelatedImage struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// ImageConfig maps component names to fully qualified image references.
type ImageConfig struct {
	Path   string
	images map[string]string
}

// LoadImages reads an images JSON file (an array of {name, image} objects).
func LoadImages(path string) (*ImageConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image config %s: %w", path, err)
	}

	var entries []RelatedImage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing image config %s: %w", path, err)
	}

	ic := &ImageConfig{Path: path, images: make(map[string]string, len(entries))}
	for _, e := range entries {
		if e.Name == "" || e.Image == "" {
			return nil, fmt.Errorf("image config %s: entry with empty name or image", path)
		}
		ic.images[e.Name] = e.Image
	}
	return ic, nil
}

// Get returns the image reference for name.
func (ic *ImageConfig) Get(name string) (string, error) {
	img, ok := ic.images[name]
	if !ok {
		return "", fmt.Errorf("image %q not found in %s", name, ic.Path)
	}
	return img, nil
}

// Operator returns the operator image reference.
func (ic *ImageConfig) Operator() (string, error) { return ic.Get("operator") }

// Operand returns the operand image reference.
func (ic *ImageConfig) Operand() (string, error) { return ic.Get("operand") }

// MustGather returns the must-gather image reference.
func (ic *ImageConfig) MustGather() (string, error) { return ic.Get("must-gather") }

// List returns all entries sorted by name.
func (ic *ImageConfig) List() []RelatedImage {
	out := make([]RelatedImage, 0, len(ic.images))
	for name, img := range ic.images {
		out = append(out, RelatedImage{Name: name, Image: img})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
