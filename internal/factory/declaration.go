package factory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/craigedmunds/eda-mesh/internal/yaml"
)

// ImageDeclaration is one entry of images.yaml, classified once into either
// a managed or an external image.
type ImageDeclaration struct {
	Name       string
	Registry   string
	Repository string

	Kind Kind
	// Source is set if and only if Kind is KindManaged.
	Source *Source
	// Warehouse is set if and only if Kind is KindExternal.
	Warehouse *Warehouse

	CurrentVersion string
	RebuildDelay   string
	AutoRebuild    *bool
}

// IsManaged reports whether the declaration is of a managed image.
func (d *ImageDeclaration) IsManaged() bool {
	return d.Kind == KindManaged
}

// rawDeclaration mirrors the on-disk shape of an images.yaml entry. The
// source block is accepted both at the top level and under enrollment.
type rawDeclaration struct {
	Name       string `yaml:"name"`
	Registry   string `yaml:"registry"`
	Repository string `yaml:"repository"`

	Source     *Source `yaml:"source"`
	Enrollment *struct {
		Source *Source `yaml:"source"`
	} `yaml:"enrollment"`

	RepoURL                string                 `yaml:"repoURL"`
	AllowTags              string                 `yaml:"allowTags"`
	ImageSelectionStrategy ImageSelectionStrategy `yaml:"imageSelectionStrategy"`

	CurrentVersion string `yaml:"currentVersion"`
	RebuildDelay   string `yaml:"rebuildDelay"`
	AutoRebuild    *bool  `yaml:"autoRebuild"`
}

// DecodeDeclaration validates a generic images.yaml entry and classifies it.
// An image is managed if and only if it names a source repository.
func DecodeDeclaration(entry map[string]any) (ImageDeclaration, error) {
	raw := rawDeclaration{}
	if err := yaml.Convert(entry, &raw); err != nil {
		return ImageDeclaration{}, fmt.Errorf("error decoding image declaration: %w", err)
	}
	if err := ValidateName(raw.Name); err != nil {
		return ImageDeclaration{}, err
	}
	if !raw.ImageSelectionStrategy.Valid() {
		return ImageDeclaration{}, fmt.Errorf(
			"image %q: unknown image selection strategy %q",
			raw.Name, raw.ImageSelectionStrategy,
		)
	}

	decl := ImageDeclaration{
		Name:           raw.Name,
		Registry:       raw.Registry,
		Repository:     raw.Repository,
		CurrentVersion: raw.CurrentVersion,
		RebuildDelay:   raw.RebuildDelay,
		AutoRebuild:    raw.AutoRebuild,
	}

	src := raw.Source
	if src == nil && raw.Enrollment != nil {
		src = raw.Enrollment.Source
	}
	if src != nil && src.Repo != "" {
		s := *src
		s.Provider = s.GetProvider()
		decl.Kind = KindManaged
		decl.Source = &s
		return decl, nil
	}

	decl.Kind = KindExternal
	decl.Warehouse = &Warehouse{
		RepoURL:                raw.RepoURL,
		AllowTags:              raw.AllowTags,
		ImageSelectionStrategy: raw.ImageSelectionStrategy,
	}
	if decl.Warehouse.RepoURL == "" && decl.Registry != "" && decl.Repository != "" {
		decl.Warehouse.RepoURL = decl.Registry + "/" + decl.Repository
	}
	if decl.Warehouse.ImageSelectionStrategy == "" {
		decl.Warehouse.ImageSelectionStrategy = SelectionStrategyLexical
	}
	return decl, nil
}

// ValidateName checks that an image name can safely be used as the base of
// a state file name.
func ValidateName(name string) error {
	switch {
	case name == "":
		return errors.New("image name is required")
	case name == "." || name == "..":
		return fmt.Errorf("invalid image name %q", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("invalid image name %q: must not contain path separators", name)
	case strings.HasSuffix(name, ".example"):
		return fmt.Errorf("invalid image name %q: reserved suffix \".example\"", name)
	}
	return nil
}
