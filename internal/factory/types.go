// Package factory defines the data model of the image factory: the images
// declared in images.yaml and the state persisted for them and for the base
// images they are built from.
package factory

// Kind discriminates between the two kinds of image the factory tracks.
type Kind string

const (
	// KindManaged images are built by the factory from a Dockerfile in a
	// tracked source repository.
	KindManaged Kind = "managed"
	// KindExternal images are third-party images that are only watched for
	// new versions.
	KindExternal Kind = "external"
)

// DiscoveryStatus records whether an image's base images are subject to
// discovery.
type DiscoveryStatus string

const (
	DiscoveryStatusPending  DiscoveryStatus = "pending"
	DiscoveryStatusExternal DiscoveryStatus = "external"
)

// Provider is a source code hosting provider.
type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderGitLab Provider = "gitlab"
)

// ImageSelectionStrategy names the strategy a Warehouse uses to select
// among the tags of a subscribed repository.
type ImageSelectionStrategy string

const (
	SelectionStrategyDigest      ImageSelectionStrategy = "Digest"
	SelectionStrategyLexical     ImageSelectionStrategy = "Lexical"
	SelectionStrategyNewestBuild ImageSelectionStrategy = "NewestBuild"
	SelectionStrategySemVer      ImageSelectionStrategy = "SemVer"
)

// Valid reports whether s is a known strategy. The empty strategy is valid
// and means "use the default".
func (s ImageSelectionStrategy) Valid() bool {
	switch s {
	case "", SelectionStrategyDigest, SelectionStrategyLexical,
		SelectionStrategyNewestBuild, SelectionStrategySemVer:
		return true
	}
	return false
}

// Runtime-only ImageState keys. They are never overwritten by a
// reconciliation pass once present.
const (
	KeyEnrolledAt    = "enrolledAt"
	KeyCurrentDigest = "currentDigest"
	KeyLastBuilt     = "lastBuilt"
)

// Warehouse-only ImageState keys. They are present on external images and
// absent from managed ones.
const (
	KeyRepoURL                = "repoURL"
	KeyAllowTags              = "allowTags"
	KeyImageSelectionStrategy = "imageSelectionStrategy"
)

// KeyName is the key every declaration and state entry is indexed by.
const KeyName = "name"

// RuntimeKeys returns the runtime-only ImageState keys.
func RuntimeKeys() []string {
	return []string{KeyCurrentDigest, KeyLastBuilt, KeyEnrolledAt}
}

// WarehouseKeys returns the warehouse-only ImageState keys.
func WarehouseKeys() []string {
	return []string{KeyRepoURL, KeyAllowTags, KeyImageSelectionStrategy}
}

// Source locates the Dockerfile a managed image is built from and the CI
// workflow that builds it.
type Source struct {
	Provider   Provider `yaml:"provider,omitempty"`
	Repo       string   `yaml:"repo,omitempty"`
	Branch     string   `yaml:"branch,omitempty"`
	Dockerfile string   `yaml:"dockerfile,omitempty"`
	Workflow   string   `yaml:"workflow,omitempty"`
}

// GetProvider returns the source's provider, defaulting to GitHub.
func (s *Source) GetProvider() Provider {
	if s == nil || s.Provider == "" {
		return ProviderGitHub
	}
	return s.Provider
}

// Warehouse is the subscription configuration of an external image.
type Warehouse struct {
	RepoURL                string                 `yaml:"repoURL,omitempty"`
	AllowTags              string                 `yaml:"allowTags,omitempty"`
	ImageSelectionStrategy ImageSelectionStrategy `yaml:"imageSelectionStrategy,omitempty"`
}

// Enrollment is the declaration-derived part of an ImageState.
type Enrollment struct {
	Registry     string         `yaml:"registry,omitempty"`
	Repository   string         `yaml:"repository,omitempty"`
	Source       *Source        `yaml:"source,omitempty"`
	RebuildDelay string         `yaml:"rebuildDelay,omitempty"`
	AutoRebuild  *bool          `yaml:"autoRebuild,omitempty"`
	Extra        map[string]any `yaml:",inline"`
}

// ImageState is the persisted state of a declared image, stored at
// state/images/<name>.yaml. Field order is the order keys are written in.
// Keys this type does not know about are kept in Extra and written back
// after the known keys.
type ImageState struct {
	Name            string          `yaml:"name"`
	EnrolledAt      string          `yaml:"enrolledAt,omitempty"`
	Enrollment      Enrollment      `yaml:"enrollment"`
	DiscoveryStatus DiscoveryStatus `yaml:"discoveryStatus,omitempty"`
	BaseImages      []string        `yaml:"baseImages"`
	CurrentVersion  string          `yaml:"currentVersion,omitempty"`
	CurrentDigest   string          `yaml:"currentDigest,omitempty"`
	LastBuilt       string          `yaml:"lastBuilt,omitempty"`

	RepoURL                string                 `yaml:"repoURL,omitempty"`
	AllowTags              string                 `yaml:"allowTags,omitempty"`
	ImageSelectionStrategy ImageSelectionStrategy `yaml:"imageSelectionStrategy,omitempty"`

	Extra map[string]any `yaml:",inline"`
}

// IsManaged reports whether the state describes a managed image.
func (s *ImageState) IsManaged() bool {
	return s.Enrollment.Source != nil && s.Enrollment.Source.Repo != ""
}

// BaseImageState is the persisted state of a base image discovered in a
// managed image's Dockerfile, stored at state/base-images/<name>.yaml.
// Dependents are not stored; they are derived from ImageState.BaseImages.
type BaseImageState struct {
	Name       string `yaml:"name"`
	FullImage  string `yaml:"fullImage,omitempty"`
	Registry   string `yaml:"registry,omitempty"`
	Repository string `yaml:"repository,omitempty"`
	Tag        string `yaml:"tag,omitempty"`
	Digest     string `yaml:"digest,omitempty"`
	AllowTags  string `yaml:"allowTags,omitempty"`
	RepoURL    string `yaml:"repoURL,omitempty"`

	ImageSelectionStrategy ImageSelectionStrategy `yaml:"imageSelectionStrategy,omitempty"`

	Extra map[string]any `yaml:",inline"`
}
