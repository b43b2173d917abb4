package reconcile

import (
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// ReconcilerConfig is configuration for the Reconciler.
type ReconcilerConfig struct {
	// FactoryDir is the image factory directory holding images.yaml and the
	// state directories.
	FactoryDir string `envconfig:"IMAGE_FACTORY_DIR" default:"image-factory"`
	// SourceRoot is the directory Dockerfile paths are relative to. It
	// defaults to the parent of FactoryDir.
	SourceRoot string `envconfig:"SOURCE_ROOT"`
	// SourceRevision, if set, makes Dockerfiles be read from this git
	// revision of the repository containing SourceRoot instead of from the
	// working tree.
	SourceRevision string `envconfig:"SOURCE_REVISION"`
	// Prune enables removal of state for images no longer declared and for
	// base images no longer referenced.
	Prune bool `envconfig:"PRUNE_STATE" default:"false"`
	// StrictBaseImageNames turns base image name collisions from warnings
	// into an error.
	StrictBaseImageNames bool `envconfig:"STRICT_BASE_IMAGE_NAMES" default:"false"`
}

// ReconcilerConfigFromEnv returns a ReconcilerConfig populated from
// environment variables.
func ReconcilerConfigFromEnv() ReconcilerConfig {
	cfg := ReconcilerConfig{}
	envconfig.MustProcess("", &cfg)
	return cfg
}

// GetSourceRoot returns SourceRoot, or the parent of FactoryDir if it is
// unset.
func (c ReconcilerConfig) GetSourceRoot() string {
	if c.SourceRoot != "" {
		return c.SourceRoot
	}
	abs, err := filepath.Abs(c.FactoryDir)
	if err != nil {
		return filepath.Dir(filepath.Clean(c.FactoryDir))
	}
	return filepath.Dir(abs)
}
