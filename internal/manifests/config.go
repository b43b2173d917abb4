package manifests

import (
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/kelseyhightower/envconfig"
	"k8s.io/apimachinery/pkg/util/validation"
)

// GeneratorConfig is configuration for the Generator.
type GeneratorConfig struct {
	// Namespace is the namespace, and Kargo Project, all resources are
	// generated into.
	Namespace string `envconfig:"KARGO_NAMESPACE" default:"image-factory-kargo"`
	// AnalysisImage is the image the Dockerfile analysis Job runs.
	AnalysisImage string `envconfig:"ANALYSIS_IMAGE" default:"ghcr.io/craigedmunds/uv:0.1.0"`
	// ServiceAccount is the name of the ServiceAccount the analysis Job runs
	// as.
	ServiceAccount string `envconfig:"ANALYSIS_SERVICE_ACCOUNT" default:"image-factory"`
	// GitHubTokenSecret is the name of the Kargo secret holding the token
	// used to dispatch rebuild workflows.
	GitHubTokenSecret string `envconfig:"GITHUB_TOKEN_SECRET" default:"github-workflow-token"`
	// WarehouseInterval is the discovery interval of managed image
	// Warehouses.
	WarehouseInterval time.Duration `envconfig:"WAREHOUSE_INTERVAL" default:"5m"`
	// BaseWarehouseInterval is the discovery interval of base and external
	// image Warehouses.
	BaseWarehouseInterval time.Duration `envconfig:"BASE_WAREHOUSE_INTERVAL" default:"24h"`
	// SemverConstraint is the constraint managed image Warehouses subscribe
	// with once an image has a current version.
	SemverConstraint string `envconfig:"WAREHOUSE_SEMVER_CONSTRAINT" default:">=0.1.0"`
}

// GeneratorConfigFromEnv returns a GeneratorConfig populated from
// environment variables.
func GeneratorConfigFromEnv() GeneratorConfig {
	cfg := GeneratorConfig{}
	envconfig.MustProcess("", &cfg)
	return cfg
}

// Validate checks the configuration for values that would produce invalid
// resources.
func (c GeneratorConfig) Validate() error {
	if errs := validation.IsDNS1123Label(c.Namespace); len(errs) > 0 {
		return fmt.Errorf("invalid namespace %q: %v", c.Namespace, errs)
	}
	if c.AnalysisImage == "" {
		return fmt.Errorf("analysis image is required")
	}
	if c.WarehouseInterval <= 0 || c.BaseWarehouseInterval <= 0 {
		return fmt.Errorf("warehouse intervals must be positive")
	}
	if _, err := semver.NewConstraint(c.SemverConstraint); err != nil {
		return fmt.Errorf("invalid semver constraint %q: %w", c.SemverConstraint, err)
	}
	return nil
}

// formatInterval renders d the way intervals are conventionally written in
// Kargo manifests, e.g. "5m" rather than "5m0s".
func formatInterval(d time.Duration) string {
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	if strings.HasSuffix(s, "h0m") {
		s = strings.TrimSuffix(s, "0m")
	}
	return s
}
