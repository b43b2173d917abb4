package manifests

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/craigedmunds/eda-mesh/internal/factory"
	"github.com/craigedmunds/eda-mesh/internal/logging"
)

const (
	imageDiscoveryLimit = 10
	gitDiscoveryLimit   = 5
	factoryIncludePath  = "image-factory/"
)

// managedWarehouse returns a Warehouse subscribed to the published versions
// of a managed image and, where possible, to the sources it is built from.
func (g *Generator) managedWarehouse(
	logger *logging.Logger,
	img *catalogImage,
) (*unstructured.Unstructured, error) {
	repoURL := img.repoURL()
	sub := map[string]any{
		"repoURL":        repoURL,
		"discoveryLimit": imageDiscoveryLimit,
		"strictSemvers":  false,
	}
	if v := img.currentVersion(); v != "" {
		sub["semverConstraint"] = g.cfg.SemverConstraint
		g.checkCurrentVersion(logger, v)
	} else {
		sub["allowTags"] = "^latest$"
		sub["imageSelectionStrategy"] = string(factory.SelectionStrategyLexical)
	}
	subscriptions := []any{map[string]any{"image": sub}}

	if gitSub := gitSubscription(logger, img.source()); gitSub != nil {
		subscriptions = append(subscriptions, map[string]any{"git": gitSub})
	}

	logger.Debug("generating managed image Warehouse", "repoURL", repoURL)
	return newObjectWithSpec(kargoAPIVersion, "Warehouse", g.cfg.Namespace, img.name, map[string]any{
		"interval":      formatInterval(g.cfg.WarehouseInterval),
		"subscriptions": subscriptions,
	})
}

// checkCurrentVersion warns when the recorded version of an image would not
// be discovered by the Warehouse's semver constraint.
func (g *Generator) checkCurrentVersion(logger *logging.Logger, version string) {
	v, err := semver.NewVersion(version)
	if err != nil {
		logger.Warn("current version is not a semantic version", "currentVersion", version)
		return
	}
	// Validated with the rest of the configuration.
	c, _ := semver.NewConstraint(g.cfg.SemverConstraint)
	if !c.Check(v) {
		logger.Warn("current version does not satisfy the Warehouse constraint",
			"currentVersion", version, "constraint", g.cfg.SemverConstraint)
	}
}

// baseWarehouse returns a Warehouse subscribed to a base or external image.
// Nil is returned if the image lacks the repoURL or allowTags it needs.
func (g *Generator) baseWarehouse(
	logger *logging.Logger,
	img *catalogImage,
) (*unstructured.Unstructured, error) {
	wh := img.warehouse()
	if wh.RepoURL == "" || wh.AllowTags == "" {
		logger.Warn("skipping Warehouse: missing repoURL or allowTags")
		return nil, nil
	}
	logger.Debug("generating base image Warehouse", "repoURL", wh.RepoURL, "allowTags", wh.AllowTags)
	return newObjectWithSpec(kargoAPIVersion, "Warehouse", g.cfg.Namespace, img.name, map[string]any{
		"interval": formatInterval(g.cfg.BaseWarehouseInterval),
		"subscriptions": []any{
			map[string]any{
				"image": map[string]any{
					"repoURL":                wh.RepoURL,
					"allowTags":              wh.AllowTags,
					"imageSelectionStrategy": string(wh.ImageSelectionStrategy),
					"discoveryLimit":         imageDiscoveryLimit,
					"strictSemvers":          false,
				},
			},
		},
	})
}

// gitSubscription returns the git subscription of a managed image's source,
// or nil if the source names no branch or its provider is unknown.
func gitSubscription(logger *logging.Logger, src *factory.Source) map[string]any {
	if src == nil || src.Repo == "" || src.Branch == "" {
		return nil
	}
	repoURL := gitRepoURL(src)
	if repoURL == "" {
		logger.Warn("unknown git provider; not subscribing to source", "provider", src.GetProvider())
		return nil
	}
	return map[string]any{
		"repoURL":                 repoURL,
		"branch":                  src.Branch,
		"commitSelectionStrategy": "NewestFromBranch",
		"includePaths":            includePaths(src.Dockerfile),
		"discoveryLimit":          gitDiscoveryLimit,
		"strictSemvers":           false,
	}
}

// gitRepoURL returns the clone URL of src, or "" for an unknown provider.
func gitRepoURL(src *factory.Source) string {
	if src == nil || src.Repo == "" {
		return ""
	}
	switch src.GetProvider() {
	case factory.ProviderGitHub:
		return "https://github.com/" + src.Repo + ".git"
	case factory.ProviderGitLab:
		return "https://gitlab.com/" + src.Repo + ".git"
	}
	return ""
}

// includePaths limits a git subscription to the directory holding the
// Dockerfile and to the image factory directory. Dockerfiles under apps/
// are scoped to their application's directory.
func includePaths(dockerfile string) []any {
	var paths []any
	parts := strings.Split(dockerfile, "/")
	if len(parts) > 1 {
		if parts[0] == "apps" {
			paths = append(paths, "apps/"+parts[1]+"/")
		} else {
			paths = append(paths, parts[0]+"/")
		}
	}
	return append(paths, factoryIncludePath)
}
