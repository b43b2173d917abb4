package manifests

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"

	"github.com/craigedmunds/eda-mesh/internal/logging"
	"github.com/craigedmunds/eda-mesh/internal/state"
)

const testImagesYAML = `- name: backstage
  registry: ghcr.io
  repository: craigedmunds/backstage
  source:
    provider: github
    repo: craigedmunds/eda-mesh
    branch: main
    dockerfile: apps/backstage/Dockerfile
    workflow: backstage.yml
- name: postgres
  registry: docker.io
  repository: library/postgres
  allowTags: ^16\.[0-9]+$
  imageSelectionStrategy: SemVer
- name: no-tags
  registry: quay.io
  repository: example/no-tags
`

const testBackstageState = `name: backstage
enrolledAt: "2025-01-02T03:04:05Z"
enrollment:
  registry: ghcr.io
  repository: craigedmunds/backstage
  source:
    provider: github
    repo: craigedmunds/eda-mesh
    branch: main
    dockerfile: apps/backstage/Dockerfile
    workflow: backstage.yml
discoveryStatus: pending
baseImages:
  - node-22-bookworm-slim
  - missing-base
currentVersion: 1.2.3
`

const testBaseState = `name: node-22-bookworm-slim
fullImage: node:22-bookworm-slim
registry: docker.io
repository: library/node
tag: 22-bookworm-slim
allowTags: ^22-bookworm-slim$
repoURL: docker.io/library/node
`

func testCatalog(t *testing.T, files map[string]string) *state.Catalog {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	ctx := logging.ContextWithLogger(context.Background(), logging.NewDiscardLogger())
	catalog, err := state.NewStore(dir).MergeImages(ctx)
	require.NoError(t, err)
	return catalog
}

func testGenerator(t *testing.T) *Generator {
	t.Helper()
	cfg := GeneratorConfig{
		Namespace:             "image-factory-kargo",
		AnalysisImage:         "ghcr.io/craigedmunds/uv:0.1.0",
		ServiceAccount:        "image-factory",
		GitHubTokenSecret:     "github-workflow-token",
		WarehouseInterval:     5 * time.Minute,
		BaseWarehouseInterval: 24 * time.Hour,
		SemverConstraint:      ">=0.1.0",
	}
	g, err := NewGenerator(cfg, logging.NewDiscardLogger())
	require.NoError(t, err)
	return g
}

func find(objs []*unstructured.Unstructured, kind, name string) *unstructured.Unstructured {
	for _, obj := range objs {
		if obj.GetKind() == kind && obj.GetName() == name {
			return obj
		}
	}
	return nil
}

func subscriptions(t *testing.T, obj *unstructured.Unstructured) []map[string]any {
	t.Helper()
	subs, ok, err := unstructured.NestedSlice(obj.Object, "spec", "subscriptions")
	require.NoError(t, err)
	require.True(t, ok)
	out := make([]map[string]any, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.(map[string]any)) // nolint: forcetypeassert
	}
	return out
}

func TestGenerate(t *testing.T) {
	g := testGenerator(t)
	objs, err := g.Generate(context.Background(), testCatalog(t, map[string]string{
		"images.yaml":                                  testImagesYAML,
		"state/images/backstage.yaml":                  testBackstageState,
		"state/base-images/node-22-bookworm-slim.yaml": testBaseState,
	}))
	require.NoError(t, err)

	var kinds []string
	for _, obj := range objs {
		kinds = append(kinds, obj.GetKind()+"/"+obj.GetName())
	}
	assert.Equal(t, []string{
		"Namespace/image-factory-kargo",
		"Project/image-factory-kargo",
		"ProjectConfig/image-factory-kargo",
		"ServiceAccount/image-factory",
		"Warehouse/backstage",
		"Warehouse/postgres",
		"Warehouse/node-22-bookworm-slim",
		"AnalysisTemplate/analyze-dockerfile",
		"Stage/rebuild-trigger-backstage-from-node-22-bookworm-slim",
		"Stage/analyze-dockerfile-backstage",
	}, kinds)

	t.Run("namespace", func(t *testing.T) {
		ns := find(objs, "Namespace", "image-factory-kargo")
		assert.Empty(t, ns.GetNamespace())
		assert.Equal(t, "true", ns.GetLabels()["kargo.akuity.io/project"])
	})

	t.Run("project config", func(t *testing.T) {
		pc := find(objs, "ProjectConfig", "image-factory-kargo")
		policies, _, err := unstructured.NestedSlice(pc.Object, "spec", "promotionPolicies")
		require.NoError(t, err)
		require.Len(t, policies, 2)
		first := policies[0].(map[string]any) // nolint: forcetypeassert
		assert.Equal(t, true, first["autoPromotionEnabled"])
		assert.Equal(t,
			map[string]any{"name": "rebuild-trigger-backstage-from-node-22-bookworm-slim"},
			first["stageSelector"],
		)
	})

	t.Run("managed warehouse", func(t *testing.T) {
		wh := find(objs, "Warehouse", "backstage")
		assert.Equal(t, "image-factory-kargo", wh.GetNamespace())
		interval, _, _ := unstructured.NestedString(wh.Object, "spec", "interval")
		assert.Equal(t, "5m", interval)

		subs := subscriptions(t, wh)
		require.Len(t, subs, 2)
		img := subs[0]["image"].(map[string]any) // nolint: forcetypeassert
		assert.Equal(t, "ghcr.io/craigedmunds/backstage", img["repoURL"])
		assert.Equal(t, ">=0.1.0", img["semverConstraint"])
		assert.NotContains(t, img, "allowTags")
		assert.Equal(t, int64(10), img["discoveryLimit"])

		git := subs[1]["git"].(map[string]any) // nolint: forcetypeassert
		assert.Equal(t, "https://github.com/craigedmunds/eda-mesh.git", git["repoURL"])
		assert.Equal(t, "NewestFromBranch", git["commitSelectionStrategy"])
		assert.Equal(t, []any{"apps/backstage/", "image-factory/"}, git["includePaths"])
		assert.Equal(t, int64(5), git["discoveryLimit"])
	})

	t.Run("external warehouse", func(t *testing.T) {
		wh := find(objs, "Warehouse", "postgres")
		interval, _, _ := unstructured.NestedString(wh.Object, "spec", "interval")
		assert.Equal(t, "24h", interval)
		img := subscriptions(t, wh)[0]["image"].(map[string]any) // nolint: forcetypeassert
		assert.Equal(t, "docker.io/library/postgres", img["repoURL"])
		assert.Equal(t, `^16\.[0-9]+$`, img["allowTags"])
		assert.Equal(t, "SemVer", img["imageSelectionStrategy"])
	})

	t.Run("external image without allowTags is skipped", func(t *testing.T) {
		assert.Nil(t, find(objs, "Warehouse", "no-tags"))
	})

	t.Run("base warehouse", func(t *testing.T) {
		wh := find(objs, "Warehouse", "node-22-bookworm-slim")
		img := subscriptions(t, wh)[0]["image"].(map[string]any) // nolint: forcetypeassert
		assert.Equal(t, "docker.io/library/node", img["repoURL"])
		assert.Equal(t, "^22-bookworm-slim$", img["allowTags"])
		assert.Equal(t, "Lexical", img["imageSelectionStrategy"])
	})

	t.Run("rebuild trigger stage", func(t *testing.T) {
		stage := find(objs, "Stage", "rebuild-trigger-backstage-from-node-22-bookworm-slim")
		freight, _, _ := unstructured.NestedSlice(stage.Object, "spec", "requestedFreight")
		require.Len(t, freight, 1)
		origin, _, _ := unstructured.NestedStringMap(freight[0].(map[string]any), "origin") // nolint: forcetypeassert
		assert.Equal(t, map[string]string{"kind": "Warehouse", "name": "node-22-bookworm-slim"}, origin)

		steps, _, _ := unstructured.NestedSlice(stage.Object, "spec", "promotionTemplate", "spec", "steps")
		require.Len(t, steps, 1)
		step := steps[0].(map[string]any) // nolint: forcetypeassert
		assert.Equal(t, "http", step["uses"])
		assert.Equal(t, "trigger-backstage", step["as"])
		cfg := step["config"].(map[string]any) // nolint: forcetypeassert
		assert.Equal(t,
			"https://api.github.com/repos/craigedmunds/eda-mesh/actions/workflows/backstage.yml/dispatches",
			cfg["url"],
		)
		assert.Equal(t, "POST", cfg["method"])
		assert.JSONEq(t, `{"ref":"main","inputs":{"version_bump":"patch"}}`, cfg["body"].(string)) // nolint: forcetypeassert
		assert.Contains(t, cfg["headers"], map[string]any{
			"name":  "Authorization",
			"value": "Bearer ${{ secret('github-workflow-token').token }}",
		})
	})

	t.Run("analysis stage", func(t *testing.T) {
		stage := find(objs, "Stage", "analyze-dockerfile-backstage")
		steps, _, _ := unstructured.NestedSlice(stage.Object, "spec", "promotionTemplate", "spec", "steps")
		require.Len(t, steps, 1)
		assert.Equal(t, "git-clone", steps[0].(map[string]any)["uses"]) // nolint: forcetypeassert

		args, _, _ := unstructured.NestedSlice(stage.Object, "spec", "verification", "args")
		require.Len(t, args, len(analysisArgs))
		assert.Equal(t, map[string]any{
			"name":  "imageTag",
			"value": `${{ imageFrom("ghcr.io/craigedmunds/backstage").Tag }}`,
		}, args[1])
		assert.Equal(t, map[string]any{
			"name":  "dockerfile",
			"value": "apps/backstage/Dockerfile",
		}, args[3])
	})
}

func TestGenerateWithoutManagedImages(t *testing.T) {
	g := testGenerator(t)
	objs, err := g.Generate(context.Background(), testCatalog(t, map[string]string{
		"images.yaml": "- name: redis\n  repoURL: docker.io/library/redis\n  allowTags: ^7$\n",
	}))
	require.NoError(t, err)
	assert.Nil(t, find(objs, "AnalysisTemplate", analysisTemplateName))
	require.NotNil(t, find(objs, "Warehouse", "redis"))
}

func TestGenerateManagedWithoutVersion(t *testing.T) {
	g := testGenerator(t)
	objs, err := g.Generate(context.Background(), testCatalog(t, map[string]string{
		"images.yaml": `- name: uv
  repository: craigedmunds/uv
  source:
    provider: bitbucket
    repo: craigedmunds/eda-mesh
    branch: main
    dockerfile: Dockerfile
`,
	}))
	require.NoError(t, err)
	wh := find(objs, "Warehouse", "uv")
	require.NotNil(t, wh)
	subs := subscriptions(t, wh)
	// Unknown providers get no git subscription.
	require.Len(t, subs, 1)
	img := subs[0]["image"].(map[string]any) // nolint: forcetypeassert
	assert.Equal(t, "ghcr.io/craigedmunds/uv", img["repoURL"])
	assert.Equal(t, "^latest$", img["allowTags"])
	assert.Equal(t, "Lexical", img["imageSelectionStrategy"])
	assert.NotNil(t, find(objs, "Stage", "analyze-dockerfile-uv"))
}

func TestGenerateInvalidName(t *testing.T) {
	g := testGenerator(t)
	_, err := g.Generate(context.Background(), testCatalog(t, map[string]string{
		"images.yaml": "- name: Not_Valid\n  repoURL: docker.io/x\n  allowTags: ^1$\n",
	}))
	require.ErrorContains(t, err, `invalid Warehouse name "Not_Valid"`)
}

func TestGenerateCanceled(t *testing.T) {
	g := testGenerator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Generate(ctx, testCatalog(t, map[string]string{"images.yaml": testImagesYAML}))
	require.ErrorIs(t, err, context.Canceled)
}

func TestIncludePaths(t *testing.T) {
	testCases := []struct {
		dockerfile string
		expected   []any
	}{
		{"apps/backstage/Dockerfile", []any{"apps/backstage/", "image-factory/"}},
		{"tools/uv/Dockerfile", []any{"tools/", "image-factory/"}},
		{"Dockerfile", []any{"image-factory/"}},
		{"", []any{"image-factory/"}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.dockerfile, func(t *testing.T) {
			assert.Equal(t, testCase.expected, includePaths(testCase.dockerfile))
		})
	}
}

func TestFormatInterval(t *testing.T) {
	assert.Equal(t, "5m", formatInterval(5*time.Minute))
	assert.Equal(t, "24h", formatInterval(24*time.Hour))
	assert.Equal(t, "1h30m", formatInterval(90*time.Minute))
	assert.Equal(t, "30s", formatInterval(30*time.Second))
}

func TestGeneratorConfigValidate(t *testing.T) {
	valid := GeneratorConfig{
		Namespace:             "image-factory-kargo",
		AnalysisImage:         "ghcr.io/craigedmunds/uv:0.1.0",
		WarehouseInterval:     time.Minute,
		BaseWarehouseInterval: time.Hour,
		SemverConstraint:      ">=0.1.0",
	}
	testCases := []struct {
		name       string
		mutate     func(*GeneratorConfig)
		assertions func(*testing.T, error)
	}{
		{
			name:   "valid",
			mutate: func(*GeneratorConfig) {},
			assertions: func(t *testing.T, err error) {
				require.NoError(t, err)
			},
		},
		{
			name:   "invalid namespace",
			mutate: func(c *GeneratorConfig) { c.Namespace = "Image_Factory" },
			assertions: func(t *testing.T, err error) {
				require.ErrorContains(t, err, "invalid namespace")
			},
		},
		{
			name:   "invalid constraint",
			mutate: func(c *GeneratorConfig) { c.SemverConstraint = "not a constraint" },
			assertions: func(t *testing.T, err error) {
				require.ErrorContains(t, err, "invalid semver constraint")
			},
		},
		{
			name:   "zero interval",
			mutate: func(c *GeneratorConfig) { c.WarehouseInterval = 0 },
			assertions: func(t *testing.T, err error) {
				require.ErrorContains(t, err, "intervals must be positive")
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			cfg := valid
			testCase.mutate(&cfg)
			testCase.assertions(t, cfg.Validate())
		})
	}
}

func TestWrite(t *testing.T) {
	g := testGenerator(t)
	objs, err := g.Generate(context.Background(), testCatalog(t, map[string]string{
		"images.yaml": "- name: redis\n  repoURL: docker.io/library/redis\n  allowTags: ^7$\n",
	}))
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	require.NoError(t, Write(buf, objs))
	docs := strings.Split(buf.String(), "---\n")
	require.Len(t, docs, len(objs))

	wh := map[string]any{}
	require.NoError(t, yaml.Unmarshal([]byte(docs[len(docs)-1]), &wh))
	assert.Equal(t, "Warehouse", wh["kind"])
	assert.Equal(t, "kargo.akuity.io/v1alpha1", wh["apiVersion"])
}
