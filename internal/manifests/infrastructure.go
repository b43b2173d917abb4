package manifests

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

const (
	imagePullSecret       = "ghcr-pull-secret"
	registryCredentials   = "ghcr-credentials"
	analysisWorkspace     = "/workspace/repo"
	analysisFactoryDir    = analysisWorkspace + "/image-factory"
	analysisContainerName = "analyzer"
)

// analysisArgs are the arguments every analysis Stage passes to the
// AnalysisTemplate.
var analysisArgs = []string{
	"imageName",
	"imageTag",
	"imageDigest",
	"dockerfile",
	"sourceRepo",
	"sourceProvider",
	"gitRepo",
	"gitBranch",
}

func (g *Generator) namespace() (*unstructured.Unstructured, error) {
	ns, err := newObject("v1", "Namespace", "", g.cfg.Namespace)
	if err != nil {
		return nil, err
	}
	ns.SetLabels(map[string]string{
		"kargo.akuity.io/project":    "true",
		"kargo.deps/ghcr":            "true",
		"secrets/gh-docker-registry": "true",
	})
	return ns, nil
}

func (g *Generator) project() (*unstructured.Unstructured, error) {
	return newObject(kargoAPIVersion, "Project", "", g.cfg.Namespace)
}

// projectConfig enables auto-promotion for every provided Stage.
func (g *Generator) projectConfig(stages []string) (*unstructured.Unstructured, error) {
	policies := make([]any, 0, len(stages))
	for _, s := range stages {
		policies = append(policies, map[string]any{
			"stageSelector":        map[string]any{"name": s},
			"autoPromotionEnabled": true,
		})
	}
	return newObjectWithSpec(kargoAPIVersion, "ProjectConfig", g.cfg.Namespace, g.cfg.Namespace,
		map[string]any{"promotionPolicies": policies},
	)
}

func (g *Generator) serviceAccount() (*unstructured.Unstructured, error) {
	return newObject("v1", "ServiceAccount", g.cfg.Namespace, g.cfg.ServiceAccount)
}

// analysisTemplate returns the AnalysisTemplate shared by all analysis
// Stages. Its Job clones the image's source, records the build that was
// discovered and reconciles the image factory state.
func (g *Generator) analysisTemplate() (*unstructured.Unstructured, error) {
	args := make([]any, 0, len(analysisArgs))
	for _, a := range analysisArgs {
		args = append(args, map[string]any{"name": a})
	}
	script := `set -e
git clone --depth 1 --branch {{args.gitBranch}} {{args.gitRepo}} ` + analysisWorkspace + `
cd ` + analysisWorkspace + `
image-factory record --factory-dir ` + analysisFactoryDir +
		` --image {{args.imageName}} --tag {{args.imageTag}} --digest {{args.imageDigest}}
image-factory reconcile --factory-dir ` + analysisFactoryDir + `
`
	job := map[string]any{
		"backoffLimit": 1,
		"template": map[string]any{
			"spec": map[string]any{
				"serviceAccountName": g.cfg.ServiceAccount,
				"restartPolicy":      "Never",
				"imagePullSecrets": []any{
					map[string]any{"name": imagePullSecret},
				},
				"containers": []any{
					map[string]any{
						"name":            analysisContainerName,
						"image":           g.cfg.AnalysisImage,
						"imagePullPolicy": "IfNotPresent",
						"command":         []any{"/bin/sh", "-c", script},
						"env": []any{
							map[string]any{
								"name": "GITHUB_TOKEN",
								"valueFrom": map[string]any{
									"secretKeyRef": map[string]any{
										"name": registryCredentials,
										"key":  "password",
									},
								},
							},
						},
					},
				},
			},
		},
	}
	return newObjectWithSpec(argoAPIVersion, "AnalysisTemplate", g.cfg.Namespace, analysisTemplateName,
		map[string]any{
			"args": args,
			"metrics": []any{
				map[string]any{
					"name": analysisTemplateName + "-metric",
					"provider": map[string]any{
						"job": map[string]any{"spec": job},
					},
				},
			},
		},
	)
}
