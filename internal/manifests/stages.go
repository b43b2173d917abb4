package manifests

import (
	"encoding/json"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/craigedmunds/eda-mesh/internal/logging"
)

const (
	analysisTemplateName = "analyze-dockerfile"
	defaultBranch        = "main"
	cloneCheckoutPath    = "./repo"
)

func analysisStageName(image string) string {
	return "analyze-dockerfile-" + image
}

func rebuildTriggerStageName(dependent, base string) string {
	return fmt.Sprintf("rebuild-trigger-%s-from-%s", dependent, base)
}

// freightFromWarehouse requests Freight directly from the named Warehouse.
func freightFromWarehouse(warehouse string) []any {
	return []any{
		map[string]any{
			"origin": map[string]any{
				"kind": "Warehouse",
				"name": warehouse,
			},
			"sources": map[string]any{
				"direct": true,
			},
		},
	}
}

func stageSpec(freight []any, steps []any) map[string]any {
	return map[string]any{
		"requestedFreight": freight,
		"promotionTemplate": map[string]any{
			"spec": map[string]any{
				"steps": steps,
			},
		},
	}
}

// analysisStage returns the Stage that re-analyzes a managed image's
// Dockerfile whenever new Freight for the image is produced.
func (g *Generator) analysisStage(
	logger *logging.Logger,
	img *catalogImage,
) (*unstructured.Unstructured, error) {
	src := img.source()
	branch := src.Branch
	if branch == "" {
		branch = defaultBranch
	}
	// The analysis Job clones over HTTPS from GitHub whatever the provider.
	gitRepo := "https://github.com/" + src.Repo + ".git"
	repoURL := img.repoURL()

	spec := stageSpec(
		freightFromWarehouse(img.name),
		[]any{gitCloneStep(gitRepo, branch)},
	)
	spec["verification"] = map[string]any{
		"analysisTemplates": []any{
			map[string]any{"name": analysisTemplateName},
		},
		"args": []any{
			arg("imageName", img.name),
			arg("imageTag", fmt.Sprintf(`${{ imageFrom("%s").Tag }}`, repoURL)),
			arg("imageDigest", fmt.Sprintf(`${{ imageFrom("%s").Digest }}`, repoURL)),
			arg("dockerfile", src.Dockerfile),
			arg("sourceRepo", src.Repo),
			arg("sourceProvider", string(src.GetProvider())),
			arg("gitRepo", gitRepo),
			arg("gitBranch", branch),
		},
	}
	logger.Debug("generating analysis Stage")
	return newObjectWithSpec(kargoAPIVersion, "Stage", g.cfg.Namespace, analysisStageName(img.name), spec)
}

// rebuildTriggerStage returns the Stage that dispatches the build workflow
// of dependent whenever new Freight for base is produced. Nil is returned if
// the dependent names no source repository.
func (g *Generator) rebuildTriggerStage(
	logger *logging.Logger,
	base string,
	dependent *catalogImage,
) (*unstructured.Unstructured, error) {
	src := dependent.source()
	if src == nil || src.Repo == "" {
		logger.Warn("skipping rebuild trigger: dependent has no source repository")
		return nil, nil
	}
	workflow := src.Workflow
	if workflow == "" {
		workflow = dependent.name + ".yml"
	}
	branch := src.Branch
	if branch == "" {
		branch = defaultBranch
	}
	step, err := g.workflowDispatchStep(
		"trigger-"+dependent.name,
		src.Repo,
		workflow,
		branch,
		map[string]any{"version_bump": "patch"},
	)
	if err != nil {
		return nil, err
	}
	name := rebuildTriggerStageName(dependent.name, base)
	logger.Debug("generating rebuild trigger Stage", "stage", name)
	return newObjectWithSpec(
		kargoAPIVersion, "Stage", g.cfg.Namespace, name,
		stageSpec(freightFromWarehouse(base), []any{step}),
	)
}

func arg(name, value string) map[string]any {
	return map[string]any{"name": name, "value": value}
}

func gitCloneStep(repoURL, branch string) map[string]any {
	return map[string]any{
		"uses": "git-clone",
		"config": map[string]any{
			"repoURL": repoURL,
			"checkout": []any{
				map[string]any{
					"branch": branch,
					"path":   cloneCheckoutPath,
				},
			},
		},
	}
}

func httpStep(alias, url, method string, headers []any, body string) map[string]any {
	cfg := map[string]any{
		"url":     url,
		"method":  method,
		"headers": headers,
	}
	if body != "" {
		cfg["body"] = body
	}
	return map[string]any{
		"uses":   "http",
		"as":     alias,
		"config": cfg,
	}
}

// workflowDispatchStep returns an http step that triggers a GitHub Actions
// workflow_dispatch event for the provided workflow.
func (g *Generator) workflowDispatchStep(
	alias string,
	repo string,
	workflow string,
	branch string,
	inputs map[string]any,
) (map[string]any, error) {
	body, err := json.Marshal(map[string]any{
		"ref":    branch,
		"inputs": inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("error encoding workflow dispatch body: %w", err)
	}
	return httpStep(
		alias,
		fmt.Sprintf("https://api.github.com/repos/%s/actions/workflows/%s/dispatches", repo, workflow),
		"POST",
		[]any{
			header("Accept", "application/vnd.github.v3+json"),
			header("Authorization", fmt.Sprintf("Bearer ${{ secret('%s').token }}", g.cfg.GitHubTokenSecret)),
			header("Content-Type", "application/json"),
		},
		string(body),
	), nil
}

func header(name, value string) map[string]any {
	return map[string]any{"name": name, "value": value}
}
