// Package manifests generates the Kargo resources that watch the images of
// an image factory for new versions and drive their rebuilds.
package manifests

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"

	"github.com/craigedmunds/eda-mesh/internal/factory"
	"github.com/craigedmunds/eda-mesh/internal/graph"
	"github.com/craigedmunds/eda-mesh/internal/logging"
	"github.com/craigedmunds/eda-mesh/internal/state"
)

// Generator maps a merged image catalog to Kargo resources.
type Generator struct {
	cfg    GeneratorConfig
	logger *logging.Logger
}

// NewGenerator returns a Generator for the provided configuration.
func NewGenerator(cfg GeneratorConfig, logger *logging.Logger) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg, logger: logger}, nil
}

// Generate returns the resources for every image in the catalog, in this
// order: the Namespace, Project, ProjectConfig and ServiceAccount; one
// Warehouse per image; the shared AnalysisTemplate; rebuild trigger Stages;
// and analysis Stages. Entries that cannot be turned into resources are
// logged and skipped.
func (g *Generator) Generate(ctx context.Context, catalog *state.Catalog) ([]*unstructured.Unstructured, error) {
	var (
		warehouses []*unstructured.Unstructured
		images     = map[string]*catalogImage{}
		managed    []*catalogImage
		errs       []error
	)
	for _, entry := range catalog.Entries() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger := g.logger.WithValues("image", entry.Name)
		img, err := newCatalogImage(entry)
		if err != nil {
			logger.Error(err, "skipping invalid catalog entry")
			continue
		}
		images[img.name] = img

		var wh *unstructured.Unstructured
		if img.managed() {
			managed = append(managed, img)
			wh, err = g.managedWarehouse(logger, img)
		} else {
			wh, err = g.baseWarehouse(logger, img)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if wh != nil {
			warehouses = append(warehouses, wh)
		}
	}

	var (
		stages     []*unstructured.Unstructured
		stageNames []string
	)
	addStage := func(stage *unstructured.Unstructured, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		if stage != nil {
			stages = append(stages, stage)
			stageNames = append(stageNames, stage.GetName())
		}
	}

	states := make([]*factory.ImageState, 0, len(managed))
	for _, img := range managed {
		states = append(states, &img.state)
	}
	for _, edge := range graph.Build(states).Edges() {
		logger := g.logger.WithValues("image", edge.Image, "baseImage", edge.Base)
		if _, ok := images[edge.Base]; !ok {
			logger.Warn("skipping rebuild trigger: base image is not in the catalog")
			continue
		}
		addStage(g.rebuildTriggerStage(logger, edge.Base, images[edge.Image]))
	}
	for _, img := range managed {
		addStage(g.analysisStage(g.logger.WithValues("image", img.name), img))
	}

	var objs []*unstructured.Unstructured
	add := func(obj *unstructured.Unstructured, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		objs = append(objs, obj)
	}
	add(g.namespace())
	add(g.project())
	add(g.projectConfig(stageNames))
	add(g.serviceAccount())
	objs = append(objs, warehouses...)
	if len(managed) > 0 {
		add(g.analysisTemplate())
	}
	objs = append(objs, stages...)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	g.logger.Info("generated resources",
		"warehouses", len(warehouses), "stages", len(stages), "total", len(objs))
	return objs, nil
}

// Write encodes objs to w as a multi-document YAML stream.
func Write(w io.Writer, objs []*unstructured.Unstructured) error {
	buf := &bytes.Buffer{}
	for i, obj := range objs {
		data, err := yaml.Marshal(obj.Object)
		if err != nil {
			return fmt.Errorf("error marshaling %s %q: %w", obj.GetKind(), obj.GetName(), err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
