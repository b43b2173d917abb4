package garbage

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/kelseyhightower/envconfig"

	"github.com/craigedmunds/eda-mesh/internal/factory"
	"github.com/craigedmunds/eda-mesh/internal/logging"
	"github.com/craigedmunds/eda-mesh/internal/state"
)

// CollectorConfig is configuration for the state garbage collector.
type CollectorConfig struct {
	// DryRun, when true, makes the collector report what it would delete
	// without deleting anything.
	DryRun bool `envconfig:"PRUNE_DRY_RUN" default:"false"`
}

// CollectorConfigFromEnv returns a CollectorConfig populated from environment
// variables.
func CollectorConfigFromEnv() CollectorConfig {
	cfg := CollectorConfig{}
	envconfig.MustProcess("", &cfg)
	return cfg
}

// Result lists the state files a collection removed, or would have removed
// in a dry run.
type Result struct {
	Images     []string
	BaseImages []string
}

// Collector is an interface for the state garbage collector.
type Collector interface {
	// Run deletes the state of every image not in declared and then the state
	// of every base image no remaining image depends on.
	Run(ctx context.Context, declared []string) (Result, error)
}

// collector is an implementation of the Collector interface.
type collector struct {
	cfg CollectorConfig

	// The following behaviors are overridable for testing purposes:
	listImageStatesFn func(context.Context) ([]*factory.ImageState, error)

	listBaseImageStatesFn func(context.Context) ([]*factory.BaseImageState, error)

	deleteImageStateFn func(name string) error

	deleteBaseImageStateFn func(name string) error
}

// NewCollector initializes and returns an implementation of the Collector
// interface operating on the provided Store.
func NewCollector(store *state.Store, cfg CollectorConfig) Collector {
	return &collector{
		cfg:                    cfg,
		listImageStatesFn:      store.ListImageStates,
		listBaseImageStatesFn:  store.ListBaseImageStates,
		deleteImageStateFn:     store.DeleteImageState,
		deleteBaseImageStateFn: store.DeleteBaseImageState,
	}
}

func (c *collector) Run(ctx context.Context, declared []string) (Result, error) {
	logger := logging.LoggerFromContext(ctx).WithValues("dryRun", c.cfg.DryRun)
	res := Result{}

	images, err := c.listImageStatesFn(ctx)
	if err != nil {
		return res, fmt.Errorf("error listing image states; no garbage collection performed: %w", err)
	}

	var errs []error
	referenced := map[string]struct{}{}
	for _, img := range images {
		if slices.Contains(declared, img.Name) {
			for _, base := range img.BaseImages {
				referenced[base] = struct{}{}
			}
			continue
		}
		logger.Info("pruning state of undeclared image", "image", img.Name)
		if !c.cfg.DryRun {
			if err = c.deleteImageStateFn(img.Name); err != nil {
				logger.Error(err, "error pruning image state", "image", img.Name)
				errs = append(errs, err)
				// Keep what it referenced so its base images are not orphaned.
				for _, base := range img.BaseImages {
					referenced[base] = struct{}{}
				}
				continue
			}
		}
		res.Images = append(res.Images, img.Name)
	}

	bases, err := c.listBaseImageStatesFn(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("error listing base image states: %w", err))
		return res, errors.Join(errs...)
	}
	for _, base := range bases {
		if _, ok := referenced[base.Name]; ok {
			continue
		}
		logger.Info("pruning state of unreferenced base image", "baseImage", base.Name)
		if !c.cfg.DryRun {
			if err = c.deleteBaseImageStateFn(base.Name); err != nil {
				logger.Error(err, "error pruning base image state", "baseImage", base.Name)
				errs = append(errs, err)
				continue
			}
		}
		res.BaseImages = append(res.BaseImages, base.Name)
	}

	if len(errs) > 0 {
		return res, fmt.Errorf(
			"one or more errors were encountered during garbage collection: %w",
			errors.Join(errs...),
		)
	}
	return res, nil
}
