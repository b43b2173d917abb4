// Package reconcile brings the persisted image factory state in line with
// images.yaml and the Dockerfiles of managed images.
package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/craigedmunds/eda-mesh/internal/dockerfile"
	"github.com/craigedmunds/eda-mesh/internal/factory"
	"github.com/craigedmunds/eda-mesh/internal/garbage"
	"github.com/craigedmunds/eda-mesh/internal/graph"
	"github.com/craigedmunds/eda-mesh/internal/image"
	libio "github.com/craigedmunds/eda-mesh/internal/io"
	"github.com/craigedmunds/eda-mesh/internal/logging"
	"github.com/craigedmunds/eda-mesh/internal/source"
	"github.com/craigedmunds/eda-mesh/internal/state"
	"github.com/craigedmunds/eda-mesh/internal/yaml"
)

const (
	defaultDockerfile = "Dockerfile"
	maxDockerfileSize = 1 << 20
)

// baseImageDerivedKeys are recomputed from the Dockerfile reference on every
// pass, so a key the new reference no longer produces must not linger.
var baseImageDerivedKeys = []string{
	"fullImage", "registry", "repository", "tag", "digest", "allowTags", "repoURL",
}

// Result summarizes a reconciliation pass.
type Result struct {
	// Images are the names of the image states written, in declaration order.
	Images []string
	// BaseImages are the names of the base image states written, in the
	// order they were first discovered.
	BaseImages []string
	// MissingDockerfiles are the managed images whose Dockerfile was not
	// found.
	MissingDockerfiles []string
	// Invalid are the declarations that failed validation and were skipped.
	Invalid []string
	// Collisions are the base image names produced by more than one distinct
	// reference.
	Collisions []Collision
	// Orphans are images with state but no declaration.
	Orphans []string
	// Pruned lists the state removed when pruning is enabled.
	Pruned garbage.Result
	// Graph is the base image dependency graph after the pass.
	Graph *graph.Graph
}

// Reconciler runs reconciliation passes over one image factory directory.
// A pass is sequential and synchronous. Nothing guards against two
// Reconcilers writing the same directory at once.
type Reconciler struct {
	cfg       ReconcilerConfig
	store     *state.Store
	source    source.Source
	collector garbage.Collector
	logger    *logging.Logger

	// nowFn is overridable for testing purposes.
	nowFn func() time.Time
}

// NewReconciler returns a Reconciler for the provided configuration. The
// logger is used for everything the Reconciler and its collaborators log.
func NewReconciler(cfg ReconcilerConfig, logger *logging.Logger) (*Reconciler, error) {
	src, err := source.New(cfg.GetSourceRoot(), cfg.SourceRevision)
	if err != nil {
		return nil, fmt.Errorf("error opening Dockerfile source: %w", err)
	}
	store := state.NewStore(cfg.FactoryDir)
	return &Reconciler{
		cfg:       cfg,
		store:     store,
		source:    src,
		collector: garbage.NewCollector(store, garbage.CollectorConfigFromEnv()),
		logger:    logger,
		nowFn:     time.Now,
	}, nil
}

// Store returns the state store the Reconciler operates on.
func (r *Reconciler) Store() *state.Store {
	return r.store
}

// pass holds the bookkeeping of a single Process call.
type pass struct {
	res         *Result
	collisions  *collisionTracker
	writtenBase map[string]struct{}
	now         string
	errs        []error
}

// Process runs one reconciliation pass. A *state.ConfigError is returned if
// images.yaml is missing or unparsable, in which case nothing is written.
// Problems confined to a single image are logged and the pass carries on;
// failed writes are returned together once every image has been processed.
func (r *Reconciler) Process(ctx context.Context) (*Result, error) {
	ctx = logging.ContextWithLogger(ctx, r.logger)
	r.logger.Info("reconciling image factory state",
		"factoryDir", r.cfg.FactoryDir, "source", r.source.String())

	catalog, err := r.store.MergeImages(ctx)
	if err != nil {
		return nil, err
	}

	p := &pass{
		res:         &Result{},
		collisions:  newCollisionTracker(),
		writtenBase: map[string]struct{}{},
		now:         r.nowFn().UTC().Format(time.RFC3339),
	}

	// Every name in images.yaml keeps its state, including names whose
	// declaration is invalid.
	var declared []string
	for _, entry := range catalog.Declared() {
		if err = ctx.Err(); err != nil {
			return p.res, err
		}
		declared = append(declared, entry.Name)
		decl, err := factory.DecodeDeclaration(entry.Declared)
		if err != nil {
			r.logger.Error(err, "skipping invalid image declaration", "image", entry.Name)
			p.res.Invalid = append(p.res.Invalid, entry.Name)
			continue
		}
		if err = r.reconcileImage(ctx, p, decl); err != nil {
			r.logger.Error(err, "error reconciling image", "image", decl.Name)
			p.errs = append(p.errs, err)
			continue
		}
		p.res.Images = append(p.res.Images, decl.Name)
	}

	p.res.Orphans = catalog.Orphans()
	if len(p.res.Orphans) > 0 && !r.cfg.Prune {
		r.logger.Warn("found state for undeclared images; enable pruning to remove it",
			"images", p.res.Orphans)
	}
	if r.cfg.Prune {
		if p.res.Pruned, err = r.collector.Run(ctx, declared); err != nil {
			p.errs = append(p.errs, err)
		}
	}

	states, err := r.store.ListImageStates(ctx)
	if err != nil {
		p.errs = append(p.errs, err)
	}
	p.res.Graph = graph.Build(states)

	p.res.Collisions = p.collisions.collisions()
	if len(p.res.Collisions) > 0 && r.cfg.StrictBaseImageNames {
		p.errs = append(p.errs, &NameCollisionError{Collisions: p.res.Collisions})
	}

	r.logger.Info("reconciliation complete",
		"images", len(p.res.Images),
		"baseImages", len(p.res.BaseImages),
		"missingDockerfiles", len(p.res.MissingDockerfiles),
		"orphans", len(p.res.Orphans),
	)
	return p.res, errors.Join(p.errs...)
}

func (r *Reconciler) reconcileImage(ctx context.Context, p *pass, decl factory.ImageDeclaration) error {
	logger := r.logger.WithValues("image", decl.Name, "kind", string(decl.Kind))

	st := &factory.ImageState{
		Name:       decl.Name,
		EnrolledAt: p.now,
		Enrollment: factory.Enrollment{
			Registry:     decl.Registry,
			Repository:   decl.Repository,
			RebuildDelay: decl.RebuildDelay,
			AutoRebuild:  decl.AutoRebuild,
		},
		CurrentVersion: decl.CurrentVersion,
		BaseImages:     []string{},
	}

	switch decl.Kind {
	case factory.KindManaged:
		src := *decl.Source
		st.Enrollment.Source = &src
		st.DiscoveryStatus = factory.DiscoveryStatusPending
		baseImages, err := r.discoverBaseImages(ctx, p, decl)
		if err != nil {
			return err
		}
		st.BaseImages = baseImages
	default:
		st.DiscoveryStatus = factory.DiscoveryStatusExternal
		st.RepoURL = decl.Warehouse.RepoURL
		st.AllowTags = decl.Warehouse.AllowTags
		st.ImageSelectionStrategy = decl.Warehouse.ImageSelectionStrategy
		if st.RepoURL == "" {
			logger.Warn("external image has no repoURL and no registry/repository to derive one from")
		}
		if st.AllowTags == "" {
			logger.Warn("external image has no allowTags; every tag will be eligible")
		}
	}

	return r.persistImageState(logger, st, decl.Kind)
}

// discoverBaseImages parses the Dockerfile of a managed image, records a
// state for every base image found and returns their names, deduplicated in
// first-seen order.
func (r *Reconciler) discoverBaseImages(
	ctx context.Context,
	p *pass,
	decl factory.ImageDeclaration,
) ([]string, error) {
	logger := r.logger.WithValues("image", decl.Name)
	path := decl.Source.Dockerfile
	if path == "" {
		path = defaultDockerfile
	}

	refs, err := r.readDockerfile(path)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			missing := &DockerfileMissingError{Image: decl.Name, Path: path, Err: err}
			logger.Warn("base image discovery skipped", "source", r.source.String(), "error", missing)
			p.res.MissingDockerfiles = append(p.res.MissingDockerfiles, decl.Name)
			return []string{}, nil
		}
		logger.Error(err, "error reading Dockerfile; base image discovery skipped", "path", path)
		return []string{}, nil
	}

	names := []string{}
	seen := map[string]struct{}{}
	for _, ref := range refs {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		parsed, err := image.ParseReference(ref)
		if err != nil {
			logger.Warn("skipping unparsable base image reference", "reference", ref, "error", err)
			continue
		}
		name := image.NormalizeBaseImageName(ref)
		if name == "" {
			logger.Warn("skipping base image reference with an empty name", "reference", ref)
			continue
		}
		if p.collisions.observe(name, parsed.String()) {
			logger.Warn("distinct base image references normalize to the same name",
				"baseImage", name, "reference", ref)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)

		if _, done := p.writtenBase[name]; done {
			continue
		}
		if err = r.persistBaseImageState(logger, name, ref, parsed); err != nil {
			return nil, err
		}
		p.writtenBase[name] = struct{}{}
		p.res.BaseImages = append(p.res.BaseImages, name)
	}
	logger.Debug("discovered base images", "baseImages", names)
	return names, nil
}

func (r *Reconciler) readDockerfile(path string) ([]string, error) {
	rc, err := r.source.Open(path)
	if err != nil {
		return nil, err
	}
	data, err := libio.LimitRead(rc, maxDockerfileSize)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return dockerfile.ParseBaseImages(bytes.NewReader(data))
}

// existingState reads a state file for merging. A malformed file counts as
// no prior state.
func (r *Reconciler) existingState(logger *logging.Logger, path string) (map[string]any, error) {
	existing, err := r.store.ReadStateFile(path)
	if err != nil {
		var loadErr *state.StateLoadError
		if !errors.As(err, &loadErr) {
			return nil, err
		}
		logger.Warn("ignoring malformed state file", "path", path, "error", loadErr.Err)
		return nil, nil
	}
	return existing, nil
}

func (r *Reconciler) persistBaseImageState(
	logger *logging.Logger,
	name string,
	ref string,
	parsed image.Reference,
) error {
	incoming, err := yaml.ToMap(&factory.BaseImageState{
		Name:       name,
		FullImage:  ref,
		Registry:   parsed.Registry,
		Repository: parsed.Repository,
		Tag:        parsed.Tag,
		Digest:     parsed.Digest,
		AllowTags:  parsed.AllowTags(),
		RepoURL:    parsed.RepoURL(),
	})
	if err != nil {
		return err
	}
	existing, err := r.existingState(logger, r.store.BaseImageStatePath(name))
	if err != nil {
		return err
	}
	merged := state.MergeState(existing, incoming, true)
	for _, k := range baseImageDerivedKeys {
		if _, ok := incoming[k]; !ok {
			delete(merged, k)
		}
	}
	st := &factory.BaseImageState{}
	if err = yaml.Convert(merged, st); err != nil {
		return fmt.Errorf("error converting state of base image %q: %w", name, err)
	}
	return r.store.WriteBaseImageState(st)
}

func (r *Reconciler) persistImageState(
	logger *logging.Logger,
	st *factory.ImageState,
	kind factory.Kind,
) error {
	incoming, err := yaml.ToMap(st)
	if err != nil {
		return err
	}
	existing, err := r.existingState(logger, r.store.ImageStatePath(st.Name))
	if err != nil {
		return err
	}
	merged := state.MergeState(existing, incoming, true)
	if kind == factory.KindManaged {
		for _, k := range factory.WarehouseKeys() {
			delete(merged, k)
		}
	}
	final := &factory.ImageState{}
	if err = yaml.Convert(merged, final); err != nil {
		return fmt.Errorf("error converting state of image %q: %w", st.Name, err)
	}
	if err = r.store.WriteImageState(final); err != nil {
		return err
	}
	logger.Debug("wrote image state", "baseImages", final.BaseImages)
	return nil
}
