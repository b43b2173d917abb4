package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	v1 "github.com/google/go-containerregistry/pkg/v1"

	"github.com/craigedmunds/eda-mesh/internal/factory"
)

// BuildRecord describes a completed build of a managed image.
type BuildRecord struct {
	// Image is the name of the image as declared in images.yaml.
	Image string
	// Digest is the digest of the pushed image.
	Digest string
	// Tag is the tag the image was pushed with. If it is a semantic version
	// it becomes the image's current version.
	Tag string
}

// RecordBuild stores the outcome of a build in the image's state. It is the
// only operation that replaces currentDigest and lastBuilt once they are
// set. The image must already have state.
func (r *Reconciler) RecordBuild(_ context.Context, rec BuildRecord) (*factory.ImageState, error) {
	if err := factory.ValidateName(rec.Image); err != nil {
		return nil, err
	}
	if _, err := v1.NewHash(rec.Digest); err != nil {
		return nil, fmt.Errorf("invalid digest %q: %w", rec.Digest, err)
	}

	st, err := r.store.ReadImageState(rec.Image)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("no state for image %q; it must be reconciled before builds are recorded", rec.Image)
	}

	logger := r.logger.WithValues("image", rec.Image)
	st.CurrentDigest = rec.Digest
	st.LastBuilt = r.nowFn().UTC().Format(time.RFC3339)
	if rec.Tag != "" {
		if _, err = semver.NewVersion(rec.Tag); err == nil {
			st.CurrentVersion = rec.Tag
		} else {
			logger.Debug("tag is not a semantic version; current version unchanged", "tag", rec.Tag)
		}
	}

	if err = r.store.WriteImageState(st); err != nil {
		return nil, err
	}
	logger.Info("recorded build", "digest", rec.Digest, "currentVersion", st.CurrentVersion)
	return st, nil
}
