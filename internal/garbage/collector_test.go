package garbage

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/craigedmunds/eda-mesh/internal/factory"
	"github.com/craigedmunds/eda-mesh/internal/logging"
	"github.com/craigedmunds/eda-mesh/internal/state"
)

func TestCollectorRun(t *testing.T) {
	ctx := logging.ContextWithLogger(context.Background(), logging.NewDiscardLogger())

	images := func(context.Context) ([]*factory.ImageState, error) {
		return []*factory.ImageState{
			{Name: "backstage", BaseImages: []string{"node-22"}},
			{Name: "retired", BaseImages: []string{"node-18", "node-22"}},
		}, nil
	}
	bases := func(context.Context) ([]*factory.BaseImageState, error) {
		return []*factory.BaseImageState{{Name: "node-18"}, {Name: "node-22"}}, nil
	}

	testCases := []struct {
		name       string
		collector  *collector
		assertions func(*testing.T, Result, error)
	}{
		{
			name: "error listing image states",
			collector: &collector{
				listImageStatesFn: func(context.Context) ([]*factory.ImageState, error) {
					return nil, errors.New("something went wrong")
				},
			},
			assertions: func(t *testing.T, _ Result, err error) {
				require.ErrorContains(t, err, "no garbage collection performed")
				require.ErrorContains(t, err, "something went wrong")
			},
		},
		{
			name: "undeclared image and its exclusive base are pruned",
			collector: &collector{
				listImageStatesFn:      images,
				listBaseImageStatesFn:  bases,
				deleteImageStateFn:     func(string) error { return nil },
				deleteBaseImageStateFn: func(string) error { return nil },
			},
			assertions: func(t *testing.T, res Result, err error) {
				require.NoError(t, err)
				require.Equal(t, []string{"retired"}, res.Images)
				require.Equal(t, []string{"node-18"}, res.BaseImages)
			},
		},
		{
			name: "dry run deletes nothing",
			collector: &collector{
				cfg:                   CollectorConfig{DryRun: true},
				listImageStatesFn:     images,
				listBaseImageStatesFn: bases,
				deleteImageStateFn: func(string) error {
					panic("must not delete in a dry run")
				},
				deleteBaseImageStateFn: func(string) error {
					panic("must not delete in a dry run")
				},
			},
			assertions: func(t *testing.T, res Result, err error) {
				require.NoError(t, err)
				require.Equal(t, []string{"retired"}, res.Images)
				require.Equal(t, []string{"node-18"}, res.BaseImages)
			},
		},
		{
			name: "failed image deletion keeps its base images",
			collector: &collector{
				listImageStatesFn:     images,
				listBaseImageStatesFn: bases,
				deleteImageStateFn: func(string) error {
					return errors.New("permission denied")
				},
				deleteBaseImageStateFn: func(string) error { return nil },
			},
			assertions: func(t *testing.T, res Result, err error) {
				require.ErrorContains(t, err, "permission denied")
				require.Empty(t, res.Images)
				require.Empty(t, res.BaseImages)
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			res, err := testCase.collector.Run(ctx, []string{"backstage"})
			testCase.assertions(t, res, err)
		})
	}
}

func TestCollectorAgainstStore(t *testing.T) {
	ctx := logging.ContextWithLogger(context.Background(), logging.NewDiscardLogger())
	store := state.NewStore(t.TempDir())
	require.NoError(t, store.WriteImageState(&factory.ImageState{Name: "keep", BaseImages: []string{"alpine"}}))
	require.NoError(t, store.WriteImageState(&factory.ImageState{Name: "drop"}))
	require.NoError(t, store.WriteBaseImageState(&factory.BaseImageState{Name: "alpine"}))
	require.NoError(t, store.WriteBaseImageState(&factory.BaseImageState{Name: "stale"}))

	res, err := NewCollector(store, CollectorConfig{}).Run(ctx, []string{"keep"})
	require.NoError(t, err)
	require.Equal(t, Result{Images: []string{"drop"}, BaseImages: []string{"stale"}}, res)

	_, err = os.Stat(store.ImageStatePath("drop"))
	require.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(store.BaseImageStatePath("stale"))
	require.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(store.ImageStatePath("keep"))
	require.NoError(t, err)
}
