package state

import (
	"maps"
	"slices"

	"github.com/craigedmunds/eda-mesh/internal/factory"
)

// MergeState merges a freshly computed state into the previously persisted
// one. Keys only present in existing are kept. Keys present in incoming
// overwrite existing ones when preferNew is true and only fill gaps
// otherwise. Runtime-only keys (enrolledAt, currentDigest, lastBuilt) are
// always kept from existing when it has them. Neither argument is modified.
func MergeState(existing, incoming map[string]any, preferNew bool) map[string]any {
	merged := maps.Clone(existing)
	if merged == nil {
		merged = make(map[string]any, len(incoming))
	}
	runtimeKeys := factory.RuntimeKeys()
	for k, v := range incoming {
		_, exists := existing[k]
		if exists && slices.Contains(runtimeKeys, k) {
			continue
		}
		if !exists || preferNew {
			merged[k] = v
		}
	}
	return merged
}

// mergeEntry is the declaration-level merge used while building a Catalog.
// It is MergeState without the runtime carve-out: when preferIncoming is
// set every incoming key wins.
func mergeEntry(acc, incoming map[string]any, preferIncoming bool) {
	for k, v := range incoming {
		if _, exists := acc[k]; !exists || preferIncoming {
			acc[k] = v
		}
	}
}
