// Package catalog provides access to the game metadata store.
package catalog

import (
	"context"

	"github.com/celt313/gamequest/schema"
)

// Store reads game metadata and evaluates structured filters.
type Store interface {
	// FilterIDs resolves a filter spec to the set of eligible item ids.
	// An empty spec returns the nil sentinel (full catalog, no filtering);
	// a spec that matches nothing returns an empty non-nil set.
	FilterIDs(ctx context.Context, f *schema.FilterSpec) (schema.IDSet, error)

	// Get fetches games by id. Unknown ids are silently absent from the
	// result; the caller decides whether that is an error.
	Get(ctx context.Context, ids []string) (map[string]schema.Game, error)
}
