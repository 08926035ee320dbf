// Package schema defines the domain types shared across the retrieval engine.
package schema

import (
	"fmt"
	"math"
	"time"
)

// Game represents a single catalog entry. The catalog store owns these
// records; the engine only reads them.
type Game struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	ReleaseDate     time.Time `json:"release_date"`
	MobyScore       *float64  `json:"moby_score,omitempty"`
	Platforms       []string  `json:"platforms,omitempty"`
	Genres          []string  `json:"genres,omitempty"`
	Developers      []string  `json:"developers,omitempty"`
	Publishers      []string  `json:"publishers,omitempty"`
	CoverPath       string    `json:"cover_path,omitempty"`
	ScreenshotPaths []string  `json:"screenshot_paths,omitempty"`
}

// Year returns the release year, or 0 when the release date is unknown.
func (g Game) Year() int {
	if g.ReleaseDate.IsZero() {
		return 0
	}
	return g.ReleaseDate.Year()
}

// FilterSpec describes structured constraints on the candidate universe.
// All constraints combine with logical AND; an empty field means
// "no constraint", never "exclude all".
type FilterSpec struct {
	// Platforms matches items whose platform set intersects this set.
	Platforms []string `json:"platforms,omitempty"`
	// Genres matches items whose genre set intersects this set.
	Genres []string `json:"genres,omitempty"`
	// MinScore is the minimum catalog score, inclusive.
	MinScore *float64 `json:"min_score,omitempty"`
	// MinYear is the earliest acceptable release year, inclusive.
	MinYear int `json:"min_year,omitempty"`
	// MaxYear is the latest acceptable release year, inclusive.
	MaxYear int `json:"max_year,omitempty"`
	// ScoredOnly excludes items without a catalog score.
	ScoredOnly bool `json:"scored_only,omitempty"`
}

// IsEmpty reports whether the spec places no constraints at all.
func (f *FilterSpec) IsEmpty() bool {
	if f == nil {
		return true
	}
	return len(f.Platforms) == 0 && len(f.Genres) == 0 &&
		f.MinScore == nil && f.MinYear == 0 && f.MaxYear == 0 && !f.ScoredOnly
}

// Validate checks numeric bounds against the configured year floor.
// Caller errors are reported as ErrInvalidFilter.
func (f *FilterSpec) Validate(yearFloor int) error {
	if f == nil {
		return nil
	}
	if f.MinScore != nil && (math.IsNaN(*f.MinScore) || math.IsInf(*f.MinScore, 0)) {
		return fmt.Errorf("%w: min_score must be finite", ErrInvalidFilter)
	}
	if f.MinYear != 0 && f.MinYear < yearFloor {
		return fmt.Errorf("%w: min_year %d precedes catalog floor %d", ErrInvalidFilter, f.MinYear, yearFloor)
	}
	if f.MaxYear != 0 && f.MaxYear < yearFloor {
		return fmt.Errorf("%w: max_year %d precedes catalog floor %d", ErrInvalidFilter, f.MaxYear, yearFloor)
	}
	if f.MinYear != 0 && f.MaxYear != 0 && f.MaxYear < f.MinYear {
		return fmt.Errorf("%w: max_year %d precedes min_year %d", ErrInvalidFilter, f.MaxYear, f.MinYear)
	}
	return nil
}

// Matches reports whether a game satisfies the spec. This is the reference
// predicate; store implementations must agree with it.
func (f *FilterSpec) Matches(g Game) bool {
	if f == nil {
		return true
	}
	if len(f.Platforms) > 0 && !intersects(g.Platforms, f.Platforms) {
		return false
	}
	if len(f.Genres) > 0 && !intersects(g.Genres, f.Genres) {
		return false
	}
	if f.MinScore != nil {
		if g.MobyScore == nil || *g.MobyScore < *f.MinScore {
			return false
		}
	}
	if f.ScoredOnly && g.MobyScore == nil {
		return false
	}
	if f.MinYear != 0 && (g.Year() == 0 || g.Year() < f.MinYear) {
		return false
	}
	if f.MaxYear != 0 && (g.Year() == 0 || g.Year() > f.MaxYear) {
		return false
	}
	return true
}

func intersects(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

// IDSet is a set of eligible item ids. A nil IDSet is the sentinel for
// "no filtering": the candidate universe is the full catalog.
type IDSet map[string]struct{}

// NewIDSet builds an IDSet from ids. It never returns nil, so an empty
// filter result stays distinguishable from the full-catalog sentinel.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Allows reports whether the id is in scope. The nil set allows everything.
func (s IDSet) Allows(id string) bool {
	if s == nil {
		return true
	}
	_, ok := s[id]
	return ok
}
