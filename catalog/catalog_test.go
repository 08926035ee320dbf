package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celt313/gamequest/schema"
)

func scoreOf(v float64) *float64 { return &v }

func fixtureGames() []schema.Game {
	return []schema.Game{
		{
			ID:          "g1",
			Title:       "Chrono Quest",
			ReleaseDate: time.Date(1995, 3, 1, 0, 0, 0, 0, time.UTC),
			MobyScore:   scoreOf(8.7),
			Platforms:   []string{"SNES"},
			Genres:      []string{"RPG"},
		},
		{
			ID:          "g2",
			Title:       "Star Racer",
			ReleaseDate: time.Date(2003, 6, 1, 0, 0, 0, 0, time.UTC),
			MobyScore:   scoreOf(6.1),
			Platforms:   []string{"PC", "Xbox"},
			Genres:      []string{"Racing"},
		},
		{
			ID:        "g3",
			Title:     "Mystery Depths",
			Platforms: []string{"PC"},
			Genres:    []string{"Adventure", "RPG"},
		},
	}
}

func TestMemoryStoreFilterIDs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(fixtureGames()...)

	t.Run("empty filter returns full-catalog sentinel", func(t *testing.T) {
		ids, err := store.FilterIDs(ctx, nil)
		require.NoError(t, err)
		assert.Nil(t, ids)

		ids, err = store.FilterIDs(ctx, &schema.FilterSpec{})
		require.NoError(t, err)
		assert.Nil(t, ids)
	})

	t.Run("genre and year range", func(t *testing.T) {
		ids, err := store.FilterIDs(ctx, &schema.FilterSpec{
			Genres:  []string{"RPG"},
			MinYear: 1990,
			MaxYear: 1999,
		})
		require.NoError(t, err)
		assert.Equal(t, schema.NewIDSet("g1"), ids)
	})

	t.Run("unknown year excluded from year constraints", func(t *testing.T) {
		ids, err := store.FilterIDs(ctx, &schema.FilterSpec{MaxYear: 2010})
		require.NoError(t, err)
		assert.False(t, ids.Allows("g3"))
		assert.True(t, ids.Allows("g1"))
		assert.True(t, ids.Allows("g2"))
	})

	t.Run("scored only", func(t *testing.T) {
		ids, err := store.FilterIDs(ctx, &schema.FilterSpec{ScoredOnly: true})
		require.NoError(t, err)
		assert.Equal(t, schema.NewIDSet("g1", "g2"), ids)
	})

	t.Run("no matches is empty, not sentinel", func(t *testing.T) {
		ids, err := store.FilterIDs(ctx, &schema.FilterSpec{Platforms: []string{"Dreamcast"}})
		require.NoError(t, err)
		require.NotNil(t, ids)
		assert.Empty(t, ids)
	})
}

func TestMemoryStoreGet(t *testing.T) {
	store := NewMemoryStore(fixtureGames()...)

	games, err := store.Get(context.Background(), []string{"g1", "missing", "g3"})
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "Chrono Quest", games["g1"].Title)
	assert.Equal(t, "Mystery Depths", games["g3"].Title)
}

func TestPostgresStoreFilterIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStoreWithDB(db)

	mock.ExpectQuery(`SELECT id FROM games WHERE \(jsonb_exists\(platforms, \$1\) OR jsonb_exists\(platforms, \$2\)\) AND moby_score >= \$3`).
		WithArgs("PC", "Xbox", 7.0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("g1").AddRow("g2"))

	ids, err := store.FilterIDs(context.Background(), &schema.FilterSpec{
		Platforms: []string{"PC", "Xbox"},
		MinScore:  scoreOf(7.0),
	})
	require.NoError(t, err)
	assert.Equal(t, schema.NewIDSet("g1", "g2"), ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStoreWithDB(db)

	release := time.Date(1995, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "title", "description", "release_date", "moby_score",
		"platforms", "genres", "developers", "publishers", "cover_path", "screenshot_paths",
	}).AddRow(
		"g1", "Chrono Quest", "A time-travel RPG.", release, 8.7,
		[]byte(`["SNES"]`), []byte(`["RPG"]`), nil, nil, "covers/g1.png", []byte(`["shots/g1-1.png"]`),
	).AddRow(
		"g3", "Mystery Depths", "", nil, nil,
		[]byte(`["PC"]`), []byte(`["Adventure","RPG"]`), nil, nil, nil, nil,
	)

	mock.ExpectQuery(`SELECT id, title, description, release_date, moby_score`).
		WithArgs("g1", "g3").
		WillReturnRows(rows)

	games, err := store.Get(context.Background(), []string{"g1", "g3"})
	require.NoError(t, err)
	require.Len(t, games, 2)

	g1 := games["g1"]
	assert.Equal(t, 1995, g1.Year())
	require.NotNil(t, g1.MobyScore)
	assert.InDelta(t, 8.7, *g1.MobyScore, 1e-9)
	assert.Equal(t, []string{"SNES"}, g1.Platforms)
	assert.Equal(t, "covers/g1.png", g1.CoverPath)

	g3 := games["g3"]
	assert.Equal(t, 0, g3.Year())
	assert.Nil(t, g3.MobyScore)
	assert.Empty(t, g3.CoverPath)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetEmpty(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStoreWithDB(db)
	games, err := store.Get(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, games)
}
