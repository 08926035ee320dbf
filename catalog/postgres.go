package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	// Registers the pgx database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/celt313/gamequest/schema"
)

// PostgresStore is a Store backed by a games table in Postgres. List-valued
// columns (platforms, genres, developers, publishers, screenshot_paths) are
// jsonb arrays of strings.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool against dsn using the pgx driver.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an existing connection pool.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// FilterIDs resolves a filter spec to the set of eligible item ids.
func (s *PostgresStore) FilterIDs(ctx context.Context, f *schema.FilterSpec) (schema.IDSet, error) {
	if f.IsEmpty() {
		return nil, nil
	}

	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.Platforms) > 0 {
		conds = append(conds, anyKeyCond("platforms", f.Platforms, next))
	}
	if len(f.Genres) > 0 {
		conds = append(conds, anyKeyCond("genres", f.Genres, next))
	}
	if f.MinScore != nil {
		conds = append(conds, "moby_score >= "+next(*f.MinScore))
	}
	if f.ScoredOnly {
		conds = append(conds, "moby_score IS NOT NULL")
	}
	if f.MinYear != 0 {
		conds = append(conds, "release_date IS NOT NULL AND date_part('year', release_date) >= "+next(f.MinYear))
	}
	if f.MaxYear != 0 {
		conds = append(conds, "release_date IS NOT NULL AND date_part('year', release_date) <= "+next(f.MaxYear))
	}

	query := "SELECT id FROM games WHERE " + strings.Join(conds, " AND ")
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to filter games: %w", err)
	}
	defer rows.Close()

	ids := schema.NewIDSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan game id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read filter rows: %w", err)
	}
	return ids, nil
}

// anyKeyCond matches rows whose jsonb array column contains any of the
// values. jsonb_exists avoids the bare ? operator, which some drivers
// mistake for a placeholder.
func anyKeyCond(column string, values []string, next func(any) string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("jsonb_exists(%s, %s)", column, next(v))
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// Get fetches games by id.
func (s *PostgresStore) Get(ctx context.Context, ids []string) (map[string]schema.Game, error) {
	if len(ids) == 0 {
		return map[string]schema.Game{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := `SELECT id, title, description, release_date, moby_score,
		platforms, genres, developers, publishers, cover_path, screenshot_paths
		FROM games WHERE id IN (` + strings.Join(placeholders, ", ") + ")"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch games: %w", err)
	}
	defer rows.Close()

	out := make(map[string]schema.Game, len(ids))
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out[g.ID] = g
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read game rows: %w", err)
	}
	return out, nil
}

func scanGame(rows *sql.Rows) (schema.Game, error) {
	var (
		g           schema.Game
		releaseDate sql.NullTime
		mobyScore   sql.NullFloat64
		coverPath   sql.NullString

		platforms, genres, developers, publishers, screenshots []byte
	)
	err := rows.Scan(&g.ID, &g.Title, &g.Description, &releaseDate, &mobyScore,
		&platforms, &genres, &developers, &publishers, &coverPath, &screenshots)
	if err != nil {
		return schema.Game{}, fmt.Errorf("failed to scan game row: %w", err)
	}

	if releaseDate.Valid {
		g.ReleaseDate = releaseDate.Time
	}
	if mobyScore.Valid {
		v := mobyScore.Float64
		g.MobyScore = &v
	}
	g.CoverPath = coverPath.String

	for _, col := range []struct {
		raw []byte
		dst *[]string
	}{
		{platforms, &g.Platforms},
		{genres, &g.Genres},
		{developers, &g.Developers},
		{publishers, &g.Publishers},
		{screenshots, &g.ScreenshotPaths},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return schema.Game{}, fmt.Errorf("failed to decode jsonb list for game %s: %w", g.ID, err)
		}
	}
	return g, nil
}

var _ Store = (*PostgresStore)(nil)
