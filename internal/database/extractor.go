package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elchinoo/moviesync/internal/config"
	"github.com/elchinoo/moviesync/internal/logging"
	"github.com/elchinoo/moviesync/internal/resilience"
	"github.com/elchinoo/moviesync/pkg/types"
)

// extractQuery is the canonical extraction query from the external
// contract: a LEFT JOIN of film_work with its genres and role-partitioned
// participants, aggregated per film, keyset-paginated on modified.
//
// Pagination advances the cursor to the last row's modified value alone
// (not the (modified, id) pair), inherited from the original
// implementation. If a run of rows sharing the same modified timestamp
// straddles a LIMIT boundary, rows past the cut are skipped rather than
// revisited on the next page; this holds only as long as such a tie fits
// within one page.
const extractQuery = `
SELECT
	fw.id::text,
	fw.title,
	fw.description,
	fw.rating,
	fw.modified,
	COALESCE(
		json_agg(DISTINCT jsonb_build_object('id', g.id, 'name', g.name))
		FILTER (WHERE g.id IS NOT NULL), '[]'
	)::text AS genres,
	COALESCE(
		json_agg(DISTINCT jsonb_build_object('id', p.id, 'name', p.full_name))
		FILTER (WHERE pfw.role = 'director'), '[]'
	)::text AS directors,
	COALESCE(
		json_agg(DISTINCT jsonb_build_object('id', p.id, 'name', p.full_name))
		FILTER (WHERE pfw.role = 'actor'), '[]'
	)::text AS actors,
	COALESCE(
		json_agg(DISTINCT jsonb_build_object('id', p.id, 'name', p.full_name))
		FILTER (WHERE pfw.role = 'writer'), '[]'
	)::text AS writers,
	array_remove(array_agg(DISTINCT p.full_name) FILTER (WHERE pfw.role = 'director'), NULL) AS directors_names,
	array_remove(array_agg(DISTINCT p.full_name) FILTER (WHERE pfw.role = 'actor'), NULL) AS actors_names,
	array_remove(array_agg(DISTINCT p.full_name) FILTER (WHERE pfw.role = 'writer'), NULL) AS writers_names
FROM film_work fw
LEFT JOIN genre_film_work gfw ON fw.id = gfw.film_work_id
LEFT JOIN genre g ON gfw.genre_id = g.id
LEFT JOIN person_film_work pfw ON fw.id = pfw.film_work_id
LEFT JOIN person p ON pfw.person_id = p.id
WHERE fw.modified > $1
GROUP BY fw.id, fw.modified
ORDER BY fw.modified, fw.id
LIMIT $2
`

// Extractor pages changed films out of the relational source.
type Extractor struct {
	pool      *pgxpool.Pool
	batchSize int
	breakers  *resilience.Breakers
	backoff   resilience.BackoffConfig
	logger    logging.Logger
}

// NewExtractor builds an Extractor bound to pool.
func NewExtractor(pool *pgxpool.Pool, cfg *config.Settings, breakers *resilience.Breakers, logger logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{
		pool:      pool,
		batchSize: cfg.BatchSize,
		breakers:  breakers,
		backoff: resilience.BackoffConfig{
			MaxAttempts: uint64(cfg.BackoffMaxAttempts),
			MaxElapsed:  cfg.BackoffMaxElapsed,
		},
		logger: logger,
	}
}

// PageIterator is the explicit pull iterator the extractor is modeled as:
// one paging query per Next call, after which the modified-only watermark
// moves to the page's last row (see extractQuery for how ties behave).
type PageIterator struct {
	ex      *Extractor
	cursor  time.Time
	done    bool
}

// Open starts a new pull iterator positioned just after checkpoint.
func (e *Extractor) Open(checkpoint time.Time) *PageIterator {
	return &PageIterator{ex: e, cursor: checkpoint}
}

// Next runs one paging query and returns the next page. The second return
// value is false once the source has no further rows past the current
// watermark, at which point the page is nil and the pass is complete.
func (it *PageIterator) Next(ctx context.Context) (types.Page, bool, error) {
	if it.done {
		return nil, false, nil
	}

	var page types.Page
	queryOnce := func() error {
		queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		rows, err := it.ex.pool.Query(queryCtx, extractQuery, it.cursor, it.ex.batchSize)
		if err != nil {
			return fmt.Errorf("failed to execute paging query: %w", err)
		}
		defer rows.Close()

		p, err := scanPage(rows)
		if err != nil {
			return err
		}
		page = p
		return rows.Err()
	}

	err := resilience.WithBackoff(ctx, it.ex.backoff, it.ex.logger, "postgres.extract", func() error {
		return resilience.Guard(it.ex.breakers.Database, queryOnce)
	})
	if err != nil {
		return nil, false, err
	}

	if len(page) == 0 {
		it.done = true
		return nil, false, nil
	}

	it.cursor = page.MaxModified()
	return page, true, nil
}

// rawRow holds one scanned row in its wire shape, before the JSON
// aggregates and UUID text are decoded into types.Film. Kept separate from
// scanPage so the decoding logic is unit-testable without a live database.
type rawRow struct {
	id             string
	title          *string
	description    *string
	rating         *float64
	modified       time.Time
	genresJSON     string
	directorsJSON  string
	actorsJSON     string
	writersJSON    string
	directorsNames []string
	actorsNames    []string
	writersNames   []string
}

func scanPage(rows pgx.Rows) (types.Page, error) {
	var page types.Page
	for rows.Next() {
		var r rawRow
		err := rows.Scan(
			&r.id, &r.title, &r.description, &r.rating, &r.modified,
			&r.genresJSON, &r.directorsJSON, &r.actorsJSON, &r.writersJSON,
			&r.directorsNames, &r.actorsNames, &r.writersNames,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan film row: %w", err)
		}

		film, err := buildFilm(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decode film row: %w", err)
		}
		page = append(page, film)
	}
	return page, rows.Err()
}

// buildFilm decodes one scanned row into a types.Film, unmarshaling the
// aggregated JSON participant/genre lists and parsing the UUID. It is pure
// and makes no I/O, so it is exercised directly by tests with synthetic
// rawRow values.
func buildFilm(r rawRow) (types.Film, error) {
	id, err := uuid.Parse(r.id)
	if err != nil {
		return types.Film{}, fmt.Errorf("invalid film id %q: %w", r.id, err)
	}

	genres, err := decodeEntities(r.genresJSON)
	if err != nil {
		return types.Film{}, fmt.Errorf("invalid genres aggregate: %w", err)
	}
	directors, err := decodeEntities(r.directorsJSON)
	if err != nil {
		return types.Film{}, fmt.Errorf("invalid directors aggregate: %w", err)
	}
	actors, err := decodeEntities(r.actorsJSON)
	if err != nil {
		return types.Film{}, fmt.Errorf("invalid actors aggregate: %w", err)
	}
	writers, err := decodeEntities(r.writersJSON)
	if err != nil {
		return types.Film{}, fmt.Errorf("invalid writers aggregate: %w", err)
	}

	return types.Film{
		ID:             id,
		Title:          r.title,
		Description:    r.description,
		IMDbRating:     r.rating,
		Modified:       r.modified,
		Genres:         genres,
		Directors:      directors,
		Actors:         actors,
		Writers:        writers,
		DirectorsNames: r.directorsNames,
		ActorsNames:    r.actorsNames,
		WritersNames:   r.writersNames,
	}, nil
}

func decodeEntities(raw string) ([]types.NamedEntity, error) {
	if raw == "" {
		return nil, nil
	}
	var entities []types.NamedEntity
	if err := json.Unmarshal([]byte(raw), &entities); err != nil {
		return nil, err
	}
	return entities, nil
}
