// Package types defines the data shapes shared between the extractor,
// transformer, and loader stages of the catalog-to-search replication
// pipeline: the raw row produced by the relational source, the denormalized
// document consumed by the search index, and the page/checkpoint wrappers
// that carry them between stages.
package types

import (
	"time"

	"github.com/google/uuid"
)

// NamedEntity is the raw {id, name} shape aggregated by the extraction
// query for genres and for each participant role. ID is a pointer because
// a LEFT JOIN with no matching row (or a null aggregate member) produces a
// null id, which the transformer must drop rather than coerce to "".
type NamedEntity struct {
	ID   *string `json:"id"`
	Name *string `json:"name"`
}

// Film is one raw row yielded by the extractor: a film joined with its
// genre list and its three role-partitioned participant lists.
type Film struct {
	ID          uuid.UUID
	Title       *string
	Description *string
	IMDbRating  *float64
	Modified    time.Time

	Genres []NamedEntity

	Directors []NamedEntity
	Actors    []NamedEntity
	Writers   []NamedEntity

	DirectorsNames []string
	ActorsNames    []string
	WritersNames   []string
}

// Page is a non-empty, (modified, id)-ascending ordered batch of films
// extracted in a single query execution.
type Page []Film

// MaxModified returns the greatest modified timestamp in the page. Page
// ordering guarantees this is the timestamp of the last element.
func (p Page) MaxModified() time.Time {
	if len(p) == 0 {
		return time.Time{}
	}
	return p[len(p)-1].Modified
}

// DocPerson is a participant entry in the target document: the nested
// {id, name} shape indexed under directors/actors/writers.
type DocPerson struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FilmDocument is the denormalized record upserted into the "movies"
// search index, keyed by ID.
type FilmDocument struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	IMDbRating  float64 `json:"imdb_rating"`

	Genres []string `json:"genres"`

	Directors []DocPerson `json:"directors"`
	Actors    []DocPerson `json:"actors"`
	Writers   []DocPerson `json:"writers"`

	DirectorsNames []string `json:"directors_names"`
	ActorsNames    []string `json:"actors_names"`
	WritersNames   []string `json:"writers_names"`
}

// MinCheckpoint is the minimum representable UTC timestamp, the checkpoint
// value a fresh or corrupted checkpoint store resets to.
func MinCheckpoint() time.Time {
	return time.Time{}.UTC()
}
