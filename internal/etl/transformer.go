// Package etl contains the transformer and supervisor stages of the
// replication pipeline: the pure record-to-document mapping and the state
// machine that drives checkpoint-extract-transform-load passes.
package etl

import (
	"github.com/elchinoo/moviesync/pkg/types"
)

const sentinelNA = "N/A"

// Transform maps one raw film into exactly one search document. It is pure
// and makes no I/O: nulls are normalized to zero values, participants and
// names lacking a usable id/value are dropped, never substituted.
func Transform(f types.Film) types.FilmDocument {
	doc := types.FilmDocument{
		ID:          f.ID.String(),
		Title:       stringOrEmpty(f.Title),
		Description: stringOrEmpty(f.Description),
		IMDbRating:  floatOrZero(f.IMDbRating),
	}

	doc.Genres = namesOf(f.Genres)
	doc.Directors = personsOf(f.Directors)
	doc.Actors = personsOf(f.Actors)
	doc.Writers = personsOf(f.Writers)

	doc.DirectorsNames = cleanNames(f.DirectorsNames)
	doc.ActorsNames = cleanNames(f.ActorsNames)
	doc.WritersNames = cleanNames(f.WritersNames)

	return doc
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatOrZero(f *float64) float64 {
	if f == nil {
		return 0.0
	}
	return *f
}

// namesOf extracts genre names, dropping entries with a missing id.
func namesOf(entities []types.NamedEntity) []string {
	var names []string
	for _, e := range entities {
		if e.ID == nil {
			continue
		}
		names = append(names, stringOrEmpty(e.Name))
	}
	return names
}

// personsOf coerces a role's participant list into the document shape,
// dropping participants lacking an id.
func personsOf(entities []types.NamedEntity) []types.DocPerson {
	var people []types.DocPerson
	for _, e := range entities {
		if e.ID == nil {
			continue
		}
		people = append(people, types.DocPerson{
			ID:   *e.ID,
			Name: stringOrEmpty(e.Name),
		})
	}
	return people
}

// cleanNames drops empty entries and the literal sentinel "N/A" from a
// name-only participant list.
func cleanNames(names []string) []string {
	var cleaned []string
	for _, n := range names {
		if n == "" || n == sentinelNA {
			continue
		}
		cleaned = append(cleaned, n)
	}
	return cleaned
}
