package database

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBuildFilmDecodesAggregates(t *testing.T) {
	id := uuid.New()
	modified := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	title := "Stalker"

	r := rawRow{
		id:             id.String(),
		title:          &title,
		modified:       modified,
		genresJSON:     `[{"id":"g1","name":"Sci-Fi"},{"id":null,"name":"Ghost"}]`,
		directorsJSON:  `[{"id":"p1","name":"Tarkovsky"}]`,
		actorsJSON:     `[]`,
		writersJSON:    `[]`,
		directorsNames: []string{"Tarkovsky"},
	}

	film, err := buildFilm(r)
	if err != nil {
		t.Fatalf("buildFilm returned error: %v", err)
	}

	if film.ID != id {
		t.Fatalf("id = %v, want %v", film.ID, id)
	}
	if film.Modified != modified {
		t.Fatalf("modified = %v, want %v", film.Modified, modified)
	}
	if film.Title == nil || *film.Title != "Stalker" {
		t.Fatalf("title = %v, want Stalker", film.Title)
	}
	if len(film.Genres) != 2 {
		t.Fatalf("genres = %+v, want 2 entries", film.Genres)
	}
	if film.Genres[1].ID != nil {
		t.Fatalf("expected second genre id to be nil, got %v", *film.Genres[1].ID)
	}
	if len(film.Directors) != 1 || *film.Directors[0].Name != "Tarkovsky" {
		t.Fatalf("directors = %+v", film.Directors)
	}
}

func TestBuildFilmRejectsInvalidID(t *testing.T) {
	r := rawRow{id: "not-a-uuid", genresJSON: "[]", directorsJSON: "[]", actorsJSON: "[]", writersJSON: "[]"}
	if _, err := buildFilm(r); err == nil {
		t.Fatal("expected an error for an invalid id")
	}
}

func TestBuildFilmRejectsMalformedAggregate(t *testing.T) {
	id := uuid.New()
	r := rawRow{id: id.String(), genresJSON: "not json", directorsJSON: "[]", actorsJSON: "[]", writersJSON: "[]"}
	if _, err := buildFilm(r); err == nil {
		t.Fatal("expected an error for a malformed genres aggregate")
	}
}

func TestDecodeEntitiesEmptyString(t *testing.T) {
	entities, err := decodeEntities("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entities != nil {
		t.Fatalf("expected nil entities for empty input, got %+v", entities)
	}
}
