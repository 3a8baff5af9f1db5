package etl

import (
	"testing"

	"github.com/google/uuid"

	"github.com/elchinoo/moviesync/pkg/types"
)

func ptr[T any](v T) *T { return &v }

func TestTransformDefaultsMissingFields(t *testing.T) {
	id := uuid.New()
	f := types.Film{ID: id}

	doc := Transform(f)

	if doc.ID != id.String() {
		t.Fatalf("id = %q, want %q", doc.ID, id.String())
	}
	if doc.Title != "" || doc.Description != "" {
		t.Fatalf("expected empty title/description, got %q/%q", doc.Title, doc.Description)
	}
	if doc.IMDbRating != 0.0 {
		t.Fatalf("expected 0.0 rating, got %v", doc.IMDbRating)
	}
	if doc.Genres != nil || doc.Directors != nil || doc.ActorsNames != nil {
		t.Fatalf("expected nil aggregates for an empty film, got %+v", doc)
	}
}

func TestTransformCarriesPresentFields(t *testing.T) {
	id := uuid.New()
	f := types.Film{
		ID:          id,
		Title:       ptr("Solaris"),
		Description: ptr("A cosmonaut confronts his past"),
		IMDbRating:  ptr(8.1),
	}

	doc := Transform(f)

	if doc.Title != "Solaris" || doc.Description != "A cosmonaut confronts his past" {
		t.Fatalf("unexpected doc: %+v", doc)
	}
	if doc.IMDbRating != 8.1 {
		t.Fatalf("rating = %v, want 8.1", doc.IMDbRating)
	}
}

func TestTransformDropsEntitiesMissingID(t *testing.T) {
	f := types.Film{
		ID: uuid.New(),
		Genres: []types.NamedEntity{
			{ID: ptr("g1"), Name: ptr("Drama")},
			{ID: nil, Name: ptr("Ghost genre")},
		},
		Directors: []types.NamedEntity{
			{ID: ptr("p1"), Name: ptr("Tarkovsky")},
			{ID: nil, Name: ptr("Unknown")},
		},
	}

	doc := Transform(f)

	if len(doc.Genres) != 1 || doc.Genres[0] != "Drama" {
		t.Fatalf("genres = %+v, want [Drama]", doc.Genres)
	}
	if len(doc.Directors) != 1 || doc.Directors[0].Name != "Tarkovsky" {
		t.Fatalf("directors = %+v, want [{p1 Tarkovsky}]", doc.Directors)
	}
}

func TestTransformDropsEmptyAndSentinelNames(t *testing.T) {
	f := types.Film{
		ID:           uuid.New(),
		ActorsNames:  []string{"Banionis", "", "N/A", "Dvorzhetsky"},
	}

	doc := Transform(f)

	want := []string{"Banionis", "Dvorzhetsky"}
	if len(doc.ActorsNames) != len(want) {
		t.Fatalf("actors_names = %v, want %v", doc.ActorsNames, want)
	}
	for i, n := range want {
		if doc.ActorsNames[i] != n {
			t.Fatalf("actors_names[%d] = %q, want %q", i, doc.ActorsNames[i], n)
		}
	}
}

func TestTransformIDIsUUIDString(t *testing.T) {
	id := uuid.New()
	doc := Transform(types.Film{ID: id})
	if _, err := uuid.Parse(doc.ID); err != nil {
		t.Fatalf("doc.ID %q does not parse as uuid: %v", doc.ID, err)
	}
}
