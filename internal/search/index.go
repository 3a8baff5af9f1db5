package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
)

// IndexName is the single search index the loader upserts into.
const IndexName = "movies"

// indexBody is the strict mapping ported from the schema bootstrap tool:
// one shard, zero replicas, a custom ru_en analyzer (standard tokenizer,
// lowercase, English/Russian stop-word + stemmer filters, English
// possessive stemmer) applied to every free-text field, and three nested
// participant fields with their own strict sub-mapping.
const indexBody = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "refresh_interval": "1s",
    "analysis": {
      "filter": {
        "english_stop": {"type": "stop", "stopwords": "_english_"},
        "english_stemmer": {"type": "stemmer", "language": "english"},
        "english_possessive_stemmer": {"type": "stemmer", "language": "possessive_english"},
        "russian_stop": {"type": "stop", "stopwords": "_russian_"},
        "russian_stemmer": {"type": "stemmer", "language": "russian"}
      },
      "analyzer": {
        "ru_en": {
          "tokenizer": "standard",
          "filter": [
            "lowercase",
            "english_stop",
            "english_stemmer",
            "english_possessive_stemmer",
            "russian_stop",
            "russian_stemmer"
          ]
        }
      }
    }
  },
  "mappings": {
    "dynamic": "strict",
    "properties": {
      "id": {"type": "keyword"},
      "imdb_rating": {"type": "float"},
      "genres": {"type": "keyword"},
      "title": {
        "type": "text",
        "analyzer": "ru_en",
        "fields": {"raw": {"type": "keyword"}}
      },
      "description": {"type": "text", "analyzer": "ru_en"},
      "directors_names": {"type": "text", "analyzer": "ru_en"},
      "actors_names": {"type": "text", "analyzer": "ru_en"},
      "writers_names": {"type": "text", "analyzer": "ru_en"},
      "directors": {
        "type": "nested",
        "dynamic": "strict",
        "properties": {
          "id": {"type": "keyword"},
          "name": {"type": "text", "analyzer": "ru_en"}
        }
      },
      "actors": {
        "type": "nested",
        "dynamic": "strict",
        "properties": {
          "id": {"type": "keyword"},
          "name": {"type": "text", "analyzer": "ru_en"}
        }
      },
      "writers": {
        "type": "nested",
        "dynamic": "strict",
        "properties": {
          "id": {"type": "keyword"},
          "name": {"type": "text", "analyzer": "ru_en"}
        }
      }
    }
  }
}`

// CreateIndex bootstraps the movies index. If it already exists, it returns
// an error unless force is set, in which case the existing index is deleted
// and recreated. This is administrative tooling invoked by the "index
// bootstrap" CLI subcommand, never by the supervisor loop.
func CreateIndex(ctx context.Context, client *elasticsearch.Client, force bool) error {
	existsReq := esapi.IndicesExistsRequest{Index: []string{IndexName}}
	existsRes, err := existsReq.Do(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer existsRes.Body.Close()

	exists := existsRes.StatusCode == 200
	if exists {
		if !force {
			return fmt.Errorf("index %q already exists (use --force to recreate)", IndexName)
		}
		delReq := esapi.IndicesDeleteRequest{Index: []string{IndexName}}
		delRes, err := delReq.Do(ctx, client)
		if err != nil {
			return fmt.Errorf("failed to delete existing index: %w", err)
		}
		defer delRes.Body.Close()
		if delRes.IsError() {
			return fmt.Errorf("failed to delete existing index: %s", delRes.Status())
		}
	}

	createReq := esapi.IndicesCreateRequest{
		Index: IndexName,
		Body:  strings.NewReader(indexBody),
	}
	createRes, err := createReq.Do(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.Status())
	}

	return nil
}
