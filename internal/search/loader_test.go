package search

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v7"

	"github.com/elchinoo/moviesync/internal/config"
	"github.com/elchinoo/moviesync/internal/logging"
	"github.com/elchinoo/moviesync/internal/resilience"
	"github.com/elchinoo/moviesync/pkg/types"
)

// fakeTransport answers every bulk request with a fixed NDJSON response
// body, letting the loader's success/failure wiring be exercised without a
// live Elasticsearch cluster.
type fakeTransport struct {
	body string
}

func (t *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader(t.body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}, nil
}

func newTestLoader(t *testing.T, body string) *Loader {
	t.Helper()
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://localhost:9200"},
		Transport: &fakeTransport{body: body},
	})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	cfg := &config.Settings{BackoffMaxAttempts: 1, BackoffMaxElapsed: 0}
	breakers := resilience.NewBreakers(logging.NewNop())
	return NewLoader(client, cfg, breakers, logging.NewNop())
}

// erroringTransport simulates the bulk request never reaching the cluster:
// every RoundTrip fails at the transport level.
type erroringTransport struct{}

func (erroringTransport) RoundTrip(_ *http.Request) (*http.Response, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestLoadTransportFailureRetriesAndPropagates(t *testing.T) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://localhost:9200"},
		Transport: erroringTransport{},
	})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	cfg := &config.Settings{BackoffMaxAttempts: 2, BackoffMaxElapsed: 0}
	breakers := resilience.NewBreakers(logging.NewNop())
	l := NewLoader(client, cfg, breakers, logging.NewNop())

	docs := []types.FilmDocument{{ID: "a"}, {ID: "b"}}
	succeeded, failed, err := l.Load(context.Background(), docs)

	if err == nil {
		t.Fatal("expected a connection-class error, got nil")
	}
	if succeeded != 0 {
		t.Fatalf("succeeded = %d, want 0", succeeded)
	}
	if failed != nil {
		t.Fatalf("failed = %+v, want nil: a transport failure is not a per-document failure", failed)
	}
}

func TestLoadAllSucceed(t *testing.T) {
	body := `{"took":1,"errors":false,"items":[{"index":{"_id":"a","status":200}},{"index":{"_id":"b","status":200}}]}`
	l := newTestLoader(t, body)

	docs := []types.FilmDocument{{ID: "a"}, {ID: "b"}}
	succeeded, failed, err := l.Load(context.Background(), docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if succeeded != 2 {
		t.Fatalf("succeeded = %d, want 2", succeeded)
	}
	if len(failed) != 0 {
		t.Fatalf("failed = %+v, want none", failed)
	}
}

func TestLoadPartialFailureDoesNotAbort(t *testing.T) {
	body := `{"took":1,"errors":true,"items":[` +
		`{"index":{"_id":"a","status":200}},` +
		`{"index":{"_id":"b","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad field"}}}` +
		`]}`
	l := newTestLoader(t, body)

	docs := []types.FilmDocument{{ID: "a"}, {ID: "b"}}
	succeeded, failed, err := l.Load(context.Background(), docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want 1", succeeded)
	}
	if len(failed) != 1 || failed[0].ID != "b" {
		t.Fatalf("failed = %+v, want [{b ...}]", failed)
	}
}

func TestLoadEmptyBatchIsNoop(t *testing.T) {
	l := newTestLoader(t, `{}`)
	succeeded, failed, err := l.Load(context.Background(), nil)
	if err != nil || succeeded != 0 || failed != nil {
		t.Fatalf("expected a no-op for an empty batch, got (%d, %v, %v)", succeeded, failed, err)
	}
}
