package autocomplete

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/iserafeim/heurekka-sub002/internal/common/database"
	"github.com/iserafeim/heurekka-sub002/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTransport struct {
	status int
	body   string
	err    error
}

func (t *stubTransport) RoundTrip(_ *http.Request) (*http.Response, error) {
	if t.err != nil {
		return nil, t.err
	}
	return &http.Response{
		StatusCode: t.status,
		Body:       io.NopCloser(strings.NewReader(t.body)),
		Header:     http.Header{"X-Elastic-Product": []string{"Elasticsearch"}, "Content-Type": []string{"application/json"}},
	}, nil
}

func newSuggester(t *testing.T, rt http.RoundTripper) *Suggester {
	t.Helper()
	es, err := database.NewElasticsearchWithTransport(rt)
	require.NoError(t, err)
	return New(es, "property-suggest", logger.NewTestLogger(t))
}

func TestSuggest_ReturnsLocationsFirst(t *testing.T) {
	body := `{"hits":{"hits":[
		{"_source":{"title":"Apartamento Los Robles","neighborhood":"Los Robles","city":"Tegucigalpa"}},
		{"_source":{"title":"Casa en Lomas","neighborhood":"Lomas del Guijarro","city":"Tegucigalpa"}}
	]}}`
	s := newSuggester(t, &stubTransport{status: http.StatusOK, body: body})

	out := s.Suggest(context.Background(), "lo", 10)

	require.Len(t, out, 4)
	assert.Equal(t, "Los Robles, Tegucigalpa", out[0].Text)
	assert.Equal(t, "location", out[0].Category)
	assert.Equal(t, "Lomas del Guijarro, Tegucigalpa", out[1].Text)
	assert.Equal(t, "property", out[2].Category)
}

func TestSuggest_DeduplicatesByText(t *testing.T) {
	body := `{"hits":{"hits":[
		{"_source":{"neighborhood":"Los Robles","city":"Tegucigalpa"}},
		{"_source":{"neighborhood":"los robles","city":"Tegucigalpa"}}
	]}}`
	s := newSuggester(t, &stubTransport{status: http.StatusOK, body: body})

	out := s.Suggest(context.Background(), "los", 10)

	require.Len(t, out, 1)
	assert.Equal(t, "Los Robles, Tegucigalpa", out[0].Text)
}

func TestSuggest_RespectsLimit(t *testing.T) {
	body := `{"hits":{"hits":[
		{"_source":{"neighborhood":"A","city":"X"}},
		{"_source":{"neighborhood":"B","city":"X"}},
		{"_source":{"neighborhood":"C","city":"X"}}
	]}}`
	s := newSuggester(t, &stubTransport{status: http.StatusOK, body: body})

	out := s.Suggest(context.Background(), "x", 2)
	assert.Len(t, out, 2)
}

func TestSuggest_TransportErrorDegradesToEmpty(t *testing.T) {
	s := newSuggester(t, &stubTransport{err: errors.New("connection refused")})

	out := s.Suggest(context.Background(), "lo", 10)

	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestSuggest_IndexErrorDegradesToEmpty(t *testing.T) {
	s := newSuggester(t, &stubTransport{status: http.StatusServiceUnavailable, body: `{"error":"unavailable"}`})

	out := s.Suggest(context.Background(), "lo", 10)
	assert.Empty(t, out)
}

func TestSuggest_MalformedBodyDegradesToEmpty(t *testing.T) {
	s := newSuggester(t, &stubTransport{status: http.StatusOK, body: `{not json`})

	out := s.Suggest(context.Background(), "lo", 10)
	assert.Empty(t, out)
}
