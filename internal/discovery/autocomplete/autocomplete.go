// Package autocomplete serves location and title suggestions from the
// search index. Autocomplete is decorative: any index failure degrades
// to an empty suggestion list rather than an error.
package autocomplete

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iserafeim/heurekka-sub002/internal/common/database"
	"github.com/iserafeim/heurekka-sub002/internal/common/logger"
	"github.com/iserafeim/heurekka-sub002/internal/models"
)

const defaultSuggestionLimit = 10

// Suggester queries the property index for prefix matches.
type Suggester struct {
	es    *database.ElasticsearchClient
	index string
	log   logger.Logger
}

func New(es *database.ElasticsearchClient, index string, log logger.Logger) *Suggester {
	return &Suggester{
		es:    es,
		index: index,
		log:   log.WithFields(map[string]interface{}{"component": "autocomplete"}),
	}
}

type esHit struct {
	Source struct {
		Title        string `json:"title"`
		Neighborhood string `json:"neighborhood"`
		City         string `json:"city"`
	} `json:"_source"`
}

type esResponse struct {
	Hits struct {
		Hits []esHit `json:"hits"`
	} `json:"hits"`
}

// Suggest returns up to limit suggestions for the typed prefix.
// Neighborhoods and cities come first, then matching titles; duplicates
// are collapsed case-insensitively by text.
func (s *Suggester) Suggest(ctx context.Context, prefix string, limit int) []models.Suggestion {
	if s.es == nil {
		return []models.Suggestion{}
	}
	if limit <= 0 || limit > 25 {
		limit = defaultSuggestionLimit
	}

	query := map[string]interface{}{
		"size": limit * 2,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  prefix,
				"type":   "bool_prefix",
				"fields": []string{"neighborhood^3", "city^2", "title"},
			},
		},
	}

	body, err := json.Marshal(query)
	if err != nil {
		s.log.WithError(err).Warn("encode suggest query", nil)
		return []models.Suggestion{}
	}

	res, err := s.es.Client.Search(
		s.es.Client.Search.WithContext(ctx),
		s.es.Client.Search.WithIndex(s.index),
		s.es.Client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		s.log.WithError(err).Warn("suggest query failed", nil)
		return []models.Suggestion{}
	}
	defer res.Body.Close()

	if res.IsError() {
		s.log.Warn("suggest query rejected", map[string]interface{}{"status": res.Status()})
		return []models.Suggestion{}
	}

	var parsed esResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		s.log.WithError(err).Warn("decode suggest response", nil)
		return []models.Suggestion{}
	}

	return collect(parsed.Hits.Hits, limit)
}

func collect(hits []esHit, limit int) []models.Suggestion {
	seen := make(map[string]bool)
	out := []models.Suggestion{}

	add := func(text, category string) {
		if text == "" || len(out) >= limit {
			return
		}
		key := category + "|" + strings.ToLower(text)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, models.Suggestion{Text: text, Category: category})
	}

	for _, hit := range hits {
		if hit.Source.Neighborhood != "" {
			text := hit.Source.Neighborhood
			if hit.Source.City != "" {
				text = fmt.Sprintf("%s, %s", hit.Source.Neighborhood, hit.Source.City)
			}
			add(text, "location")
		} else {
			add(hit.Source.City, "location")
		}
	}
	for _, hit := range hits {
		add(hit.Source.Title, "property")
	}
	return out
}

