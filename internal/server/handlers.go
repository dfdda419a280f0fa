package server

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/iserafeim/heurekka-sub002/internal/common/errors"
	"github.com/iserafeim/heurekka-sub002/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/xeipuuv/gojsonschema"
)

// searchRequestSchema guards the search body before it reaches the
// orchestrator, so type errors read as validation failures instead of
// decode errors.
const searchRequestSchema = `{
	"type": "object",
	"properties": {
		"location": {"type": "string", "maxLength": 200},
		"coordinates": {
			"type": "object",
			"properties": {
				"lat": {"type": "number"},
				"lng": {"type": "number"}
			},
			"required": ["lat", "lng"]
		},
		"boundingBox": {
			"type": "object",
			"properties": {
				"north": {"type": "number"},
				"south": {"type": "number"},
				"east": {"type": "number"},
				"west": {"type": "number"}
			},
			"required": ["north", "south", "east", "west"]
		},
		"radiusKm": {"type": "number"},
		"priceMin": {"type": "number", "minimum": 0},
		"priceMax": {"type": "number", "minimum": 0},
		"bedrooms": {"type": "array", "items": {"type": "integer", "minimum": 0}},
		"propertyTypes": {"type": "array", "items": {"type": "string"}},
		"amenities": {"type": "array", "items": {"type": "string"}},
		"sort": {"type": "string"},
		"cursor": {"type": "string"},
		"limit": {"type": "integer"}
	},
	"additionalProperties": false
}`

var searchSchema = gojsonschema.NewStringLoader(searchRequestSchema)

// maxBodyBytes caps request bodies; search filters are small.
const maxBodyBytes = 64 << 10

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// callerFromRequest resolves the viewer identity from the headers set by
// the auth gateway. An absent or unconfirmed identity is anonymous.
func callerFromRequest(r *http.Request) models.CallerContext {
	userID := r.Header.Get("X-User-Id")
	authed := strings.EqualFold(r.Header.Get("X-Authenticated"), "true")
	return models.CallerContext{
		UserID:          userID,
		IsAuthenticated: authed && userID != "",
	}
}

func (s *Server) respond(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		s.log.WithError(err).Warn("encode response", nil)
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	out := &apiError{Code: "INTERNAL", Message: "Internal error"}

	switch errors.CodeOf(err) {
	case errors.ErrCodeValidationFailed:
		status = http.StatusBadRequest
	case errors.ErrCodePropertyNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeSearchUnavailable:
		status = http.StatusServiceUnavailable
	}

	var se *errors.ServiceError
	if stderrors.As(err, &se) {
		out.Code = string(se.Code)
		out.Message = se.Message
		// Upstream failure detail stays server-side.
		if se.Code == errors.ErrCodeValidationFailed || se.Code == errors.ErrCodePropertyNotFound {
			out.Details = se.Details
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: out})
}

func (s *Server) badRequest(w http.ResponseWriter, details string) {
	s.respondError(w, errors.NewValidationError(details))
}

// handleHealth reports component reachability without failing the
// endpoint: a degraded dependency shows as false, the response stays 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	out := map[string]interface{}{
		"status": "ok",
		"cache":  s.discovery.CacheHealthy(r.Context()),
	}
	if s.postgresProbe != nil {
		out["postgres"] = s.postgresProbe(r.Context()) == nil
	}
	if s.searchProbe != nil {
		out["elasticsearch"] = s.searchProbe() == nil
	}
	s.respond(w, http.StatusOK, out)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.badRequest(w, "unreadable request body")
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	validation, err := gojsonschema.Validate(searchSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		s.badRequest(w, "request body is not valid JSON")
		return
	}
	if !validation.Valid() {
		details := make([]string, 0, len(validation.Errors()))
		for _, desc := range validation.Errors() {
			details = append(details, desc.String())
		}
		s.badRequest(w, strings.Join(details, "; "))
		return
	}

	var q models.SearchQuery
	if err := json.Unmarshal(body, &q); err != nil {
		s.badRequest(w, "malformed search query")
		return
	}

	result, err := s.discovery.Search(r.Context(), q, callerFromRequest(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, result)
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.discovery.GetByID(r.Context(), id, callerFromRequest(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, rec)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := s.discovery.GetSimilar(r.Context(), id, limit, callerFromRequest(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, out)
}

func (s *Server) handleBounds(w http.ResponseWriter, r *http.Request) {
	box, err := boxFromQuery(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	q := filtersFromQuery(r)

	out, svcErr := s.discovery.GetByBounds(r.Context(), box, q, callerFromRequest(r))
	if svcErr != nil {
		s.respondError(w, svcErr)
		return
	}
	s.respond(w, http.StatusOK, out)
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	box, err := boxFromQuery(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	zoom, err := strconv.ParseFloat(r.URL.Query().Get("zoom"), 64)
	if err != nil {
		s.badRequest(w, "zoom must be a number")
		return
	}
	q := filtersFromQuery(r)

	points, svcErr := s.discovery.GetClusters(r.Context(), box, zoom, q)
	if svcErr != nil {
		s.respondError(w, svcErr)
		return
	}
	s.respond(w, http.StatusOK, points)
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	lat, latErr := strconv.ParseFloat(params.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(params.Get("lng"), 64)
	if latErr != nil || lngErr != nil {
		s.badRequest(w, "lat and lng are required numbers")
		return
	}
	radius, err := strconv.ParseFloat(params.Get("radiusKm"), 64)
	if err != nil {
		s.badRequest(w, "radiusKm must be a number")
		return
	}
	q := filtersFromQuery(r)

	out, svcErr := s.discovery.SearchNearby(r.Context(),
		models.Coordinates{Lat: lat, Lng: lng}, radius, q, callerFromRequest(r))
	if svcErr != nil {
		s.respondError(w, svcErr)
		return
	}
	s.respond(w, http.StatusOK, out)
}

func (s *Server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	limit, _ := strconv.Atoi(params.Get("limit"))
	out := s.discovery.Autocomplete(r.Context(), params.Get("q"), limit)
	s.respond(w, http.StatusOK, out)
}

func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	var box *models.BoundingBox
	if r.URL.Query().Get("north") != "" {
		b, err := boxFromQuery(r)
		if err != nil {
			s.badRequest(w, err.Error())
			return
		}
		box = &b
	}
	q := filtersFromQuery(r)

	out, err := s.discovery.GetSearchFacets(r.Context(), box, q)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, out)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	isFavorite, err := s.discovery.ToggleFavorite(r.Context(), id, callerFromRequest(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]bool{"isFavorite": isFavorite})
}

func (s *Server) handleTrackView(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.trackingEvent(r)
	if !ok {
		s.writeTrackingResult(w, false)
		return
	}
	s.writeTrackingResult(w, s.discovery.TrackView(r.Context(), ev))
}

func (s *Server) handleTrackContact(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.trackingEvent(r)
	if !ok {
		s.writeTrackingResult(w, false)
		return
	}
	s.writeTrackingResult(w, s.discovery.TrackContact(r.Context(), ev))
}

// trackingEvent assembles the event from the URL, headers, and an
// optional body. Tracking endpoints never reject; a bad body just means
// the event is not stored.
func (s *Server) trackingEvent(r *http.Request) (models.TrackingEvent, bool) {
	var ev models.TrackingEvent
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return ev, false
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &ev); err != nil {
			return ev, false
		}
	}
	ev.PropertyID = chi.URLParam(r, "id")
	if caller := callerFromRequest(r); caller.IsAuthenticated {
		ev.UserID = caller.UserID
	}
	return ev, true
}

// writeTrackingResult always answers 200; the success flag alone tells
// the client whether the event was stored.
func (s *Server) writeTrackingResult(w http.ResponseWriter, stored bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(envelope{Success: stored})
}

// boxFromQuery parses the four viewport edges from query parameters.
func boxFromQuery(r *http.Request) (models.BoundingBox, error) {
	params := r.URL.Query()
	var box models.BoundingBox
	for _, edge := range []struct {
		name string
		dest *float64
	}{
		{"north", &box.North},
		{"south", &box.South},
		{"east", &box.East},
		{"west", &box.West},
	} {
		v, err := strconv.ParseFloat(params.Get(edge.name), 64)
		if err != nil {
			return box, errors.NewValidationError(edge.name + " must be a number")
		}
		*edge.dest = v
	}
	return box, nil
}

// filtersFromQuery reads the shared filter set from GET parameters.
func filtersFromQuery(r *http.Request) models.SearchQuery {
	params := r.URL.Query()
	var q models.SearchQuery

	if v, err := strconv.ParseFloat(params.Get("priceMin"), 64); err == nil {
		q.PriceMin = v
	}
	if v, err := strconv.ParseFloat(params.Get("priceMax"), 64); err == nil {
		q.PriceMax = v
	}
	if v, err := strconv.Atoi(params.Get("limit")); err == nil {
		q.Limit = v
	}
	for _, raw := range params["bedrooms"] {
		if v, err := strconv.Atoi(raw); err == nil {
			q.Bedrooms = append(q.Bedrooms, v)
		}
	}
	if types := params.Get("propertyTypes"); types != "" {
		q.PropertyTypes = strings.Split(types, ",")
	}
	if amenities := params.Get("amenities"); amenities != "" {
		q.Amenities = strings.Split(amenities, ",")
	}
	if sort := params.Get("sort"); sort != "" {
		q.Sort = models.SortMode(sort)
	}
	return q
}
