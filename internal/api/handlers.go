package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ecopulse/ecopulse/internal/advice"
	"github.com/ecopulse/ecopulse/internal/imagegen"
	"github.com/ecopulse/ecopulse/internal/models"
	"github.com/ecopulse/ecopulse/internal/scores"
	"github.com/ecopulse/ecopulse/internal/store"
)

const (
	msgCityNotFound = "City not found"
	msgNoDataToday  = "No data for today"
	msgNoScore      = "No score for this city and year"
	msgNoPayload    = "No archived payload for this ingest run"
	msgInternal     = "Internal server error"
)

// cityParam returns the decoded {city} path segment.
func cityParam(r *http.Request) string {
	raw := chi.URLParam(r, "city")
	if city, err := url.PathUnescape(raw); err == nil {
		return city
	}
	return raw
}

func intParam(s, name string) (int, error) {
	if s == "" {
		return 0, errors.New(name + " is required")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return n, nil
}

// notFound maps lookup misses to 404 and reports whether it handled err.
func notFound(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, scores.ErrCityNotFound):
		writeMessage(w, http.StatusNotFound, msgCityNotFound)
	case errors.Is(err, scores.ErrNoDataForDate):
		writeMessage(w, http.StatusNotFound, msgNoDataToday)
	case errors.Is(err, scores.ErrNoScore):
		writeMessage(w, http.StatusNotFound, msgNoScore)
	default:
		return false
	}
	return true
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	cities, err := s.store.Cities(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if cities == nil {
		cities = []models.City{}
	}
	writeJSON(w, http.StatusOK, cities)
}

func (s *Server) handleYearlyScores(w http.ResponseWriter, r *http.Request) {
	data, err := s.scores.YearlyAverages(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleYearScores(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(chi.URLParam(r, "year"), "year")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := s.scores.ScoresForYear(r.Context(), year)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleDailyToday(w http.ResponseWriter, r *http.Request) {
	data, err := s.scores.DailyToday(r.Context(), cityParam(r))
	if err != nil {
		if !notFound(w, err) {
			s.writeError(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, data)
}

type rankingsResponse struct {
	Year     int              `json:"year"`
	Type     string           `json:"type"`
	Rankings []scores.Ranking `json:"rankings"`
}

func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(chi.URLParam(r, "year"), "year")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	rankings, err := s.scores.Rankings(r.Context(), year)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	typ := scores.TypeMonthly
	if year >= models.ForecastHorizon {
		typ = scores.TypeForecast
	}
	writeJSON(w, http.StatusOK, rankingsResponse{Year: year, Type: typ, Rankings: rankings})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := intParam(q.Get("year"), "year")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	month, err := intParam(q.Get("month"), "month")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	cmp, err := s.scores.Compare(r.Context(), cityParam(r), year, month)
	if errors.Is(err, scores.ErrInvalidMonth) {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		if !notFound(w, err) {
			s.writeError(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := intParam(q.Get("year"), "year")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	cs, err := s.scores.CityScore(r.Context(), cityParam(r), year)
	if err != nil {
		if !notFound(w, err) {
			s.writeError(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, s.advisor.Analyze(r.Context(), cs.City, cs.Score, advice.ParseLang(q.Get("lang"))))
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r.URL.Query().Get("year"), "year")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	city := cityParam(r)
	key := city + "/" + strconv.Itoa(year)
	if png, ok := s.cards.Get(key); ok {
		writePNG(w, png)
		return
	}

	data := imagegen.CardData{City: city, Year: year, Label: "yearly average"}
	if year >= models.ForecastHorizon {
		data.Label = "forecast"
	}
	cs, err := s.scores.CityScore(r.Context(), city, year)
	switch {
	case err == nil:
		data.Score = &cs.Score
	case errors.Is(err, scores.ErrNoScore):
	default:
		if !notFound(w, err) {
			s.writeError(w, r, err)
		}
		return
	}

	png, err := imagegen.RenderCard(data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.cards.Set(key, png)
	writePNG(w, png)
}

func writePNG(w http.ResponseWriter, png []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=600")
	w.Write(png)
}

func (s *Server) handleIngestRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeMessage(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 200)
	}

	runs, err := s.store.RecentIngestRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []store.IngestRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleIngestPayload serves the feed bytes archived by one ingest run.
func (s *Server) handleIngestPayload(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "id must be an integer")
		return
	}
	payload, err := s.store.FeedPayloadContent(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if payload == nil {
		writeMessage(w, http.StatusNotFound, msgNoPayload)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Write(payload)
}

type HealthStatus struct {
	Status        string             `json:"status"`
	SchemaVersion int                `json:"schema_version"`
	Counts        store.TableCounts  `json:"counts"`
	EmptyTables   []string           `json:"empty_tables,omitempty"`
	LastBatch     []store.IngestRun  `json:"last_batch,omitempty"`
	Archive       store.PayloadStats `json:"archive"`
	Errors        []string           `json:"errors,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.store.Ping(ctx); err != nil {
		s.healthFailed(w, r, err)
		return
	}

	counts, err := s.store.Counts(ctx)
	if err != nil {
		s.healthFailed(w, r, err)
		return
	}
	version, err := s.store.MigrationVersion()
	if err != nil {
		s.healthFailed(w, r, err)
		return
	}
	health := HealthStatus{
		Status:        "ok",
		SchemaVersion: version,
		Counts:        counts,
		EmptyTables:   counts.EmptyTables(),
	}

	batch, err := s.store.LastIngestBatch(ctx)
	if err != nil {
		s.logger.Error("health: load last ingest batch", "error", err)
		health.Errors = append(health.Errors, "ingest runs unavailable")
	}
	health.LastBatch = batch
	if health.Archive, err = s.store.FeedPayloadStats(ctx); err != nil {
		s.logger.Error("health: load feed archive stats", "error", err)
		health.Errors = append(health.Errors, "feed archive unavailable")
	}
	for _, run := range batch {
		if !run.Success {
			msg := run.Feed + " feed failed"
			if run.ErrorMessage != nil {
				msg += ": " + *run.ErrorMessage
			}
			health.Errors = append(health.Errors, msg)
		}
	}

	if len(health.EmptyTables) > 0 || len(health.Errors) > 0 {
		health.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) healthFailed(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("health check failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "error": msgInternal})
}
