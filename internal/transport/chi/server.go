// Package chi exposes the search service over HTTP.
package chi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/auth"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
	logpkg "github.com/kailas-cloud/hybridex/internal/logger"
	"github.com/kailas-cloud/hybridex/internal/metrics"
	healthuc "github.com/kailas-cloud/hybridex/internal/usecase/health"
)

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes = 64 << 20

// Services are the use cases behind the HTTP API.
type Services struct {
	Search   Searcher
	Index    Indexer
	Catalog  Catalog
	Curation Curator
	Access   Access
	Health   HealthChecker
}

// Server serves the HTTP API.
type Server struct {
	search        Searcher
	index         Indexer
	catalog       Catalog
	curation      Curator
	access        Access
	health        HealthChecker
	logger        *zap.Logger
	corsOrigins   []string
	maxBodyBytes  int64
	defaultLimit  int
	maxLimit      int
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(svc Services, logger *zap.Logger) *Server {
	return &Server{
		search:        svc.Search,
		index:         svc.Index,
		catalog:       svc.Catalog,
		curation:      svc.Curation,
		access:        svc.Access,
		health:        svc.Health,
		logger:        logger,
		maxBodyBytes:  DefaultMaxBodyBytes,
		errorHandlers: defaultErrorHandlers(),
	}
}

// WithCORS allows cross-origin requests from origins. Empty disables CORS handling.
func (s *Server) WithCORS(origins []string) *Server {
	s.corsOrigins = origins
	return s
}

// WithMaxBodyBytes overrides the request body cap.
func (s *Server) WithMaxBodyBytes(n int64) *Server {
	if n > 0 {
		s.maxBodyBytes = n
	}
	return s
}

// WithSearchLimits sets the limit used when a search names none and the largest limit honored.
func (s *Server) WithSearchLimits(defaultLimit, maxLimit int) *Server {
	s.defaultLimit = defaultLimit
	s.maxLimit = maxLimit
	return s
}

// Handler builds the router. /health and /metrics bypass authorization.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEvent(s.logger))
	r.Use(metrics.Middleware())
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.corsOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", headerAPIKey, "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Get("/health", s.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireLevel(auth.LevelUser))
		r.Post("/search", s.Search)
		r.Post("/documents", s.IndexDocuments)
		r.Put("/documents", s.UpdateDocuments)
		r.Delete("/documents", s.DeleteDocuments)
		r.Get("/documents", s.ListDocuments)
		r.Get("/documents/count", s.CountDocuments)
		r.Get("/tags", s.GetTags)
		r.Get("/curations", s.ListCurations)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireLevel(auth.LevelAdmin))
		r.Put("/curations", s.Curate)
		r.Get("/admin/allowlists", s.GetAllowLists)
		r.Put("/admin/allowlists", s.ReplaceAllowLists)
	})

	return r
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Limit <= 0 && s.defaultLimit > 0 {
		req.Limit = s.defaultLimit
	}
	if s.maxLimit > 0 && req.Limit > s.maxLimit {
		req.Limit = s.maxLimit
	}
	searchReq, err := searchRequestFromDTO(req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	matches, err := s.search.Search(r.Context(), searchReq)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := SearchResponse{Items: make([]MatchResponse, len(matches)), Total: len(matches)}
	for i, m := range matches {
		resp.Items[i] = matchToResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// IndexDocuments handles POST /documents.
func (s *Server) IndexDocuments(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if !s.decode(w, r, &req) {
		return
	}
	docs, err := documentsFromRequest(req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	results, err := s.index.Index(r.Context(), docs)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batchToResponse(results))
}

// UpdateDocuments handles PUT /documents.
func (s *Server) UpdateDocuments(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if !s.decode(w, r, &req) {
		return
	}
	docs, err := documentsFromRequest(req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	results, err := s.index.Update(r.Context(), docs)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batchToResponse(results))
}

// DeleteDocuments handles DELETE /documents.
func (s *Server) DeleteDocuments(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if !s.decode(w, r, &req) {
		return
	}
	n, err := s.index.Delete(r.Context(), req.IDs, req.Filter)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: n})
}

// ListDocuments handles GET /documents?offset=&limit=&filter=.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	offset, limit, f, err := windowParams(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	docs, err := s.catalog.List(offset, limit, f)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	resp := ListResponse{Items: make([]DocumentResponse, len(docs)), Offset: offset, Limit: limit}
	for i, d := range docs {
		resp.Items[i] = documentToResponse(d)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CountDocuments handles GET /documents/count?offset=&limit=&filter=.
func (s *Server) CountDocuments(w http.ResponseWriter, r *http.Request) {
	offset, limit, f, err := windowParams(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	n, err := s.catalog.Count(offset, limit, f)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// GetTags handles GET /tags.
func (s *Server) GetTags(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.GetTags())
}

// ListCurations handles GET /curations.
func (s *Server) ListCurations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rulesToResponse(s.curation.Rules()))
}

// Curate handles PUT /curations. The body maps query text to filter lists.
func (s *Server) Curate(w http.ResponseWriter, r *http.Request) {
	var entries map[string][]map[string]value.Value
	if !s.decode(w, r, &entries) {
		return
	}
	if err := s.curation.Curate(r.Context(), entries); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rulesToResponse(s.curation.Rules()))
}

// GetAllowLists handles GET /admin/allowlists. Api keys are reported as a count only.
func (s *Server) GetAllowLists(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.access.Summary())
}

// ReplaceAllowLists handles PUT /admin/allowlists.
func (s *Server) ReplaceAllowLists(w http.ResponseWriter, r *http.Request) {
	var lists auth.AllowLists
	if !s.decode(w, r, &lists) {
		return
	}
	if err := s.access.Replace(r.Context(), lists); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.access.Summary())
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{Status: string(report.Status), Checks: checks})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return false
	}
	return true
}

// windowParams reads offset, limit and a JSON encoded filter from the query string.
func windowParams(r *http.Request) (offset, limit int, f value.Value, err error) {
	q := r.URL.Query()
	if offset, err = intParam(q.Get("offset")); err != nil {
		return 0, 0, value.Value{}, fmt.Errorf("%w: offset: %w", domain.ErrInvalidQuery, err)
	}
	if limit, err = intParam(q.Get("limit")); err != nil {
		return 0, 0, value.Value{}, fmt.Errorf("%w: limit: %w", domain.ErrInvalidQuery, err)
	}
	if raw := q.Get("filter"); raw != "" {
		if err = json.Unmarshal([]byte(raw), &f); err != nil {
			return 0, 0, value.Value{}, fmt.Errorf("%w: filter: %w", domain.ErrInvalidQuery, err)
		}
	}
	return offset, limit, f, nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", raw)
	}
	return n, nil
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContext(r.Context())
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			logger.Warn("request failed", zap.String("reason", msg), zap.Error(err))
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}
