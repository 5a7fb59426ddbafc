package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tgblog/internal/constants"
	"tgblog/internal/database"
	"tgblog/internal/errors"
	"tgblog/internal/metrics"
	"tgblog/internal/middleware"
	"tgblog/internal/models"
	"tgblog/internal/pipeline"
	"tgblog/internal/tracing"
	"tgblog/internal/validation"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// PostSource is where the preview API reads posts from.
type PostSource interface {
	ListPosts(ctx context.Context, offset, limit int) ([]models.Post, error)
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	CountPosts(ctx context.Context) (int, error)
}

// runReporter is implemented by sources that know which conversion produced them.
type runReporter interface {
	LatestRun(ctx context.Context) (*database.Run, error)
}

type Server struct {
	router    *mux.Router
	logger    *logrus.Logger
	errLogger *errors.Logger
	source    PostSource
	metrics   *metrics.Registry
	cfg       models.ServerConfig
	server    *http.Server
}

// postsPage is the body of GET /api/posts.
type postsPage struct {
	Total  int           `json:"total"`
	Offset int           `json:"offset"`
	Limit  int           `json:"limit"`
	Posts  []models.Post `json:"posts"`
}

func NewServer(cfg models.ServerConfig, source PostSource, staticDir string, reg *metrics.Registry, logger *logrus.Logger) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		logger:    logger,
		errLogger: errors.FromLogrus(logger),
		source:    source,
		metrics:   reg,
		cfg:       cfg,
	}
	s.setupRoutes(staticDir)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(constants.DefaultServerIdleTimeoutSec) * time.Second,
	}
	return s
}

func (s *Server) setupRoutes(staticDir string) {
	opts := middleware.DefaultOptions()
	opts.TrustProxy = s.cfg.TrustProxy
	s.router.Use(middleware.Recover(s.logger), middleware.Observability(s.logger, s.metrics, opts))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/posts", s.handleListPosts()).Methods(http.MethodGet)
	api.HandleFunc("/posts/{id:[0-9]+}", s.handleGetPost()).Methods(http.MethodGet)

	if staticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir))).Methods(http.MethodGet, http.MethodHead)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves until Shutdown is called, then returns http.ErrServerClosed.
func (s *Server) Start() error {
	s.logger.Infof("Starting preview server on port %d", s.cfg.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := s.source.CountPosts(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		body := map[string]any{
			"status": "ok",
			"posts":  count,
		}
		if rr, ok := s.source.(runReporter); ok {
			run, err := rr.LatestRun(r.Context())
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			if run != nil {
				body["run_id"] = run.ID
				body["converted_at"] = run.FinishedAt.UTC().Format(time.RFC3339)
			}
		}
		s.writeJSON(w, r, http.StatusOK, body)
	}
}

// handleMetrics returns current server metrics
func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		s.writeJSON(w, r, http.StatusOK, s.metrics.Snapshot())
	}
}

func (s *Server) handleListPosts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, err := queryInt(r, "offset", 0)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		limit, err := queryInt(r, "limit", constants.DefaultAPIPageSize)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		limit = min(max(limit, 1), constants.MaxAPIPageSize)
		offset = max(offset, 0)

		total, err := s.source.CountPosts(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		posts, err := s.source.ListPosts(r.Context(), offset, limit)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, r, http.StatusOK, postsPage{
			Total:  total,
			Offset: offset,
			Limit:  limit,
			Posts:  posts,
		})
	}
}

func (s *Server) handleGetPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := mux.Vars(r)["id"]
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, r, errors.NewValidationError("id", raw, "post id must be an integer"))
			return
		}

		post, err := s.source.GetPost(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, r, http.StatusOK, post)
	}
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	return validation.ParseQueryInt(r.URL.Query().Get(name), name, def)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		s.logger.WithFields(logrus.Fields{
			constants.LogFieldRequestID: tracing.GetRequestID(r.Context()),
			constants.LogFieldPath:      r.URL.Path,
		}).WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		s.errLogger.LogError(err, "Request failed", logrus.Fields{
			constants.LogFieldRequestID: tracing.GetRequestID(r.Context()),
		})
	}
	s.writeJSON(w, r, status, map[string]string{
		"error": errors.GetUserMessage(err),
		"code":  string(errors.GetCode(err)),
	})
}

// watcherSource serves posts from a watched posts file.
type watcherSource struct {
	watcher *pipeline.PostsWatcher
}

func (ws watcherSource) ListPosts(_ context.Context, offset, limit int) ([]models.Post, error) {
	posts := ws.watcher.Posts()
	if offset >= len(posts) || limit <= 0 {
		return []models.Post{}, nil
	}
	end := min(offset+limit, len(posts))
	return posts[offset:end], nil
}

func (ws watcherSource) GetPost(_ context.Context, id int64) (*models.Post, error) {
	p, ok := ws.watcher.Post(id)
	if !ok {
		return nil, errors.NewNotFoundError("post", strconv.FormatInt(id, 10))
	}
	return &p, nil
}

func (ws watcherSource) CountPosts(context.Context) (int, error) {
	return len(ws.watcher.Posts()), nil
}
