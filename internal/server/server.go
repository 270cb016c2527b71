// Package server exposes completion queries and rebuilds over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phobologic/c3complete/internal/complete"
	"github.com/phobologic/c3complete/internal/index"
	"github.com/phobologic/c3complete/internal/store"
)

// Backend is the index the server reads from and rebuilds.
type Backend interface {
	Current() *store.Snapshot
	Query(raw string) []complete.Candidate
	Symbols(prefix []string) []index.Entry
	Rebuild(ctx context.Context, reason string, force bool) (*store.Snapshot, bool, error)
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CompleteResponse answers GET /v1/complete.
type CompleteResponse struct {
	Snapshot   string               `json:"snapshot"`
	Token      string               `json:"token"`
	Candidates []complete.Candidate `json:"candidates"`
}

// SymbolsResponse answers GET /v1/symbols.
type SymbolsResponse struct {
	Snapshot string        `json:"snapshot"`
	Entries  []index.Entry `json:"entries"`
}

// SnapshotResponse describes the published snapshot.
type SnapshotResponse struct {
	Status      string    `json:"status"`
	Snapshot    string    `json:"snapshot,omitempty"`
	BuiltAt     time.Time `json:"built_at,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Entries     int       `json:"entries"`
	Published   bool      `json:"published"`
	Fingerprint uint64    `json:"fingerprint,omitempty"`
}

// Handlers serves the HTTP API.
type Handlers struct {
	backend Backend
	logger  *slog.Logger
}

// NewHandlers creates handlers over backend.
func NewHandlers(backend Backend, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{backend: backend, logger: logger}
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/v1")
	{
		v1.GET("/complete", h.HandleComplete)
		v1.GET("/symbols", h.HandleSymbols)
		v1.POST("/regenerate", h.HandleRegenerate)
	}
	router.GET("/healthz", h.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

// HandleComplete answers a completion query for the token parameter.
func (h *Handlers) HandleComplete(c *gin.Context) {
	token, ok := c.GetQuery("token")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing token parameter"})
		return
	}
	snap := h.backend.Current()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "index not built yet"})
		return
	}
	candidates := h.backend.Query(token)
	if candidates == nil {
		candidates = []complete.Candidate{}
	}
	c.JSON(http.StatusOK, CompleteResponse{
		Snapshot:   snap.ID.String(),
		Token:      token,
		Candidates: candidates,
	})
}

// HandleSymbols lists the flattened paths under the dotted path parameter.
func (h *Handlers) HandleSymbols(c *gin.Context) {
	snap := h.backend.Current()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "index not built yet"})
		return
	}
	var prefix []string
	if p := strings.Trim(c.Query("path"), "."); p != "" {
		prefix = strings.Split(complete.Normalize(p), ".")
	}
	entries := h.backend.Symbols(prefix)
	if entries == nil {
		entries = []index.Entry{}
	}
	c.JSON(http.StatusOK, SymbolsResponse{Snapshot: snap.ID.String(), Entries: entries})
}

// HandleRegenerate forces a rebuild. On failure the previous snapshot stays
// published and the response says so.
func (h *Handlers) HandleRegenerate(c *gin.Context) {
	snap, published, err := h.backend.Rebuild(c.Request.Context(), "http", true)
	if err != nil {
		h.logger.Warn("regenerate request failed", slog.String("error", err.Error()))
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: "regeneration failed, previous completions remain active: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, describe(snap, published))
}

// HandleHealth reports whether a snapshot is published.
func (h *Handlers) HandleHealth(c *gin.Context) {
	snap := h.backend.Current()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, SnapshotResponse{Status: "starting"})
		return
	}
	c.JSON(http.StatusOK, describe(snap, false))
}

func describe(snap *store.Snapshot, published bool) SnapshotResponse {
	if snap == nil {
		return SnapshotResponse{Status: "starting", Published: published}
	}
	return SnapshotResponse{
		Status:      "ok",
		Snapshot:    snap.ID.String(),
		BuiltAt:     snap.BuiltAt,
		Reason:      snap.Reason,
		Entries:     snap.Entries,
		Published:   published,
		Fingerprint: snap.Fingerprint,
	}
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting completion server", slog.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down completion server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
