package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clinimatch/clinimatch/internal/matcher"
	"github.com/clinimatch/clinimatch/internal/model"
)

var servePort int

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the matching HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initMatcher(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))

		r.Get("/api/health", handleHealth(e))
		r.Post("/api/match", handleMatch(e))
		r.Get("/api/trials/{nctID}", handleTrial(e))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// matchRequest is the POST /api/match body: a raw profile plus pagination.
type matchRequest struct {
	Age         int             `json:"age"`
	Conditions  []string        `json:"conditions"`
	Medications []string        `json:"medications"`
	Location    model.Location  `json:"location"`
	Lifestyle   model.Lifestyle `json:"lifestyle"`
	Page        int             `json:"page"`
	Limit       int             `json:"limit"`
}

// matchResponse pages a MatchingResult for the wire.
type matchResponse struct {
	Matches                  []model.TrialMatch `json:"matches"`
	TotalFound               int                `json:"total_found"`
	TotalMatches             int                `json:"total_matches"`
	Page                     int                `json:"page"`
	Limit                    int                `json:"limit"`
	TotalPages               int                `json:"total_pages"`
	ProcessingTimeMS         int64              `json:"processing_time_ms"`
	Cached                   bool               `json:"cached"`
	AITranslationSuccessRate float64            `json:"ai_translation_success_rate"`
}

func handleHealth(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		if e.Cache != nil {
			if _, err := e.Cache.Stats(r.Context()); err != nil {
				status["status"] = "degraded"
				status["cache"] = "unavailable"
			}
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func handleMatch(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req matchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		profile, err := model.NewUserProfile(req.Age, req.Conditions, req.Medications, req.Location, req.Lifestyle)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		result, err := e.Matcher.FindMatches(r.Context(), profile)
		if err != nil {
			var srcErr *matcher.SourceError
			if errors.As(err, &srcErr) {
				zap.L().Error("trial source unavailable", zap.Error(err))
				writeError(w, http.StatusBadGateway, "trial registry unavailable")
				return
			}
			zap.L().Error("matching failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, paginate(result, req.Page, req.Limit))
	}
}

func handleTrial(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nctID := chi.URLParam(r, "nctID")

		match, err := e.Matcher.GetTrial(r.Context(), nctID)
		if err != nil {
			var srcErr *matcher.SourceError
			if errors.As(err, &srcErr) {
				zap.L().Error("trial source unavailable", zap.Error(err))
				writeError(w, http.StatusBadGateway, "trial registry unavailable")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if match == nil {
			writeError(w, http.StatusNotFound, "trial not found")
			return
		}

		writeJSON(w, http.StatusOK, match)
	}
}

// paginate slices the match list into one page.
func paginate(result *model.MatchingResult, page, limit int) matchResponse {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	total := len(result.Matches)
	totalPages := (total + limit - 1) / limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return matchResponse{
		Matches:                  result.Matches[start:end],
		TotalFound:               result.TotalFound,
		TotalMatches:             total,
		Page:                     page,
		Limit:                    limit,
		TotalPages:               totalPages,
		ProcessingTimeMS:         result.ProcessingTime.Milliseconds(),
		Cached:                   result.Cached,
		AITranslationSuccessRate: result.AITranslationSuccessRate,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
