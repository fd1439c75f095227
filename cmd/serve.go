package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matchday-labs/goalscan/internal/model"
	"github.com/matchday-labs/goalscan/internal/monitoring"
	"github.com/matchday-labs/goalscan/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only dashboard API",
	Long: `Exposes the prediction ledger, accuracy stats, scan log, and operational
metrics over HTTP for the dashboard frontend. The API is read-only; writes
happen exclusively through the scan loop and the results command.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		router := buildRouter(st, cfg.Server.CORSOrigins)
		return startServer(ctx, router, resolvePort(servePort, cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter assembles the read-only dashboard API over the ledger.
func buildRouter(st store.Store, corsOrigins []string) http.Handler {
	collector := monitoring.NewCollector(st)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := st.Ping(req.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/predictions", func(w http.ResponseWriter, req *http.Request) {
			preds, err := st.ListPredictions(req.Context(), filterFromQuery(req))
			if err != nil {
				zap.L().Error("list predictions failed", zap.Error(err))
				respondError(w, http.StatusInternalServerError, "list predictions")
				return
			}
			if preds == nil {
				preds = []model.Prediction{}
			}
			respondJSON(w, http.StatusOK, preds)
		})

		r.Get("/predictions/{fixtureID}", func(w http.ResponseWriter, req *http.Request) {
			id, err := strconv.ParseInt(chi.URLParam(req, "fixtureID"), 10, 64)
			if err != nil {
				respondError(w, http.StatusBadRequest, "invalid fixture id")
				return
			}
			pred, err := st.GetPrediction(req.Context(), id)
			if err != nil {
				zap.L().Error("get prediction failed", zap.Int64("fixture_id", id), zap.Error(err))
				respondError(w, http.StatusInternalServerError, "get prediction")
				return
			}
			if pred == nil {
				respondError(w, http.StatusNotFound, "prediction not found")
				return
			}
			respondJSON(w, http.StatusOK, pred)
		})

		r.Get("/accuracy", func(w http.ResponseWriter, req *http.Request) {
			stats, err := st.AccuracyStats(req.Context(), intQuery(req, "days", 30))
			if err != nil {
				zap.L().Error("accuracy stats failed", zap.Error(err))
				respondError(w, http.StatusInternalServerError, "accuracy stats")
				return
			}
			respondJSON(w, http.StatusOK, stats)
		})

		r.Get("/scans", func(w http.ResponseWriter, req *http.Request) {
			scans, err := st.ListScans(req.Context(), intQuery(req, "limit", 20))
			if err != nil {
				zap.L().Error("list scans failed", zap.Error(err))
				respondError(w, http.StatusInternalServerError, "list scans")
				return
			}
			if scans == nil {
				scans = []model.ScanEntry{}
			}
			respondJSON(w, http.StatusOK, scans)
		})

		r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
			snap, err := collector.Collect(req.Context(),
				intQuery(req, "lookback_hours", 24), intQuery(req, "days", 30))
			if err != nil {
				zap.L().Error("collect metrics failed", zap.Error(err))
				respondError(w, http.StatusInternalServerError, "collect metrics")
				return
			}
			respondJSON(w, http.StatusOK, snap)
		})
	})

	return r
}

// filterFromQuery maps list query parameters onto a ledger filter.
func filterFromQuery(req *http.Request) store.PredictionFilter {
	q := req.URL.Query()
	f := store.PredictionFilter{
		League:       q.Get("league"),
		Status:       model.PredictionStatus(strings.ToUpper(q.Get("status"))),
		UpcomingOnly: q.Get("upcoming") == "true",
		Limit:        intQuery(req, "limit", 100),
		Offset:       intQuery(req, "offset", 0),
	}
	if v, err := strconv.ParseFloat(q.Get("min_over25"), 64); err == nil {
		f.MinOver25Prob = v
	}
	if v, err := strconv.ParseFloat(q.Get("min_btts"), 64); err == nil {
		f.MinBTTSProb = v
	}
	return f
}

// intQuery reads an integer query parameter with a fallback.
func intQuery(req *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(req.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return v
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response failed", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// resolvePort prefers the flag value over the configured port.
func resolvePort(flagPort, configured int) int {
	if flagPort > 0 {
		return flagPort
	}
	return configured
}

// startServer runs the HTTP server until ctx is cancelled, then drains
// in-flight requests within a bounded shutdown window.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Error("server shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}
