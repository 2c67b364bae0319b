package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lendsight/engage-cli/internal/model"
	"github.com/lendsight/engage-cli/internal/processor"
	"github.com/lendsight/engage-cli/internal/recipe"
	"github.com/lendsight/engage-cli/internal/runner"
	"github.com/lendsight/engage-cli/internal/store"
	"github.com/lendsight/engage-cli/pkg/anthropic"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP surface for triggering and inspecting runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore()
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(ctx, st),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter wires the HTTP routes. runCtx bounds the lifetime of
// background runs started over the API.
func newRouter(runCtx context.Context, st store.Store) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
		runs, err := st.ListRuns(req.Context(), store.RunFilter{
			Status: model.RunStatus(req.URL.Query().Get("status")),
			Recipe: req.URL.Query().Get("recipe"),
		})
		if err != nil {
			zap.L().Error("list runs failed", zap.Error(err))
			respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "list runs failed"})
			return
		}
		if runs == nil {
			runs = []model.Run{}
		}
		respondJSON(w, http.StatusOK, runs)
	})

	r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		run, err := st.GetRun(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			respondJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
			return
		}
		respondJSON(w, http.StatusOK, run)
	})

	r.Post("/runs", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Recipe string `json:"recipe"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Recipe == "" {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "recipe is required"})
			return
		}

		rec, err := recipe.Load(body.Recipe)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if err := rec.Validate(processor.Names()); err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		var client anthropic.Client
		if len(rec.LLM.ExpectedLLMKeys) > 0 {
			if cfg.Anthropic.Key == "" {
				respondJSON(w, http.StatusBadRequest, map[string]string{"error": "anthropic key not configured"})
				return
			}
			client = anthropic.NewClient(cfg.Anthropic.Key)
		}

		// The batch outlives the request; it runs against the server's
		// context and lands in run history like a CLI run.
		go func() {
			report, err := runner.New(cfg, rec, client, st).Run(runCtx)
			if err != nil {
				zap.L().Error("api run failed", zap.String("recipe", rec.RecipeName), zap.Error(err))
				return
			}
			zap.L().Info("api run complete",
				zap.String("recipe", rec.RecipeName),
				zap.String("run_id", report.RunID),
			)
		}()

		respondJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"recipe": rec.RecipeName,
		})
	})

	return r
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
