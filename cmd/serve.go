package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/price-sentry/internal/dom"
	"github.com/sells-group/price-sentry/internal/model"
	"github.com/sells-group/price-sentry/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the extraction HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			return eris.Wrap(err, "server listen")
		}

		zap.L().Info("starting server", zap.Int("port", port))
		return serveUntilShutdown(ctx, srv, ln)
	},
}

const shutdownTimeout = 10 * time.Second

// serveUntilShutdown serves until ctx is canceled, then drains in-flight
// requests on a fresh timeout context; the canceled signal context would
// abort them immediately.
func serveUntilShutdown(ctx context.Context, srv *http.Server, ln net.Listener) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown incomplete", zap.Error(err))
		}
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	<-done
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func newRouter(env *env) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/extract", func(w http.ResponseWriter, req *http.Request) {
		var body extractRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		doc, err := body.document(req, env)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		res := env.Pipeline.Run(req.Context(), doc, pipeline.Options{
			ForceTier:     body.ForceTier,
			SkipTiers:     body.SkipTiers,
			MinConfidence: model.Confidence(body.MinConfidence),
			UseLLM:        body.UseLLM,
		})
		writeJSON(w, http.StatusOK, res)
	})

	r.Post("/confirm", func(w http.ResponseWriter, req *http.Request) {
		var body confirmRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Selector == "" {
			writeError(w, http.StatusBadRequest, "selector is required")
			return
		}
		doc, err := body.document(req, env)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		res, err := env.Pipeline.ConfirmSelection(req.Context(), doc, body.Selector, body.PageType)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Get("/health/{hostname}", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, env.Health.Health(req.Context(), chi.URLParam(req, "hostname")))
	})

	r.Get("/debug/{hostname}", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, env.Health.Debug(req.Context(), chi.URLParam(req, "hostname")))
	})

	r.Get("/overrides/{hostname}", func(w http.ResponseWriter, req *http.Request) {
		ovs, err := env.Overrides.ForHost(req.Context(), chi.URLParam(req, "hostname"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, ovs)
	})

	r.Delete("/overrides/{hostname}", func(w http.ResponseWriter, req *http.Request) {
		if err := env.Overrides.Delete(req.Context(), chi.URLParam(req, "hostname")); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	})

	return r
}

// extractRequest accepts either inline HTML plus its page URL, or a URL to
// fetch live.
type extractRequest struct {
	URL           string `json:"url,omitempty"`
	HTML          string `json:"html,omitempty"`
	PageURL       string `json:"page_url,omitempty"`
	ForceTier     int    `json:"force_tier,omitempty"`
	SkipTiers     []int  `json:"skip_tiers,omitempty"`
	MinConfidence string `json:"min_confidence,omitempty"`
	UseLLM        bool   `json:"use_llm,omitempty"`
}

func (b *extractRequest) document(req *http.Request, env *env) (*dom.Document, error) {
	switch {
	case b.HTML != "":
		return dom.ParseString(b.HTML, b.PageURL)
	case b.URL != "":
		return env.Fetcher.Fetch(req.Context(), b.URL)
	default:
		return nil, eris.New("either html or url is required")
	}
}

type confirmRequest struct {
	HTML     string `json:"html"`
	PageURL  string `json:"page_url"`
	Selector string `json:"selector"`
	PageType string `json:"page_type,omitempty"`
}

func (b *confirmRequest) document(*http.Request, *env) (*dom.Document, error) {
	if strings.TrimSpace(b.HTML) == "" {
		return nil, eris.New("html is required")
	}
	return dom.ParseString(b.HTML, b.PageURL)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
