package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"localllm/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	CompleteRequest(ctx context.Context, req types.CompletionRequest) (types.CompletionResponse, error)
	Status() types.StatusResponse
	Loaded() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		opts := cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}
		if len(opts.AllowedMethods) == 0 {
			opts.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
		}
		if len(opts.AllowedHeaders) == 0 {
			opts.AllowedHeaders = []string{"Content-Type", "Authorization"}
		}
		r.Use(cors.Handler(opts))
	}

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	r.Get("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		list := types.ModelList{Object: "list", Data: []types.ModelCard{}}
		if m := svc.Status().Model; m != nil {
			list.Data = append(list.Data, types.ModelCard{ID: m.ID, Object: "model", OwnedBy: "local"})
		}
		writeJSON(w, list)
	})

	r.Post("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		handleCompletion(svc, w, r)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Loaded() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

func handleCompletion(svc Service, w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req types.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// oversized bodies also land here; reported as 400 without size details
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if req.MaxTokens < 0 {
		writeJSONError(w, http.StatusBadRequest, "max_tokens must be positive")
		return
	}

	lvl := requestLogLevel(r)
	rid := middleware.GetReqID(r.Context())
	if lvl >= LevelInfo {
		zlog.Info().Str("path", r.URL.Path).Str("request_id", rid).Int("max_tokens", req.MaxTokens).Msg("completion start")
	}
	if lvl >= LevelDebug {
		zlog.Debug().Str("request_id", rid).Str("prompt", req.Prompt).Msg("completion prompt")
	}

	start := time.Now()
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if requestTimeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, time.Duration(requestTimeout)*time.Second)
		defer tcancel()
	}

	resp, err := svc.CompleteRequest(ctx, req)
	if err != nil {
		// client went away or server is shutting down
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		status := statusFor(err)
		if status == http.StatusTooManyRequests {
			IncrementBackpressure("queue")
		}
		writeJSONError(w, status, err.Error())
		if lvl >= LevelError {
			zlog.Error().Int("status", status).Str("request_id", rid).Dur("dur", time.Since(start)).Err(err).Msg("completion end")
		}
		return
	}
	if resp.Created == 0 {
		resp.Created = start.Unix()
	}
	if resp.ID == "" {
		resp.ID = "cmpl-" + rid
	}
	writeJSON(w, resp)
	if lvl >= LevelInfo {
		zlog.Info().Int("status", http.StatusOK).Str("request_id", rid).Dur("dur", time.Since(start)).Msg("completion end")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}
