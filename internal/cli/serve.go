package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"localllm/internal/httpapi"
)

func newServeCommand(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve OpenAI-style completions over HTTP",
		Long: `Starts the HTTP server and loads the model in the background. /readyz
reports 503 until the model is loaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			} else if v := os.Getenv("LOCALLLM_ADDR"); v != "" {
				cfg.Addr = v
			}
			if origins := splitCSV(os.Getenv("LOCALLLM_CORS_ORIGINS")); len(origins) > 0 {
				cfg.CORSOrigins = origins
			}
			log := newLogger(cfg.LogLevel, cmd.ErrOrStderr())

			activateVenv(cfg, log)
			c, err := buildCompleter(cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = c.Shutdown() }()

			ctx := cmd.Context()
			httpapi.SetLogger(log.With().Str("component", "http").Logger())
			httpapi.SetBaseContext(ctx)
			httpapi.SetRequestTimeoutSeconds(int64(cfg.RequestTimeoutSeconds))
			if len(cfg.CORSOrigins) > 0 {
				httpapi.SetCORSOptions(true, cfg.CORSOrigins, nil, nil)
			}

			go func() {
				if err := c.Setup(ctx); err != nil {
					log.Error().Err(err).Msg("model setup failed; /readyz stays unavailable")
				}
			}()

			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           httpapi.NewMux(c),
				ReadHeaderTimeout: 10 * time.Second,
			}
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info().Str("addr", cfg.Addr).Str("engine", cfg.Engine).Msg("localllm listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Warn().Err(err).Msg("graceful shutdown error")
				}
				return nil
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :8080 (env LOCALLLM_ADDR)")
	return cmd
}

// splitCSV splits a comma-separated list, dropping empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
