package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"casebot/internal/factstore"
	"casebot/internal/httpapi"
	"casebot/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the HTTP API (/health, /ask, /ingest, /admin). With store.watch
enabled, changes to the JSONL fact file made by other processes are picked up
automatically.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.New("server")
	cfg := appConfig
	svc, backend, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	router := httpapi.NewRouter(svc, httpapi.Options{
		AdminToken:     cfg.Server.AdminToken,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AskRate:        cfg.Server.AskRate,
		AskBurst:       cfg.Server.AskBurst,
		DefaultTopK:    cfg.Server.DefaultTopK,
	}, logger.New("http"))
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.Server.AdminToken == "change-me" {
		log.Warn("admin token is the default; set ADMIN_TOKEN before exposing the server")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(map[string]any{"addr": srv.Addr, "facts": svc.Size()}).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Store.Watch && cfg.Store.Type == "jsonl" {
		g.Go(func() error {
			debounce := time.Duration(cfg.Store.WatchDebounceMS) * time.Millisecond
			return factstore.Watch(gctx, cfg.Store.Path, debounce, logger.New("watcher"), func() {
				swapped, err := svc.Reload(gctx)
				if err != nil {
					log.WithError(err).Error("reload after file change failed")
					return
				}
				if swapped {
					log.WithField("facts", svc.Size()).Info("reloaded facts from disk")
				}
			})
		})
	}
	return g.Wait()
}
