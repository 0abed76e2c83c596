package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/pagetrail/pkg/config"
	"github.com/entrhq/pagetrail/pkg/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API for the browser extension",
	Long: `Serve the pagetrail HTTP API.

Endpoints:
  POST   /v1/pages             record a page visit (JSON)
  POST   /v1/capture?url=...   record a page from raw HTML
  GET    /v1/pages             flat history, newest first
  DELETE /v1/pages/{id}        delete a page
  GET    /v1/levels/{level}    entries of level 0-3
  POST   /v1/tabs/activate     report the active tab
  GET    /v1/settings          tracking settings (PUT to change)
  GET    /v1/notifications     server-sent events
  GET    /metrics              prometheus metrics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides listen_addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	if listenAddr != "" {
		daemonCfg.ListenAddr = listenAddr
	}

	a, err := newApp(daemonCfg)
	if err != nil {
		return err
	}
	defer a.Close()

	handler := server.New(a.engine, a.recorder,
		server.WithHub(a.hub),
		server.WithActivitySummarizer(a.summarizer),
		server.WithTracking(config.GetTracking(), config.Global().SaveAll),
		server.WithGatherer(a.registry),
		server.WithLogger(a.logger),
	)
	httpServer := &http.Server{
		Addr:              daemonCfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Infof("listening on %s", daemonCfg.ListenAddr)
		cmd.Printf("pagetrail listening on %s (log: %s)\n", daemonCfg.ListenAddr, a.logger.LogPath())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
