package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KyberNetwork/logger"
	"github.com/spf13/cobra"

	"github.com/tranvictor/epicgame"
	"github.com/tranvictor/epicgame/internal/httpapi"
	"github.com/tranvictor/epicgame/internal/otel"
)

var httpAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the game over HTTP",
	Long:  `Start the HTTP API: game state, actions and a websocket stream of notifications.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&httpAddr, "addr", "", "HTTP listen address (overrides EPICGAME_HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	hub := httpapi.NewHub()
	defer hub.Close()

	rt, err := newApp(epicgame.MultiNotifier{epicgame.LogNotifier{}, hub})
	if err != nil {
		return err
	}
	defer rt.close()

	shutdownTracing, err := otel.Setup(ctx, "epicgame", rt.cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.WithFields(logger.Fields{
				"error": err,
			}).Warn("Failed to flush traces")
		}
	}()

	if _, err := rt.start(ctx, true); err != nil {
		// keep serving: /state reports the connection error
		logger.WithFields(logger.Fields{
			"error": err,
		}).Warn("Session started with an error")
	}

	addr := httpAddr
	if addr == "" {
		addr = rt.cfg.HTTPAddr
	}
	server := httpapi.NewAPIServer(httpapi.NewAPIServerOptions{
		Addr: addr,
		Game: func() httpapi.Game {
			if s := rt.current(); s != nil {
				return s
			}
			return nil
		},
		Hub: hub,
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	select {
	case <-sigChan:
		logger.Info("Received shutdown signal, gracefully stopping...")
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	return server.Stop(stopCtx)
}
