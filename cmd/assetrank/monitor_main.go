package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/assetrank/internal/domain/asset"
	"github.com/sawpanic/assetrank/internal/infrastructure/providers/okxws"
	httpserver "github.com/sawpanic/assetrank/internal/interfaces/http"
)

func newMonitorCmd() *cobra.Command {
	var port int
	var live bool

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Serve health and metrics endpoints",
		Long: `Starts the read-only monitoring server with /health, /metrics and
/portfolio/latest. With --live, also streams live exchange ticker
prices into the live-price gauge.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd.Context(), port, live)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "HTTP listen port")
	cmd.Flags().BoolVar(&live, "live", false, "Stream live ticker prices over WebSocket")
	return cmd
}

func runMonitor(ctx context.Context, port int, live bool) error {
	a, err := buildApp()
	if err != nil {
		return err
	}

	serverConfig := httpserver.DefaultServerConfig()
	serverConfig.Port = port
	server := httpserver.NewServer(serverConfig, a.source, a.runs)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if live {
		if err := startLiveStream(ctx, a); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// startLiveStream subscribes to tickers for the instruments of the cached
// batch, reconnecting with backoff when the connection drops.
func startLiveStream(ctx context.Context, a *app) error {
	batch, err := a.runner.BuildBatch(ctx)
	if err != nil {
		return err
	}

	var instIDs []string
	for _, scored := range batch.Assets {
		if scored.Metrics.Class == asset.ClassCrypto {
			instIDs = append(instIDs, scored.Metrics.ID)
		}
	}
	if len(instIDs) == 0 {
		log.Warn().Msg("no crypto instruments in batch, live stream disabled")
		return nil
	}
	if len(instIDs) > 50 {
		instIDs = instIDs[:50]
	}

	go func() {
		for ctx.Err() == nil {
			stream := okxws.NewStream(a.config.Providers.OKX.WSURL)
			if err := stream.Connect(ctx); err != nil {
				log.Error().Err(err).Msg("live stream connect failed, retrying")
				select {
				case <-time.After(5 * time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}
			if err := stream.SubscribeTickers(instIDs); err != nil {
				log.Error().Err(err).Msg("live stream subscribe failed")
			}

			select {
			case <-stream.ReconnectChannel():
				log.Warn().Msg("live stream dropped, reconnecting")
				stream.Close()
			case <-ctx.Done():
				stream.Close()
				return
			}
		}
	}()

	log.Info().Int("instruments", len(instIDs)).Msg("live price stream started")
	return nil
}
