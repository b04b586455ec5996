package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/config"
	"github.com/sells-group/choropleth/internal/geostyle"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the style server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newServeHandler(cfg),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", cfg.Server.Port),
			zap.Int("layers", len(cfg.Layers)),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newServeHandler wires the layer registry, cache and routes from config.
func newServeHandler(c *config.Config) http.Handler {
	layers := make(map[string]geostyle.Layer, len(c.Layers))
	for name, l := range c.Layers {
		layer := geostyle.Layer{Source: l.Source, Hideout: l.Hideout, Detail: l.Detail}
		if l.Delta != nil {
			layer.Delta = &geostyle.Delta{
				Current: l.Delta.Current,
				Compare: l.Delta.Compare,
				Mode:    geostyle.DeltaMode(l.Delta.Mode),
			}
		}
		layers[name] = layer
	}

	registry := geostyle.NewRegistry(layers, geostyle.NewStyler(c.Style.Property, c.Style.Workers))

	var cache *geostyle.LayerCache
	if c.Cache.MaxEntries > 0 {
		cache = geostyle.NewLayerCache(c.Cache.MaxEntries, time.Duration(c.Cache.TTLSecs)*time.Second)
	}

	return geostyle.NewHandler(registry, cache, geostyle.HandlerOptions{
		CORSOrigins: c.Server.CORSOrigins,
		RateLimit:   c.Server.RateLimit,
		RateBurst:   c.Server.RateBurst,
	}).Routes()
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
