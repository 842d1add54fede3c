package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/colorboost/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the interactive adjustment API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().Int64("max-upload-bytes", 32<<20, "Maximum request body size in bytes")
	serveCmd.Flags().Int("max-images", 16, "Maximum stored images; the oldest is evicted first")
	serveCmd.Flags().Int("max-size", 0, "Downscale uploads so neither side exceeds this many pixels (0 keeps size)")
	serveCmd.Flags().Int("workers", runtime.NumCPU(), "Goroutines per render")
	serveCmd.Flags().Int("max-concurrent-renders", 4, "Max concurrent renders")
	serveCmd.Flags().String("cache-control", "no-store", "Cache-Control header for rendered images")
	serveCmd.Flags().String("png-compression", "speed", "PNG compression (default, speed, best, none)")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "Grace period for in-flight requests on shutdown")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.addr", "addr")
	mustBind("serve.max_upload_bytes", "max-upload-bytes")
	mustBind("serve.max_images", "max-images")
	mustBind("serve.max_size", "max-size")
	mustBind("serve.workers", "workers")
	mustBind("serve.max_concurrent_renders", "max-concurrent-renders")
	mustBind("serve.cache_control", "cache-control")
	mustBind("serve.png_compression", "png-compression")
	mustBind("serve.shutdown_timeout", "shutdown-timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	cfg := server.Config{
		PNGCompression:       viper.GetString("serve.png_compression"),
		CacheControl:         viper.GetString("serve.cache_control"),
		MaxUploadBytes:       viper.GetInt64("serve.max_upload_bytes"),
		MaxImages:            viper.GetInt("serve.max_images"),
		MaxSize:              viper.GetInt("serve.max_size"),
		Workers:              viper.GetInt("serve.workers"),
		MaxConcurrentRenders: viper.GetInt("serve.max_concurrent_renders"),
	}
	shutdownTimeout := viper.GetDuration("serve.shutdown_timeout")

	s, err := server.New(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("preview server listening",
		"addr", addr,
		"max_images", cfg.MaxImages,
		"max_concurrent_renders", cfg.MaxConcurrentRenders,
		"workers", cfg.Workers,
	)

	srv := &http.Server{Addr: addr, Handler: withCORS(s.Handler()), ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down preview server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Expose-Headers", server.HeaderGeneration+", "+server.HeaderIntensity)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
