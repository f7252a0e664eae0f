package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"assethat/internal/assethat"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the public directory with a resolve endpoint for debugging includes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		if servePort != 0 {
			s.Server.Port = servePort
		}
		svc, err := assethat.NewService(s)
		if err != nil {
			return fmt.Errorf("init service: %w", err)
		}
		defer svc.Close()
		log := svc.Logger()
		s = svc.Settings()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := svc.WarmAll(ctx); err != nil {
			return fmt.Errorf("warm revisions: %w", err)
		}

		cfgPath := s.ConfigPath
		if !filepath.IsAbs(cfgPath) {
			cfgPath = filepath.Join(s.Root, cfgPath)
		}
		if err := svc.ConfigStore().Watch(ctx, cfgPath, svc.Clear); err != nil {
			log.Warn().Err(err).Str("path", cfgPath).Msg("config watch disabled")
		}

		addr := fmt.Sprintf(":%d", s.Server.Port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}

		srv := &http.Server{
			Handler:           svc.Middleware(newMux(svc, filepath.Join(s.Root, s.PublicDir))),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Info().Str("addr", addr).Str("public", s.PublicDir).Bool("caching", s.PerformCaching).Msg("assethat listening")
			err := srv.Serve(ln)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("server error")
				stop()
			}
		}()

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func newMux(svc *assethat.Service, publicDir string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/_assethat/resolve", svc.ResolveHandler())
	mux.Handle("/", http.FileServer(http.Dir(publicDir)))
	return mux
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port; overrides server.port")
	rootCmd.AddCommand(serveCmd)
}
