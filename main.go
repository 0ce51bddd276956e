// researchhub serves the research paper catalog.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"researchhub/api"
	"researchhub/config"
	"researchhub/hub"
	"researchhub/mirror"
	"researchhub/utils"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const shutdownTimeout = 15 * time.Second

// @title           ResearchHub API
// @version         1.0
// @description     Catalog of student research papers kept in step between an object store and a local mirror.
// @description     Views count once per session; downloads count every time.
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running the root command without a
// subcommand starts the server.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "researchhub",
		Short: "Research paper catalog server",
		Long: `researchhub serves a catalog of research papers stored in an object store,
with a local mirror that keeps the catalog, users and session available offline.

Every setting can be given as a flag, as RESEARCHHUB_<NAME> in the environment,
or in a YAML file passed with --config.

Examples:
  # Serve from a local directory store
  researchhub serve --store-backend fs --store-data-dir ./data

  # Wipe the local mirror on the next start
  researchhub reset`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := cmd.Flag("log-level").Value.String()
			if level == "" {
				level = os.Getenv("RESEARCHHUB_LOG_LEVEL")
			}
			utils.SetupLogging(level)
		},
		RunE: runServe,
	}
	config.BindFlags(rootCmd.PersistentFlags())

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	rootCmd.AddCommand(serveCmd)

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Request a factory reset of the local mirror",
		Long: `Flags the local mirror to be cleared on the next start. The cached catalog,
the mirrored users and the remembered sign-in are all removed. The object store is
not touched.`,
		RunE: runReset,
	}
	rootCmd.AddCommand(resetCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "researchhub %s\n", Version)
			fmt.Fprintf(out, "  Commit:     %s\n", Commit)
			fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
		},
	}
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cmd.Flags())
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	if !strings.EqualFold(cfg.LogLevel, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h, err := hub.Open(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to open application state")
		return err
	}
	defer func() {
		if err := h.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close application state")
		}
	}()

	listenAddr := fmt.Sprintf("%s:%s", cfg.ListenAddress, cfg.ListenPort)
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           api.SetupRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", listenAddr).Bool("online", h.Online()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server failed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	m, err := mirror.Open(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("open mirror: %w", err)
	}
	defer m.Close()

	if err := mirror.RequestFactoryReset(cmd.Context(), m); err != nil {
		return fmt.Errorf("request factory reset: %w", err)
	}
	log.Info().Msg("factory reset requested; the local mirror will be cleared on the next start")
	fmt.Fprintln(cmd.OutOrStdout(), "Factory reset requested.")
	return nil
}
