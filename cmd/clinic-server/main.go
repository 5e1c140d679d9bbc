package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicore/clinicore/internal/analytics"
	"github.com/clinicore/clinicore/internal/config"
	"github.com/clinicore/clinicore/internal/domain/agenda"
	"github.com/clinicore/clinicore/internal/domain/aitools"
	"github.com/clinicore/clinicore/internal/domain/consultation"
	"github.com/clinicore/clinicore/internal/domain/messaging"
	"github.com/clinicore/clinicore/internal/domain/patient"
	"github.com/clinicore/clinicore/internal/platform/ai"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/flows"
	"github.com/clinicore/clinicore/internal/platform/livequery"
	"github.com/clinicore/clinicore/internal/platform/middleware"
	"github.com/clinicore/clinicore/internal/platform/supabase"
	"github.com/clinicore/clinicore/internal/platform/websocket"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

// dashboardTables are the tables whose changes feed the metrics stores and
// the browser push hub.
var dashboardTables = []string{"patients", "appointments", "medical_records", "messages"}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("unsafe configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Remote data plane.
	sb := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, logger)
	rt := supabase.NewRealtimeClient(cfg.SupabaseURL, cfg.SupabaseKey, logger)
	defer rt.Close()
	if cfg.RealtimeEnabled {
		go rt.Run(ctx)
	} else {
		logger.Warn().Msg("realtime disabled, dashboard snapshots will not refresh")
	}

	// Browser push hub, fed straight from the realtime feed.
	hub := websocket.NewHub(logger)
	wsHandler := websocket.NewHandler(hub)
	for _, table := range dashboardTables {
		sub, err := rt.Subscribe(table)
		if err != nil {
			logger.Fatal().Err(err).Str("table", table).Msg("subscribe failed")
		}
		go func() {
			for change := range sub.Changes() {
				hub.BroadcastChange(change)
			}
		}()
	}

	// Live snapshots behind the dashboard metrics.
	openStore := func(table string, opts ...livequery.Option) *livequery.Store {
		store, err := livequery.Open(ctx, sb, rt, table, logger, opts...)
		if err != nil {
			logger.Fatal().Err(err).Str("table", table).Msg("open live store failed")
		}
		return store
	}
	patientsStore := openStore("patients", livequery.WithOrder("created_at", true))
	appointmentsStore := openStore("appointments", livequery.WithOrder("scheduled_at", false))
	recordsStore := openStore("medical_records", livequery.WithOrder("created_at", true))
	messagesStore := openStore("messages", livequery.WithOrder("created_at", false))
	defer patientsStore.Close()
	defer appointmentsStore.Close()
	defer recordsStore.Close()
	defer messagesStore.Close()

	dashboard := analytics.NewDashboard(patientsStore, appointmentsStore, recordsStore, messagesStore, logger)

	// Outbound integrations.
	flowsClient := flows.NewClient(cfg.FlowsBaseURL, logger)
	gemini := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModels, logger)

	// Domain services.
	patientSvc := patient.NewService(patient.NewSupabaseRepository(sb))
	agendaSvc := agenda.NewService(agenda.NewSupabaseRepository(sb))
	messagingSvc := messaging.NewService(messaging.NewSupabaseRepository(sb), flowsClient, logger)
	consultationSvc := consultation.NewService(consultation.NewSupabaseRepository(sb))

	// Every messages-table change makes the cached session list stale.
	messagesStore.OnChange(messagingSvc.Invalidate)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.RequestTimeout(time.Duration(cfg.RequestTimeoutMS) * time.Millisecond))
	e.Use(middleware.BodyLimit(cfg.MaxUploadBytes))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/ws", wsHandler.Connect)

	api := e.Group("/api")
	if cfg.IsDev() {
		api.Use(auth.DevMiddleware())
	} else {
		api.Use(auth.Middleware(cfg.SupabaseJWTKey))
	}

	patient.NewHandler(patientSvc).RegisterRoutes(api)
	agenda.NewHandler(agendaSvc).RegisterRoutes(api)
	messaging.NewHandler(messagingSvc).RegisterRoutes(api)
	consultation.NewHandler(consultationSvc).RegisterRoutes(api)
	aitools.NewHandler(flowsClient, gemini, messagingSvc).RegisterRoutes(api)
	analytics.NewHandler(dashboard).RegisterRoutes(api)

	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
