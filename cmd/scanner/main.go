package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"ticket-scanner/internal/camera"
	"ticket-scanner/internal/config"
	"ticket-scanner/internal/db"
	"ticket-scanner/internal/decoder"
	httpapi "ticket-scanner/internal/http"
	"ticket-scanner/internal/logger"
	"ticket-scanner/internal/presenter"
	"ticket-scanner/internal/repository"
	"ticket-scanner/internal/scanner"
	"ticket-scanner/internal/service"
	"ticket-scanner/internal/verify"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("ticket-scanner", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to config file (yaml, json or toml)")
	device := flags.String("device", "", "camera id to start with when autostart is on")
	flags.String("http.addr", ":8080", "control API listen address")
	flags.String("log.level", "info", "log level")
	flags.Bool("log.pretty", false, "human readable console logs")
	flags.String("api.base_url", "http://127.0.0.1:8000", "ticketing backend base URL")
	flags.Bool("scanner.autostart", false, "start scanning as soon as devices are listed")
	flags.String("scanner.decoder", "gozxing", "QR decoder backend: gozxing or goqr")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}
	cfg, err := config.Load(v, *configPath)
	if err != nil {
		return err
	}

	log := logger.New(cfg.Log)
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	journal, closeDB, err := openJournal(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	dec, err := decoder.New(cfg.Scanner.Decoder, cfg.Scanner.TryHarder)
	if err != nil {
		return err
	}

	overlay := presenter.NewOverlay()
	presenters := presenter.Multi{overlay}
	if cfg.Scanner.Terminal {
		presenters = append(presenters, presenter.NewTerminal(os.Stdout))
	}
	var vibrator presenter.Vibrator = presenter.NoVibrator{}
	if cfg.Haptics.Enabled {
		vibrator = presenter.LogVibrator{Log: log.With().Str("component", "haptics").Logger()}
	}
	presenters = append(presenters, presenter.NewHaptic(vibrator, cfg.Haptics.SuccessPattern, cfg.Haptics.FailurePattern, log))

	opts := scanner.Options{
		Source:         camera.NewSource(camera.NewDriver(cfg.Camera, nil, log), cfg.Scanner.DefaultFacing, log),
		Decoder:        dec,
		Verifier:       verify.NewClient(cfg.API, nil, log),
		Presenter:      presenters,
		DebounceWindow: cfg.Scanner.DebounceWindow,
		TickInterval:   cfg.Scanner.TickInterval,
		Log:            log,
	}
	if journal != nil {
		opts.Journal = journal
	}
	ctrl, err := scanner.New(opts)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if err := ctrl.Init(ctx); err != nil {
		log.Warn().Err(err).Str("status", ctrl.Status().Message).Msg("camera not ready")
	} else if cfg.Scanner.Autostart {
		if err := ctrl.Start(ctx, *device); err != nil {
			log.Error().Err(err).Msg("autostart failed")
		}
	}

	handler := httpapi.NewHandler(ctrl, overlay, journal, log)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(cfg, handler, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Str("scanner_id", ctrl.ID()).Msg("control API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	return nil
}

// openJournal connects the scan journal when the database is enabled and
// starts the retention loop. The returned close func is always safe to call.
func openJournal(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*service.JournalService, func(), error) {
	if !cfg.DB.Enabled {
		return nil, func() {}, nil
	}

	gdb, err := db.Connect(cfg.DB.DSN, log)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get sql db: %w", err)
	}

	journal := service.NewJournalService(repository.NewScanRepository(gdb), log)
	go journal.RunRetention(ctx, cfg.Journal.CleanupInterval, cfg.Journal.RetentionDays)

	return journal, func() { sqlDB.Close() }, nil
}
