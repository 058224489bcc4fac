package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nixxel-company-limited/booth-printer/adapter"
	"github.com/nixxel-company-limited/booth-printer/api"
	"github.com/nixxel-company-limited/booth-printer/config"
	"github.com/nixxel-company-limited/booth-printer/layout"
	"github.com/nixxel-company-limited/booth-printer/message"
	"github.com/nixxel-company-limited/booth-printer/printer"
	"github.com/nixxel-company-limited/booth-printer/raster"
	"github.com/nixxel-company-limited/booth-printer/receipt"
	"github.com/nixxel-company-limited/booth-printer/server"
	"github.com/nixxel-company-limited/booth-printer/session"
	"github.com/nixxel-company-limited/booth-printer/store"
	"github.com/nixxel-company-limited/booth-printer/translate"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	logger.Info("configuration loaded",
		zap.String("driver", cfg.Driver),
		zap.String("raw_address", cfg.ServerAddress),
		zap.String("http_address", cfg.HTTPAddress))

	var scanner adapter.Scanner
	switch cfg.Driver {
	case config.DriverUSB:
		usb := adapter.NewUSBScanner(logger)
		usb.VID, usb.PID = cfg.USBVendorID, cfg.USBProductID
		scanner = usb
	default:
		scanner = adapter.NewBLEScanner(logger, cfg.WritableUUIDs...)
	}

	opts := printer.DefaultOptions()
	opts.ChunkSize = cfg.ChunkSize
	opts.ChunkDelay = cfg.ChunkDelay
	opts.Request.AcceptAll = cfg.AcceptAll
	opts.Request.NamePrefix = cfg.NamePrefix
	transport := printer.NewWithLogger(scanner, printer.NewConnectionRegistry(), opts, logger)
	transport.On(adapter.EventDisconnect, func(e adapter.Event) {
		logger.Warn("printer link lost; the next print will reconnect", zap.String("device", e.DeviceID))
	})

	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}
	fonts, err := loadFonts(cfg)
	if err != nil {
		logger.Fatal("failed to load fonts", zap.Error(err))
	}
	composer, err := receipt.New(cfg.Candidate, receipt.Options{Fonts: fonts})
	if err != nil {
		logger.Fatal("failed to create composer", zap.Error(err))
	}

	sessionOpts := session.DefaultOptions()
	sessionOpts.FontSettleDelay = cfg.FontSettleDelay
	sessionOpts.Encoder = raster.Encoder{Threshold: cfg.Threshold}
	if cfg.TranslateEnabled {
		sessionOpts.Translator = translate.NewWithLogger(translate.Config{Target: cfg.TranslateTarget}, logger)
	}
	printSession := session.NewWithLogger(transport, composer, sessionOpts, logger)

	db, err := store.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("failed to open voter store", zap.Error(err))
	}
	defer db.Close()

	policy := store.DefaultRetryPolicy
	policy.Attempts = cfg.RetryAttempts

	handler := api.NewHandler(api.Deps{
		Jobs:      store.NewLoader(db, policy, logger),
		Contacts:  db,
		Session:   printSession,
		Previewer: composer,
		Messages:  message.New(cfg.Candidate),
		Printer:   transport,
	}, logger)
	httpServer := api.NewServer(handler, cfg.HTTPAddress, logger)

	raw := server.NewWithLogger(transport, cfg.ServerAddress, logger)
	if err := raw.StartAsync(); err != nil {
		logger.Fatal("failed to start raw print server", zap.Error(err))
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	if err := raw.Stop(); err != nil {
		logger.Warn("raw server shutdown", zap.Error(err))
	}
	if err := transport.Disconnect(); err != nil {
		logger.Warn("printer disconnect", zap.Error(err))
	}
}

func loadFonts(cfg *config.Config) (*layout.Fonts, error) {
	if cfg.FontRegular == "" {
		return layout.DefaultFonts()
	}
	return layout.LoadFonts(cfg.FontRegular, cfg.FontBold)
}
