package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"sluice/internal/api"
	"sluice/internal/config"
	"sluice/internal/dispatch"
	"sluice/internal/eventlog"
	"sluice/internal/logging"
	"sluice/internal/ratelimit"
	"sluice/internal/system"
	"sluice/internal/trigger"
	"sluice/internal/version"
)

const httpShutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "sluiced.yaml", "path to the settings file")
	port := flag.Int("port", 0, "listen port override")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		info := version.Get()
		fmt.Printf("sluiced %s", info.Version)
		if info.GitCommit != "" {
			fmt.Printf(" (%s)", info.GitCommit)
		}
		fmt.Println()
		return
	}

	if err := run(*configPath, *port); err != nil {
		fmt.Fprintln(os.Stderr, "sluiced:", err)
		os.Exit(1)
	}
}

func run(configPath string, portOverride int) error {
	settings, err := config.LoadSettings(configPath)
	if err != nil {
		return err
	}
	if portOverride > 0 {
		settings.ListenPort = portOverride
	}

	level, _ := logging.ParseLevel(settings.LogLevel)
	logger := logging.NewLogger(logging.NewBuffer(logging.DefaultBufferSize), level)

	registryLogger := logger.Component("registry")
	registry, err := trigger.OpenRegistry(
		trigger.NewFileRepository(filepath.Join(settings.DataDir, config.DefaultTriggersFilename), registryLogger),
		registryLogger,
	)
	if err != nil {
		return fmt.Errorf("open trigger registry: %w", err)
	}

	eventsLogger := logger.Component("eventlog")
	events, err := eventlog.Open(
		eventlog.NewFileRepository(filepath.Join(settings.DataDir, config.DefaultEventsFilename), eventsLogger),
		settings.EventRetention,
		eventsLogger,
	)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}

	var dispatcher dispatch.Dispatcher
	var temporalDispatcher *dispatch.TemporalDispatcher
	if settings.Temporal.HostPort != "" {
		temporalDispatcher, err = dispatch.NewTemporalDispatcher(dispatch.TemporalConfig{
			HostPort:  settings.Temporal.HostPort,
			Namespace: settings.Temporal.Namespace,
			TaskQueue: settings.Temporal.TaskQueue,
		})
		if err != nil {
			return fmt.Errorf("connect temporal: %w", err)
		}
		dispatcher = temporalDispatcher
		logger.Info("temporal dispatcher connected", map[string]string{
			"host_port": settings.Temporal.HostPort,
		})
	} else {
		logger.Warn("no dispatcher configured, events will be recorded without dispatch", nil)
	}

	sys := system.New(system.Options{
		Registry:        registry,
		Events:          events,
		Limiter:         ratelimit.NewLimiter(),
		Dispatcher:      dispatcher,
		DispatchTimeout: settings.DispatchTimeout,
		Logger:          logger.Component("system"),
	})
	if err := sys.Start(); err != nil {
		return err
	}

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, &api.Gateway{
		System:          sys,
		Logger:          logger.Component("gateway"),
		APIKey:          settings.APIKey,
		RateLimitMax:    settings.RateLimit.MaxRequests,
		RateLimitWindow: settings.RateLimit.Window,
		RequestTimeout:  settings.RequestTimeout,
	})

	listener, err := net.Listen("tcp", ":"+strconv.Itoa(settings.ListenPort))
	if err != nil {
		sys.Stop()
		return err
	}
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErrs := make(chan error, 1)
	go func() {
		serveErrs <- server.Serve(listener)
	}()
	logger.Info("gateway listening", map[string]string{
		"addr":    listener.Addr().String(),
		"version": version.Version,
	})

	stopSignals := make(chan os.Signal, 1)
	signal.Notify(stopSignals, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErrs:
		sys.Stop()
		if temporalDispatcher != nil {
			temporalDispatcher.Close()
		}
		return err
	case sig := <-stopSignals:
		logger.Info("shutting down", map[string]string{
			"signal": sig.String(),
		})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("http shutdown failed", map[string]string{
			"error": err.Error(),
		})
	}
	sys.Stop()
	if temporalDispatcher != nil {
		temporalDispatcher.Close()
	}
	return nil
}
