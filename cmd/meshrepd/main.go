// meshrepd -- a store-and-forward LoRa mesh repeater node daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/dantte-lp/meshrepd/internal/admin"
	"github.com/dantte-lp/meshrepd/internal/clock"
	"github.com/dantte-lp/meshrepd/internal/config"
	"github.com/dantte-lp/meshrepd/internal/core"
	"github.com/dantte-lp/meshrepd/internal/identity"
	"github.com/dantte-lp/meshrepd/internal/radiolink"
	"github.com/dantte-lp/meshrepd/internal/request"
	"github.com/dantte-lp/meshrepd/internal/telemetry"
	appversion "github.com/dantte-lp/meshrepd/internal/version"
)

// tickPeriod is the CoreLoop's iteration interval (spec.md §4.12 leaves
// the concrete interval to the host; sub-100ms keeps queued sends and
// radio polls responsive without busy-looping).
const tickPeriod = 20 * time.Millisecond

// shutdownTimeout bounds how long the admin/metrics HTTP servers get to
// drain in-flight requests during graceful shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	identityPath := flag.String("identity", "/var/lib/meshrepd/identity.bin", "path to persisted node identity key material")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()))
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("meshrepd starting",
		slog.String("version", appversion.Version),
		slog.String("node_name", cfg.Node.Name),
		slog.String("admin_addr", cfg.Admin.Addr),
		slog.String("metrics_addr", cfg.Metrics.Addr),
	)

	keys, err := identity.LoadOrCreate(*identityPath)
	if err != nil {
		logger.Error("failed to load or create node identity", slog.String("error", err.Error()))
		return 1
	}

	reg := prometheus.NewRegistry()

	radio, err := radiolink.New(cfg.Radio.BindAddr, cfg.Radio.BroadcastAddr, logger)
	if err != nil {
		logger.Error("failed to start radio link", slog.String("error", err.Error()))
		return 1
	}

	c, err := core.New(*cfg, core.Deps{
		Clock:             clock.NewRealClock(),
		RNG:               clock.NewCryptoRNG(),
		Radio:             radio,
		CLI:               request.BasicExecutor{Version: appversion.Version},
		Self:              keys.Self,
		LocalPriv:         keys.LocalPriv,
		SignPub:           keys.SignPub,
		SignPriv:          keys.SignPriv,
		MetricsRegisterer: reg,
		Logger:            logger,
	})
	if err != nil {
		logger.Error("failed to construct core", slog.String("error", err.Error()))
		return 1
	}
	if err := c.LoadPersisted(); err != nil {
		logger.Error("failed to load persisted state", slog.String("error", err.Error()))
		return 1
	}

	if err := runServers(cfg, c, radio, reg, logger, *configPath, logLevel); err != nil {
		logger.Error("meshrepd exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("meshrepd stopped")
	return 0
}

// runServers wires the CoreLoop, radio link, admin API and metrics
// endpoint under one errgroup with a signal-aware context, mirroring
// the teacher's run()/runServers() split in cmd/gobfd.
func runServers(
	cfg *config.Config,
	c *core.Core,
	radio *radiolink.UDPRadio,
	reg *prometheus.Registry,
	logger *slog.Logger,
	configPath string,
	logLevel *slog.LevelVar,
) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return radio.Run(gCtx)
	})

	g.Go(func() error {
		return c.Run(gCtx, tickPeriod)
	})

	adminSrv := &http.Server{
		Addr:              cfg.Admin.Addr,
		Handler:           admin.New(c, logger, cfg.Admin.RateLimitRPS, cfg.Admin.RateLimitBurst).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsSrv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           metricsMux(reg, cfg.Metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc := net.ListenConfig{}
	g.Go(func() error {
		logger.Info("admin API listening", slog.String("addr", cfg.Admin.Addr))
		return listenAndServe(gCtx, &lc, adminSrv, cfg.Admin.Addr)
	})
	g.Go(func() error {
		logger.Info("metrics server listening", slog.String("addr", cfg.Metrics.Addr), slog.String("path", cfg.Metrics.Path))
		return listenAndServe(gCtx, &lc, metricsSrv, cfg.Metrics.Addr)
	})

	startDaemonGoroutines(gCtx, g, configPath, logLevel, logger)

	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, logger, adminSrv, metricsSrv)
	})

	return g.Wait()
}

func metricsMux(reg *prometheus.Registry, cfg config.MetricsConfig) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, telemetry.Handler(reg, 2, 4))
	return mux
}

func startDaemonGoroutines(ctx context.Context, g *errgroup.Group, configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	g.Go(func() error {
		return runWatchdog(ctx, logger)
	})

	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(sigHUP)
		handleSIGHUP(ctx, sigHUP, configPath, logLevel, logger)
		return nil
	})
}

// notifyReady sends READY=1 to systemd once the radio link and every
// server goroutine has been launched.
func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog", slog.String("error", err.Error()))
		return nil
	}
	if interval == 0 {
		logger.Debug("systemd watchdog not configured, skipping keepalive")
		return nil
	}

	tickInterval := interval / 2
	logger.Info("systemd watchdog enabled",
		slog.Duration("watchdog_sec", interval),
		slog.Duration("keepalive_interval", tickInterval))

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, wdErr := daemon.SdNotify(false, daemon.SdNotifyWatchdog); wdErr != nil {
				logger.Warn("failed to send watchdog keepalive", slog.String("error", wdErr.Error()))
			}
		}
	}
}

// handleSIGHUP reloads configuration on SIGHUP and applies the new log
// level via the shared LevelVar. No other reloaded field is pushed into
// the running Core.
func handleSIGHUP(ctx context.Context, sigHUP <-chan os.Signal, configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigHUP:
			logger.Info("received SIGHUP, reloading configuration")
			newCfg, err := loadConfig(configPath)
			if err != nil {
				logger.Error("failed to reload configuration, keeping current settings", slog.String("error", err.Error()))
				continue
			}
			oldLevel := logLevel.Level()
			newLevel := config.ParseLogLevel(newCfg.Log.Level)
			logLevel.Set(newLevel)
			logger.Info("configuration reloaded",
				slog.String("old_log_level", oldLevel.String()),
				slog.String("new_log_level", newLevel.String()))
		}
	}
}

func gracefulShutdown(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	logger.Info("initiating graceful shutdown")
	notifyStopping(logger)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, err)
		}
	}
	return shutdownErr
}

func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.DefaultConfig(), nil
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
