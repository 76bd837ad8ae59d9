package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shizukutanaka/Mihari/internal/alerting"
	"github.com/shizukutanaka/Mihari/internal/api"
	"github.com/shizukutanaka/Mihari/internal/collector"
	"github.com/shizukutanaka/Mihari/internal/config"
	"github.com/shizukutanaka/Mihari/internal/logging"
	"github.com/shizukutanaka/Mihari/internal/optimizer"
	"github.com/shizukutanaka/Mihari/internal/store"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the telemetry daemon",
	Long: `Start monitoring, anomaly analysis, alerting, the optimization loop
and the HTTP API, and run until interrupted.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().Bool("no-optimize", false, "collect and analyze only, skip the optimization loop")
	startCmd.Flags().Bool("no-api", false, "disable the HTTP API regardless of configuration")
}

func runStart(cmd *cobra.Command, args []string) error {
	noOptimize, _ := cmd.Flags().GetBool("no-optimize")
	noAPI, _ := cmd.Flags().GetBool("no-api")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logOpts := logging.DefaultOptions()
	logOpts.Level = cfg.LogLevel
	logOpts.OutputPath = cfg.LogPath
	if verbose {
		logOpts.Level = "debug"
	}
	logger, err := logging.New(logOpts)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("mihari starting", zap.String("version", Version))

	snaps := store.New(logging.WithComponent(logger, "store"), cfg.Monitor.MaxSnapshots)
	alerts := alerting.NewManager(logging.WithComponent(logger, "alerting"))
	orch := collector.NewOrchestrator(
		logging.WithComponent(logger, "collector"),
		cfg.Monitor,
		collector.SystemProviders(cfg.Monitor.DiskPath),
		snaps,
		alerts,
	)

	engine, err := optimizer.NewEngine(logging.WithComponent(logger, "optimizer"), cfg.Optimizer, orch)
	if err != nil {
		return fmt.Errorf("failed to build optimization engine: %w", err)
	}

	if noOptimize {
		if err := orch.StartMonitoring(); err != nil {
			return fmt.Errorf("failed to start monitoring: %w", err)
		}
	} else {
		if err := engine.StartAutoOptimization(); err != nil {
			return fmt.Errorf("failed to start optimization: %w", err)
		}
	}

	var server *api.Server
	if cfg.API.Enabled && !noAPI {
		server = api.NewServer(logging.WithComponent(logger, "api"), cfg.API.ListenAddr, orch, engine, alerts)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("api server failed", zap.Error(err))
			}
		}()
	}

	var watcher *config.Watcher
	if cfgFile != "" {
		watcher, err = config.NewWatcher(logging.WithComponent(logger, "config"), cfgFile, func(next *config.Config) {
			orch.UpdateConfig(next.Monitor)
			engine.UpdateConfig(next.Optimizer)
		})
		if err != nil {
			logger.Warn("config watcher unavailable", zap.Error(err))
		} else {
			watcher.Start()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))

	if watcher != nil {
		watcher.Stop()
	}
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("api shutdown incomplete", zap.Error(err))
		}
	}
	if !noOptimize {
		engine.StopAutoOptimization()
	}
	if err := orch.StopMonitoring(); err != nil {
		logger.Warn("monitoring shutdown incomplete", zap.Error(err))
	}

	logger.Info("mihari stopped")
	return nil
}
