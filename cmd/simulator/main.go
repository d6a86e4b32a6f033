package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vitos/day_trade_sim/internal/analytics"
	"github.com/vitos/day_trade_sim/internal/config"
	"github.com/vitos/day_trade_sim/internal/infrastructure/logger"
	"github.com/vitos/day_trade_sim/internal/infrastructure/marketdata"
	"github.com/vitos/day_trade_sim/internal/infrastructure/sink"
	"github.com/vitos/day_trade_sim/internal/infrastructure/storage"
	"github.com/vitos/day_trade_sim/internal/usecase"
	"github.com/vitos/day_trade_sim/internal/web"
	"go.uber.org/zap"
)

const defaultConfigPath = "config/config.yaml"

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "simulator",
		Short: "Paper-trading day trading simulator",
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("simulator version %s\n", version)
		},
	}
}

// loadConfig uses the default file only when it exists; otherwise $SIM_CONFIG or built-in defaults apply.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if !explicit {
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	return config.Load(path)
}

func runCmd() *cobra.Command {
	var (
		configPath  string
		closeOnExit bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trading loop, market feed and API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("close-on-exit") {
				cfg.Simulation.CloseOnExit = closeOnExit
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to the YAML config")
	cmd.Flags().BoolVar(&closeOnExit, "close-on-exit", false, "Force close open positions on shutdown")
	return cmd
}

func run(cfg *config.Config) error {
	// 1. Init Logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// 2. Init Storage
	store, err := storage.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("init sqlite: %w", err)
	}
	defer store.Close()

	// 3. Init Trade Sinks
	hub := web.NewHub(log)
	defer hub.Close()

	sinks := sink.NewMultiSink().Add("sqlite", store).Add("websocket", hub)
	if cfg.Storage.ExcelPath != "" {
		excel, err := sink.NewExcelSink(cfg.Storage.ExcelPath, log)
		if err != nil {
			return fmt.Errorf("init excel log: %w", err)
		}
		sinks.Add("excel", excel)
	}
	if cfg.Kafka.Enabled {
		kafka, err := sink.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return fmt.Errorf("init kafka: %w", err)
		}
		defer kafka.Close()
		sinks.Add("kafka", kafka)
	}

	// 4. Init Market Feed
	feed, err := marketdata.NewFeed(marketdata.NewYahooClient(cfg.Market.ProviderURL), cfg.Market, log)
	if err != nil {
		return fmt.Errorf("init market feed: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	// 5. Init Ledger, Strategies and Simulation
	ledger := usecase.NewPortfolioLedger(cfg.Portfolio, cfg.Portfolio.Sectors, log)
	registry := usecase.NewStrategyRegistry(feed, cfg.StrategySettings(), log)
	sim := usecase.NewSimulation(cfg, ledger, registry, feed, sinks, store, log)

	// 6. Start Web Server
	server := web.NewServer(cfg.Server.Port, sim, store, hub, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Error("Web server failed", zap.Error(err))
		}
	}()

	// 7. Start Simulation
	if err := sim.Start(); err != nil {
		return err
	}
	log.Info("Simulator running",
		zap.Float64("initial_capital", cfg.Portfolio.InitialCapital),
		zap.Strings("tickers", cfg.Market.Tickers),
		zap.Int("port", cfg.Server.Port))

	// 8. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("Shutting down...")

	if err := sim.Stop(); err != nil && !errors.Is(err, usecase.ErrSimulationNotRunning) {
		log.Error("Failed to stop simulation", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if cfg.Simulation.CloseOnExit {
		closed := sim.ForceCloseAll(shutdownCtx)
		log.Info("Closed positions on exit", zap.Int("count", len(closed)))
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	summary := ledger.GetPortfolioSummary()
	log.Info("Final portfolio",
		zap.Float64("capital", summary.CurrentCapital),
		zap.Int("trades", summary.TotalTrades),
		zap.Float64("net_profit", summary.NetProfit),
		zap.Int("open_positions", summary.TotalPositions))
	return nil
}

func newLogger(cfg config.Logging) (*zap.Logger, error) {
	if cfg.File != "" {
		return logger.NewFileLogger(cfg.File, cfg.Level)
	}
	return logger.NewLogger(cfg.Level)
}

func reportCmd() *cobra.Command {
	var (
		dbPath string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print performance statistics from the trade journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.NewSQLiteStore(dbPath)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			trades, err := store.ListTrades(ctx, limit)
			if err != nil {
				return fmt.Errorf("list trades: %w", err)
			}
			snapshots, err := store.ListEquitySnapshots(ctx, 1)
			if err != nil {
				return fmt.Errorf("list snapshots: %w", err)
			}
			return analytics.WriteReport(cmd.OutOrStdout(), trades, snapshots)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", config.Default().Storage.SQLitePath, "Path to the SQLite journal")
	cmd.Flags().IntVar(&limit, "limit", 0, "Only include the most recent N trades (0 = all)")
	return cmd
}
