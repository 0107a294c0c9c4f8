package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/strata/pkg/config"
	"github.com/cuemby/strata/pkg/engine"
	"github.com/cuemby/strata/pkg/log"
	"github.com/cuemby/strata/pkg/metrics"
	"github.com/cuemby/strata/pkg/types"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "strata",
	Short:   "Strata - embeddable full-text and vector search engine",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"strata version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to config file (defaults to built-in config)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(taskCmd)

	snapshotCmd.AddCommand(snapshotCreateCmd)
	dumpCmd.AddCommand(dumpCreateCmd)
	taskCmd.AddCommand(taskListCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func loadConfig(cmd *cobra.Command) (types.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return types.DefaultConfig(), nil
	}
	return config.Load(path)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the engine and block until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		e, err := engine.New(cfg)
		if err != nil {
			return fmt.Errorf("start engine: %w", err)
		}
		defer e.Close()

		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		if metricsAddr != "" {
			go serveMetrics(metricsAddr)
		}

		log.Info("strata engine started")
		fmt.Printf("Data directory: %s\n", cfg.DataDir)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		log.Info("shutting down")
		return nil
	},
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("metrics server stopped: %v", err)
	}
}

func init() {
	serveCmd.Flags().String("metrics-addr", "", "Address to serve Prometheus metrics on, e.g. :9090 (disabled if empty)")
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage byte-level snapshots",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Enqueue a snapshot creation task",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		e, err := engine.New(cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		t, err := e.CreateSnapshotTask()
		if err != nil {
			return err
		}
		fmt.Printf("enqueued snapshot task %d\n", t.UID)
		return nil
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Manage portable dump archives",
}

var dumpCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Enqueue a dump creation task",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		e, err := engine.New(cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		t, err := e.CreateDumpTask()
		if err != nil {
			return err
		}
		fmt.Printf("enqueued dump task %d\n", t.UID)
		return nil
	},
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect queued and completed tasks",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks for an index",
	RunE: func(cmd *cobra.Command, args []string) error {
		indexUID, _ := cmd.Flags().GetString("index")
		if indexUID == "" {
			return fmt.Errorf("--index is required")
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		e, err := engine.New(cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		tasks, err := e.ListTasksByIndex(indexUID)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			fmt.Printf("%d\t%s\t%s\n", t.UID, t.Kind, t.Status)
		}
		return nil
	},
}

func init() {
	taskListCmd.Flags().String("index", "", "Index UID to list tasks for")
}
