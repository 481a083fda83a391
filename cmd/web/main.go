package main

import (
	"fmt"
	"net"
	"os"

	"github.com/de-tools/kmp-audit/pkg/server"
	"github.com/de-tools/kmp-audit/pkg/services/audit"
	"github.com/de-tools/kmp-audit/pkg/services/batch"
	"github.com/de-tools/kmp-audit/pkg/services/config"
	"github.com/de-tools/kmp-audit/pkg/services/gather"
	"github.com/de-tools/kmp-audit/pkg/store/duckdb"
	"github.com/de-tools/kmp-audit/pkg/store/duckdb/results"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgPath   string
	hostsPath string
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the web server for the KMP audit",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to the audit configuration file")
	rootCmd.Flags().StringVar(&hostsPath, "hosts", "", "Path to the INI host inventory used by remote runs")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	settings, err := config.LoadSettings(cfgPath)
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(settings.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	analyzer, err := audit.NewAnalyzer(settings.AuditSettings())
	if err != nil {
		return fmt.Errorf("failed to create analyzer: %w", err)
	}

	var exec gather.Executor = gather.LocalExecutor{}
	if hostsPath != "" {
		hosts, err := config.NewHostRegistry(hostsPath)
		if err != nil {
			return fmt.Errorf("failed to load host inventory: %w", err)
		}
		names, _ := hosts.GetHosts(ctx)
		logger.Info().Strs("hosts", names).Msgf("Host inventory `%s` loaded.", hostsPath)
		exec = gather.NewSSHExecutor(hosts, settings.Gather.Timeout)
	}
	gatherer := gather.NewDefaultDispatcher(exec, settings.Gather.Command, settings.Gather.LiveCommand)

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "kmp-audit.db"
	}
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: dbPath})
	if err != nil {
		return fmt.Errorf("failed to create DuckDB instance: %w", err)
	}
	defer db.Close()

	resultStore, err := results.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create result store: %w", err)
	}

	driver := batch.NewDriver(gatherer, analyzer, batch.Config{
		Concurrency: settings.Batch.Concurrency,
		Timeout:     settings.Gather.Timeout,
	})
	runCtrl := batch.NewController(driver, batch.NewRecorder(db, resultStore))

	host := os.Getenv("SERVER_HOST")
	port := os.Getenv("SERVER_PORT")
	if host == "" || port == "" {
		return fmt.Errorf("missing SERVER_HOST or SERVER_PORT")
	}

	api := server.NewWebAPI(server.Config{
		Addr: net.JoinHostPort(host, port),
		Dependencies: server.Dependencies{
			Analyzer:      analyzer,
			Results:       resultStore,
			RunController: runCtrl,
			Logger:        logger,
		},
		OnShutdown: runCtrl.Shutdown,
	})
	return api.Start()
}
