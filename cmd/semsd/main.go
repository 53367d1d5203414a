// Package main provides semsd, the local sync daemon for SEMS dispensing
// workstations. The UI shell talks to it over REST/WebSocket on localhost;
// semsd owns the local record store and pushes records to the central
// server whenever connectivity allows.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/semsproject/sems-client/internal/db"
	"github.com/semsproject/sems-client/internal/logging"
	"github.com/semsproject/sems-client/internal/sync"
	"github.com/semsproject/sems-client/internal/sync/queue"
	"github.com/semsproject/sems-client/internal/sync/scheduler"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "semsd",
	Short: "SEMS offline-first sync daemon",
	Long: `semsd stores dispense records, tickets, and drug submissions locally
and synchronizes them with the central SEMS server. Records created while
offline are queued and pushed once connectivity returns.`,
	RunE: runDaemon,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default semsd.yaml in data dir)")
	rootCmd.Flags().String("data-dir", "./data", "directory for the local database and logs")
	rootCmd.Flags().String("api-base-url", "", "base URL of the central SEMS server")
	rootCmd.Flags().String("listen", "127.0.0.1:8095", "local address for the UI API")

	_ = viper.BindPFlag("data_dir", rootCmd.Flags().Lookup("data-dir"))
	_ = viper.BindPFlag("api_base_url", rootCmd.Flags().Lookup("api-base-url"))
	_ = viper.BindPFlag("http.listen_addr", rootCmd.Flags().Lookup("listen"))
}

func initConfig() {
	viper.SetDefault("data_dir", "./data")
	viper.SetDefault("http.listen_addr", "127.0.0.1:8095")
	viper.SetDefault("sync.enabled", true)
	viper.SetDefault("sync.interval_seconds", 300)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", "")

	viper.SetEnvPrefix("SEMS")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("semsd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath(viper.GetString("data_dir"))
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "failed to read config: %v\n", err)
			os.Exit(1)
		}
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	dataDir := viper.GetString("data_dir")

	logFile := viper.GetString("log.file")
	if logFile == "" && dataDir != "" {
		logFile = filepath.Join(dataDir, "sync.log")
	}
	logging.Init(logging.Options{
		MinLevel: viper.GetString("log.level"),
		FilePath: logFile,
	})

	baseURL := viper.GetString("api_base_url")
	if baseURL == "" {
		return fmt.Errorf("api_base_url is required (flag, semsd.yaml, or SEMS_API_BASE_URL)")
	}

	database, err := db.Open(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open local store: %w", err)
	}
	defer database.Close()

	repo := db.NewRepository(database.DB)
	defer repo.Close()

	q := queue.New(repo)
	status := sync.NewStatusPublisher(repo)
	client := sync.NewClient(baseURL)
	engine := sync.NewEngine(repo, q, client, status)

	sched := scheduler.New(scheduledRunner{engine: engine}, viper.GetInt("sync.interval_seconds"))
	if viper.GetBool("sync.enabled") {
		sched.Start()
		defer sched.Stop()
	}

	srv := newServer(repo, q, engine, status, sched)
	listenAddr := viper.GetString("http.listen_addr")

	errCh := make(chan error, 1)
	go func() {
		logging.Info("local API listening", map[string]interface{}{"addr": listenAddr})
		errCh <- srv.ListenAndServe(listenAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case s := <-sigCh:
		logging.Info("shutting down", map[string]interface{}{"signal": s.String()})
		srv.Shutdown()
		return nil
	}
}

// scheduledRunner reads the token at pass time so a rotated auth_token
// reaches the server without restarting the daemon.
type scheduledRunner struct {
	engine *sync.Engine
}

func (r scheduledRunner) RunPass(ctx context.Context) (sync.Result, error) {
	return r.engine.RunPass(ctx, sync.Credentials{Token: viper.GetString("auth_token")})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
