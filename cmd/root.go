package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sales-data-guard/internal/display"
	"sales-data-guard/internal/logging"
	"sales-data-guard/internal/restore"
	"sales-data-guard/internal/snapshot"
	"sales-data-guard/internal/store"
)

var cfgFile string

// CLI flag variables
var (
	// Database flags
	dbHost     string
	dbPort     int
	dbUsername string
	dbPassword string
	dbName     string

	// Operation flags
	verbose bool
	quiet   bool
	timeout time.Duration
	logFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sales-data-guard",
	Short: "Backup, integrity-verified restore and emergency rollback for the customer data store",
	Long: `Sales Data Guard protects the relational customer-data store (customers,
sales, sale items, communication logs, settings) against accidental loss and
unsafe operator action.

Backups validate every record against integrity rules before anything is
written; dirty data is refused. Restores and rollbacks require an exact
confirmation phrase, automatically snapshot the current state first, reload
all tables inside one transaction, and verify the result fingerprint by
fingerprint — reverting automatically if the outcome does not match.

Examples:
  # Create a snapshot
  sales-data-guard backup create --reason "before price migration"

  # List stored snapshots, newest first
  sales-data-guard backup list

  # Restore a snapshot (requires the exact confirmation phrase)
  sales-data-guard restore snap-20260830-120000-a1b2c3d4 \
      --confirm "RESTORE CUSTOMER DATA" --actor jane --role admin

  # Run the recurring backup scheduler in the foreground
  sales-data-guard schedule run`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Configuration file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sales-data-guard.yaml)")

	// Database flags
	rootCmd.PersistentFlags().StringVar(&dbHost, "db-host", "", "database host")
	rootCmd.PersistentFlags().IntVar(&dbPort, "db-port", 3306, "database port")
	rootCmd.PersistentFlags().StringVar(&dbUsername, "db-user", "", "database username")
	rootCmd.PersistentFlags().StringVar(&dbPassword, "db-password", "", "database password")
	rootCmd.PersistentFlags().StringVar(&dbName, "db-name", "", "database name")

	// Operation flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "database operation timeout")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to file in addition to stdout")

	// Bind flags to viper
	viper.BindPFlag("database.host", rootCmd.PersistentFlags().Lookup("db-host"))
	viper.BindPFlag("database.port", rootCmd.PersistentFlags().Lookup("db-port"))
	viper.BindPFlag("database.username", rootCmd.PersistentFlags().Lookup("db-user"))
	viper.BindPFlag("database.password", rootCmd.PersistentFlags().Lookup("db-password"))
	viper.BindPFlag("database.database", rootCmd.PersistentFlags().Lookup("db-name"))
	viper.BindPFlag("database.timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".sales-data-guard" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".sales-data-guard")
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("SALES_DATA_GUARD")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// newLogger builds the logger from the effective flag/config state.
func newLogger() (*logging.Logger, error) {
	level := logging.LogLevelNormal
	if verbose {
		level = logging.LogLevelVerbose
	}
	if quiet {
		level = logging.LogLevelQuiet
	}
	return logging.NewLogger(logging.Config{
		Level:   level,
		LogFile: logFile,
	})
}

// validateFlags validates CLI flags and their combinations
func validateFlags() error {
	if verbose && quiet {
		return fmt.Errorf("--verbose and --quiet flags are mutually exclusive")
	}
	if timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

// buildDatabaseConfig builds the connection configuration from viper.
func buildDatabaseConfig() (*store.DatabaseConfig, error) {
	config := &store.DatabaseConfig{}
	if err := viper.UnmarshalKey("database", config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal database configuration: %w", err)
	}
	if config.Port == 0 {
		config.Port = 3306
	}
	if config.Timeout == 0 {
		config.Timeout = timeout
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// buildSystemConfig builds the snapshot subsystem configuration from viper.
func buildSystemConfig() (*snapshot.SystemConfig, error) {
	config := &snapshot.SystemConfig{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// guardContext bundles the wired-up subsystem for one command invocation.
type guardContext struct {
	store        *store.MySQLStore
	engine       *snapshot.Engine
	orchestrator *restore.Orchestrator
	config       *snapshot.SystemConfig
	logger       *logging.Logger
	display      *display.Service
}

// newGuardContext connects to the database and assembles the snapshot engine
// and restore orchestrator around a shared operation gate.
func newGuardContext(ctx context.Context) (*guardContext, error) {
	if err := validateFlags(); err != nil {
		return nil, err
	}

	logger, err := newLogger()
	if err != nil {
		return nil, err
	}

	dbConfig, err := buildDatabaseConfig()
	if err != nil {
		return nil, err
	}

	systemConfig, err := buildSystemConfig()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	mysqlStore, err := store.Open(ctx, *dbConfig)
	logger.LogStoreConnection(dbConfig.Host, dbConfig.Database, err == nil, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	storageProvider, err := snapshot.NewStorageProvider(ctx, &systemConfig.Storage)
	if err != nil {
		mysqlStore.Close()
		return nil, err
	}

	engine, err := snapshot.NewEngine(mysqlStore, storageProvider, nil, nil, systemConfig)
	if err != nil {
		mysqlStore.Close()
		return nil, err
	}
	engine.SetLogger(logger)

	orchestrator, err := restore.NewOrchestrator(engine, mysqlStore)
	if err != nil {
		mysqlStore.Close()
		return nil, err
	}
	orchestrator.SetLogger(logger)

	return &guardContext{
		store:        mysqlStore,
		engine:       engine,
		orchestrator: orchestrator,
		config:       systemConfig,
		logger:       logger,
		display:      display.NewService(),
	}, nil
}

// Close releases the database connection.
func (gc *guardContext) Close() {
	if gc.store != nil {
		gc.store.Close()
	}
}

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Long:  "Print the version information for sales-data-guard",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sales-data-guard version %s\n", version)
			fmt.Printf("Built: %s\n", buildTime)
			fmt.Printf("Commit: %s\n", gitCommit)
			fmt.Printf("Go version: %s\n", goVersion)
		},
	}
}

// createConfigCommand creates the config subcommand for generating sample config
func createConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Generate a sample configuration file",
		Long: `Generate a sample configuration file that can be used with the --config flag.

Examples:
  # Generate config file
  sales-data-guard config > .sales-data-guard.yaml`,
		Run: func(cmd *cobra.Command, args []string) {
			sampleConfig := `# Sales Data Guard Configuration File

# Database connection
database:
  host: localhost           # Database hostname or IP
  port: 3306                # Database port
  username: root            # Database username
  password: ""              # Database password (use env var for security)
  database: sales           # Database name
  timeout: 30s              # Connection timeout

# Snapshot storage
storage:
  provider: LOCAL           # Storage backend: LOCAL, S3, GCS, AZURE
  local:
    base_path: /var/lib/sales-data-guard/snapshots
  # s3:
  #   bucket: my-snapshots
  #   region: eu-central-1
  #   access_key: ""        # Falls back to the AWS credential chain when empty
  #   secret_key: ""
  # gcs:
  #   bucket: my-snapshots
  #   credentials_path: /etc/sales-data-guard/gcs.json
  #   project_id: my-project
  # azure:
  #   account_name: myaccount
  #   account_key: ""
  #   container_name: snapshots

# Artifact compression: NONE, GZIP, LZ4, ZSTD
compression:
  algorithm: GZIP
  level: 6

# Optional artifact encryption (AES-256-GCM, passphrase-derived key)
encryption:
  enabled: false
  passphrase_path: ""       # Read passphrase from this file, or
  passphrase_env: ""        # read it from this environment variable

# Recurring backup schedule
schedule:
  interval: 24h             # Minimum 1m
  run_log_path: /var/lib/sales-data-guard/runs.jsonl

# Logging
verbose: false
quiet: false
log_file: ""

# Security recommendations:
# 1. Store passwords in environment variables:
#    export SALES_DATA_GUARD_DATABASE_PASSWORD=your_password
# 2. Set restrictive file permissions: chmod 600 .sales-data-guard.yaml
# 3. Use a dedicated database user with minimal required privileges
`
			fmt.Print(sampleConfig)
		},
	}
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createConfigCommand())
}
