package cmd

import (
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/lepinkainen/bookshelf/internal/cache"
	"github.com/lepinkainen/bookshelf/internal/config"
)

const defaultConfigFile = "config.yaml"

var (
	stdout     io.Writer = os.Stdout
	loadConfig           = config.Load
)

// CLI represents the complete command structure for the bookshelf application
type CLI struct {
	// Global flags
	Verbose bool `short:"v" help:"Enable debug logging"`

	// Cache flags
	CacheDBFile string `help:"Path to cache SQLite database file (overrides cache.dbfile)"`
	CacheTTL    string `help:"Cache time-to-live duration (e.g., 720h for 30 days)"`

	Add     AddCmd     `cmd:"" help:"Add an ISBN to the input list"`
	Resolve ResolveCmd `cmd:"" help:"Resolve ISBNs from the input list and stage them"`
	Publish PublishCmd `cmd:"" help:"Publish staged books to Notion"`
	Backup  BackupCmd  `cmd:"" help:"Export the Notion book database to a dated JSON file"`
	Status  StatusCmd  `cmd:"" help:"Show staged books"`
	Cache   CacheCmd   `cmd:"" help:"Manage the catalog lookup cache"`
}

// CacheCmd groups cache maintenance commands.
type CacheCmd struct {
	Invalidate cache.InvalidateCacheCmd `cmd:"" help:"Clear all cached lookups for a source"`
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("bookshelf"),
		kong.Description("Resolve ISBNs, stage book metadata and publish it to Notion."),
		kong.UsageOnError(),
	}, options...)
	return kong.New(cli, options...)
}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging(false)

	if err := initConfig(); err != nil {
		slog.Error("Fatal error config file", "error", err)
		os.Exit(1)
	}

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// run parses args and executes the selected command.
func run(args []string, options ...kong.Option) error {
	var cli CLI
	parser, err := newParser(&cli, options...)
	if err != nil {
		return err
	}

	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	if cli.Verbose {
		initLogging(true)
	}
	updateGlobalConfig(&cli)

	var cacheDB *cache.CacheDB
	defer func() {
		if cacheDB != nil {
			if err := cacheDB.Close(); err != nil {
				slog.Warn("Failed to close cache database", "error", err)
			}
		}
	}()

	// Only commands that take a *cache.CacheDB open the database.
	if err := ctx.BindToProvider(func() (*cache.CacheDB, error) {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		cacheDB, err = cache.Open(cfg.Cache.DBFile, cfg.Cache.TTL)
		return cacheDB, err
	}); err != nil {
		return err
	}

	return ctx.Run()
}

// initConfig loads .env files, registers defaults and env bindings, and
// reads config.yaml, writing one with the defaults when it is missing.
func initConfig() error {
	for _, file := range []string{".env", ".env.local"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to load env file", "file", file, "error", err)
		}
	}

	config.SetDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()
	if err := config.BindEnv(); err != nil {
		return err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stdErrors.As(err, &notFound) {
			return fmt.Errorf("read config file: %w", err)
		}
		slog.Info("Config file not found, writing default config file...")
		if err := config.WriteDefaultConfig(defaultConfigFile); err != nil {
			slog.Error("Error writing config file", "error", err)
		}
	}
	return nil
}

func updateGlobalConfig(cli *CLI) {
	if cli.CacheDBFile != "" {
		viper.Set("cache.dbfile", cli.CacheDBFile)
	}
	if cli.CacheTTL != "" {
		viper.Set("cache.ttl", cli.CacheTTL)
	}
}

func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	// Create a human-readable handler for logging
	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})

	// Set the default logger
	slog.SetDefault(slog.New(handler))
}
