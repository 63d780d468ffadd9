// Package config builds the typed runtime configuration from viper.
package config

import (
	stdErrors "errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/lepinkainen/bookshelf/internal/errors"
)

// EnvBindings maps viper keys to the environment variables that override them.
var EnvBindings = map[string]string{
	"notion.token":        "NOTION_API_TOKEN",
	"notion.database_id":  "NOTION_DATABASE_ID",
	"notion.template_id":  "AUTO_BOOK_TEMPLATE_ID",
	"covers.github_raw":   "GITHUB_RAW",
	"googlebooks.api_key": "GOOGLE_BOOKS_API_KEY",
}

// Config is the full runtime configuration.
type Config struct {
	Paths       PathsConfig       `mapstructure:"paths"`
	Cache       CacheConfig       `mapstructure:"cache"`
	GoogleBooks GoogleBooksConfig `mapstructure:"googlebooks"`
	OpenLibrary OpenLibraryConfig `mapstructure:"openlibrary"`
	Covers      CoversConfig      `mapstructure:"covers"`
	Notion      NotionConfig      `mapstructure:"notion"`
	Backup      BackupConfig      `mapstructure:"backup"`
}

// PathsConfig holds the local file layout.
type PathsConfig struct {
	InputFile string `mapstructure:"input_file" validate:"required"`
	BooksDir  string `mapstructure:"books_dir" validate:"required"`
	StagingDB string `mapstructure:"staging_db" validate:"required"`
}

// CacheConfig holds the catalog cache settings.
type CacheConfig struct {
	DBFile string        `mapstructure:"dbfile" validate:"required"`
	TTL    time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// GoogleBooksConfig holds the primary catalog settings.
type GoogleBooksConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	APIKey  string `mapstructure:"api_key"`
}

// OpenLibraryConfig holds the fallback catalog settings.
type OpenLibraryConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

// CoversConfig holds cover storage settings.
type CoversConfig struct {
	// GitHubRaw is the raw-content URL of the repository the covers are pushed to.
	GitHubRaw string `mapstructure:"github_raw" validate:"omitempty,url"`
	MaxWidth  int    `mapstructure:"max_width" validate:"gte=0"`
}

// NotionConfig holds the Notion integration settings.
type NotionConfig struct {
	BaseURL    string `mapstructure:"base_url" validate:"required,url"`
	Token      string `mapstructure:"token" validate:"required"`
	DatabaseID string `mapstructure:"database_id" validate:"required"`
	TemplateID string `mapstructure:"template_id"`
}

// BackupConfig holds snapshot settings.
type BackupConfig struct {
	Dir            string `mapstructure:"dir" validate:"required"`
	Compress       bool   `mapstructure:"compress"`
	IncludeContent bool   `mapstructure:"include_content"`
}

// SetDefaults registers the default value of every key.
func SetDefaults() { setDefaults(viper.GetViper()) }

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.input_file", "isbn_input.json")
	v.SetDefault("paths.books_dir", "books")
	v.SetDefault("paths.staging_db", "books/staging.db")

	v.SetDefault("cache.dbfile", "./cache.db")
	v.SetDefault("cache.ttl", "720h") // 30 days

	v.SetDefault("googlebooks.base_url", "https://www.googleapis.com/books/v1")
	v.SetDefault("openlibrary.base_url", "https://openlibrary.org")
	v.SetDefault("notion.base_url", "https://api.notion.com/v1")

	v.SetDefault("covers.max_width", 0)

	v.SetDefault("backup.dir", "backups")
	v.SetDefault("backup.compress", false)
	v.SetDefault("backup.include_content", true)
}

// WriteDefaultConfig writes a config file holding only the defaults to path,
// so credentials from the environment or .env files never end up on disk.
// An existing file is left alone and reported as an error.
func WriteDefaultConfig(path string) error {
	v := viper.New()
	setDefaults(v)
	if err := v.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("write default config %s: %w", path, err)
	}
	return nil
}

// BindEnv binds every key in EnvBindings to its environment variable.
func BindEnv() error {
	for key, env := range EnvBindings {
		if err := viper.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", env, key, err)
		}
	}
	return nil
}

// Load reads the current viper state into a Config and validates everything
// except the Notion section, which only some commands need.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, errors.Config("", fmt.Errorf("decode configuration: %w", err))
	}

	sections := []struct {
		prefix  string
		section any
	}{
		{"paths", cfg.Paths},
		{"cache", cfg.Cache},
		{"googlebooks", cfg.GoogleBooks},
		{"openlibrary", cfg.OpenLibrary},
		{"covers", cfg.Covers},
		{"backup", cfg.Backup},
	}
	for _, s := range sections {
		if err := validate(s.prefix, s.section); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// RequireNotion validates the Notion credentials. Publishing also needs the
// template page, so requireTemplate adds that check.
func (c *Config) RequireNotion(requireTemplate bool) error {
	if err := validate("notion", c.Notion); err != nil {
		return err
	}
	if requireTemplate && strings.TrimSpace(c.Notion.TemplateID) == "" {
		return missing("notion.template_id")
	}
	return nil
}

// NewBooksDir is the bucket of staged, unpublished books.
func (c *Config) NewBooksDir() string { return filepath.Join(c.Paths.BooksDir, "new_books") }

// ProcessedBooksDir is the bucket of published books.
func (c *Config) ProcessedBooksDir() string {
	return filepath.Join(c.Paths.BooksDir, "processed_books")
}

// CoversDir is where downloaded covers are stored.
func (c *Config) CoversDir() string { return filepath.Join(c.Paths.BooksDir, "covers") }

// PublicCoverBaseURL is the public location of CoversDir, or "" when GITHUB_RAW is unset.
func (c *Config) PublicCoverBaseURL() string {
	if c.Covers.GitHubRaw == "" {
		return ""
	}
	return strings.TrimRight(c.Covers.GitHubRaw, "/") + "/books/covers"
}

var validate = newValidator()

func newValidator() func(prefix string, section any) error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("mapstructure")
		if name == "" {
			return fld.Name
		}
		return name
	})

	return func(prefix string, section any) error {
		err := v.Struct(section)
		if err == nil {
			return nil
		}
		var fieldErrs validator.ValidationErrors
		if !stdErrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
			return errors.Config(prefix, err)
		}
		fe := fieldErrs[0]
		key := prefix + "." + fe.Field()
		if fe.Tag() == "required" {
			return missing(key)
		}
		return errors.Config(key, fmt.Errorf("value %v fails %q", fe.Value(), fe.Tag()))
	}
}

func missing(key string) error {
	if env, ok := EnvBindings[key]; ok {
		return errors.Config(key, fmt.Errorf("is required (set %s)", env))
	}
	return errors.Config(key, fmt.Errorf("is required"))
}
