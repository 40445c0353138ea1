package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Recon     ReconConfig
	Extract   ExtractConfig
	Export    ExportConfig
	Scheduler SchedulerConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string

	// CORSAllowOrigins is empty by default; cross-origin requests are
	// rejected until origins are configured.
	CORSAllowOrigins []string
}

// ReconConfig holds reconciliation engine parameters
type ReconConfig struct {
	MaterialityThreshold string // decimal string, e.g. "10.00"
	AmountTolerance      string // decimal string, e.g. "0.05"
	DateWindowDays       int
	IncludeCleanMatches  bool
	Concurrency          int
	AliasFile            string // path to vendor alias CSV, empty disables fuzzy vendor resolution
}

// ExtractConfig holds input file settings
type ExtractConfig struct {
	PayablesFile string
	LedgerFile   string
	Delimiter    string // single character, default ";"
}

// ExportConfig holds report export settings
type ExportConfig struct {
	OutputDir     string
	SheetName     string
	FilenameStamp string // time layout used in generated filenames
}

// SchedulerConfig holds business-day run scheduling configuration
type SchedulerConfig struct {
	Enabled  bool
	RunDays  []int    // business-day ordinals of the month, e.g. [1, 10]
	Holidays []string // dates in 2006-01-02 format, in addition to weekends
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with RECON_ prefix (e.g., RECON_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("RECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		},
		Recon: ReconConfig{
			MaterialityThreshold: v.GetString("recon.materiality_threshold"),
			AmountTolerance:      v.GetString("recon.amount_tolerance"),
			DateWindowDays:       v.GetInt("recon.date_window_days"),
			IncludeCleanMatches:  v.GetBool("recon.include_clean_matches"),
			Concurrency:          v.GetInt("recon.concurrency"),
			AliasFile:            v.GetString("recon.alias_file"),
		},
		Extract: ExtractConfig{
			PayablesFile: v.GetString("extract.payables_file"),
			LedgerFile:   v.GetString("extract.ledger_file"),
			Delimiter:    v.GetString("extract.delimiter"),
		},
		Export: ExportConfig{
			OutputDir:     v.GetString("export.output_dir"),
			SheetName:     v.GetString("export.sheet_name"),
			FilenameStamp: v.GetString("export.filename_stamp"),
		},
		Scheduler: SchedulerConfig{
			Enabled:  v.GetBool("scheduler.enabled"),
			RunDays:  v.GetIntSlice("scheduler.run_days"),
			Holidays: v.GetStringSlice("scheduler.holidays"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "recon-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "recon"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.Recon.MaterialityThreshold == "" {
		cfg.Recon.MaterialityThreshold = "10.00"
	}
	if cfg.Recon.AmountTolerance == "" {
		cfg.Recon.AmountTolerance = "0.05"
	}
	if cfg.Recon.DateWindowDays == 0 {
		cfg.Recon.DateWindowDays = 5
	}
	if cfg.Recon.Concurrency == 0 {
		cfg.Recon.Concurrency = 4
	}
	if cfg.Extract.Delimiter == "" {
		cfg.Extract.Delimiter = ";"
	}
	if cfg.Export.OutputDir == "" {
		cfg.Export.OutputDir = "."
	}
	if cfg.Export.SheetName == "" {
		cfg.Export.SheetName = "Divergencias"
	}
	if cfg.Export.FilenameStamp == "" {
		cfg.Export.FilenameStamp = "2006-01-02"
	}
	if len(cfg.Scheduler.RunDays) == 0 {
		cfg.Scheduler.RunDays = []int{1}
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Recon.DateWindowDays < 0 {
		return fmt.Errorf("recon.date_window_days cannot be negative")
	}
	if c.Recon.Concurrency <= 0 {
		return fmt.Errorf("recon.concurrency must be positive")
	}
	if len(c.Extract.Delimiter) != 1 {
		return fmt.Errorf("extract.delimiter must be a single character, got %q", c.Extract.Delimiter)
	}
	for _, d := range c.Scheduler.RunDays {
		if d < 1 || d > 23 {
			return fmt.Errorf("scheduler.run_days entries must be between 1 and 23, got %d", d)
		}
	}
	for _, h := range c.Scheduler.Holidays {
		if _, err := time.Parse("2006-01-02", h); err != nil {
			return fmt.Errorf("scheduler.holidays entry %q is not a valid 2006-01-02 date", h)
		}
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// HolidayDates parses the configured holiday strings. validate has already
// checked the format, so parse errors are skipped.
func (s *SchedulerConfig) HolidayDates() []time.Time {
	out := make([]time.Time, 0, len(s.Holidays))
	for _, h := range s.Holidays {
		d, err := time.Parse("2006-01-02", h)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}
