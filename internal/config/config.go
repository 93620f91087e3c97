// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"kitchen-print-service/internal/model"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Printing PrintingConfig  `mapstructure:"printing"`
	Printers []PrinterConfig `mapstructure:"printers"`
	NATS     NATSConfig      `mapstructure:"nats"`
	Database DatabaseConfig  `mapstructure:"database"`
	Security SecurityConfig  `mapstructure:"security"`
	App      AppConfig       `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// PrintingConfig holds transport bounds and profile defaults
type PrintingConfig struct {
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout"`
	SendTimeout         time.Duration `mapstructure:"send_timeout"`
	NetworkMode         string        `mapstructure:"network_mode"`
	MaxConcurrency      int           `mapstructure:"max_concurrency"`
	DefaultPaperWidth   int           `mapstructure:"default_paper_width"`
	DefaultCharacterSet string        `mapstructure:"default_character_set"`
	Header              string        `mapstructure:"header"`
	ConnectOnStartup    bool          `mapstructure:"connect_on_startup"`
}

// PrinterConfig is one statically configured printer
type PrinterConfig struct {
	ID                  string `mapstructure:"id"`
	model.DeviceProfile `mapstructure:",squash"`
}

// NATSConfig represents order intake over NATS
type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
	Queue   string `mapstructure:"queue"`
	Name    string `mapstructure:"name"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	DBName       string        `mapstructure:"dbname"`
	SSLMode      string        `mapstructure:"sslmode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
	AutoMigrate  bool          `mapstructure:"auto_migrate"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from config.yaml and KITCHEN_PRINT_* environment variables
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from an explicit file, or from the default
// search paths when path is empty. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/kitchen-print-service")
	}

	// Environment variable support
	v.SetEnvPrefix("KITCHEN_PRINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8086")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Printing defaults
	v.SetDefault("printing.connect_timeout", "10s")
	v.SetDefault("printing.send_timeout", "15s")
	v.SetDefault("printing.network_mode", "http")
	v.SetDefault("printing.max_concurrency", 0)
	v.SetDefault("printing.default_paper_width", model.DefaultPaperWidth)
	v.SetDefault("printing.default_character_set", model.DefaultCharacterSet)
	v.SetDefault("printing.header", "KITCHEN ORDER")
	v.SetDefault("printing.connect_on_startup", true)

	// NATS defaults
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.subject", "kitchen.orders")
	v.SetDefault("nats.queue", "kitchen-print")
	v.SetDefault("nats.name", "kitchen-print-service")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "kitchen_print")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_lifetime", "5m")
	v.SetDefault("database.auto_migrate", true)

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{"*"})

	// App defaults
	v.SetDefault("app.name", "kitchen-print-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	if !contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	// Validate printing
	validModes := []string{"http", "raw"}
	if !contains(validModes, config.Printing.NetworkMode) {
		return fmt.Errorf("printing.network_mode must be one of: %v", validModes)
	}
	if config.Printing.ConnectTimeout <= 0 || config.Printing.SendTimeout <= 0 {
		return fmt.Errorf("printing timeouts must be positive")
	}
	if config.Printing.DefaultPaperWidth <= 0 {
		return fmt.Errorf("printing.default_paper_width must be positive")
	}

	// Validate printers
	seen := make(map[string]bool, len(config.Printers))
	for i, printer := range config.Printers {
		if printer.ID == "" {
			return fmt.Errorf("printers[%d].id is required", i)
		}
		if seen[printer.ID] {
			return fmt.Errorf("printers[%d].id %q is duplicated", i, printer.ID)
		}
		seen[printer.ID] = true

		if err := config.PrinterProfile(printer).Validate(); err != nil {
			return fmt.Errorf("printers[%d] (%s): %w", i, printer.ID, err)
		}
	}

	if config.NATS.Enabled && config.NATS.Subject == "" {
		return fmt.Errorf("nats.subject is required when nats is enabled")
	}

	return nil
}

// ESC/POS is accepted as spelled on printer datasheets
var commandSetSeparators = strings.NewReplacer("/", "", "-", "", "_", "")

func normalizeName(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// PrinterProfile returns the printer's profile with printing defaults applied.
// Transport, class and command set names are matched case-insensitively.
func (c *Config) PrinterProfile(printer PrinterConfig) model.DeviceProfile {
	profile := printer.DeviceProfile
	profile.Transport = model.TransportKind(normalizeName(string(profile.Transport)))
	profile.Class = model.PrinterClass(normalizeName(string(profile.Class)))
	profile.CommandSet = model.CommandFamily(commandSetSeparators.Replace(normalizeName(string(profile.CommandSet))))
	if profile.PaperWidth == 0 {
		profile.PaperWidth = c.Printing.DefaultPaperWidth
	}
	if profile.CharacterSet == "" {
		profile.CharacterSet = c.Printing.DefaultCharacterSet
	}
	return profile.WithDefaults()
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
