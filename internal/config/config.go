package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/catchment-cli/internal/legend"
	"github.com/sells-group/catchment-cli/pkg/arcgis"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Solver SolverConfig `yaml:"solver" mapstructure:"solver"`
	Legend LegendConfig `yaml:"legend" mapstructure:"legend"`
	Siting SitingConfig `yaml:"siting" mapstructure:"siting"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SolverConfig configures the service area solver and the break schedule.
type SolverConfig struct {
	URL         string  `yaml:"url" mapstructure:"url"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	TravelMode  string  `yaml:"travel_mode" mapstructure:"travel_mode"`
	NumBreaks   int     `yaml:"num_breaks" mapstructure:"num_breaks"`
	BreakSize   float64 `yaml:"break_size" mapstructure:"break_size"`
	MinBreak    float64 `yaml:"min_break" mapstructure:"min_break"`
	MaxBreak    float64 `yaml:"max_break" mapstructure:"max_break"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// Breaks returns the configured break schedule with the size clamped to
// [MinBreak, MaxBreak].
func (s SolverConfig) Breaks() []float64 {
	return arcgis.Breaks(s.NumBreaks, arcgis.ClampBreakSize(s.BreakSize, s.MinBreak, s.MaxBreak))
}

// LegendConfig configures ring shading and group colors.
type LegendConfig struct {
	BaseColor string   `yaml:"base_color" mapstructure:"base_color"`
	Alpha     float64  `yaml:"alpha" mapstructure:"alpha"`
	Palette   []string `yaml:"palette" mapstructure:"palette"`
}

// Compositor builds the ring color compositor from the configured base.
func (l LegendConfig) Compositor() legend.Compositor {
	c := legend.NewCompositor()
	if l.BaseColor != "" {
		base := legend.ParseRGBA(l.BaseColor)
		c.Base = legend.RGB{R: base.R, G: base.G, B: base.B}
	}
	if l.Alpha > 0 {
		c.Alpha = l.Alpha
	}
	return c
}

// SitingConfig holds facility siting defaults.
type SitingConfig struct {
	Radius float64 `yaml:"radius" mapstructure:"radius"`
	TopN   int     `yaml:"top_n" mapstructure:"top_n"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CATCHMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "catchment.db")
	v.SetDefault("solver.url", arcgis.DefaultServiceURL)
	v.SetDefault("solver.api_key", "")
	v.SetDefault("solver.travel_mode", arcgis.DefaultTravelMode)
	v.SetDefault("solver.num_breaks", arcgis.DefaultNumBreaks)
	v.SetDefault("solver.break_size", arcgis.DefaultBreakSize)
	v.SetDefault("solver.min_break", arcgis.MinBreakSize)
	v.SetDefault("solver.max_break", arcgis.MaxBreakSize)
	v.SetDefault("solver.timeout_secs", 30)
	v.SetDefault("solver.rate_per_sec", 5)
	v.SetDefault("solver.max_attempts", 3)
	v.SetDefault("legend.base_color", "rgba(255, 0, 0, 0.25)")
	v.SetDefault("legend.alpha", 0.25)
	v.SetDefault("legend.palette", []string(legend.DefaultPalette))
	v.SetDefault("siting.radius", 0.02)
	v.SetDefault("siting.top_n", 2)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the keys a command mode needs. Modes: "solve", "stats",
// "site", "store", "serve".
func (c *Config) Validate(mode string) error {
	var errs []string
	require := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	switch mode {
	case "solve":
		require(c.Solver.URL != "", "solver.url is required")
		require(c.Solver.TravelMode != "", "solver.travel_mode is required")
		c.validateBreaks(require)
		c.validateStore(require)
	case "stats":
		c.validateBreaks(require)
	case "site":
		require(c.Siting.Radius > 0, "siting.radius must be > 0")
		require(c.Siting.TopN >= 0, "siting.top_n must be >= 0")
	case "store":
		c.validateStore(require)
	case "serve":
		require(c.Server.Port > 0 && c.Server.Port < 65536, "server.port must be > 0 and < 65536")
		require(c.Siting.Radius > 0, "siting.radius must be > 0")
		c.validateBreaks(require)
		c.validateStore(require)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateBreaks(require func(bool, string)) {
	require(c.Solver.NumBreaks > 0, "solver.num_breaks must be > 0")
	require(c.Solver.MinBreak > 0, "solver.min_break must be > 0")
	require(c.Solver.MaxBreak >= c.Solver.MinBreak, "solver.max_break must be >= solver.min_break")
}

func (c *Config) validateStore(require func(bool, string)) {
	switch c.Store.Driver {
	case "", "sqlite", "postgres":
	default:
		require(false, "store.driver must be sqlite or postgres")
	}
	require(c.Store.DatabaseURL != "", "store.database_url is required")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
