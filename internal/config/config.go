package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chronomaps/footsteps/internal/lod"
)

// Config holds the full application configuration.
type Config struct {
	Engine EngineConfig   `yaml:"engine" mapstructure:"engine"`
	LOD    lod.GridConfig `yaml:"lod" mapstructure:"lod"`
	Data   DataConfig     `yaml:"data" mapstructure:"data"`
	Fetch  FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Store  StoreConfig    `yaml:"store" mapstructure:"store"`
	Export ExportConfig   `yaml:"export" mapstructure:"export"`
	Server ServerConfig   `yaml:"server" mapstructure:"server"`
	Log    LogConfig      `yaml:"log" mapstructure:"log"`
}

// EngineConfig configures settlement synthesis.
type EngineConfig struct {
	RuralToTownThreshold float64 `yaml:"rural_to_town_threshold" mapstructure:"rural_to_town_threshold"`
	TownToCityThreshold  float64 `yaml:"town_to_city_threshold" mapstructure:"town_to_city_threshold"`
	PeoplePerDot         int     `yaml:"people_per_dot" mapstructure:"people_per_dot"`
	MinDotPopulation     float64 `yaml:"min_dot_population" mapstructure:"min_dot_population"`
	MinDotSpacingDegrees float64 `yaml:"min_dot_spacing_degrees" mapstructure:"min_dot_spacing_degrees"`
	EnableContinuity     bool    `yaml:"enable_continuity" mapstructure:"enable_continuity"`
	Workers              int     `yaml:"workers" mapstructure:"workers"`
	LandmaskPath         string  `yaml:"landmask_path" mapstructure:"landmask_path"`
	LandmaskResolution   float64 `yaml:"landmask_resolution" mapstructure:"landmask_resolution"`
}

// DataConfig locates source grids and the era manifest.
type DataConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	EraManifest string `yaml:"era_manifest" mapstructure:"era_manifest"`
}

// FetchConfig configures the HYDE downloader.
type FetchConfig struct {
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries    int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ExportConfig configures file export.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the preview server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("FOOTSTEPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("engine.rural_to_town_threshold", 1000.0)
	v.SetDefault("engine.town_to_city_threshold", 10000.0)
	v.SetDefault("engine.people_per_dot", 100)
	v.SetDefault("engine.min_dot_population", 0.5)
	v.SetDefault("engine.min_dot_spacing_degrees", 0.001)
	v.SetDefault("engine.enable_continuity", true)
	v.SetDefault("engine.workers", 4)
	v.SetDefault("engine.landmask_resolution", 0.5)
	v.SetDefault("lod.regional_grid_size", 2.0)
	v.SetDefault("lod.subregional_grid_size", 0.5)
	v.SetDefault("lod.local_grid_size", 0.1)
	v.SetDefault("data.dir", "data/hyde")
	v.SetDefault("data.era_manifest", "eras.yaml")
	v.SetDefault("fetch.base_url", "https://geo.public.data.uu.nl/vault-hyde/HYDE%203.3%5B1710495480%5D/original/hyde33_0/baseline/zip")
	v.SetDefault("fetch.timeout_secs", 300)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_per_second", 2.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "footsteps.db")
	v.SetDefault("export.dir", "out")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the loaded configuration for contradictions.
func (c *Config) Validate() error {
	if c.Engine.RuralToTownThreshold <= 0 || c.Engine.TownToCityThreshold <= c.Engine.RuralToTownThreshold {
		return eris.Errorf("config: tier thresholds must satisfy 0 < rural_to_town (%f) < town_to_city (%f)",
			c.Engine.RuralToTownThreshold, c.Engine.TownToCityThreshold)
	}
	if c.Engine.PeoplePerDot <= 0 {
		return eris.New("config: engine.people_per_dot must be positive")
	}
	if c.Engine.MinDotPopulation < 0 {
		return eris.New("config: engine.min_dot_population must not be negative")
	}
	if c.LOD.RegionalGridSize <= c.LOD.SubregionalGridSize || c.LOD.SubregionalGridSize <= c.LOD.LocalGridSize || c.LOD.LocalGridSize <= 0 {
		return eris.Errorf("config: lod grid sizes must decrease: regional %f > subregional %f > local %f > 0",
			c.LOD.RegionalGridSize, c.LOD.SubregionalGridSize, c.LOD.LocalGridSize)
	}
	if c.Engine.Workers < 1 || c.Engine.Workers > 64 {
		return eris.New("config: engine.workers must be between 1 and 64")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Server.Port <= 0 {
		return eris.New("config: server.port must be > 0")
	}
	return nil
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
