package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the application's configuration model.
// It captures the HTTP server, model store, training and storage settings.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Models   ModelsConfig   `yaml:"models"`
	Training TrainingConfig `yaml:"training"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Timeouts in seconds
	ReadTimeout  int `yaml:"readTimeout"`
	WriteTimeout int `yaml:"writeTimeout"`
	// Token bucket limits for the prediction endpoints; RPS <= 0 disables limiting
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ModelsConfig struct {
	Dir string `yaml:"dir"`
	// Reload is "mtime" (cache, re-read on change) or "always" (re-read every request)
	Reload string `yaml:"reload"`
}

type TrainingConfig struct {
	PrimaryPath  string  `yaml:"primaryPath"`
	AuxPath      string  `yaml:"auxPath"`
	Estimators   int     `yaml:"estimators"`
	LearningRate float64 `yaml:"learningRate"`
	MaxDepth     int     `yaml:"maxDepth"`
	Lambda       float64 `yaml:"lambda"`
	MaxBins      int     `yaml:"maxBins"`
	TestSize     float64 `yaml:"testSize"`
	Seed         int64   `yaml:"seed"`
}

type StorageConfig struct {
	// Empty disables the run ledger
	DBPath string `yaml:"dbPath"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":5001", ReadTimeout: 10, WriteTimeout: 30, RPS: 20, Burst: 40},
		Models: ModelsConfig{Dir: "./models", Reload: "mtime"},
		Training: TrainingConfig{
			PrimaryPath:  "./data/simfluence_reddit_training_ultimate.csv",
			AuxPath:      "./data/train-balanced-sarcasm.csv",
			Estimators:   200,
			LearningRate: 0.1,
			MaxDepth:     6,
			Lambda:       1,
			MaxBins:      256,
			TestSize:     0.2,
			Seed:         42,
		},
		Storage: StorageConfig{DBPath: "./simfluence.db"},
		Log:     LogConfig{Level: "info", Format: "json"},
	}
}

// ResolveEnv fills in config fields from environment variables if set.
func (c *Config) ResolveEnv() {
	if v := os.Getenv("SIMFLUENCE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SIMFLUENCE_MODEL_DIR"); v != "" {
		c.Models.Dir = v
	}
	if v := os.Getenv("SIMFLUENCE_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("SIMFLUENCE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Server.RPS = f
		}
	}
	if v := os.Getenv("SIMFLUENCE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Server.Burst = n
		}
	}
}

// Load reads YAML config from path on top of the defaults. A missing file
// yields the defaults; a .env file in the working directory is honoured.
func Load(path string) (Config, error) {
	_ = godotenv.Load()
	cfg := Default()
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
