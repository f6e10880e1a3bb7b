package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/rpattn/scdsync/internal/db"
)

// Config collects everything a run needs: the warehouse connection, the
// OLTP source database path, and the report output directory. All of it
// is passed into components explicitly so tests can substitute
// in-memory or temp-file stores.
type Config struct {
	Warehouse  db.Config
	SourcePath string
	ReportDir  string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Warehouse:  db.DefaultConfig(),
		SourcePath: "db/oltp.db",
		ReportDir:  "reports",
	}
}

// Load reads config.yaml from configPath with environment overrides
// (prefix SCDSYNC, e.g. SCDSYNC_WAREHOUSE_HOST).
func Load(configPath string) (Config, error) {
	// Start with defaults
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv() // allow environment overrides
	v.SetEnvPrefix("SCDSYNC")

	v.BindEnv("warehouse.host")
	v.BindEnv("warehouse.port")
	v.BindEnv("warehouse.user")
	v.BindEnv("warehouse.password")
	v.BindEnv("warehouse.dbname")
	v.BindEnv("warehouse.sslmode")
	v.BindEnv("source.path")
	v.BindEnv("report.dir")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("warehouse.host") {
		cfg.Warehouse.Host = v.GetString("warehouse.host")
	}
	if v.IsSet("warehouse.port") {
		cfg.Warehouse.Port = v.GetInt("warehouse.port")
	}
	if v.IsSet("warehouse.user") {
		cfg.Warehouse.User = v.GetString("warehouse.user")
	}
	if v.IsSet("warehouse.password") {
		cfg.Warehouse.Password = v.GetString("warehouse.password")
	}
	if v.IsSet("warehouse.dbname") {
		cfg.Warehouse.DBName = v.GetString("warehouse.dbname")
	}
	if v.IsSet("warehouse.sslmode") {
		cfg.Warehouse.SSLMode = v.GetString("warehouse.sslmode")
	}
	if v.IsSet("source.path") {
		cfg.SourcePath = v.GetString("source.path")
	}
	if v.IsSet("report.dir") {
		cfg.ReportDir = v.GetString("report.dir")
	}

	return cfg, nil
}
