package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/listenroom/go/clients/catalog"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	Rooms struct {
		SweepIntervalSec int `yaml:"sweep_interval_sec"`
	} `yaml:"rooms"`
	Sync struct {
		ReportIntervalSec float64 `yaml:"report_interval_sec"`
		DriftThresholdSec float64 `yaml:"drift_threshold_sec"`
	} `yaml:"sync"`
	Catalog struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"catalog"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func defaultConfig() *Config {
	var config Config
	config.applyDefaults()
	return &config
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = getEnv("PORT", "8080")
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if c.Rooms.SweepIntervalSec <= 0 {
		c.Rooms.SweepIntervalSec = getEnvAsInt("ROOM_SWEEP_INTERVAL_SEC", 60)
	}
	if c.Sync.ReportIntervalSec <= 0 {
		c.Sync.ReportIntervalSec = 1
	}
	if c.Sync.DriftThresholdSec <= 0 {
		c.Sync.DriftThresholdSec = 1
	}
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = getEnv("CATALOG_BASE_URL", catalog.DefaultBaseURL)
	}
}
