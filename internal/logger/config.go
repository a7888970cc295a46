package logger

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds logging configuration.
type Config struct {
	Level          string `yaml:"level"`
	ConsoleEnabled *bool  `yaml:"console_enabled"`
	ConsoleFormat  string `yaml:"console_format"`
	FileEnabled    bool   `yaml:"file_enabled"`
	FilePath       string `yaml:"file_path"`
	FileFormat     string `yaml:"file_format"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxBackups int    `yaml:"file_max_backups"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
	FileCompress   bool   `yaml:"file_compress"`
}

// Console reports whether console output is on. Unset means on.
func (c Config) Console() bool {
	return c.ConsoleEnabled == nil || *c.ConsoleEnabled
}

type fileConfig struct {
	Logging Config `yaml:"logging"`
}

// DefaultConfig logs text at INFO to stdout.
func DefaultConfig() Config {
	return Config{
		Level:          "INFO",
		ConsoleFormat:  "text",
		FilePath:       "logs/mazestep.log",
		FileFormat:     "text",
		FileMaxSizeMB:  10,
		FileMaxBackups: 5,
		FileMaxAgeDays: 30,
	}
}

// LoadConfig reads the logging section of a YAML file and applies LOG_*
// environment overrides. A missing or unreadable file leaves the defaults.
func LoadConfig(configPath string) (Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			var loaded fileConfig
			if err := yaml.Unmarshal(data, &loaded); err != nil {
				return config, err
			}
			config.merge(loaded.Logging)
		}
	}

	config.applyEnv()
	return config, nil
}

func (c *Config) merge(from Config) {
	if from.Level != "" {
		c.Level = from.Level
	}
	if from.ConsoleEnabled != nil {
		c.ConsoleEnabled = from.ConsoleEnabled
	}
	if from.ConsoleFormat != "" {
		c.ConsoleFormat = from.ConsoleFormat
	}
	c.FileEnabled = from.FileEnabled
	if from.FilePath != "" {
		c.FilePath = from.FilePath
	}
	if from.FileFormat != "" {
		c.FileFormat = from.FileFormat
	}
	if from.FileMaxSizeMB > 0 {
		c.FileMaxSizeMB = from.FileMaxSizeMB
	}
	if from.FileMaxBackups > 0 {
		c.FileMaxBackups = from.FileMaxBackups
	}
	if from.FileMaxAgeDays > 0 {
		c.FileMaxAgeDays = from.FileMaxAgeDays
	}
	c.FileCompress = from.FileCompress
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Level = v
	}
	if v := os.Getenv("LOG_CONSOLE_FORMAT"); v != "" {
		c.ConsoleFormat = v
	}
	if v := os.Getenv("LOG_CONSOLE_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.ConsoleEnabled = &enabled
		}
	}
	if v := os.Getenv("LOG_FILE_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.FileEnabled = enabled
		}
	}
	if v := os.Getenv("LOG_FILE_PATH"); v != "" {
		c.FilePath = v
	}
}
