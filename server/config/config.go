package config

import (
	"io"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig     `yaml:"server" mapstructure:"server"`
	Logging      LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Paths        PathsConfig      `yaml:"paths" mapstructure:"paths"`
	Downloader   DownloaderConfig `yaml:"downloader" mapstructure:"downloader"`
	FrontendPath string           `yaml:"frontend_path" mapstructure:"frontend_path"`
}

type ServerConfig struct {
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url"`
	Host       string        `yaml:"host" mapstructure:"host"`
	Port       int           `yaml:"port" mapstructure:"port"`
	QueueSize  int           `yaml:"queue_size" mapstructure:"queue_size"`
	ArchiveTTL time.Duration `yaml:"archive_ttl" mapstructure:"archive_ttl"`
}

type LoggingConfig struct {
	Level             string `yaml:"level" mapstructure:"level"`
	LogPath           string `yaml:"log_path" mapstructure:"log_path"`
	EnableFileLogging bool   `yaml:"enable_file_logging" mapstructure:"enable_file_logging"`
}

type PathsConfig struct {
	DownloaderPath string `yaml:"downloader_path" mapstructure:"downloader_path"`
	// root of the per-run working directories, OS temp dir when empty
	WorkDir string `yaml:"work_dir" mapstructure:"work_dir"`
}

type DownloaderConfig struct {
	Format            string `yaml:"format" mapstructure:"format"`
	MergeOutputFormat string `yaml:"merge_output_format" mapstructure:"merge_output_format"`
	UpdateOnStart     bool   `yaml:"update_on_start" mapstructure:"update_on_start"`
}

var (
	instance     *Config
	instanceOnce sync.Once
)

func Instance() *Config {
	if instance == nil {
		instanceOnce.Do(func() {
			instance = &Config{}
			instance.Server.ArchiveTTL = time.Minute * 30
		})
	}
	return instance
}

// Dump writes the configuration as YAML.
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()

	return enc.Encode(c)
}
