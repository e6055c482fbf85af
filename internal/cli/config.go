package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/spawnexec/procio"
)

// Config is the CLI configuration, read from an optional YAML file and
// PROCIO_* environment variables.
type Config struct {
	Log      LogConfig     `yaml:"log" mapstructure:"log"`
	Pipeline []StageConfig `yaml:"pipeline" mapstructure:"pipeline"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level     string `yaml:"level" mapstructure:"level"`
	Format    string `yaml:"format" mapstructure:"format"`
	NoColor   bool   `yaml:"no_color" mapstructure:"no_color"`
	Timestamp bool   `yaml:"timestamp" mapstructure:"timestamp"`
}

// StageConfig describes one program of a pipeline.
type StageConfig struct {
	Name     string   `yaml:"name" mapstructure:"name"`
	Program  string   `yaml:"program" mapstructure:"program"`
	Args     []string `yaml:"args" mapstructure:"args"`
	Dir      string   `yaml:"dir" mapstructure:"dir"`
	Env      []string `yaml:"env" mapstructure:"env"` // KEY=VALUE
	ClearEnv bool     `yaml:"clear_env" mapstructure:"clear_env"`
	Stderr   string   `yaml:"stderr" mapstructure:"stderr"` // inherit or null
}

// LoadConfig reads path, if not empty, over the defaults and applies
// PROCIO_* environment overrides such as PROCIO_LOG_LEVEL.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.no_color", false)
	v.SetDefault("log.timestamp", true)

	v.SetEnvPrefix("procio")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return err
	}
	for i, stage := range c.Pipeline {
		if stage.Program == "" {
			return fmt.Errorf("pipeline[%d].program is required", i)
		}
		if _, err := stdioFromName(stage.Stderr); err != nil {
			return fmt.Errorf("pipeline[%d].stderr: %w", i, err)
		}
	}
	return nil
}

// Validate validates logging configuration.
func (c *LogConfig) Validate() error {
	validLevels := []string{"trace", "debug", "info", "warn", "error", "disabled"}
	if !slices.Contains(validLevels, strings.ToLower(c.Level)) {
		return fmt.Errorf("log.level must be one of %v (got: %s)", validLevels, c.Level)
	}
	validFormats := []string{"json", "console"}
	if !slices.Contains(validFormats, strings.ToLower(c.Format)) {
		return fmt.Errorf("log.format must be one of %v (got: %s)", validFormats, c.Format)
	}
	return nil
}

func (s StageConfig) label(i int) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("#%d %s", i, s.Program)
}

// command builds the procio command for the stage. Stdin and stdout are
// left for the pipeline to connect.
func (s StageConfig) command() (*procio.Cmd, error) {
	stderr, err := stdioFromName(s.Stderr)
	if err != nil {
		return nil, err
	}
	c := procio.Command(s.Program, s.Args...).CurrentDir(s.Dir).Stderr(stderr)
	if s.ClearEnv {
		c.EnvClear()
	}
	if err := applyEnv(c, s.Env); err != nil {
		return nil, err
	}
	return c, nil
}
