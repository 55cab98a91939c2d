// Package config loads user preferences for the recipe CLI.
//
// Settings come from, in increasing priority: built-in defaults, the
// optional file $HOME/.config/recipe/config.yaml, and RECIPE_* environment
// variables (RECIPE_SHELL, RECIPE_COLOR, RECIPE_LOC_JOBS, ...). Command-line
// flags override all of them and are applied by the cli package.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/shinji-kodama/recipe/internal/logging"
	"github.com/shinji-kodama/recipe/internal/model"
	"github.com/shinji-kodama/recipe/internal/recipefile"
	"github.com/shinji-kodama/recipe/internal/runner"
)

// EnvPrefix is prepended to upper-cased keys, with "." replaced by "_".
const EnvPrefix = "RECIPE"

// Keys.
const (
	KeyShell       = "shell"
	KeyFilenames   = "filenames"
	KeyColor       = "color"
	KeyLocPatterns = "loc.patterns"
	KeyLocJobs     = "loc.jobs"
	KeyDockerPull  = "docker.pull"
)

// DefaultLocPatterns is what "recipe loc" counts when given no pattern.
var DefaultLocPatterns = []string{"src/**/*"}

// Config is the resolved configuration.
type Config struct {
	// Path is the config file that was read, empty when none exists.
	Path string

	Shell     []string
	Filenames []string
	Color     logging.ColorMode

	LocPatterns []string
	LocJobs     int

	DockerPull model.PullPolicy
}

// Dir returns the directory holding config.yaml.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "recipe"), nil
}

// Load reads the default config file, if any, and the environment.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadFile(filepath.Join(dir, "config.yaml"))
}

// LoadFile is Load with an explicit config file path. A missing file is
// not an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyShell, runner.DefaultShell)
	v.SetDefault(KeyFilenames, recipefile.DefaultFileNames)
	v.SetDefault(KeyColor, string(logging.ColorAuto))
	v.SetDefault(KeyLocPatterns, DefaultLocPatterns)
	v.SetDefault(KeyLocJobs, 0)
	v.SetDefault(KeyDockerPull, string(model.PullMissing))

	cfg := &Config{}
	if err := v.ReadInConfig(); err != nil {
		if !isConfigNotFound(err) {
			return nil, model.WrapCLIError(model.ExitGeneralError, fmt.Sprintf("failed to read config %s", path), err)
		}
	} else {
		cfg.Path = path
	}

	if err := cfg.fill(v); err != nil {
		source := "environment"
		if cfg.Path != "" {
			source = cfg.Path
		}
		return nil, model.WrapCLIError(model.ExitGeneralError, fmt.Sprintf("invalid configuration in %s", source), err)
	}
	return cfg, nil
}

func (c *Config) fill(v *viper.Viper) error {
	c.Shell = v.GetStringSlice(KeyShell)
	if len(c.Shell) == 0 || strings.TrimSpace(c.Shell[0]) == "" {
		return fmt.Errorf("%s must name a program", KeyShell)
	}

	c.Filenames = v.GetStringSlice(KeyFilenames)
	if len(c.Filenames) == 0 {
		return fmt.Errorf("%s must not be empty", KeyFilenames)
	}
	for _, name := range c.Filenames {
		if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
			return fmt.Errorf("%s: %q must be a file name, not a path", KeyFilenames, name)
		}
		if _, err := recipefile.FormatForPath(name); err != nil {
			return fmt.Errorf("%s: %w", KeyFilenames, err)
		}
	}

	color, err := logging.ParseColorMode(v.GetString(KeyColor))
	if err != nil {
		return fmt.Errorf("%s: %w", KeyColor, err)
	}
	c.Color = color

	c.LocPatterns = v.GetStringSlice(KeyLocPatterns)
	if len(c.LocPatterns) == 0 {
		c.LocPatterns = DefaultLocPatterns
	}

	c.LocJobs = v.GetInt(KeyLocJobs)
	if c.LocJobs < 0 {
		return fmt.Errorf("%s must not be negative", KeyLocJobs)
	}

	pull, err := model.ParsePullPolicy(v.GetString(KeyDockerPull))
	if err != nil {
		return fmt.Errorf("%s: %w", KeyDockerPull, err)
	}
	c.DockerPull = pull
	return nil
}

func isConfigNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	if errors.As(err, &nf) {
		return true
	}
	return errors.Is(err, os.ErrNotExist)
}
