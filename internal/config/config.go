package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the project config looked up in the working directory.
const FileName = "dialoguecraft.yaml"

const (
	DriverMemory   = "memory"
	DriverBadger   = "badger"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const DefaultBadgerDir = ".dialoguecraft/data"

type ProjectConfig struct {
	Project string       `yaml:"project" validate:"required"`
	Version int          `yaml:"version" validate:"eq=1"`
	Store   StoreConfig  `yaml:"store"`
	Layout  LayoutConfig `yaml:"layout"`
	Log     LogConfig    `yaml:"log"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" validate:"oneof=memory badger sqlite postgres"`
	DSN    string `yaml:"dsn" validate:"required_unless=Driver memory"`
}

// LayoutConfig overrides the layout constants. Zero keeps the default.
type LayoutConfig struct {
	CanvasWidth      float64 `yaml:"canvas_width" validate:"gte=0"`
	CanvasHeight     float64 `yaml:"canvas_height" validate:"gte=0"`
	ConnectorSpacing float64 `yaml:"connector_spacing" validate:"gte=0"`
	OptionSpacing    float64 `yaml:"option_spacing" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default is the config init writes for a new project.
func Default(project string) *ProjectConfig {
	cfg := &ProjectConfig{Project: project, Version: 1}
	applyDefaults(cfg)
	return cfg
}

func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}
	applyDefaults(&cfg)

	if err := validateProjectConfig(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	return &cfg, nil
}

// Write stores cfg at path, refusing to replace an existing file.
func Write(path string, cfg *ProjectConfig) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding project config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *ProjectConfig) {
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverBadger
	}
	if cfg.Store.Driver == DriverBadger && cfg.Store.DSN == "" {
		cfg.Store.DSN = DefaultBadgerDir
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func validateProjectConfig(cfg *ProjectConfig) error {
	if strings.TrimSpace(cfg.Project) == "" {
		return fmt.Errorf("project name is required")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid %s: failed %q check", strings.ToLower(fe.Namespace()), fe.Tag())
		}
		return err
	}
	if cfg.Store.Driver == DriverSQLite && !strings.HasPrefix(cfg.Store.DSN, "sqlite://") {
		return fmt.Errorf("sqlite dsn must start with sqlite://")
	}
	return nil
}
