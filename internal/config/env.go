package config

import (
	"fmt"
	"log/slog"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"9400"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".fmlib/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"fmlib/"`
	S3Region string `envconfig:"S3_REGION" default:"eu-central-1"`
}

// TimetableEnv configures the solver hand-off directory watcher.
type TimetableEnv struct {
	WatchEnabled bool `envconfig:"TIMETABLE_WATCH" default:"true"`
}

// EnvironmentEnv lists the maps the fleet operates on. Requests referencing
// other maps are rejected at intake; an empty list accepts any map.
type EnvironmentEnv struct {
	Maps []string `envconfig:"MAPS"`
}

type Env struct {
	BaseEnv
	StorageEnv
	TimetableEnv
	EnvironmentEnv
}

const namespace = "FMLIB"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}
