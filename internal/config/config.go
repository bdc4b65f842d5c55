package config

import (
	"time"
)

type Config interface {
	EnvConfig
	StorageConfig
	MountConfig
	AnalysisConfig
	AuthConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
}

type StorageConfig interface {
	GetRootDir() string
	GetPaths() Paths
}

type MountConfig interface {
	GetMountEngineBinary() string
	GetMountEngineProcessName() string
	GetMountEngineTimeout() time.Duration
}

type AnalysisConfig interface {
	GetAnalysisTemplateDir() string
}

type AuthConfig interface {
	GetDefaultAuthProvider() string
}

type mainConfig struct {
	EnvVars
}

// New loads the embedded defaults, then the file named by CONFIG_PATH if set.
// Environment variables override both at lookup time.
func New() (Config, error) {
	k, err := load()
	if err != nil {
		return nil, err
	}
	return mainConfig{EnvVars{k: k}}, nil
}
