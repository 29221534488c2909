// Package config handles loading and validation of songflow.yaml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gschex1112/songflow/pkg/types"
)

// Load reads and parses songflow.yaml from the given directory, applies
// defaults, and validates the result.
func Load(dir string) (*types.ProjectConfig, error) {
	path := filepath.Join(dir, "songflow.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *types.ProjectConfig) error {
	if cfg.Pipeline == "" {
		return fmt.Errorf("pipeline is required")
	}
	switch cfg.Provider {
	case types.ProviderAWS:
		if cfg.AWS == nil {
			return fmt.Errorf("aws config is required when provider is aws")
		}
		if cfg.AWS.LandingBucket == "" {
			return fmt.Errorf("aws.landingBucket is required")
		}
		if cfg.AWS.ArchiveBucket == "" {
			return fmt.Errorf("aws.archiveBucket is required")
		}
		if cfg.AWS.LockTable == "" {
			return fmt.Errorf("aws.lockTable is required")
		}
		if cfg.AWS.GlueDatabase == "" {
			return fmt.Errorf("aws.glueDatabase is required")
		}
		if cfg.AWS.AthenaOutputLocation == "" {
			return fmt.Errorf("aws.athenaOutputLocation is required")
		}
	case types.ProviderLocal:
		if cfg.Local == nil {
			return fmt.Errorf("local config is required when provider is local")
		}
		if cfg.Local.LandingDir == "" {
			return fmt.Errorf("local.landingDir is required")
		}
		if cfg.Local.ArchiveDir == "" {
			return fmt.Errorf("local.archiveDir is required")
		}
		if cfg.Local.DatabasePath == "" {
			return fmt.Errorf("local.databasePath is required")
		}
	default:
		return fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	for _, a := range cfg.Alerts {
		switch a.Type {
		case types.SinkConsole:
		case types.SinkFile:
			if a.Path == "" {
				return fmt.Errorf("alerts: file sink requires path")
			}
		case types.SinkSNS:
			if a.TopicARN == "" {
				return fmt.Errorf("alerts: sns sink requires topicArn")
			}
		default:
			return fmt.Errorf("alerts: unknown sink type %q", a.Type)
		}
	}
	return nil
}
