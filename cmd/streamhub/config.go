package main

import (
	"fmt"

	"github.com/skillsenselab/streamhub/auth"
	"github.com/skillsenselab/streamhub/config"
	"github.com/skillsenselab/streamhub/logger"
	"github.com/skillsenselab/streamhub/observability"
	"github.com/skillsenselab/streamhub/server"
	"github.com/skillsenselab/streamhub/sse"
)

// appConfig aggregates the configuration sections of the service.
type appConfig struct {
	Base          config.BaseConfig    `yaml:"base" mapstructure:"base"`
	Logging       logger.Config        `yaml:"logging" mapstructure:"logging"`
	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Hub           sse.Config           `yaml:"hub" mapstructure:"hub"`
	Auth          auth.Config          `yaml:"auth" mapstructure:"auth"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
	// PublishRateLimit caps producer POSTs per minute per caller; 0 disables.
	PublishRateLimit int `yaml:"publish_rate_limit" mapstructure:"publish_rate_limit"`
}

func loadConfig() (*appConfig, error) {
	cfg := &appConfig{}
	if err := config.Load("streamhub", cfg); err != nil {
		return nil, err
	}

	if cfg.Base.Name == "" {
		cfg.Base.Name = "streamhub"
	}
	cfg.Base.ApplyDefaults()
	cfg.Logging.ApplyDefaults()
	cfg.Server.ApplyDefaults()
	cfg.Hub.ApplyDefaults()
	cfg.Auth.ApplyDefaults()
	cfg.Observability.ApplyDefaults()

	for _, v := range []interface{ Validate() error }{
		&cfg.Base, &cfg.Logging, &cfg.Server, &cfg.Hub, &cfg.Auth, &cfg.Observability,
	} {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return cfg, nil
}
