package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const (
	defaultLevel                  = "info"
	defaultConnectionTimeout      = 1 * time.Second
	defaultReadTimeout            = 30 * time.Second
	defaultRequestTimeout         = 60 * time.Second
	defaultMaxTotalConnections    = 20
	defaultMaxConnectionsPerRoute = 10
	defaultParallelism            = 8
	defaultQueueSize              = 1000
	defaultFlushThresholdCount    = 1000
	defaultFlushThresholdSize     = 10 * 1024 * 1024
	defaultFlushInterval          = 1 * time.Second
	defaultDocType                = "_doc"
	defaultGatewayAddress         = ":9280"
)

const envPrefix = "ELA"

// Load reads the YAML configuration at path. Every key can be overridden from
// the environment, e.g. ELA_CLIENT_REQUEST_TIMEOUT=5s.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	return FromViper(v)
}

// FromViper decodes an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	SetDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, errors.WithStack(err)
	}
	return &cfg, nil
}

func SetDefaults(cfg *Config) {
	if lo.IsEmpty(cfg.Level) {
		cfg.Level = defaultLevel
	}

	if cfg.Client == nil {
		cfg.Client = &ClientCfg{}
	}
	if cfg.Client.ConnectionTimeout <= 0 {
		cfg.Client.ConnectionTimeout = defaultConnectionTimeout
	}
	if cfg.Client.ReadTimeout <= 0 {
		cfg.Client.ReadTimeout = defaultReadTimeout
	}
	if cfg.Client.RequestTimeout <= 0 {
		cfg.Client.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Client.MaxTotalConnections <= 0 {
		cfg.Client.MaxTotalConnections = defaultMaxTotalConnections
	}
	if cfg.Client.MaxConnectionsPerRoute <= 0 {
		cfg.Client.MaxConnectionsPerRoute = defaultMaxConnectionsPerRoute
	}
	if cfg.Client.Parallelism == 0 {
		cfg.Client.Parallelism = defaultParallelism
	}
	if cfg.Client.QueueSize == 0 {
		cfg.Client.QueueSize = defaultQueueSize
	}

	if cfg.Orchestrator == nil {
		cfg.Orchestrator = &OrchestratorCfg{}
	}
	if cfg.Orchestrator.FlushThresholdCount == 0 {
		cfg.Orchestrator.FlushThresholdCount = defaultFlushThresholdCount
	}
	if cfg.Orchestrator.FlushThresholdSize == 0 {
		cfg.Orchestrator.FlushThresholdSize = defaultFlushThresholdSize
	}
	// A negative interval turns the flush timer off.
	if cfg.Orchestrator.FlushInterval == 0 {
		cfg.Orchestrator.FlushInterval = defaultFlushInterval
	}
	if lo.IsEmpty(cfg.Orchestrator.DocType) {
		cfg.Orchestrator.DocType = defaultDocType
	}

	if cfg.GatewayCfg != nil && lo.IsEmpty(cfg.GatewayCfg.Address) {
		cfg.GatewayCfg.Address = defaultGatewayAddress
	}

	for _, esConfig := range cfg.ESConfigs {
		if esConfig != nil && lo.IsEmpty(esConfig.Transport) {
			esConfig.Transport = TransportTypeElastic
		}
	}
}

func Validate(cfg *Config) error {
	for name, esConfig := range cfg.ESConfigs {
		if esConfig == nil || len(esConfig.Addresses) == 0 {
			return errors.Errorf("elastics.%s.addresses is required", name)
		}
		if !lo.Contains([]TransportType{TransportTypeElastic, TransportTypeHTTP}, esConfig.Transport) {
			return errors.Errorf("elastics.%s.transport %q is not supported", name, esConfig.Transport)
		}
	}

	if !lo.Contains([]string{"", "false", "true", "wait_for"}, cfg.Orchestrator.Refresh) {
		return errors.Errorf("orchestrator.refresh %q is not supported", cfg.Orchestrator.Refresh)
	}

	if cfg.GatewayCfg != nil && cfg.TargetESConfig() == nil {
		return errors.Errorf("gateway.target_es %q not found in elastics", cfg.GatewayCfg.TargetES)
	}
	return nil
}
