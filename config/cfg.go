package config

import "time"

type TransportType string

const (
	TransportTypeElastic TransportType = "elastic"
	TransportTypeHTTP    TransportType = "http"
)

type ESConfig struct {
	Addresses []string      `mapstructure:"addresses"`
	User      string        `mapstructure:"user"`
	Password  string        `mapstructure:"password"`
	Version   string        `mapstructure:"version"`
	Transport TransportType `mapstructure:"transport"`

	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
}

// ClientCfg is resolved before a client is constructed; nothing in it can be
// changed afterwards.
type ClientCfg struct {
	ConnectionTimeout      time.Duration `mapstructure:"connection_timeout"`
	ReadTimeout            time.Duration `mapstructure:"read_timeout"`
	RequestTimeout         time.Duration `mapstructure:"request_timeout"`
	MaxTotalConnections    int           `mapstructure:"max_total_connections"`
	MaxConnectionsPerRoute int           `mapstructure:"max_connections_per_route"`
	Parallelism            uint          `mapstructure:"parallelism"`
	QueueSize              uint          `mapstructure:"queue_size"`
}

type OrchestratorCfg struct {
	FlushThresholdCount uint          `mapstructure:"flush_threshold_count"`
	FlushThresholdSize  uint          `mapstructure:"flush_threshold_size"`
	FlushInterval       time.Duration `mapstructure:"flush_interval"`
	Refresh             string        `mapstructure:"refresh"`
	DocType             string        `mapstructure:"doc_type"`
}

type GatewayCfg struct {
	Address  string `mapstructure:"gateway_address"`
	User     string `mapstructure:"gateway_user"`
	Password string `mapstructure:"gateway_password"`

	TargetES string `mapstructure:"target_es"`
}

type Config struct {
	ESConfigs    map[string]*ESConfig `mapstructure:"elastics"`
	Level        string               `mapstructure:"level"`
	Client       *ClientCfg           `mapstructure:"client"`
	Orchestrator *OrchestratorCfg     `mapstructure:"orchestrator"`
	GatewayCfg   *GatewayCfg          `mapstructure:"gateway"`
}

// TargetESConfig returns the cluster the gateway writes to.
func (c *Config) TargetESConfig() *ESConfig {
	if c.GatewayCfg == nil {
		return nil
	}
	return c.ESConfigs[c.GatewayCfg.TargetES]
}
