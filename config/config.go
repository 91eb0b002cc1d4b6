// Package config loads the remotesql configuration file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Transports understood by the CLI.
const (
	TransportGRPC = "grpc"
	TransportTCP  = "tcp"
)

// Environment variables that override the file.
const (
	EnvAddress       = "REMOTEDB_ADDRESS"
	EnvConfiguration = "REMOTEDB_CONFIGURATION"
)

// Config contains configuration options.
type Config struct {
	Service Service `toml:"service" json:"service"`
	Client  Client  `toml:"client" json:"client"`
}

// Service is the service section of the config.
type Service struct {
	// Transport is "grpc" or "tcp".
	Transport string `toml:"transport" json:"transport"`
	Address   string `toml:"address" json:"address"`
	// Timeout bounds each remote call, e.g. "30s".
	Timeout string `toml:"timeout" json:"timeout"`
	// PoolSize caps pooled connections of the tcp transport.
	PoolSize int `toml:"pool-size" json:"pool-size"`

	Security Security `toml:"security" json:"security"`
}

// Security is the TLS part of the service section.
type Security struct {
	TLS        bool   `toml:"tls" json:"tls"`
	SSLCA      string `toml:"ssl-ca" json:"ssl-ca"`
	SSLCert    string `toml:"ssl-cert" json:"ssl-cert"`
	SSLKey     string `toml:"ssl-key" json:"ssl-key"`
	SkipVerify bool   `toml:"skip-verify" json:"skip-verify"`
}

// Client is the client section of the config.
type Client struct {
	Configuration   string `toml:"configuration" json:"configuration"`
	ContextIDPrefix string `toml:"context-id-prefix" json:"context-id-prefix"`
	LogLevel        string `toml:"log-level" json:"log-level"`
	Debug           bool   `toml:"debug" json:"debug"`
}

var defaultConf = Config{
	Service: Service{
		Transport: TransportGRPC,
		Address:   "127.0.0.1:7443",
		Timeout:   "30s",
		PoolSize:  10,
	},
	Client: Client{
		ContextIDPrefix: "LinqService",
		LogLevel:        "warn",
	},
}

// NewConfig returns a copy of the default configuration.
func NewConfig() *Config {
	conf := defaultConf
	return &conf
}

// Load merges the TOML file at confFile into c. Keys the file does not know
// are reported as an error so that typos do not pass silently.
func (c *Config) Load(confFile string) error {
	md, err := toml.DecodeFile(confFile, c)
	if err != nil {
		return fmt.Errorf("load %s: %w", confFile, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("load %s: unknown keys %s", confFile, strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnv overrides the address and the configuration name from the
// environment.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvAddress); ok && v != "" {
		c.Service.Address = v
	}
	if v, ok := os.LookupEnv(EnvConfiguration); ok {
		c.Client.Configuration = v
	}
}

// Valid checks the config.
func (c *Config) Valid() error {
	switch c.Service.Transport {
	case TransportGRPC, TransportTCP:
	default:
		return fmt.Errorf("invalid transport %q, expected %q or %q", c.Service.Transport, TransportGRPC, TransportTCP)
	}
	if c.Service.Address == "" {
		return fmt.Errorf("service address is required")
	}
	if _, err := c.Service.TimeoutDuration(); err != nil {
		return err
	}
	if c.Service.PoolSize < 0 {
		return fmt.Errorf("pool-size must not be negative")
	}
	if s := c.Service.Security; !s.TLS && (s.SSLCA != "" || s.SSLCert != "" || s.SSLKey != "") {
		return fmt.Errorf("ssl files are set but tls is disabled")
	}
	return nil
}

// TimeoutDuration parses Timeout. An empty value means no timeout.
func (s Service) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout %q: negative", s.Timeout)
	}
	return d, nil
}
