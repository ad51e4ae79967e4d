// Package config loads k4pcap settings from defaults, an optional YAML file
// and K4PCAP_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/Eissayou/k4pcap/internal/scenario"
	"github.com/Eissayou/k4pcap/pkg/packet"
	"github.com/Eissayou/k4pcap/pkg/pcapfile"
)

// EnvPrefix prefixes every environment override, e.g. K4PCAP_OUTPUT_DIR.
const EnvPrefix = "K4PCAP"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the complete application configuration.
type Config struct {
	Output    OutputConfig    `mapstructure:"output"`
	Session   SessionConfig   `mapstructure:"session"`
	Scenarios ScenariosConfig `mapstructure:"scenarios"`
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
}

type OutputConfig struct {
	Dir         string `mapstructure:"dir"`
	Concurrency int    `mapstructure:"concurrency"`
}

// SessionConfig is the addressing and timing shared by every capture.
type SessionConfig struct {
	ClientIP       string `mapstructure:"client_ip"`
	ServerIP       string `mapstructure:"server_ip"`
	ClientPort     uint16 `mapstructure:"client_port"`
	ServerPort     uint16 `mapstructure:"server_port"`
	ClientSeq      uint32 `mapstructure:"client_seq"`
	ServerSeq      uint32 `mapstructure:"server_seq"`
	SourceMAC      string `mapstructure:"source_mac"`
	DestinationMAC string `mapstructure:"destination_mac"`
	// Start is an RFC 3339 time for the first record. Empty means now.
	Start string `mapstructure:"start"`
}

type ScenariosConfig struct {
	Files []string `mapstructure:"files"`
	Only  []string `mapstructure:"only"`
}

// LogConfig mirrors the options of internal/log.
type LogConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig enables rotated file output when Path is set.
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type ServerConfig struct {
	Listen        string `mapstructure:"listen"`
	GeoIPDatabase string `mapstructure:"geoip_database"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output.dir", "samples")
	v.SetDefault("output.concurrency", 4)

	v.SetDefault("session.client_ip", scenario.DefaultClientIP)
	v.SetDefault("session.server_ip", scenario.DefaultServerIP)
	v.SetDefault("session.client_port", scenario.DefaultClientPort)
	v.SetDefault("session.server_port", scenario.DefaultServerPort)
	v.SetDefault("session.client_seq", scenario.DefaultClientSeq)
	v.SetDefault("session.server_seq", scenario.DefaultServerSeq)
	v.SetDefault("session.source_mac", packet.DefaultAssembler.Source.String())
	v.SetDefault("session.destination_mac", packet.DefaultAssembler.Destination.String())
	v.SetDefault("session.start", "")

	v.SetDefault("scenarios.files", []string{})
	v.SetDefault("scenarios.only", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file.path", "")
	v.SetDefault("log.file.max_size_mb", 10)
	v.SetDefault("log.file.max_backups", 3)
	v.SetDefault("log.file.max_age_days", 7)
	v.SetDefault("log.file.compress", false)

	v.SetDefault("server.listen", ":5432")
	v.SetDefault("server.geoip_database", "")
}

// New returns a viper instance with defaults and environment binding set up.
// Callers may bind command-line flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (if not empty) into v and decodes the result.
//
// Parameters:
//   - v: Instance returned by New, possibly with flags bound.
//   - path: YAML config file. Empty means defaults and environment only.
//
// Returns:
//   - *Config: The decoded, validated configuration.
//   - error: Non-nil if the file cannot be read or a value is invalid.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decodeHook is viper's default hook chain plus timeToString.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		timeToString,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// timeToString turns YAML timestamps, which the parser resolves to
// time.Time when unquoted, back into RFC 3339 text for string fields.
func timeToString(_ reflect.Type, to reflect.Type, data any) (any, error) {
	t, ok := data.(time.Time)
	if !ok || to.Kind() != reflect.String {
		return data, nil
	}
	return t.Format(time.RFC3339Nano), nil
}

// Default returns the configuration with no file and no environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	return &cfg
}

// Validate reports every invalid value in one error.
func (c *Config) Validate() error {
	var problems []string
	add := func(err error) {
		if err != nil {
			problems = append(problems, err.Error())
		}
	}

	if c.Output.Dir == "" {
		problems = append(problems, "output.dir must not be empty")
	}
	if c.Output.Concurrency < 1 {
		problems = append(problems, fmt.Sprintf("output.concurrency must be at least 1, got %d", c.Output.Concurrency))
	}
	_, err := c.Endpoints()
	add(err)
	_, err = c.Assembler()
	add(err)
	_, err = c.StartTime(time.Time{})
	add(err)
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format must be text or json, got %q", c.Log.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Endpoints parses the session addressing.
func (c *Config) Endpoints() (scenario.Endpoints, error) {
	client, err := packet.ParseIPv4(c.Session.ClientIP)
	if err != nil {
		return scenario.Endpoints{}, fmt.Errorf("session.client_ip: %w", err)
	}
	server, err := packet.ParseIPv4(c.Session.ServerIP)
	if err != nil {
		return scenario.Endpoints{}, fmt.Errorf("session.server_ip: %w", err)
	}
	return scenario.Endpoints{
		ClientIP:   client,
		ServerIP:   server,
		ClientPort: c.Session.ClientPort,
		ServerPort: c.Session.ServerPort,
		ClientSeq:  c.Session.ClientSeq,
		ServerSeq:  c.Session.ServerSeq,
	}, nil
}

// Assembler parses the synthetic hardware addresses.
func (c *Config) Assembler() (packet.Assembler, error) {
	src, err := packet.ParseMAC(c.Session.SourceMAC)
	if err != nil {
		return packet.Assembler{}, fmt.Errorf("session.source_mac: %w", err)
	}
	dst, err := packet.ParseMAC(c.Session.DestinationMAC)
	if err != nil {
		return packet.Assembler{}, fmt.Errorf("session.destination_mac: %w", err)
	}
	return packet.Assembler{Source: src, Destination: dst}, nil
}

// StartTime returns the configured start as fractional seconds, or now when
// none is configured.
func (c *Config) StartTime(now time.Time) (float64, error) {
	if c.Session.Start == "" {
		return pcapfile.Seconds(now), nil
	}
	t, err := time.Parse(time.RFC3339Nano, c.Session.Start)
	if err != nil {
		return 0, fmt.Errorf("session.start: %w", err)
	}
	if t.Unix() < 0 {
		return 0, fmt.Errorf("session.start: %s is before the Unix epoch", c.Session.Start)
	}
	return pcapfile.Seconds(t), nil
}
