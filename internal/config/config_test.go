package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eissayou/k4pcap/internal/scenario"
	"github.com/Eissayou/k4pcap/pkg/packet"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "samples", cfg.Output.Dir)
	assert.Equal(t, 4, cfg.Output.Concurrency)
	assert.Equal(t, ":5432", cfg.Server.Listen)

	ep, err := cfg.Endpoints()
	require.NoError(t, err)
	assert.Equal(t, scenario.DefaultEndpoints(), ep)

	asm, err := cfg.Assembler()
	require.NoError(t, err)
	assert.Equal(t, packet.DefaultAssembler, asm)

	now := time.Unix(1700000000, 500000000)
	start, err := cfg.StartTime(now)
	require.NoError(t, err)
	assert.Equal(t, 1700000000.5, start)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k4pcap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
output:
  dir: /tmp/fixtures
  concurrency: 2
session:
  client_ip: 10.0.0.2
  server_port: 9201
  start: "2024-01-02T03:04:05.25Z"
scenarios:
  files: [a.yaml, b.yaml]
  only: [om_hardware]
log:
  level: debug
  format: json
`), 0o644))

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/fixtures", cfg.Output.Dir)
	assert.Equal(t, 2, cfg.Output.Concurrency)
	assert.Equal(t, []string{"a.yaml", "b.yaml"}, cfg.Scenarios.Files)
	assert.Equal(t, []string{"om_hardware"}, cfg.Scenarios.Only)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	ep, err := cfg.Endpoints()
	require.NoError(t, err)
	assert.Equal(t, packet.MustParseIPv4("10.0.0.2"), ep.ClientIP)
	assert.Equal(t, uint16(9201), ep.ServerPort)
	assert.Equal(t, uint16(scenario.DefaultClientPort), ep.ClientPort)

	start, err := cfg.StartTime(time.Now())
	require.NoError(t, err)
	assert.Equal(t, float64(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Unix())+0.25, start)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k4pcap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  dir: from-file\n"), 0o644))
	t.Setenv("K4PCAP_OUTPUT_DIR", "from-env")
	t.Setenv("K4PCAP_SESSION_CLIENT_SEQ", "42")

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Output.Dir)
	assert.Equal(t, uint32(42), cfg.Session.ClientSeq)
}

func TestLoadUnquotedStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k4pcap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  start: 2024-01-01T00:00:00.5Z\n"), 0o644))
	t.Setenv("K4PCAP_SCENARIOS_ONLY", "if_status,om_hardware")

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"if_status", "om_hardware"}, cfg.Scenarios.Only)

	start, err := cfg.StartTime(time.Now())
	require.NoError(t, err)
	assert.Equal(t, float64(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Unix())+0.5, start)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Output.Dir = ""
	cfg.Output.Concurrency = 0
	cfg.Session.ClientIP = "192.168.1.300"
	cfg.Session.SourceMAC = "60:22:32"
	cfg.Session.Start = "yesterday"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	for _, want := range []string{"output.dir", "output.concurrency", "session.client_ip", "session.source_mac", "session.start", "log.format"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestEndpointsErrors(t *testing.T) {
	cfg := Default()
	cfg.Session.ServerIP = "::1"
	_, err := cfg.Endpoints()
	assert.ErrorIs(t, err, packet.ErrInvalidIPv4)

	cfg = Default()
	cfg.Session.DestinationMAC = "nope"
	_, err = cfg.Assembler()
	assert.ErrorIs(t, err, packet.ErrInvalidMAC)
}

func TestStartBeforeEpoch(t *testing.T) {
	cfg := Default()
	cfg.Session.Start = "1969-12-31T23:59:59Z"
	_, err := cfg.StartTime(time.Now())
	assert.Error(t, err)
}
