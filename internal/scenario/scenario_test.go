package scenario

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eissayou/k4pcap/pkg/packet"
	"github.com/Eissayou/k4pcap/pkg/pcapfile"
)

func TestBuiltinsAreValid(t *testing.T) {
	names := []string{}
	for _, sc := range Builtins() {
		require.NoError(t, sc.Validate(), sc.Name)
		names = append(names, sc.Name)
	}
	assert.Equal(t, []string{"basic_commands", "if_status", "panadapter_commands", "mixed_session", "om_hardware"}, names)
}

func TestBuiltinsReturnsCopies(t *testing.T) {
	first := Builtins()
	first[0].Steps[0].Command = "XX;"
	assert.Equal(t, "FA;", Builtins()[0].Steps[0].Command)
}

func TestSessionSequenceNumbers(t *testing.T) {
	cat := NewCatalog()
	sc, err := cat.Get("basic_commands")
	require.NoError(t, err)

	pkts := Render(sc, DefaultEndpoints(), 1000)
	require.Len(t, pkts, 5)

	want := []struct {
		srcPort  uint16
		seq, ack uint32
		ts       float64
	}{
		{54000, 1000, 2000, 1000},
		{9200, 2000, 1003, 1000.001},
		{54000, 1003, 2014, 1000.011},
		{9200, 2014, 1006, 1000.012},
		{54000, 1006, 2018, 1000.022},
	}
	for i, w := range want {
		seg := pkts[i].Segment
		assert.Equal(t, w.srcPort, seg.SourcePort, "step %d", i)
		assert.Equal(t, w.seq, seg.Seq, "step %d", i)
		assert.Equal(t, w.ack, seg.Ack, "step %d", i)
		assert.InDelta(t, w.ts, pkts[i].Timestamp, 1e-9, "step %d", i)
		assert.Equal(t, packet.FlagsPSHACK, seg.Flags)
	}
}

func TestSessionDirections(t *testing.T) {
	ep := DefaultEndpoints()
	sess := NewSession(ep, 0)

	up := sess.Next(Step{Direction: ClientToServer, Command: "IF;"})
	assert.Equal(t, ep.ClientIP, up.Segment.SourceIP)
	assert.Equal(t, ep.ServerIP, up.Segment.DestinationIP)
	assert.Equal(t, uint16(54000), up.Segment.SourcePort)
	assert.Equal(t, uint16(9200), up.Segment.DestinationPort)

	down := sess.Next(Step{Direction: ServerToClient, Command: "IF00014074000     +000000 0001001001 ;", Delay: 0.5})
	assert.Equal(t, ep.ServerIP, down.Segment.SourceIP)
	assert.Equal(t, ep.ClientIP, down.Segment.DestinationIP)
	assert.Equal(t, uint16(9200), down.Segment.SourcePort)
	assert.Equal(t, uint16(54000), down.Segment.DestinationPort)
	assert.Equal(t, 0.5, sess.Clock())
}

func TestSessionsAreIndependent(t *testing.T) {
	sc := Builtins()[1]
	a := Render(sc, DefaultEndpoints(), 10)
	b := Render(sc, DefaultEndpoints(), 10)
	assert.Equal(t, a, b)
}

func TestValidate(t *testing.T) {
	ok := Scenario{Name: "x", Steps: []Step{{Command: "FA;"}}}
	require.NoError(t, ok.Validate())

	bad := []Scenario{
		{Steps: ok.Steps},
		{Name: "../x", Steps: ok.Steps},
		{Name: "x"},
		{Name: "x", Steps: []Step{{Command: ""}}},
		{Name: "x", Steps: []Step{{Command: "FA;\n"}}},
		{Name: "x", Steps: []Step{{Command: "FÄ;"}}},
		{Name: "x", Steps: []Step{{Command: "FA;", Delay: -1}}},
		{Name: "x", Steps: []Step{{Command: "FA;", Delay: math.NaN()}}},
		{Name: "x", Steps: []Step{{Command: "FA;", Direction: Direction(7)}}},
	}
	for _, sc := range bad {
		assert.ErrorIs(t, sc.Validate(), ErrInvalidScenario, "%+v", sc)
	}
}

func TestValidateCommandLength(t *testing.T) {
	longest := Scenario{Name: "x", Steps: []Step{{Command: strings.Repeat("A", MaxCommandLen)}}}
	require.NoError(t, longest.Validate())
	assert.Equal(t, pcapfile.SnapLen, packet.FrameOverhead+MaxCommandLen)

	for _, n := range []int{MaxCommandLen + 1, 70000} {
		sc := Scenario{Name: "x", Steps: []Step{{Command: strings.Repeat("A", n)}}}
		err := sc.Validate()
		assert.ErrorIs(t, err, ErrInvalidScenario, "%d bytes", n)
		assert.ErrorContains(t, err, "limit", "%d bytes", n)
	}
}

func TestCatalog(t *testing.T) {
	cat := NewCatalog()
	_, err := cat.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownScenario)

	extra := Scenario{Name: "split", Steps: []Step{{Command: "FT1;"}}}
	require.NoError(t, cat.Add(extra))
	all := cat.All()
	require.Len(t, all, 6)
	assert.Equal(t, "split", all[5].Name)

	replaced := Scenario{Name: "if_status", Steps: []Step{{Command: "IF;"}}}
	require.NoError(t, cat.Add(replaced))
	all = cat.All()
	require.Len(t, all, 6)
	assert.Len(t, all[1].Steps, 1)

	assert.ErrorIs(t, cat.Add(Scenario{Name: "broken"}), ErrInvalidScenario)

	sel, err := cat.Select("om_hardware", "split")
	require.NoError(t, err)
	assert.Equal(t, "om_hardware", sel[0].Name)
	assert.Equal(t, "split", sel[1].Name)

	sel, err = cat.Select("basic_commands", "if_status", "basic_commands")
	require.NoError(t, err)
	require.Len(t, sel, 2)
	assert.Equal(t, "if_status", sel[1].Name)

	_, err = cat.Select("om_hardware", "zz", "aa", "zz")
	assert.ErrorIs(t, err, ErrUnknownScenario)
	assert.Contains(t, err.Error(), `["aa" "zz"]`)
}

func TestParse(t *testing.T) {
	doc := []byte(`
scenarios:
  - name: split_vfo
    description: VFO B tuning
    steps:
      - {dir: client, cmd: "FT1;", delay: 0.01}
      - {dir: server, cmd: "FT1;"}
      - {cmd: "FB;"}
`)
	scs, err := Parse(doc)
	require.NoError(t, err)
	require.Len(t, scs, 1)
	assert.Equal(t, Scenario{
		Name:        "split_vfo",
		Description: "VFO B tuning",
		Steps: []Step{
			{Direction: ClientToServer, Command: "FT1;", Delay: 0.01},
			{Direction: ServerToClient, Command: "FT1;"},
			{Direction: ClientToServer, Command: "FB;"},
		},
	}, scs[0])
}

func TestParseErrors(t *testing.T) {
	docs := map[string]string{
		"empty":          ``,
		"no scenarios":   `scenarios: []`,
		"bad direction":  "scenarios:\n  - name: a\n    steps:\n      - {dir: sideways, cmd: 'FA;'}\n",
		"unknown field":  "scenarios:\n  - name: a\n    colour: red\n    steps:\n      - {cmd: 'FA;'}\n",
		"duplicate name": "scenarios:\n  - name: a\n    steps: [{cmd: 'FA;'}]\n  - name: a\n    steps: [{cmd: 'FA;'}]\n",
		"invalid":        "scenarios:\n  - name: a\n",
	}
	for name, doc := range docs {
		_, err := Parse([]byte(doc))
		assert.ErrorIs(t, err, ErrInvalidScenario, name)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := Marshal(Builtins())
	require.NoError(t, err)
	assert.Contains(t, string(data), "dir: server")

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, Builtins(), back)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scenarios:\n  - name: tx\n    steps: [{cmd: 'TX;'}]\n"), 0o644))

	scs, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, scs, 1)
	assert.Equal(t, "tx", scs[0].Name)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDirectionText(t *testing.T) {
	for in, want := range map[string]Direction{"client": ClientToServer, "SERVER": ServerToClient, "radio": ServerToClient, "c2s": ClientToServer} {
		got, err := ParseDirection(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := Direction(5).MarshalText()
	assert.ErrorIs(t, err, ErrInvalidScenario)
	assert.Equal(t, "Direction(5)", Direction(5).String())
}
