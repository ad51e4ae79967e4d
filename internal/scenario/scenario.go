// Package scenario describes K4 Direct command exchanges and turns them into
// TCP segments with timestamps.
//
// A Scenario is static data: an ordered list of steps, each sent by either the
// client or the radio, followed by a delay. A Session carries the state that
// evolves while a scenario is rendered (sequence numbers and the clock), so the
// packet builders never need any.
package scenario

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Eissayou/k4pcap/pkg/packet"
	"github.com/Eissayou/k4pcap/pkg/pcapfile"
)

// MaxCommandLen is the longest command whose frame fits the capture snapshot
// length.
const MaxCommandLen = pcapfile.SnapLen - packet.FrameOverhead

var (
	// ErrUnknownScenario is returned when a scenario name is not registered.
	ErrUnknownScenario = errors.New("scenario: unknown scenario")

	// ErrInvalidScenario is returned for malformed scenario data.
	ErrInvalidScenario = errors.New("scenario: invalid scenario")
)

// Direction tells which side of the connection sends a step.
type Direction int

const (
	ClientToServer Direction = iota
	ServerToClient
)

// String returns "client" or "server".
func (d Direction) String() string {
	switch d {
	case ClientToServer:
		return "client"
	case ServerToClient:
		return "server"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection accepts "client", "server" or "radio" (case-insensitive),
// plus the short forms "c2s" and "s2c".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "client", "c2s":
		return ClientToServer, nil
	case "server", "radio", "s2c":
		return ServerToClient, nil
	default:
		return 0, fmt.Errorf("%w: unknown direction %q", ErrInvalidScenario, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	if d != ClientToServer && d != ServerToClient {
		return nil, fmt.Errorf("%w: unknown direction %d", ErrInvalidScenario, int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	v, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Step is one application write.
type Step struct {
	Direction Direction `yaml:"dir" json:"dir"`
	Command   string    `yaml:"cmd" json:"cmd"`
	// Delay is the number of seconds the clock advances after this step.
	Delay float64 `yaml:"delay" json:"delay"`
}

// Scenario is a named, ordered list of steps rendered into one capture file.
type Scenario struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Steps       []Step `yaml:"steps" json:"steps"`
}

// FileName is the capture file name for the scenario.
func (s Scenario) FileName() string {
	return s.Name + ".pcap"
}

// Validate reports every problem with s in one error wrapping
// ErrInvalidScenario.
func (s Scenario) Validate() error {
	var problems []string
	if s.Name == "" {
		problems = append(problems, "empty name")
	} else if strings.ContainsAny(s.Name, `/\`) || s.Name == "." || s.Name == ".." {
		problems = append(problems, fmt.Sprintf("name %q is not a plain file name", s.Name))
	}
	if len(s.Steps) == 0 {
		problems = append(problems, "no steps")
	}
	for i, st := range s.Steps {
		if st.Direction != ClientToServer && st.Direction != ServerToClient {
			problems = append(problems, fmt.Sprintf("step %d: unknown direction %d", i, int(st.Direction)))
		}
		if st.Command == "" {
			problems = append(problems, fmt.Sprintf("step %d: empty command", i))
		} else if len(st.Command) > MaxCommandLen {
			problems = append(problems, fmt.Sprintf("step %d: command is %d bytes, limit is %d", i, len(st.Command), MaxCommandLen))
		} else if !printableASCII(st.Command) {
			problems = append(problems, fmt.Sprintf("step %d: command %q is not printable ASCII", i, st.Command))
		}
		if math.IsNaN(st.Delay) || math.IsInf(st.Delay, 0) || st.Delay < 0 {
			problems = append(problems, fmt.Sprintf("step %d: invalid delay %v", i, st.Delay))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w %q: %s", ErrInvalidScenario, s.Name, strings.Join(problems, "; "))
	}
	return nil
}

func printableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
