package sim

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pion/webrtc/v4"
	"gopkg.in/yaml.v3"
)

// ErrInvalidScenario wraps every scenario validation failure
var ErrInvalidScenario = errors.New("invalid scenario")

// Duration is a time.Duration written as "1.5s" / "200ms" in YAML and JSON
type Duration time.Duration

// D returns the value as a time.Duration
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// ICEServer is one STUN/TURN server handed to every simulated peer connection
type ICEServer struct {
	URLs       []string `yaml:"urls" json:"urls"`
	Username   string   `yaml:"username,omitempty" json:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty" json:"credential,omitempty"`
}

// Scenario describes the synthetic load one simulation run puts on the server
type Scenario struct {
	Agents      int      `yaml:"agents" json:"agents"`
	Suppliers   int      `yaml:"suppliers" json:"suppliers"`
	TalkTime    Duration `yaml:"talkTime" json:"talkTime"`       // accept -> supplier hangs up
	CallGap     Duration `yaml:"callGap" json:"callGap"`         // hangup -> next supplier-call
	RejectRate  float64  `yaml:"rejectRate" json:"rejectRate"`   // 0..1
	AcceptDelay Duration `yaml:"acceptDelay" json:"acceptDelay"` // incoming-call -> accept/reject

	// Gather loopback host candidates; needed when peers only share lo
	IncludeLoopback bool        `yaml:"includeLoopback" json:"includeLoopback"`
	ICEServers      []ICEServer `yaml:"iceServers" json:"iceServers"`
}

// DefaultScenario returns the scenario used when no file is given
func DefaultScenario() Scenario {
	return Scenario{
		Agents:      5,
		Suppliers:   8,
		TalkTime:    Duration(20 * time.Second),
		CallGap:     Duration(5 * time.Second),
		RejectRate:  0.1,
		AcceptDelay: Duration(2 * time.Second),
		ICEServers: []ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	}
}

// LoadScenario reads a YAML scenario file. Fields the file omits keep their
// DefaultScenario values.
func LoadScenario(path string) (Scenario, error) {
	sc := DefaultScenario()

	data, err := os.ReadFile(path)
	if err != nil {
		return sc, fmt.Errorf("failed to read scenario: %w", err)
	}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("failed to parse scenario %s: %w", path, err)
	}
	if err := sc.Validate(); err != nil {
		return sc, err
	}
	return sc, nil
}

// Validate checks counts, rates and durations
func (s Scenario) Validate() error {
	switch {
	case s.Agents < 0 || s.Suppliers < 0:
		return fmt.Errorf("%w: agents and suppliers must not be negative", ErrInvalidScenario)
	case s.Agents == 0 && s.Suppliers == 0:
		return fmt.Errorf("%w: need at least one agent or supplier", ErrInvalidScenario)
	case s.RejectRate < 0 || s.RejectRate > 1:
		return fmt.Errorf("%w: rejectRate must be within [0, 1], got %v", ErrInvalidScenario, s.RejectRate)
	case s.TalkTime < 0 || s.CallGap < 0 || s.AcceptDelay < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidScenario)
	}
	for i, srv := range s.ICEServers {
		if len(srv.URLs) == 0 {
			return fmt.Errorf("%w: iceServers[%d] has no urls", ErrInvalidScenario, i)
		}
	}
	return nil
}

func (s Scenario) webrtcConfig() webrtc.Configuration {
	servers := make([]webrtc.ICEServer, 0, len(s.ICEServers))
	for _, srv := range s.ICEServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       srv.URLs,
			Username:   srv.Username,
			Credential: srv.Credential,
		})
	}
	return webrtc.Configuration{ICEServers: servers}
}
