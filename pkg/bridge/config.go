// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/utmc-tools/xkopbridge/pkg/xkop"
)

// Row binds one management function (function code + site code number)
// to a controller index. Direction is seen from the controller: inputs
// flow bridge→controller, outputs controller→bridge.
type Row struct {
	Nr        string `toml:"nr"`
	Function  string `toml:"function"`
	SCN       string `toml:"scn"`
	Index     uint8  `toml:"index"`
	Direction string `toml:"direction"` // "input" or "output"
	Kind      string `toml:"kind"`      // "scalar" or "bitmask"
}

// ControllerConfig addresses the field controller.
type ControllerConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	Transport string `toml:"transport"` // "tcp" or "udp"
}

// TimingConfig bounds every blocking operation of the session. Values
// are Go duration strings ("5s", "250ms"); empty fields take the
// session defaults.
type TimingConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	ReadTimeout    string `toml:"read_timeout"`
	WriteTimeout   string `toml:"write_timeout"`
	BackoffMin     string `toml:"backoff_min"`
	BackoffMax     string `toml:"backoff_max"`
}

// Durations parses the timing strings. Invalid strings are reported
// during validate, so this never fails afterwards.
func (t TimingConfig) Durations() (connect, read, write, backoffMin, backoffMax time.Duration) {
	connect = parseDuration(t.ConnectTimeout)
	read = parseDuration(t.ReadTimeout)
	write = parseDuration(t.WriteTimeout)
	backoffMin = parseDuration(t.BackoffMin)
	backoffMax = parseDuration(t.BackoffMax)
	return
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// HTTPConfig configures the outward boundary surface.
type HTTPConfig struct {
	Listen string `toml:"listen"`
}

// LogConfig configures daemon logging. When File is set the log is
// written there with rotation in addition to the console.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// Config is the daemon configuration, loaded from TOML.
type Config struct {
	Controller ControllerConfig `toml:"controller"`
	Timing     TimingConfig     `toml:"timing"`
	HTTP       HTTPConfig       `toml:"http"`
	Log        LogConfig        `toml:"log"`

	// Checksum selects the decode policy: "enforce" (default) or
	// "bypass" for bench simulators that cannot seed the checksum.
	Checksum string `toml:"checksum"`

	Rows []Row `toml:"rows"`
}

// LoadConfig reads and validates a TOML config file. Unknown keys are
// rejected: a top-level key written below a table header would silently
// land inside that table, so a strict decode turns the misplacement
// into a load error instead.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	dec := toml.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Controller.Transport == "" {
		c.Controller.Transport = "tcp"
	}
	if c.Controller.Port == 0 {
		c.Controller.Port = 8001
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":5000"
	}
	if c.Checksum == "" {
		c.Checksum = "enforce"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 20
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 5
	}
}

func (c *Config) validate() error {
	if c.Controller.Host == "" {
		return fmt.Errorf("controller.host is required")
	}
	switch c.Controller.Transport {
	case "tcp", "udp":
	default:
		return fmt.Errorf("controller.transport %q: must be tcp or udp", c.Controller.Transport)
	}
	switch c.Checksum {
	case "enforce", "bypass":
	default:
		return fmt.Errorf("checksum %q: must be enforce or bypass", c.Checksum)
	}
	for _, s := range []string{
		c.Timing.ConnectTimeout, c.Timing.ReadTimeout, c.Timing.WriteTimeout,
		c.Timing.BackoffMin, c.Timing.BackoffMax,
	} {
		if s == "" {
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			return fmt.Errorf("timing: %w", err)
		}
	}
	for i, r := range c.Rows {
		if r.Index == xkop.IndexUnused {
			return fmt.Errorf("rows[%d]: index 255 is reserved", i)
		}
		switch r.Direction {
		case "input", "output":
		default:
			return fmt.Errorf("rows[%d]: direction %q: must be input or output", i, r.Direction)
		}
		switch r.Kind {
		case "", "scalar", "bitmask":
		default:
			return fmt.Errorf("rows[%d]: kind %q: must be scalar or bitmask", i, r.Kind)
		}
	}
	return nil
}

// ChecksumPolicy maps the config string to the codec policy.
func (c Config) ChecksumPolicy() xkop.ChecksumPolicy {
	if c.Checksum == "bypass" {
		return xkop.BypassChecksum
	}
	return xkop.EnforceChecksum
}

// Endpoint renders the controller address as host:port.
func (c Config) Endpoint() string {
	return fmt.Sprintf("%s:%d", c.Controller.Host, c.Controller.Port)
}

// Mapping resolves management-function queries to controller indices.
type Mapping struct {
	rows []Row
}

// NewMapping builds a mapping over the configured rows.
func NewMapping(rows []Row) Mapping {
	return Mapping{rows: rows}
}

// Resolve returns the indices mapped to a function/SCN pair in the
// given direction, and whether the function is a bitmask. Function and
// SCN comparisons are case-insensitive on the function code, exact on
// the SCN (site codes are case-significant in the management system).
func (m Mapping) Resolve(direction, function, scn string) (indices []uint8, bitmask bool) {
	for _, r := range m.rows {
		if r.Direction != direction {
			continue
		}
		if !strings.EqualFold(r.Function, function) || r.SCN != scn {
			continue
		}
		indices = append(indices, r.Index)
		if r.Kind == "bitmask" {
			bitmask = true
		}
	}
	return indices, bitmask
}

// Rows returns the configured rows.
func (m Mapping) Rows() []Row {
	return m.rows
}
