package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/alpacahq/streamspy/spy"
	"github.com/alpacahq/streamspy/utils/idle"
	"github.com/alpacahq/streamspy/utils/log"
)

const defaultBacklogInterval = 10 * time.Second

var (
	ErrNoDirectory     = errors.New("invalid streams directory")
	ErrInvalidAffinity = errors.New("invalid affinity mask")
)

// IdleSetting tunes the backoff applied while the rings are empty.
type IdleSetting struct {
	MaxSpins  int
	MaxYields int
	MinPark   time.Duration
	MaxPark   time.Duration
}

type SpyConfig struct {
	Directory       string
	Affinity        uint64
	Position        spy.SpyPosition
	Continuous      bool
	Verbose         bool
	Unordered       bool
	FrameTypes      []string
	ExtensionTypes  []string
	TypeNames       map[int32]string
	LogLevel        log.Level
	MetricsListen   string
	CaptureFile     string
	BacklogInterval time.Duration
	Idle            IdleSetting
}

// DefaultConfig follows every streams file from the start of its ring.
func DefaultConfig() *SpyConfig {
	return &SpyConfig{
		Affinity:        ^uint64(0),
		Position:        spy.ZERO,
		LogLevel:        log.INFO,
		BacklogInterval: defaultBacklogInterval,
		Idle: IdleSetting{
			MaxSpins:  idle.DefaultMaxSpins,
			MaxYields: idle.DefaultMaxYields,
			MinPark:   idle.DefaultMinPark,
			MaxPark:   idle.DefaultMaxPark,
		},
	}
}

// ParseAffinity reads a mask written in decimal or as 0x prefixed hex.
func ParseAffinity(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	var (
		v   uint64
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidAffinity, s)
	}
	return v, nil
}

// ParseConfig reads a YAML configuration on top of DefaultConfig. The result
// may still lack a directory; callers apply overrides then Validate.
func ParseConfig(data []byte) (*SpyConfig, error) {
	var aux struct {
		Directory       string           `yaml:"directory"`
		Affinity        string           `yaml:"affinity"`
		Position        string           `yaml:"position"`
		Continuous      bool             `yaml:"continuous"`
		Verbose         bool             `yaml:"verbose"`
		Unordered       bool             `yaml:"unordered"`
		FrameTypes      []string         `yaml:"frame_types"`
		ExtensionTypes  []string         `yaml:"extension_types"`
		TypeNames       map[int32]string `yaml:"type_names"`
		LogLevel        string           `yaml:"log_level"`
		MetricsListen   string           `yaml:"metrics_listen"`
		CaptureFile     string           `yaml:"capture_file"`
		BacklogInterval string           `yaml:"backlog_interval"`
		Idle            struct {
			MaxSpins  int    `yaml:"max_spins"`
			MaxYields int    `yaml:"max_yields"`
			MinPark   string `yaml:"min_park"`
			MaxPark   string `yaml:"max_park"`
		} `yaml:"idle"`
	}

	if err := yaml.Unmarshal(data, &aux); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// directory may come from the command line instead, see Validate
	c := DefaultConfig()
	c.Directory = aux.Directory

	var err error
	if aux.Affinity != "" {
		if c.Affinity, err = ParseAffinity(aux.Affinity); err != nil {
			return nil, err
		}
	}
	if aux.Position != "" {
		if c.Position, err = spy.ParseSpyPosition(aux.Position); err != nil {
			return nil, err
		}
	}
	if aux.LogLevel != "" {
		c.LogLevel = log.ParseLevel(aux.LogLevel)
	}
	if aux.BacklogInterval != "" {
		if c.BacklogInterval, err = parsePositiveDuration("backlog_interval", aux.BacklogInterval); err != nil {
			return nil, err
		}
	}

	c.Continuous = aux.Continuous
	c.Verbose = aux.Verbose
	c.Unordered = aux.Unordered
	c.FrameTypes = aux.FrameTypes
	c.ExtensionTypes = aux.ExtensionTypes
	c.TypeNames = aux.TypeNames
	c.MetricsListen = aux.MetricsListen
	c.CaptureFile = aux.CaptureFile

	if aux.Idle.MaxSpins > 0 {
		c.Idle.MaxSpins = aux.Idle.MaxSpins
	}
	if aux.Idle.MaxYields > 0 {
		c.Idle.MaxYields = aux.Idle.MaxYields
	}
	if aux.Idle.MinPark != "" {
		if c.Idle.MinPark, err = parsePositiveDuration("idle.min_park", aux.Idle.MinPark); err != nil {
			return nil, err
		}
	}
	if aux.Idle.MaxPark != "" {
		if c.Idle.MaxPark, err = parsePositiveDuration("idle.max_park", aux.Idle.MaxPark); err != nil {
			return nil, err
		}
	}
	if c.Idle.MaxPark < c.Idle.MinPark {
		return nil, fmt.Errorf("idle.max_park %s is shorter than idle.min_park %s", c.Idle.MaxPark, c.Idle.MinPark)
	}

	return c, nil
}

// Validate checks what can only be checked once every source has been applied.
func (c *SpyConfig) Validate() error {
	if c.Directory == "" {
		return ErrNoDirectory
	}
	return nil
}

func parsePositiveDuration(key, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: %s is not positive", key, s)
	}
	return d, nil
}
