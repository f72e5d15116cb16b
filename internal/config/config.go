// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"spexia/internal/dsp"
	applog "spexia/internal/log"
	"spexia/internal/transport/udp"
	"spexia/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// Accepted enumerations.
const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"

	DirectionInput  = "input"
	DirectionOutput = "output"

	IdentityName = "name"
	IdentityID   = "id"

	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Forces the debug log level.
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn", "error".
	LogFile   LogFileConfig   `yaml:"log_file"`  // Optional rotating log file.
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Output    OutputConfig    `yaml:"output"`
	Transport TransportConfig `yaml:"transport"`

	// Command is the one-off command selected on the command line, it is
	// never read from YAML.
	Command string `yaml:"-"`
}

// LogFileConfig holds the rotating log file settings.
type LogFileConfig struct {
	Path       string `yaml:"path"` // Empty disables the file.
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// AudioConfig holds settings related to device selection and capture.
type AudioConfig struct {
	// Backend is "malgo" (default) or "portaudio". PortAudio only enumerates
	// devices when it is initialized, so it sees a new default device only
	// after a device loss forces a rebuild.
	Backend         string        `yaml:"backend"`
	Direction       string        `yaml:"direction"`         // "input", or "output" for loopback capture.
	Identity        string        `yaml:"identity"`          // Device comparison key, "name" or "id".
	PollInterval    time.Duration `yaml:"poll_interval"`     // Minimum time between device polls.
	StallTimeout    time.Duration `yaml:"stall_timeout"`     // Callback silence treated as device loss (portaudio).
	FramesPerBuffer int           `yaml:"frames_per_buffer"` // Callback buffer size, 0 lets the backend choose.
	LowLatency      bool          `yaml:"low_latency"`       // Request the device's low input latency.
}

// AnalysisConfig holds the spectral analyzer settings.
type AnalysisConfig struct {
	WindowSize          int  `yaml:"window_size"`           // Transform size, power of two.
	Stride              int  `yaml:"stride"`                // Hop between windows.
	QueueCapacity       int  `yaml:"queue_capacity"`        // Frame queue bound, 0 for unbounded.
	DrainBacklog        bool `yaml:"drain_backlog"`         // Produce every pending frame per append.
	WindowedTimeSamples bool `yaml:"windowed_time_samples"` // Publish tapered instead of raw samples.
	HandoffDepth        int  `yaml:"handoff_depth"`         // Buffers queued between callback and worker.
}

// OutputConfig holds settings for the consumer loop.
type OutputConfig struct {
	RefreshRate float64 `yaml:"refresh_rate"` // Consumer iterations per second.
	Bins        int     `yaml:"bins"`         // Bins per channel in published summaries.
}

// TransportConfig holds settings related to publishing frames over the network.
type TransportConfig struct {
	WebSocketEnabled bool   `yaml:"websocket_enabled"`
	WebSocketAddress string `yaml:"websocket_address"` // Listen address, e.g. ":8080".
	Codec            string `yaml:"codec"`             // WebSocket message codec, "json" or "msgpack".
	UDPEnabled       bool   `yaml:"udp_enabled"`
	UDPTargetAddress string `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	LogFrames        bool   `yaml:"log_frames"`         // Log a line per published frame (debug).
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		LogFile: LogFileConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Audio: AudioConfig{
			Backend:      BackendMalgo,
			Direction:    DirectionInput,
			Identity:     IdentityName,
			PollInterval: time.Second,
			StallTimeout: 2 * time.Second,
		},
		Analysis: AnalysisConfig{
			WindowSize:    dsp.DefaultWindowSize,
			Stride:        dsp.DefaultStride,
			QueueCapacity: 256,
			DrainBacklog:  true,
			HandoffDepth:  64,
		},
		Output: OutputConfig{
			RefreshRate: 60,
			Bins:        256,
		},
		Transport: TransportConfig{
			WebSocketEnabled: true,
			WebSocketAddress: ":8080",
			Codec:            CodecJSON,
			UDPTargetAddress: "127.0.0.1:9090",
		},
	}
}

// LoadConfig loads configuration from the YAML file at path. If path is empty
// it searches the default locations and falls back to built-in defaults when
// none exists. Environment overrides are applied last, then the result is
// validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfig()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// findConfig returns the first existing candidate config file, or "".
func findConfig() string {
	candidates := []string{"config.yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "spexia", "config.yaml"))
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Validate checks every section and joins all problems into one error.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not a known level", c.LogLevel))
	}

	switch c.Audio.Backend {
	case BackendPortAudio, BackendMalgo:
	default:
		errs = append(errs, fmt.Errorf("audio.backend must be %q or %q, got %q", BackendPortAudio, BackendMalgo, c.Audio.Backend))
	}
	switch c.Audio.Direction {
	case DirectionInput, DirectionOutput:
	default:
		errs = append(errs, fmt.Errorf("audio.direction must be %q or %q, got %q", DirectionInput, DirectionOutput, c.Audio.Direction))
	}
	switch c.Audio.Identity {
	case IdentityName, IdentityID:
	default:
		errs = append(errs, fmt.Errorf("audio.identity must be %q or %q, got %q", IdentityName, IdentityID, c.Audio.Identity))
	}
	if c.Audio.PollInterval <= 0 {
		errs = append(errs, errors.New("audio.poll_interval must be positive"))
	}
	if c.Audio.StallTimeout < 0 {
		errs = append(errs, errors.New("audio.stall_timeout must not be negative"))
	}
	if c.Audio.FramesPerBuffer < 0 {
		errs = append(errs, errors.New("audio.frames_per_buffer must not be negative"))
	}

	if err := c.AnalyzerConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("analysis: %w", err))
	}
	if c.Analysis.HandoffDepth <= 0 {
		errs = append(errs, errors.New("analysis.handoff_depth must be positive"))
	}

	if c.Output.RefreshRate <= 0 {
		errs = append(errs, errors.New("output.refresh_rate must be positive"))
	}
	if !bitint.IsPowerOfTwo(c.Output.Bins) || c.Output.Bins > c.Analysis.WindowSize/2 {
		errs = append(errs, fmt.Errorf("output.bins must be a power of 2 no larger than %d, got %d",
			c.Analysis.WindowSize/2, c.Output.Bins))
	}

	switch c.Transport.Codec {
	case CodecJSON, CodecMsgpack:
	default:
		errs = append(errs, fmt.Errorf("transport.codec must be %q or %q, got %q", CodecJSON, CodecMsgpack, c.Transport.Codec))
	}
	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddress == "" {
		errs = append(errs, errors.New("transport.websocket_address must be set when the websocket is enabled"))
	}
	if c.Audio.Backend == BackendPortAudio && c.Audio.Direction == DirectionOutput {
		errs = append(errs, fmt.Errorf("audio.direction %q requires backend %q", DirectionOutput, BackendMalgo))
	}
	if c.Transport.UDPEnabled && c.Output.Bins > udp.MaxBins {
		errs = append(errs, fmt.Errorf("output.bins %d makes %d-byte UDP packets, the limit is %d bins (%d bytes)",
			c.Output.Bins, udp.PacketSize(c.Output.Bins), udp.MaxBins, udp.MaxPayload))
	}
	if c.Transport.UDPEnabled && !strings.Contains(c.Transport.UDPTargetAddress, ":") {
		errs = append(errs, fmt.Errorf("transport.udp_target_address %q appears invalid (missing port?)", c.Transport.UDPTargetAddress))
	}

	return errors.Join(errs...)
}

// AnalyzerConfig converts the analysis section into the analyzer's own config.
func (c *Config) AnalyzerConfig() dsp.Config {
	return dsp.Config{
		WindowSize:          c.Analysis.WindowSize,
		Stride:              c.Analysis.Stride,
		QueueCapacity:       c.Analysis.QueueCapacity,
		DrainBacklog:        c.Analysis.DrainBacklog,
		WindowedTimeSamples: c.Analysis.WindowedTimeSamples,
	}
}

// Level returns the effective log level, Debug forcing LevelDebug.
func (c *Config) Level() applog.LogLevel {
	if c.Debug {
		return applog.LevelDebug
	}
	level, _ := applog.ParseLevel(c.LogLevel)
	return level
}

// FrameInterval returns the consumer loop period.
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.Output.RefreshRate)
}

// applyEnvOverrides applies ENV_* variables on top of file values. Malformed
// values are ignored.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			applog.Infof("Config: Overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		applog.Infof("Config: Overriding log_level from env: %s", val)
	}

	// ENV_AUDIO_{...}
	// These are specific to device selection.

	// ENV_AUDIO_BACKEND
	if val, ok := os.LookupEnv("ENV_AUDIO_BACKEND"); ok {
		c.Audio.Backend = strings.ToLower(val)
		applog.Infof("Config: Overriding audio.backend from env: %s", val)
	}
	// ENV_AUDIO_DIRECTION
	if val, ok := os.LookupEnv("ENV_AUDIO_DIRECTION"); ok {
		c.Audio.Direction = strings.ToLower(val)
		applog.Infof("Config: Overriding audio.direction from env: %s", val)
	}

	// ENV_WS_{...} and ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_WS_ENABLED
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.WebSocketEnabled = bVal
			applog.Infof("Config: Overriding transport.websocket_enabled from env: %v", bVal)
		}
	}
	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		c.Transport.WebSocketAddress = val
		applog.Infof("Config: Overriding transport.websocket_address from env: %s", val)
	}
	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			applog.Infof("Config: Overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		applog.Infof("Config: Overriding transport.udp_target_address from env: %s", val)
	}
}
