// Package config handles global configuration loading using viper.
package config

import (
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"firestige.xyz/woolong/internal/core"
	"firestige.xyz/woolong/internal/core/reflector"
)

// GlobalConfig represents the top-level static configuration.
// Maps to the `woolong:` root key in YAML.
type GlobalConfig struct {
	Control   ControlConfig   `mapstructure:"control"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Reflector ReflectorConfig `mapstructure:"reflector"`
	Events    EventsConfig    `mapstructure:"events"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

// ─── Control ───

// ControlConfig contains local process settings.
type ControlConfig struct {
	PIDFile string `mapstructure:"pid_file"` // Empty = no pid file
}

// ─── Capture ───

// CaptureConfig configures the ingress hook.
type CaptureConfig struct {
	Interface    string `mapstructure:"interface"`      // eth0
	Workers      int    `mapstructure:"workers"`        // 0 = runtime.NumCPU()
	SnapLen      int    `mapstructure:"snap_len"`       // Bytes captured per frame
	BufferSizeMB int    `mapstructure:"buffer_size_mb"` // Ring size per worker
	TimeoutMS    int    `mapstructure:"timeout_ms"`     // Block poll timeout
	FanoutID     int    `mapstructure:"fanout_id"`      // 0 = derived from pid
	Filter       string `mapstructure:"filter"`         // ebpf | cbpf | none
}

// ─── Reflector ───

// ReflectorConfig configures the reflector engine.
type ReflectorConfig struct {
	TriggerPort    int    `mapstructure:"trigger_port"`
	Signature      string `mapstructure:"signature"`
	Replacement    string `mapstructure:"replacement"`
	SignatureHex   string `mapstructure:"signature_hex"`   // Overrides Signature when set
	ReplacementHex string `mapstructure:"replacement_hex"` // Overrides Replacement when set
	MatchMode      string `mapstructure:"match_mode"`      // full | prefix
	OffsetMode     string `mapstructure:"offset_mode"`     // data_offset | fixed
	PreambleSkip   int    `mapstructure:"preamble_skip"`   // Only with offset_mode=fixed
	Checksum       string `mapstructure:"checksum"`        // full | incremental
	FailurePolicy  string `mapstructure:"failure_policy"`  // fail_open | fail_closed
}

// ─── Events ───

// EventsConfig configures the observability channel.
type EventsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Partitions int    `mapstructure:"partitions"` // 0 = one per worker
	QueueSize  int    `mapstructure:"queue_size"`
	RecordLen  int    `mapstructure:"record_len"` // Bytes copied into each record
	Verdicts   string `mapstructure:"verdicts"`   // all | transmit | abort
	Hexdump    bool   `mapstructure:"hexdump"`
	PcapFile   string `mapstructure:"pcap_file"` // Empty = no pcap sink
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string        `mapstructure:"level"`   // trace / debug / info / warn / error
	Format  string        `mapstructure:"format"`  // pattern / json
	Pattern string        `mapstructure:"pattern"` // %time %level %field %msg %caller %func
	Time    string        `mapstructure:"time"`    // Go time layout
	File    FileLogConfig `mapstructure:"file"`
}

// FileLogConfig configures rotated file output.
type FileLogConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// ─── Loading ───

// maxRecordLen mirrors events.RecordDataLen.
const maxRecordLen = 128

// configRoot is the top-level wrapper matching the YAML structure `woolong: ...`.
type configRoot struct {
	Woolong GlobalConfig `mapstructure:"woolong"`
}

// Load loads configuration from file. An empty path yields defaults plus environment overrides.
// The YAML file uses `woolong:` as root key; env vars map through the key replacer
// (e.g., key "woolong.capture.interface" → env "WOOLONG_CAPTURE_INTERFACE").
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Woolong

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use "woolong." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("woolong.control.pid_file", "")

	// Capture defaults
	v.SetDefault("woolong.capture.interface", "eth0")
	v.SetDefault("woolong.capture.workers", 0)
	v.SetDefault("woolong.capture.snap_len", 2048)
	v.SetDefault("woolong.capture.buffer_size_mb", 8)
	v.SetDefault("woolong.capture.timeout_ms", 100)
	v.SetDefault("woolong.capture.fanout_id", 0)
	v.SetDefault("woolong.capture.filter", "ebpf")

	// Reflector defaults
	v.SetDefault("woolong.reflector.trigger_port", reflector.DefaultTriggerPort)
	v.SetDefault("woolong.reflector.signature", reflector.DefaultSignature)
	v.SetDefault("woolong.reflector.replacement", reflector.DefaultReplacement)
	v.SetDefault("woolong.reflector.signature_hex", "")
	v.SetDefault("woolong.reflector.replacement_hex", "")
	v.SetDefault("woolong.reflector.match_mode", "full")
	v.SetDefault("woolong.reflector.offset_mode", "data_offset")
	v.SetDefault("woolong.reflector.preamble_skip", 12)
	v.SetDefault("woolong.reflector.checksum", "full")
	v.SetDefault("woolong.reflector.failure_policy", "fail_open")

	// Events defaults
	v.SetDefault("woolong.events.enabled", true)
	v.SetDefault("woolong.events.partitions", 0)
	v.SetDefault("woolong.events.queue_size", 1024)
	v.SetDefault("woolong.events.record_len", maxRecordLen)
	v.SetDefault("woolong.events.verdicts", "transmit")
	v.SetDefault("woolong.events.hexdump", true)
	v.SetDefault("woolong.events.pcap_file", "")

	// Metrics defaults
	v.SetDefault("woolong.metrics.enabled", false)
	v.SetDefault("woolong.metrics.listen", ":9091")
	v.SetDefault("woolong.metrics.path", "/metrics")

	// Log defaults
	v.SetDefault("woolong.log.level", "info")
	v.SetDefault("woolong.log.format", "pattern")
	v.SetDefault("woolong.log.pattern", "%time [%level] %msg %field\n")
	v.SetDefault("woolong.log.time", "2006-01-02 15:04:05.000")
	v.SetDefault("woolong.log.file.enabled", false)
	v.SetDefault("woolong.log.file.path", "/var/log/woolong/woolong.log")
	v.SetDefault("woolong.log.file.max_size_mb", 100)
	v.SetDefault("woolong.log.file.max_age_days", 30)
	v.SetDefault("woolong.log.file.max_backups", 5)
	v.SetDefault("woolong.log.file.compress", true)
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: log level %q (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.Format != "pattern" && cfg.Log.Format != "json" {
		return fmt.Errorf("%w: log format %q (must be pattern/json)", core.ErrConfigInvalid, cfg.Log.Format)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("%w: log.file.path is required when log.file.enabled=true", core.ErrConfigInvalid)
	}

	// ── Capture ──
	if cfg.Capture.Workers <= 0 {
		cfg.Capture.Workers = runtime.NumCPU()
	}
	if cfg.Capture.SnapLen <= 0 {
		cfg.Capture.SnapLen = 65535
	}
	if cfg.Capture.BufferSizeMB <= 0 {
		cfg.Capture.BufferSizeMB = 8
	}
	if cfg.Capture.TimeoutMS <= 0 {
		cfg.Capture.TimeoutMS = 100
	}
	if cfg.Capture.FanoutID < 0 || cfg.Capture.FanoutID > 0xFFFF {
		return fmt.Errorf("%w: capture.fanout_id %d out of range", core.ErrConfigInvalid, cfg.Capture.FanoutID)
	}
	switch cfg.Capture.Filter {
	case "ebpf", "cbpf", "none":
	default:
		return fmt.Errorf("%w: capture.filter %q (must be ebpf/cbpf/none)", core.ErrConfigInvalid, cfg.Capture.Filter)
	}

	// ── Reflector ──
	if _, err := cfg.Reflector.Options(); err != nil {
		return err
	}

	// ── Events ──
	if cfg.Events.Partitions <= 0 {
		cfg.Events.Partitions = cfg.Capture.Workers
	}
	if cfg.Events.QueueSize <= 0 {
		cfg.Events.QueueSize = 1024
	}
	if cfg.Events.RecordLen <= 0 {
		cfg.Events.RecordLen = maxRecordLen
	}
	if cfg.Events.RecordLen > maxRecordLen {
		return fmt.Errorf("%w: events.record_len %d (max %d)", core.ErrConfigInvalid, cfg.Events.RecordLen, maxRecordLen)
	}
	switch cfg.Events.Verdicts {
	case "all", "transmit", "abort":
	default:
		return fmt.Errorf("%w: events.verdicts %q (must be all/transmit/abort)", core.ErrConfigInvalid, cfg.Events.Verdicts)
	}

	return nil
}

// Options converts the reflector section into engine options, enforcing the
// signature/replacement length invariant.
func (rc ReflectorConfig) Options() (reflector.Options, error) {
	var opts reflector.Options
	var err error

	if rc.TriggerPort <= 0 || rc.TriggerPort > 0xFFFF {
		return opts, fmt.Errorf("%w: reflector.trigger_port %d", core.ErrConfigInvalid, rc.TriggerPort)
	}
	opts.TriggerPort = uint16(rc.TriggerPort)

	if opts.Signature, err = patternBytes(rc.Signature, rc.SignatureHex); err != nil {
		return opts, fmt.Errorf("%w: reflector.signature_hex: %v", core.ErrConfigInvalid, err)
	}
	if opts.Replacement, err = patternBytes(rc.Replacement, rc.ReplacementHex); err != nil {
		return opts, fmt.Errorf("%w: reflector.replacement_hex: %v", core.ErrConfigInvalid, err)
	}
	if opts.Match, err = reflector.ParseMatchMode(rc.MatchMode); err != nil {
		return opts, err
	}
	if opts.Offset, err = reflector.ParseOffsetMode(rc.OffsetMode); err != nil {
		return opts, err
	}
	if opts.Checksum, err = reflector.ParseChecksumStrategy(rc.Checksum); err != nil {
		return opts, err
	}
	if opts.Policy, err = core.ParseFailurePolicy(rc.FailurePolicy); err != nil {
		return opts, err
	}
	if opts.Offset == reflector.OffsetFixed {
		opts.PreambleSkip = rc.PreambleSkip
	}

	return opts, opts.Validate()
}

func patternBytes(text, hexText string) ([]byte, error) {
	if hexText == "" {
		return []byte(text), nil
	}
	return hex.DecodeString(strings.ReplaceAll(hexText, " ", ""))
}
