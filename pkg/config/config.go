package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config values can be written as "30s"
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Target describes a monitored network endpoint.
// Fields left at their zero value fall back to the global defaults.
type Target struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`

	// Port selects the check kind: 0 means a ping reachability check,
	// anything else a TCP connect check against that port.
	Port int `yaml:"port,omitempty"`

	Timeout  Duration `yaml:"timeout,omitempty"`
	Retries  int      `yaml:"retries,omitempty"`
	Interval Duration `yaml:"interval,omitempty"`

	// Actions overrides the global recovery sequence for this target.
	// nil means the global sequence applies; an explicitly empty list
	// reduces recovery to the confirmation probe alone.
	Actions []RecoveryAction `yaml:"recovery_actions,omitempty"`
}

// RecoveryAction is one remediation step in a target's recovery sequence
type RecoveryAction struct {
	Name      string   `yaml:"name"`
	Command   string   `yaml:"command"`
	WaitAfter Duration `yaml:"wait_after,omitempty"`
}

// Config is the full daemon configuration, immutable after Load
type Config struct {
	DefaultTarget    string   `yaml:"default_target"`
	CheckInterval    Duration `yaml:"check_interval"`
	ProbeTimeout     Duration `yaml:"probe_timeout"`
	RetryCount       int      `yaml:"retry_count"`
	FailureThreshold int      `yaml:"failure_threshold"`
	RecoveryCooldown Duration `yaml:"recovery_cooldown"`

	ListenAddr string `yaml:"listen_addr"`
	DataDir    string `yaml:"data_dir,omitempty"`
	LogFile    string `yaml:"log_file,omitempty"`

	// JournalRetention bounds how far back the event journal reaches;
	// older events are pruned periodically while the daemon runs
	JournalRetention Duration `yaml:"journal_retention,omitempty"`

	// NotifyCommand is executed once when a target's recovery is confirmed
	NotifyCommand string `yaml:"notify_command,omitempty"`

	Targets         []Target         `yaml:"targets"`
	RecoveryActions []RecoveryAction `yaml:"recovery_actions"`
}

// Default returns the built-in configuration used when no config file exists
func Default() *Config {
	return &Config{
		DefaultTarget:    "8.8.8.8",
		CheckInterval:    Duration(60 * time.Second),
		ProbeTimeout:     Duration(time.Second),
		RetryCount:       3,
		FailureThreshold: 3,
		RecoveryCooldown: Duration(60 * time.Second),
		ListenAddr:       "127.0.0.1:9430",
		JournalRetention: Duration(7 * 24 * time.Hour),
		Targets: []Target{
			{Name: "Google DNS", Address: "8.8.8.8", Timeout: Duration(time.Second), Retries: 3},
			{Name: "Local Router", Address: "192.168.1.1", Timeout: Duration(500 * time.Millisecond), Retries: 2},
		},
		RecoveryActions: []RecoveryAction{
			{
				Name:      "restart interface",
				Command:   "ip link set eth0 down && ip link set eth0 up",
				WaitAfter: Duration(5 * time.Second),
			},
		},
	}
}

// Load reads the configuration from path. If the file does not exist the
// default configuration is written there and returned, so a first run
// leaves an editable config behind.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to path as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.DefaultTarget == "" {
		c.DefaultTarget = def.DefaultTarget
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = def.CheckInterval
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = def.ProbeTimeout
	}
	if c.RetryCount == 0 {
		c.RetryCount = def.RetryCount
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.RecoveryCooldown == 0 {
		c.RecoveryCooldown = def.RecoveryCooldown
	}
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.JournalRetention == 0 {
		c.JournalRetention = def.JournalRetention
	}
}

// Validate checks the configuration for errors that must stop startup
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("config: at least one target is required")
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("config: failure_threshold must be >= 1")
	}
	if c.RetryCount < 1 {
		return fmt.Errorf("config: retry_count must be >= 1")
	}
	if c.CheckInterval.Std() <= 0 {
		return fmt.Errorf("config: check_interval must be positive")
	}
	if c.ProbeTimeout.Std() <= 0 {
		return fmt.Errorf("config: probe_timeout must be positive")
	}
	if c.RecoveryCooldown.Std() < 0 {
		return fmt.Errorf("config: recovery_cooldown must not be negative")
	}
	if c.JournalRetention.Std() < 0 {
		return fmt.Errorf("config: journal_retention must not be negative")
	}

	seen := make(map[string]bool, len(c.Targets))
	for i, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("config: target %d has no name", i)
		}
		if t.Address == "" {
			return fmt.Errorf("config: target %q has no address", t.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("config: duplicate target name %q", t.Name)
		}
		seen[t.Name] = true
		if t.Port < 0 || t.Port > 65535 {
			return fmt.Errorf("config: target %q has invalid port %d", t.Name, t.Port)
		}
		if t.Timeout.Std() < 0 || t.Interval.Std() < 0 {
			return fmt.Errorf("config: target %q has negative duration", t.Name)
		}
		if err := validateActions(t.Actions, fmt.Sprintf("target %q", t.Name)); err != nil {
			return err
		}
	}

	return validateActions(c.RecoveryActions, "global")
}

func validateActions(actions []RecoveryAction, scope string) error {
	for i, a := range actions {
		if a.Name == "" {
			return fmt.Errorf("config: %s recovery action %d has no name", scope, i)
		}
		if a.Command == "" {
			return fmt.Errorf("config: %s recovery action %q has no command", scope, a.Name)
		}
		if a.WaitAfter.Std() < 0 {
			return fmt.Errorf("config: %s recovery action %q has negative wait_after", scope, a.Name)
		}
	}
	return nil
}

// TargetTimeout returns the probe timeout for a target, falling back to
// the global default
func (c *Config) TargetTimeout(t *Target) time.Duration {
	if t.Timeout != 0 {
		return t.Timeout.Std()
	}
	return c.ProbeTimeout.Std()
}

// TargetRetries returns the retry count for a target
func (c *Config) TargetRetries(t *Target) int {
	if t.Retries != 0 {
		return t.Retries
	}
	return c.RetryCount
}

// TargetInterval returns the polling interval for a target
func (c *Config) TargetInterval(t *Target) time.Duration {
	if t.Interval != 0 {
		return t.Interval.Std()
	}
	return c.CheckInterval.Std()
}

// TargetActions returns the recovery sequence for a target. A target with
// no sequence of its own inherits the global one.
func (c *Config) TargetActions(t *Target) []RecoveryAction {
	if t.Actions != nil {
		return t.Actions
	}
	return c.RecoveryActions
}
