package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/de-tools/kmp-audit/pkg/services/audit"
	"github.com/spf13/viper"
)

const envPrefix = "KMPAUDIT"

type Settings struct {
	Audit  AuditConfig  `mapstructure:"audit"`
	Batch  BatchConfig  `mapstructure:"batch"`
	Gather GatherConfig `mapstructure:"gather"`
	Log    LogConfig    `mapstructure:"log"`
}

type AuditConfig struct {
	Licenses         []string `mapstructure:"licenses"`
	VendorTokens     []string `mapstructure:"vendor_tokens"`
	LiveTokens       []string `mapstructure:"live_tokens"`
	KernelFlavor     string   `mapstructure:"kernel_flavor"`
	PatternCacheSize int      `mapstructure:"pattern_cache_size"`
}

type BatchConfig struct {
	Concurrency int  `mapstructure:"concurrency"`
	Sorted      bool `mapstructure:"sorted"`
}

type GatherConfig struct {
	Command     string        `mapstructure:"command"`
	LiveCommand string        `mapstructure:"live_command"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	def := audit.DefaultSettings()
	v.SetDefault("audit.licenses", def.Licenses)
	v.SetDefault("audit.vendor_tokens", def.VendorTokens)
	v.SetDefault("audit.live_tokens", def.LiveTokens)
	v.SetDefault("audit.kernel_flavor", "")
	v.SetDefault("audit.pattern_cache_size", def.PatternCacheSize)
	v.SetDefault("batch.concurrency", runtime.NumCPU())
	v.SetDefault("batch.sorted", true)
	v.SetDefault("gather.command", "kmp-facts --json {path}")
	v.SetDefault("gather.live_command", "kmp-facts --live --json")
	v.SetDefault("gather.timeout", 60*time.Second)
	v.SetDefault("log.level", "info")
}

// LoadSettings reads the optional config file at path, then applies
// KMPAUDIT_* environment overrides (KMPAUDIT_BATCH_CONCURRENCY=8).
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Settings
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Settings) Validate() error {
	if s.Batch.Concurrency < 1 {
		return fmt.Errorf("batch.concurrency must be positive, got %d", s.Batch.Concurrency)
	}
	if len(s.Audit.VendorTokens) == 0 {
		return fmt.Errorf("audit.vendor_tokens must not be empty")
	}
	if s.Gather.Timeout <= 0 {
		return fmt.Errorf("gather.timeout must be positive, got %s", s.Gather.Timeout)
	}
	return nil
}

// AuditSettings maps the audit section onto the analyzer settings.
func (s *Settings) AuditSettings() audit.Settings {
	return audit.Settings{
		Licenses:         s.Audit.Licenses,
		VendorTokens:     s.Audit.VendorTokens,
		LiveTokens:       s.Audit.LiveTokens,
		KernelFlavor:     s.Audit.KernelFlavor,
		PatternCacheSize: s.Audit.PatternCacheSize,
	}
}
