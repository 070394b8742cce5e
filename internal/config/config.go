package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wakala/settlement/internal/calendar"
	"github.com/wakala/settlement/internal/ledger"
)

type Config struct {
	AppEnv   string `mapstructure:"APP_ENV"`
	AppName  string `mapstructure:"APP_NAME"`
	Port     string `mapstructure:"PORT"`
	DBPath   string `mapstructure:"DB_PATH"`
	Timezone string `mapstructure:"TIMEZONE"`

	Settlement struct {
		MaxRollDays  int `mapstructure:"MAX_ROLL_DAYS"`
		LookbackDays int `mapstructure:"LOOKBACK_DAYS"`
	} `mapstructure:"SETTLEMENT"`

	AgentLedger struct {
		CommissionDivisor float64 `mapstructure:"COMMISSION_DIVISOR"`
		Debit             bool    `mapstructure:"DEBIT"`
		Accumulative      bool    `mapstructure:"ACCUMULATIVE"`
	} `mapstructure:"AGENT_LEDGER"`

	// FixedHolidays replaces the built-in holiday table when set, as a
	// comma separated list of YYYY-MM-DD dates.
	FixedHolidays string `mapstructure:"FIXED_HOLIDAYS"`

	// SeedFile lists transaction batch files, comma separated, ingested into
	// an empty database on startup.
	SeedFile string `mapstructure:"SEED_FILE"`
}

// Load reads configuration from an optional config.yaml in the working
// directory, overridden by environment variables. Nested keys map to
// environment names with "." replaced by "_", e.g. SETTLEMENT_MAX_ROLL_DAYS.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "settlement")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_PATH", "settlement.db")
	v.SetDefault("TIMEZONE", "Asia/Kuala_Lumpur")
	v.SetDefault("SETTLEMENT.MAX_ROLL_DAYS", calendar.DefaultMaxRollDays)
	v.SetDefault("SETTLEMENT.LOOKBACK_DAYS", 0)
	v.SetDefault("AGENT_LEDGER.COMMISSION_DIVISOR", ledger.DefaultCommissionDivisor)
	v.SetDefault("AGENT_LEDGER.DEBIT", false)
	v.SetDefault("AGENT_LEDGER.ACCUMULATIVE", false)
	v.SetDefault("FIXED_HOLIDAYS", "")
	v.SetDefault("SEED_FILE", "")
}

func (c *Config) validate() error {
	if c.Settlement.MaxRollDays <= 0 {
		return fmt.Errorf("SETTLEMENT_MAX_ROLL_DAYS must be positive, got %d", c.Settlement.MaxRollDays)
	}
	if c.Settlement.LookbackDays < 0 {
		return fmt.Errorf("SETTLEMENT_LOOKBACK_DAYS must not be negative, got %d", c.Settlement.LookbackDays)
	}
	if c.AgentLedger.CommissionDivisor <= 0 {
		return fmt.Errorf("AGENT_LEDGER_COMMISSION_DIVISOR must be positive, got %v", c.AgentLedger.CommissionDivisor)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone. Business dates of incoming timestamps are taken
// in this zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SeedFiles splits SeedFile into its paths.
func (c *Config) SeedFiles() []string {
	var out []string
	for _, p := range strings.Split(c.SeedFile, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AgentVariant returns the configured agent ledger variant.
func (c *Config) AgentVariant() ledger.AgentVariant {
	return ledger.AgentVariant{
		HasDebit:           c.AgentLedger.Debit,
		TracksAccumulative: c.AgentLedger.Accumulative,
		Divisor:            c.AgentLedger.CommissionDivisor,
	}
}

// Holidays builds the holiday snapshot from the configured fixed list, or
// the built-in table when none is configured.
func (c *Config) Holidays(addOn []calendar.AddOnHoliday) (calendar.HolidaySet, error) {
	fixed := calendar.FixedHolidays()
	if strings.TrimSpace(c.FixedHolidays) != "" {
		var err error
		fixed, err = calendar.ParseFixedHolidays(c.FixedHolidays)
		if err != nil {
			return calendar.HolidaySet{}, fmt.Errorf("FIXED_HOLIDAYS: %w", err)
		}
	}
	return calendar.NewHolidaySet(fixed, addOn), nil
}
