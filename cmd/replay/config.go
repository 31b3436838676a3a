package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/redtramp/univocity-trader/pkg/simulation"
)

const envPrefix = "REPLAY"

// loadConfiguration layers the defaults, the optional YAML file, REPLAY_*
// environment variables and the command line flags, in that order.
func loadConfiguration(v *viper.Viper, configFile string) (simulation.Configuration, error) {
	cfg := simulation.DefaultConfiguration()
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("error reading %s: %w", configFile, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("error decoding configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg simulation.Configuration) {
	v.SetDefault("reference_currency", cfg.ReferenceCurrency)
	v.SetDefault("margin_reserve_factor", cfg.MarginReserveFactor)
	v.SetDefault("quantity_tolerance", cfg.QuantityTolerance)
	v.SetDefault("negative_free_borrowing", cfg.NegativeFreeBorrowing)
	v.SetDefault("allocation.max_amount_per_asset", cfg.Allocation.MaxAmountPerAsset)
	v.SetDefault("allocation.max_percentage_per_asset", cfg.Allocation.MaxPercentagePerAsset)
	v.SetDefault("allocation.max_amount_per_trade", cfg.Allocation.MaxAmountPerTrade)
	v.SetDefault("allocation.max_percentage_per_trade", cfg.Allocation.MaxPercentagePerTrade)
	v.SetDefault("allocation.min_amount_per_trade", cfg.Allocation.MinAmountPerTrade)
	v.SetDefault("fees.maker", cfg.Fees.Maker)
	v.SetDefault("fees.taker", cfg.Fees.Taker)
	v.SetDefault("fill.model", cfg.Fill.Model)
	v.SetDefault("fill.ratio", cfg.Fill.Ratio)
	v.SetDefault("data.period", cfg.Data.Period)
	v.SetDefault("event_capacity", cfg.EventCapacity)
	v.SetDefault("journal.enabled", cfg.Journal.Enabled)
	v.SetDefault("journal.host", "localhost")
	v.SetDefault("journal.port", "5432")
	v.SetDefault("journal.user", "")
	v.SetDefault("journal.password", "")
	v.SetDefault("journal.database", "")
}
