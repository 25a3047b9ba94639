package trapr

import (
	"github.com/spf13/viper"

	"github.com/cjordan/trapr/internal/pkg/comm"
)

func loadConfig() {
	viper.SetConfigName("traprrc")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.trapr")

	setupDefaults()

	viper.ReadInConfig()

	viper.SetEnvPrefix("trapr")
	viper.AutomaticEnv()
}

func setupDefaults() {
	defaultSettings := map[string]interface{}{
		"lower":          0.0,
		"upper":          1.0,
		"subintervals":   1024, // trapezoid count of the classic reference run
		"workers":        4,
		"function":       "x^2",
		"transport":      "local",
		"nats_url":       comm.DefaultNATSURL,
		"rank":           0, // this process's rank, NATS transport only
		"memoize_points": 0, // LRU size for integrand caching; 0 disables
		"verbose":        false,
		"progress":       false,
	}
	for key, value := range defaultSettings {
		viper.SetDefault(key, value)
	}

	aliases := map[string]string{
		"verbose":      "v",
		"workers":      "w",
		"subintervals": "n",
	}
	for key, alias := range aliases {
		viper.RegisterAlias(alias, key)
	}
}
