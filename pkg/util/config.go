package util

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// ReadConfig loads ./data/config.yaml into viper. A missing file is not an error; the
// defaults set by SetDefaults apply.
func ReadConfig() error {
	SetDefaults()
	viper.SetConfigName("config")
	viper.AddConfigPath("./data/")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("fatal error config file: %w", err)
	}
	return nil
}

// ReadConfigFile loads an explicit config file path.
func ReadConfigFile(path string) error {
	SetDefaults()
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("fatal error config file %s: %w", path, err)
	}
	return nil
}

func SetDefaults() {
	viper.SetDefault("LOG_LEVEL", "info")

	viper.SetDefault("ASSIGNMENT_MAX_ITERATIONS", 500)
	viper.SetDefault("ASSIGNMENT_GAP_EPSILON", 1e-4)
	viper.SetDefault("ASSIGNMENT_DEMAND_EPSILON", 1e-6)
	viper.SetDefault("ASSIGNMENT_SMOOTHING", "msa")
	viper.SetDefault("ASSIGNMENT_FIXED_STEP", 0.1)
	viper.SetDefault("ASSIGNMENT_COST_FUNCTION", "bpr")
	viper.SetDefault("ASSIGNMENT_PARALLEL_MODES", true)
	viper.SetDefault("ASSIGNMENT_PARALLEL_TIME_PERIODS", 1)
	viper.SetDefault("ASSIGNMENT_FUNDAMENTAL_DIAGRAM", "newell")
	viper.SetDefault("ASSIGNMENT_RECORD_SKIMS", true)
	viper.SetDefault("ASSIGNMENT_RECORD_PATHS", false)
	viper.SetDefault("ASSIGNMENT_CHECK_CONNECTIVITY", true)
	viper.SetDefault("BPR_ALPHA", 0.5)
	viper.SetDefault("BPR_BETA", 4.0)

	viper.SetDefault("CONNECTOID_SEARCH_RADIUS_KM", 0.5)
	viper.SetDefault("CONNECTOID_MAX_PER_ZONE", 2)

	viper.SetDefault("API_PORT", 6060)
	viper.SetDefault("API_TIMEOUT", "30s")
	viper.SetDefault("API_RATE_LIMIT_RPS", 10)
	viper.SetDefault("API_RATE_LIMIT_BURST", 20)
	viper.SetDefault("API_RESULT_CACHE_SIZE", 32)
	viper.SetDefault("API_MAX_CONCURRENT_RUNS", 2)
	viper.SetDefault("API_USE_RATE_LIMIT", true)
}
