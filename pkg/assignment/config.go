package assignment

import (
	"fmt"

	"github.com/TrafficPLANit/PLANit-sub005/pkg"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/costfunction"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	MaxIterations       int     `validate:"gte=1"`
	GapEpsilon          float64 `validate:"gt=0"`
	DemandEpsilon       float64 `validate:"gte=0"`
	Smoothing           string  `validate:"oneof=msa fixed sra"`
	FixedStep           float64 `validate:"gt=0,lte=1"`
	CostFunction        costfunction.Options
	ParallelModes       bool
	ParallelTimePeriods int `validate:"gte=1"`
	RecordSkims         bool
	RecordPaths         bool
	CheckConnectivity   bool
}

func DefaultConfig() Config {
	return Config{
		MaxIterations:       pkg.DEFAULT_MAX_ITERATIONS,
		GapEpsilon:          pkg.DEFAULT_GAP_EPSILON,
		DemandEpsilon:       pkg.DEFAULT_DEMAND_EPSILON,
		Smoothing:           MSA,
		FixedStep:           0.1,
		CostFunction:        costfunction.Options{Name: costfunction.BPR},
		ParallelTimePeriods: 1,
		CheckConnectivity:   true,
	}
}

// ConfigFromViper reads the ASSIGNMENT_* and BPR_* keys. util.SetDefaults provides the defaults.
func ConfigFromViper() (Config, error) {
	bpr := costfunction.NewBPRParameterRegistry()
	if err := bpr.SetDefault(costfunction.BPRParameters{
		Alpha: viper.GetFloat64("BPR_ALPHA"),
		Beta:  viper.GetFloat64("BPR_BETA"),
	}); err != nil {
		return Config{}, err
	}

	cfg := Config{
		MaxIterations:       viper.GetInt("ASSIGNMENT_MAX_ITERATIONS"),
		GapEpsilon:          viper.GetFloat64("ASSIGNMENT_GAP_EPSILON"),
		DemandEpsilon:       viper.GetFloat64("ASSIGNMENT_DEMAND_EPSILON"),
		Smoothing:           viper.GetString("ASSIGNMENT_SMOOTHING"),
		FixedStep:           viper.GetFloat64("ASSIGNMENT_FIXED_STEP"),
		ParallelModes:       viper.GetBool("ASSIGNMENT_PARALLEL_MODES"),
		ParallelTimePeriods: viper.GetInt("ASSIGNMENT_PARALLEL_TIME_PERIODS"),
		RecordSkims:         viper.GetBool("ASSIGNMENT_RECORD_SKIMS"),
		RecordPaths:         viper.GetBool("ASSIGNMENT_RECORD_PATHS"),
		CheckConnectivity:   viper.GetBool("ASSIGNMENT_CHECK_CONNECTIVITY"),
		CostFunction: costfunction.Options{
			Name:               viper.GetString("ASSIGNMENT_COST_FUNCTION"),
			FundamentalDiagram: viper.GetString("ASSIGNMENT_FUNDAMENTAL_DIAGRAM"),
			BPR:                bpr,
		},
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid assignment config: %w", err)
	}
	return nil
}
