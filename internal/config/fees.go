package config

type FeeConfig struct {
	// Platform-wide default commission percentage, used when a provider has
	// neither an exemption nor an individual rate.
	GlobalRate float64 `yaml:"global_rate"`
}

func loadFeeConfig() *FeeConfig {
	return &FeeConfig{
		GlobalRate: getEnvAsFloat64("FEE_GLOBAL_RATE", 20),
	}
}
