package config

type MapsConfig struct {
	Provider string   `yaml:"provider"`
	APIKey   string   `yaml:"api_key"`
	Mode     string   `yaml:"mode"`
	Avoid    []string `yaml:"avoid"`
}

func loadMapsConfig() *MapsConfig {
	return &MapsConfig{
		Provider: getEnv("MAPS_PROVIDER", "google"),
		APIKey:   getEnv("MAPS_API_KEY", ""),
		Mode:     getEnv("MAPS_MODE", "driving"),
		Avoid:    getEnvAsSlice("MAPS_AVOID", nil),
	}
}
