package config

type PushConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CredentialsFile string `yaml:"credentials_file"`
}

func loadPushConfig() *PushConfig {
	return &PushConfig{
		Enabled:         getEnvAsBool("PUSH_ENABLED", false),
		CredentialsFile: getEnv("FCM_CREDENTIALS_FILE", ""),
	}
}
