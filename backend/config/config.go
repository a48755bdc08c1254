package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Running struct {
		Port int `mapstructure:"Port"`
	} `mapstructure:"Running"`
	Mysql struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"Mysql"`
	Redis struct {
		Addrs    []string `mapstructure:"addrs"`
		Password string   `mapstructure:"password"`
	} `mapstructure:"Redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"Kafka"`
	Auth struct {
		Secret string `mapstructure:"secret"`
	} `mapstructure:"Auth"`
	Collab struct {
		Presence         bool          `mapstructure:"presence"`
		Comments         bool          `mapstructure:"comments"`
		Suggestions      bool          `mapstructure:"suggestions"`
		Autosave         bool          `mapstructure:"autosave"`
		AutosaveInterval time.Duration `mapstructure:"autosaveInterval"`
		LockTTL          time.Duration `mapstructure:"lockTTL"`
		DefaultStrategy  string        `mapstructure:"defaultStrategy"`
	} `mapstructure:"Collab"`
}

// Load reads collabConfig.yaml; paths cover starting from the repo root
// or from the backend directory.
func Load() (*Config, error) {
	cfg := &Config{}
	v := viper.New()
	v.SetConfigName("collabConfig")
	v.SetConfigType("yaml")
	v.AddConfigPath("./backend/config")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetDefault("Running.Port", 8082)
	v.SetDefault("Collab.presence", true)
	v.SetDefault("Collab.comments", true)
	v.SetDefault("Collab.suggestions", true)
	v.SetDefault("Collab.autosave", true)
	v.SetDefault("Collab.autosaveInterval", 30*time.Second)
	v.SetDefault("Collab.lockTTL", 5*time.Minute)
	v.SetDefault("Collab.defaultStrategy", "manual")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
