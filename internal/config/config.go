package config

import (
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DBURL             string
	RedisAddr         string
	MQTTBroker        string
	MQTTClientID      string
	HTTPAddr          string
	LogLevel          string
	JWTSecret         string
	AdminPasswordHash string
	MDNSLocalName     string
	PollSchedule      string
}

// Load reads configuration from config.yaml, .env or environment
// variables.
func Load() (*Config, error) {
	// Missing .env is fine; environment variables still apply.
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig()

	viper.SetDefault("MQTT_CLIENT_ID", "homehub")
	viper.SetDefault("HTTP_ADDR", ":5069")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MDNS_LOCAL_NAME", "homehub.local")
	viper.SetDefault("POLL_SCHEDULE", "@every 5m")

	cfg := &Config{
		DBURL:             viper.GetString("DB_URL"),
		RedisAddr:         viper.GetString("REDIS_ADDR"),
		MQTTBroker:        viper.GetString("MQTT_BROKER"),
		MQTTClientID:      viper.GetString("MQTT_CLIENT_ID"),
		HTTPAddr:          viper.GetString("HTTP_ADDR"),
		LogLevel:          viper.GetString("LOG_LEVEL"),
		JWTSecret:         viper.GetString("JWT_SECRET"),
		AdminPasswordHash: viper.GetString("ADMIN_PASSWORD_HASH"),
		MDNSLocalName:     viper.GetString("MDNS_LOCAL_NAME"),
		PollSchedule:      viper.GetString("POLL_SCHEDULE"),
	}
	return cfg, nil
}
