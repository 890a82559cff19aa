package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

var loadEnv sync.Once

func Config(key string) string {
	loadEnv.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("⚠️ .env file not found, reading from system environment variables")
		}
	})

	return os.Getenv(key)
}

type AppConfig struct {
	DatabaseDriver string
	DatabaseURL    string
	Port           string
	JWTSecret      string
	RedisAddr      string
	RedisPassword  string
	KafkaBroker    string
	KafkaTopic     string
	CloudinaryURL  string
	ProofFolder    string
	ReconcileCron  string
	TimeZone       string
}

// Load reads the application settings, falling back to defaults for
// anything optional. Empty RedisAddr, KafkaBroker or CloudinaryURL disable
// the matching integration.
func Load() AppConfig {
	return AppConfig{
		DatabaseDriver: withDefault("DATABASE_DRIVER", "postgres"),
		DatabaseURL:    Config("DATABASE_URL"),
		Port:           withDefault("PORT", "8080"),
		JWTSecret:      Config("JWT_SECRET"),
		RedisAddr:      Config("REDIS_ADDR"),
		RedisPassword:  Config("REDIS_PASSWORD"),
		KafkaBroker:    Config("KAFKA_BROKER"),
		KafkaTopic:     withDefault("KAFKA_TOPIC", "tuition.reconciliation"),
		CloudinaryURL:  Config("CLOUDINARY_URL"),
		ProofFolder:    withDefault("PROOF_FOLDER", "tuition_payment_proofs"),
		ReconcileCron:  withDefault("RECONCILE_CRON", "*/15 * * * *"),
		TimeZone:       withDefault("APP_TIMEZONE", "America/Guatemala"),
	}
}

func withDefault(key, fallback string) string {
	if v := Config(key); v != "" {
		return v
	}
	return fallback
}
