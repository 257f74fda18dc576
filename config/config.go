package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort      string
	DBPath          string
	MaxResponseTime time.Duration
}

func Load() *Config {
	// .env is optional; real environment variables take precedence either way
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file")
	}

	return &Config{
		ServerPort:      getEnv("PORT", ":8080"),
		DBPath:          getEnv("DB_PATH", "./stuffhappens.db"),
		MaxResponseTime: time.Duration(getIntEnv("MAX_RESPONSE_TIME_SECONDS", 30)) * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
		log.Printf("Invalid %s value %q, using default %d", key, value, defaultValue)
	}
	return defaultValue
}
