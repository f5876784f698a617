package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port int

	// side port for the worker's health and metrics endpoints
	WorkerPort int

	DBURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTLPEndpoint string

	// cost knob for bcrypt; lower it in dev to keep tests and local
	// registration fast
	BcryptCost int

	AllowedOrigins []string
}

func Load() Config {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "dev")
	port := getEnvInt("PORT", 8080)
	dbURL := buildDBURL()

	cost := getEnvInt("BCRYPT_COST", 10)

	origins := strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ",")

	return Config{
		Env:            env,
		Port:           port,
		WorkerPort:     getEnvInt("WORKER_PORT", 8081),
		DBURL:          dbURL,
		RedisAddr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", ""),
		BcryptCost:     cost,
		AllowedOrigins: origins,
	}
}

func buildDBURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "authhub")
	pass := getEnv("DB_PASSWORD", "authhub")
	name := getEnv("DB_NAME", "authhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}
