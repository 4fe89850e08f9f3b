package config

import (
	"time"

	"github.com/Makazone/howhappy-api/pkg/logger"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"PORT" env-default:"8080"`
	} `yaml:"http"`

	Postgres struct {
		DSN string `yaml:"dsn" env:"DATABASE_URL"`
	} `yaml:"postgres"`

	RabbitMQ struct {
		URL string `yaml:"url" env:"RABBITMQ_URL"`
	} `yaml:"rabbitmq"`

	S3 struct {
		Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
		Region    string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
		AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
		SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
		Bucket    string `yaml:"bucket" env:"S3_BUCKET" env-default:"howhappy"`
	} `yaml:"s3"`

	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
		Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
		DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	} `yaml:"redis"`

	JWT struct {
		Secret      string        `yaml:"secret" env:"JWT_SECRET"`
		UserTTL     time.Duration `yaml:"user_ttl" env:"JWT_USER_TTL" env-default:"1h"`
		ResponseTTL time.Duration `yaml:"response_ttl" env:"JWT_RESPONSE_TTL" env-default:"15m"`
	} `yaml:"jwt"`

	Transcriber struct {
		BaseURL string `yaml:"base_url" env:"TRANSCRIBER_BASE_URL"`
		APIKey  string `yaml:"api_key" env:"TRANSCRIBER_API_KEY"`
	} `yaml:"transcriber"`

	Analyzer struct {
		BaseURL string `yaml:"base_url" env:"ANALYZER_BASE_URL"`
		APIKey  string `yaml:"api_key" env:"ANALYZER_API_KEY"`
		Model   string `yaml:"model" env:"ANALYZER_MODEL" env-default:"gpt-4"`
	} `yaml:"analyzer"`

	Worker struct {
		Prefetch    int `yaml:"prefetch" env:"WORKER_PREFETCH" env-default:"1"`
		MaxAttempts int `yaml:"max_attempts" env:"WORKER_MAX_ATTEMPTS" env-default:"3"`
	} `yaml:"worker"`
}

func LoadConfig() (*Config, error) {
	// Load .env file
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadConfig("configs/config.yaml", &cfg); err != nil {
		return nil, err
	}

	if err := cleanenv.UpdateEnv(&cfg); err != nil {
		return nil, err
	}

	logger.Info("Config loaded successfully")
	return &cfg, nil
}
