package config

import (
	"fmt"
	"log"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ConfigPath     string
	Profile        string
	Verbose        bool
	ApiGinMode     string
	MigrationsPath string

	Ip            string
	Port          string
	PublicBaseURL string

	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string

	// local tokens
	JWTSecret       []byte
	TokenTTL        time.Duration
	VerificationTTL time.Duration
	ResetTTL        time.Duration

	//kc
	AuthMode     string
	AuthAddress  string
	Issuer       string
	Audience     string
	Realm        string
	ClientID     string
	ClientSecret string

	// database
	DBAddress  string
	DBUser     string
	DBPassword string
	DBName     string

	EventBuffer int
}

// Load reads the .env file at path and overlays the process environment.
// A missing file is not fatal; the defaults serve a local run.
func Load(path string) Config {
	if err := godotenv.Load(path); err != nil {
		log.Printf("[WARN] failed to load the config file at %s, using default ones...", path)
	}

	s := strings.Split(path, "/")
	config := Config{
		ConfigPath:     s[len(s)-1],
		Profile:        getEnv("PROFILE", "baremetal"),
		Verbose:        getBoolEnv("VERBOSE", "true"),
		ApiGinMode:     getEnv("GIN_MODE", "debug"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),

		Ip:             getEnv("IP", "localhost"),
		Port:           getEnv("PORT", "5000"),
		PublicBaseURL:  getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),
		AllowedOrigins: getEnvFields("ALLOW_ORIGINS", []string{"*"}),
		AllowedMethods: getEnvFields("ALLOW_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		AllowedHeaders: getEnvFields("ALLOW_HEADERS", []string{"Origin", "Content-Type", "Authorization"}),

		JWTSecret:       []byte(getEnv("JWT_SECRET", "")),
		TokenTTL:        getDurationEnv("TOKEN_TTL", 7*24*time.Hour),
		VerificationTTL: getDurationEnv("VERIFICATION_TTL", 24*time.Hour),
		ResetTTL:        getDurationEnv("RESET_TTL", time.Hour),

		AuthMode:     getEnv("AUTH_MODE", "local"),
		AuthAddress:  getEnv("AUTH_ADDRESS", "localhost:5555"),
		Issuer:       getEnv("KC_ISSUER", ""),
		Audience:     getEnv("KC_AUDIENCE", "nexushub"),
		Realm:        getEnv("KC_REALM", "nexushub"),
		ClientID:     getEnv("KC_CLIENT", "nexushub-api"),
		ClientSecret: getEnv("KC_CLIENT_SECRET", ""),

		DBAddress:  getEnv("DB_ADDRESS", "localhost:5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "nexushub"),

		EventBuffer: getIntEnv("EVENT_BUFFER", 32),
	}

	if config.Issuer == "" {
		config.Issuer = fmt.Sprintf("http://%s/realms/%s", config.AuthAddress, config.Realm)
	}

	if config.Verbose {
		log.Print(config.String())
	}

	return config
}

func (cfg *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		cfg.DBUser, cfg.DBPassword, cfg.DBAddress, cfg.DBName)
}

func (cfg *Config) Addr() string {
	return cfg.Ip + ":" + cfg.Port
}

func (cfg *Config) JWKSURL() string {
	return fmt.Sprintf("http://%s/realms/%s/protocol/openid-connect/certs", cfg.AuthAddress, cfg.Realm)
}

func getEnv(env, fallback string) string {
	if value, exists := os.LookupEnv(env); exists {
		return value
	}

	return fallback
}

func getEnvFields(env string, fallback []string) []string {
	if value, exists := os.LookupEnv(env); exists {
		fields := strings.Split(strings.TrimSpace(value), ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		return fields
	}

	return fallback
}

func getBoolEnv(env, fallback string) bool {
	if value, exists := os.LookupEnv(env); exists {
		return strings.ToLower(value) == "true"
	}

	return strings.ToLower(fallback) == "true"
}

func getIntEnv(env string, fallback int) int {
	if value, exists := os.LookupEnv(env); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}

	return fallback
}

func getDurationEnv(env string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(env); exists {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
		log.Printf("[WARN] %s=%q is not a duration, using %s", env, value, fallback)
	}

	return fallback
}

func isSecret(name string) bool {
	return strings.Contains(name, "Secret") || strings.Contains(name, "Password")
}

// String dumps every field, masking secrets.
func (cfg *Config) String() string {
	var strBuilder strings.Builder

	reflectedValues := reflect.ValueOf(cfg).Elem()
	reflectedTypes := reflect.TypeOf(cfg).Elem()

	strBuilder.WriteString(fmt.Sprintf("[CFG]CONFIGURATION: %s\n", cfg.ConfigPath))

	for i := range reflectedValues.NumField() {
		fieldName := reflectedTypes.Field(i).Name
		fieldValue := reflectedValues.Field(i).Interface()

		if byteSlice, ok := fieldValue.([]byte); ok {
			fieldValue = string(byteSlice)
		}
		if isSecret(fieldName) && fmt.Sprint(fieldValue) != "" {
			fieldValue = "********"
		}

		strBuilder.WriteString(fmt.Sprintf("[CFG]%2d. %-16s -> %v\n", i+1, fieldName, fieldValue))
	}

	return strBuilder.String()
}
