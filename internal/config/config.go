package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment      string
	BusPort          string
	DBHost           string
	DBPort           string
	DBUsername       string
	DBPassword       string
	DBName           string
	DBSSLMode        string
	IMAPHost         string
	IMAPUsername     string
	IMAPPassword     string
	IMAPFolder       string
	ExportDir        string
	FilenameTemplate string
	Timezone         string
}

func NewConfig() (*Config, error) {
	env := os.Getenv("EXFIL_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	config := &Config{
		Environment:      env,
		BusPort:          getEnvOrDefault("EXFIL_BUS_PORT", "8765"),
		DBHost:           getEnvOrDefault("EXFIL_DB_HOST", "localhost"),
		DBPort:           getEnvOrDefault("EXFIL_DB_PORT", "5432"),
		DBUsername:       getEnvOrDefault("EXFIL_DB_USER", "exfil"),
		DBPassword:       os.Getenv("EXFIL_DB_PASSWORD"),
		DBName:           getEnvOrDefault("EXFIL_DB_NAME", "exfil"),
		DBSSLMode:        getEnvOrDefault("EXFIL_DB_SSLMODE", "disable"),
		IMAPHost:         os.Getenv("EXFIL_IMAP_HOST"),
		IMAPUsername:     os.Getenv("EXFIL_IMAP_USER"),
		IMAPPassword:     os.Getenv("EXFIL_IMAP_PASSWORD"),
		IMAPFolder:       getEnvOrDefault("EXFIL_IMAP_FOLDER", "INBOX"),
		ExportDir:        os.Getenv("EXFIL_EXPORT_DIR"),
		FilenameTemplate: getEnvOrDefault("EXFIL_FILENAME_TEMPLATE", "${yyyy-mm-dd} ${HHMM}__${from}__${subject}"),
		Timezone:         getEnvOrDefault("TZ", "UTC"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.IMAPHost == "" {
		return fmt.Errorf("EXFIL_IMAP_HOST is required")
	}

	if c.IMAPUsername == "" {
		return fmt.Errorf("EXFIL_IMAP_USER is required")
	}

	if c.DBPassword == "" {
		return fmt.Errorf("EXFIL_DB_PASSWORD is required")
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUsername,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
