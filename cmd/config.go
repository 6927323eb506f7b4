package cmd

import "fmt"

// Config carries every environment-sourced setting of the application.
type Config struct {
	HTTPPort string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	BackendURL string

	KafkaHost          string
	KafkaConsumerGroup string
	KafkaEventsTopic   string

	DelivererID string
	JobCredit   int
}

// PostgresDSN renders the gorm connection string.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSslMode,
	)
}
