package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4280"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Sweep-Zeitplan für deposit-all (Reconciliation nicht bestätigter Deposits)
	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 3 * * *"`

	// Crossref-Deposit-API
	CrossrefBaseURL        string `envconfig:"CROSSREF_BASE_URL" default:"https://doi.crossref.org/servlet/deposit"`
	CrossrefUser           string `envconfig:"CROSSREF_USER"`
	CrossrefPassword       string `envconfig:"CROSSREF_PASSWORD"`
	CrossrefDepositorName  string `envconfig:"CROSSREF_DEPOSITOR_NAME" default:"doi-hand"`
	CrossrefDepositorEmail string `envconfig:"CROSSREF_DEPOSITOR_EMAIL"`

	// DataCite-MDS-API
	DataCiteBaseURL  string `envconfig:"DATACITE_BASE_URL" default:"https://mds.datacite.org"`
	DataCiteUser     string `envconfig:"DATACITE_USER"`
	DataCitePassword string `envconfig:"DATACITE_PASSWORD"`

	// Worker-Pool für asynchrone Deposits
	DepositWorkers    int `envconfig:"DEPOSIT_WORKERS" default:"5"`
	DepositMaxRetries int `envconfig:"DEPOSIT_MAX_RETRIES" default:"3"`

	StratoS3Key    string `envconfig:"STRATO_S3_KEY" required:"true"`
	StratoS3Secret string `envconfig:"STRATO_S3_SECRET" required:"true"`
	StratoS3URL    string `envconfig:"STRATO_S3_URL" required:"true"`
	StratoS3Region string `envconfig:"STRATO_S3_REGION" required:"true"`
	StratoS3Bucket string `envconfig:"STRATO_S3_BUCKET" required:"true"`

	// Agency-Konfiguration (welche Adapter beim Start registriert werden)
	EnabledAgencies string `envconfig:"ENABLED_AGENCIES" default:"crossref,datacite"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// AgencyNames gibt die Namen der aktivierten Agency-Adapter zurück.
func (c *Config) AgencyNames() []string {
	var names []string
	for _, n := range strings.Split(c.EnabledAgencies, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
