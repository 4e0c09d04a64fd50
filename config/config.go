package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel    string `env:"LOG_LEVEL"`
	Postgres    Postgres
	Redis       Redis
	API         API
	Cache       Cache
	Jobs        Jobs
	GoogleDrive GoogleDrive
	Reconcile   Reconcile
}

type Postgres struct {
	Host            string `env:"PG_HOST"`
	Port            int    `env:"PG_PORT"`
	DbName          string `env:"PG_DB_NAME"`
	Password        string `env:"PG_PASSWORD"`
	User            string `env:"PG_USER"`
	MaxOpenConns    int    `env:"PG_MAX_OPEN_CONNS"`
	ConnMaxLifetime int    `env:"PG_CONN_MAX_LIFETIME"`
	MaxIdleConns    int    `env:"PG_MAX_IDLE_CONNS"`
	ConnMaxIdleTime int    `env:"PG_CONN_MAX_IDLE_TIME"`
	MigrationDir    string `env:"PG_MIGRATION_DIR"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST"`
	Port     int    `env:"REDIS_PORT"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"`
}

type API struct {
	Debug     bool          `env:"API_DEBUG"`
	Timeout   time.Duration `env:"API_TIMEOUT"`
	Robinhood Robinhood
	Notion    Notion
}

type Robinhood struct {
	Url        string `env:"RH_API_URL"`
	Token      string `env:"RH_TOKEN"`
	ApiVersion string `env:"RH_API_VERSION"`
}

type Notion struct {
	Url          string `env:"NOTION_API_URL"`
	Token        string `env:"NOTION_TOKEN"`
	Version      string `env:"NOTION_VERSION"`
	SummaryDbID  string `env:"NOTION_SUMMARY_DB"`
	OrdersDbID   string `env:"NOTION_ORDERS_DB"`
	SellLotsDbID string `env:"NOTION_LOTS_DB"`

	// optional page icon URLs per database
	SummaryIcon  string `env:"SUMMARY_DB_ICON" envDefault:""`
	OrdersIcon   string `env:"ORDERS_DB_ICON" envDefault:""`
	SellLotsIcon string `env:"LOTS_DB_ICON" envDefault:""`
}

type Cache struct {
	QuotesExpiration time.Duration `env:"CACHE_QUOTES_EXPIRATION"`
}

type Jobs struct {
	SyncPortfolioInterval time.Duration `env:"SYNC_PORTFOLIO_JOB_INTERVAL"`
}

type GoogleDrive struct {
	CredentialsFile string        `env:"GOOGLE_DRIVE_CREDENTIALS_FILE"`
	FileTTL         time.Duration `env:"GOOGLE_DRIVE_FILE_TTL"`
}

type Reconcile struct {
	CostBasisMethod string `env:"COST_BASIS_METHOD" envDefault:"fifo"`
	Workers         int    `env:"RECONCILE_WORKERS" envDefault:"4"`
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	return cfg
}
