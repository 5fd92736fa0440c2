package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const SearchLimit = 10

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

// SetDB replaces the global connection. Used by tests and the ops CLI.
func SetDB(conn *gorm.DB) {
	db = conn
}

func init() {
	// Load env from .env
	godotenv.Load()
	// Do NOT block startup in init() waiting for DB.
	// The HTTP port must be listening before the database is reachable.
}

// PostgresDSN builds the pgx DSN from DB_* env vars.
func PostgresDSN() string {
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		return dsn
	}
	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}
	timezone := os.Getenv("DB_TIMEZONE")
	if timezone == "" {
		timezone = "UTC"
	}
	// Cloud SQL unix sockets arrive as DB_HOST=/cloudsql/<CONNECTION_NAME>; pgx accepts a directory host.
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		os.Getenv("DB_HOST"),
		envOr("DB_PORT", "5432"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		sslMode,
		timezone,
	)
}

// ConnectDatabaseWithRetry connects and sets the global DB.
// Call this from main() AFTER the HTTP server is listening.
func ConnectDatabaseWithRetry() {
	dsn := PostgresDSN()

	var attempt int
	for {
		attempt++
		conn, err := OpenPostgres(dsn)
		if err == nil {
			db = conn
			log.Printf("connected to database (attempt=%d)", attempt)
			return
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

// OpenPostgres opens a single connection pool with plugins installed. No retry.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(dsn), initConfig())
	if err != nil {
		return nil, err
	}
	// Env overrides (optional):
	// - DB_MAX_OPEN_CONNS (default 50)
	// - DB_MAX_IDLE_CONNS (default 25)
	// - DB_CONN_MAX_LIFETIME_SECONDS (default 300)
	// - DB_CONN_MAX_IDLE_TIME_SECONDS (default 60)
	if sqlDB, derr := conn.DB(); derr == nil && sqlDB != nil {
		maxOpen := intFromEnv("DB_MAX_OPEN_CONNS", 50)
		maxIdle := intFromEnv("DB_MAX_IDLE_CONNS", 25)
		connMaxLife := time.Duration(intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second
		connMaxIdle := time.Duration(intFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)) * time.Second

		if maxOpen > 0 {
			sqlDB.SetMaxOpenConns(maxOpen)
		}
		if maxIdle >= 0 {
			sqlDB.SetMaxIdleConns(maxIdle)
		}
		if connMaxLife > 0 {
			sqlDB.SetConnMaxLifetime(connMaxLife)
		}
		if connMaxIdle > 0 {
			sqlDB.SetConnMaxIdleTime(connMaxIdle)
		}
	}
	InstallPlugins(conn)
	return conn, nil
}

// InstallPlugins attaches tracing and tenant scoping to a connection.
func InstallPlugins(conn *gorm.DB) {
	if pluginErr := conn.Use(otelgorm.NewPlugin()); pluginErr != nil {
		log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
	}
	if pluginErr := conn.Use(NewTenantGuardPlugin()); pluginErr != nil {
		log.Printf("db connected but failed to install tenant guard plugin: %v", pluginErr)
	}
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// GormConfig is shared by the production connection and the sqlite test harness.
func GormConfig() *gorm.Config {
	return initConfig()
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
		TranslateError: true,
	}
}

func initLog() logger.Interface {
	level := logger.Error
	if strings.EqualFold(os.Getenv("GORM_LOG_LEVEL"), "info") {
		level = logger.Info
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:                  false,
			LogLevel:                  level,
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
		},
	)
}

func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
