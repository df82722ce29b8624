package db

import (
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// Blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/payment-tracker/internal/models"
)

// AllModels in migration order (referenced tables first).
func AllModels() []any {
	return []any{
		&models.User{},
		&models.UserProfile{},
		&models.Counterparty{},
		&models.PaymentRecord{},
		&models.PaymentReceipt{},
		&models.PaymentActivityLog{},
		&models.LoginAdvertisement{},
	}
}

// ConnectAndMigrate opens the postgres database and brings the schema up.
// MIGRATIONS=1 runs SQL migrations via golang-migrate; otherwise AutoMigrate
// covers dev convenience. DB_SEED=1 seeds reference data.
func ConnectAndMigrate() (*gorm.DB, error) {
	dsn := GetNormalizedDSN()
	if dsn == "" {
		return nil, errors.New("DATABASE_DSN is empty; check the environment")
	}
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var db *gorm.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		if err == nil {
			break
		}
		log.Println("retrying DB connection...", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}
	if pingErr := db.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}

	masked := dsn
	if strings.Contains(masked, "password=") {
		re := regexp.MustCompile(`(password=)(\S+)`)
		masked = re.ReplaceAllString(masked, `${1}***`)
	}
	log.Println("[DB] using DSN:", masked)

	if v := strings.ToLower(os.Getenv("MIGRATIONS")); v == "1" || v == "true" || v == "yes" {
		if err := runSQLMigrations(dsn); err != nil {
			return nil, fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		for _, m := range AllModels() {
			if migErr := db.AutoMigrate(m); migErr != nil {
				return nil, fmt.Errorf("automigrate %T: %w", m, migErr)
			}
		}
	}

	for _, table := range []string{"users", "payment_records", "payment_activity_logs"} {
		if !db.Migrator().HasTable(table) {
			return nil, errors.New("missing table after migration: " + table)
		}
	}

	if v := strings.ToLower(os.Getenv("DB_SEED")); v == "1" || v == "true" || v == "yes" {
		seed(db)
	}
	return db, nil
}

// seed inserts baseline reference data if absent. Counterparties are
// append-only, so seeding never updates or removes existing rows.
func seed(db *gorm.DB) {
	base := []models.Counterparty{
		{Name: "Head Office", Description: "Default internal counterparty"},
		{Name: "Regional Branch", Description: "Regional settlement account"},
	}
	for _, cp := range base {
		var existing models.Counterparty
		if err := db.Where("name = ?", cp.Name).First(&existing).Error; errors.Is(err, gorm.ErrRecordNotFound) {
			db.Create(&cp)
		}
	}
}

// runSQLMigrations executes migrations in ./migrations using the file source.
func runSQLMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
