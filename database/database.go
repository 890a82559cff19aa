package database

import (
	"fmt"
	"log"

	config "github.com/anjiri1684/tuition_billing/configs"
	"github.com/anjiri1684/tuition_billing/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func gormConfig() *gorm.Config {
	return &gorm.Config{
		PrepareStmt:            false,
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Warn),
	}
}

// ConnectDB opens the database named by the configuration and stores it in DB.
func ConnectDB(cfg config.AppConfig) {
	var err error

	switch cfg.DatabaseDriver {
	case "sqlite":
		DB, err = OpenSQLite(cfg.DatabaseURL)
	default:
		DB, err = gorm.Open(postgres.Open(cfg.DatabaseURL), gormConfig())
	}
	if err != nil {
		log.Fatalf("🔥 Failed to connect to database: %v", err)
	}

	fmt.Println("✅ Database connected successfully")
}

// OpenSQLite opens a SQLite database. It is used for local runs and tests;
// the connection pool is pinned to one connection so in-memory databases
// survive between queries.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// AutoMigrate creates or updates every table the reconciliation engine owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Student{},
		&models.Enrollment{},
		&models.Installment{},
		&models.PaymentLedgerEntry{},
		&models.BankStatementRecord{},
		&models.ImportBatch{},
		&models.LateFeeRule{},
		&models.BlockingRule{},
	)
}

func Migrate() {
	if err := AutoMigrate(DB); err != nil {
		log.Fatalf("🔥 Failed to migrate database: %v", err)
	}
	fmt.Println("✅ Database migration successful")

	n, err := BackfillLedgerKeys(DB)
	if err != nil {
		log.Fatalf("🔥 Failed to backfill ledger entry keys: %v", err)
	}
	if n > 0 {
		log.Printf("✅ Backfilled entry keys for %d ledger entries", n)
	}
}

// Ping reports whether the database still answers.
func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// OpenInMemory returns a migrated private in-memory SQLite database.
func OpenInMemory() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := OpenSQLite(dsn)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
