package services

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"retreat_app_echo/internal/models"
)

// DBOptions tunes InitDB.
type DBOptions struct {
	LogLevel logger.LogLevel
	Logger   *zap.Logger
}

// isSQLiteDSN reports whether dsn points at a SQLite file or memory database.
func isSQLiteDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "file:") ||
		strings.HasPrefix(dsn, ":memory:") ||
		strings.HasSuffix(dsn, ".db") ||
		strings.HasSuffix(dsn, ".sqlite")
}

// InitDB opens Postgres for postgres:// DSNs and SQLite for file DSNs, with
// connection pooling and driver errors translated to gorm errors.
func InitDB(dsn string, opts DBOptions) (*gorm.DB, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	level := opts.LogLevel
	if level == 0 {
		level = logger.Warn
	}

	sqliteDB := isSQLiteDSN(dsn)
	dialector := postgres.Open(dsn)
	if sqliteDB {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if sqliteDB {
		// SQLite allows a single writer; a memory database lives only as
		// long as its one connection.
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, err
		}
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	log.Info("database connection established", zap.Bool("sqlite", sqliteDB))
	return db, nil
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("running database migrations")

	err := db.AutoMigrate(
		&models.User{},
		&models.OAuthAccount{},
		&models.Retreat{},
		&models.RetreatRegistration{},
		&models.Meal{},
		&models.MenuItem{},
		&models.MealOrder{},
		&models.MealOrderMenuItem{},
		&models.Payment{},
		&models.PaymentProviderLog{},
		&models.Duty{},
		&models.DutyAssignment{},
		&models.UserNotifPreference{},
		&models.ScheduledTask{},
		&models.ScheduledTaskHistory{},
	)
	if err != nil {
		return err
	}

	log.Info("database migrations completed")
	return nil
}
