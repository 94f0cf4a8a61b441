package postgresql

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var schemaNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

func NewPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Warn),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}

// ValidSchemaName reports whether name is a plain Postgres identifier that
// can be used as a tenant schema.
func ValidSchemaName(name string) bool {
	return schemaNamePattern.MatchString(name)
}

// WithTenantSchema runs fn in a transaction whose search_path is the
// tenant schema. The setting is dropped when the transaction ends.
func WithTenantSchema(ctx context.Context, db *gorm.DB, schema string, fn func(tx *gorm.DB) error) error {
	if !ValidSchemaName(schema) {
		return fmt.Errorf("invalid tenant schema %q", schema)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(fmt.Sprintf(`SET LOCAL search_path TO "%s"`, schema)).Error; err != nil {
			return fmt.Errorf("set search_path: %w", err)
		}
		return fn(tx)
	})
}
