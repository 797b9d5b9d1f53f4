package internal

import (
	"fmt"

	"DF-FIDELITY/internal/config"
	"DF-FIDELITY/internal/services"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"k8s.io/klog/v2"
)

// InitDB opens the configured database and migrates the schema. The
// handle is returned, not stored globally; services receive it through
// their constructors.
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.Path)
	case "mysql", "":
		dialector = mysql.Open(cfg.Database.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	var schema []any
	schema = append(schema, services.TemplateModels()...)
	schema = append(schema, services.BulkModels()...)
	schema = append(schema, services.ActivityLogModels()...)
	if err := db.AutoMigrate(schema...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	klog.Infof("database connected and migrated (%s)", cfg.Database.Driver)
	return db, nil
}

// CloseDB closes the underlying connection pool.
func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
