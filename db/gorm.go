package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormDB coexists with DB for the simple CRUD paths (playlists, settings).
// It shares the same underlying connection so the single-writer guarantee of
// ConnectDB still holds.
var GormDB *gorm.DB

// ConnectGormDB wraps the already-open sql.DB with GORM.
func ConnectGormDB() error {
	if DB == nil {
		return fmt.Errorf("ConnectDB must run before ConnectGormDB")
	}

	var err error
	GormDB, err = gorm.Open(sqlite.Dialector{Conn: DB}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open GORM over sqlite connection: %w", err)
	}
	return nil
}
