package repo

import (
	"fmt"

	"SHLink/internal/model"

	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Поддерживаемые реляционные драйверы.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrNotFound — единая ошибка «запись не найдена / условие не выполнено» для всех реализаций.
var ErrNotFound = gorm.ErrRecordNotFound

// InitDB открывает соединение и применяет миграции всех моделей.
func InitDB(driver, dsn string) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch driver {
	case DriverPostgres, "":
		dial = postgres.Open(dsn)
	case DriverSQLite:
		// modernc.org/sqlite — драйвер без cgo
		dial = gormsqlite.Dialector{DriverName: "sqlite", DSN: dsn}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// SQLite сериализует запись; одно соединение исключает SQLITE_BUSY между транзакциями.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate создаёт/обновляет схему.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Link{},
		&model.Content{},
		&model.DownloadToken{},
		&model.AccessLog{},
		&model.Blob{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

// Repositories — набор репозиториев одного бэкенда хранения.
type Repositories struct {
	Links      LinkRepository
	Contents   ContentRepository
	Tokens     TokenRepository
	AccessLogs AccessLogRepository
	Blobs      BlobRepository

	// SelfPurging — бэкенд сам удаляет истёкшие токены (TTL-индекс).
	SelfPurging bool
}

// NewRepositories собирает gorm-реализации поверх одного соединения.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Links:      NewLinkRepository(db),
		Contents:   NewContentRepository(db),
		Tokens:     NewTokenRepository(db),
		AccessLogs: NewAccessLogRepository(db),
		Blobs:      NewBlobRepository(db),
	}
}
