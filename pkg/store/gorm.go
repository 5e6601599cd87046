package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cityharvest/pkg/config"
	errs "cityharvest/pkg/errors"
	"cityharvest/pkg/logger"
)

// GormStore implements Store for SQLite and MySQL
type GormStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// OpenGorm opens a SQLite or MySQL database according to cfg
func OpenGorm(cfg config.DatabaseConfig, log logger.Logger) (*GormStore, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	case config.DriverMySQL:
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("gorm store does not support driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(log, 200*time.Millisecond, cfg.Debug),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}
	if cfg.Driver == config.DriverSQLite {
		// one writer; also keeps ":memory:" databases on a single connection
		sqlDB.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	log.DebugWithFields("database opened", map[string]interface{}{"driver": cfg.Driver})
	return NewGormStore(db, log), nil
}

// NewGormStore wraps an open gorm connection
func NewGormStore(db *gorm.DB, log logger.Logger) *GormStore {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &GormStore{db: db, logger: log}
}

// DB exposes the gorm handle, used by the event importer side and tests
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// InsertIfAbsent inserts record unless a row with the same keyColumn value
// exists. It is one statement, so concurrent callers cannot both insert.
func InsertIfAbsent[T any](ctx context.Context, db *gorm.DB, record *T, keyColumn string) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: keyColumn}},
			DoNothing: true,
		}).
		Create(record)
	if res.Error != nil {
		return false, errs.Storage("insert by "+keyColumn, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) UpsertLocation(ctx context.Context, loc *Location) (bool, error) {
	return InsertIfAbsent(ctx, s.db, loc, "location_id")
}

func (s *GormStore) UpsertPhoto(ctx context.Context, p *Photo) (bool, error) {
	return InsertIfAbsent(ctx, s.db, p, "photo_url")
}

func (s *GormStore) RecentEvents(ctx context.Context, cityID int64, since time.Time) ([]EventRef, error) {
	var refs []EventRef
	err := s.db.WithContext(ctx).
		Table("event AS e").
		Select("e.id, e.event_id, e.name, e.start_time, e.album_id, l.id AS location_row_id, l.location_id").
		Joins("JOIN location AS l ON l.id = e.location_id").
		Where("l.city_id = ? AND "+instant(s.db, "e.start_time")+" > "+instant(s.db, "?"), cityID, since.UTC()).
		Order(instant(s.db, "e.start_time") + ", e.id").
		Scan(&refs).Error
	if err != nil {
		return nil, errs.Storage("select recent events", err)
	}
	return refs, nil
}

// instant makes col comparable as a point in time. SQLite keeps start_time as
// text in the offset it was written with.
func instant(db *gorm.DB, col string) string {
	if db.Dialector.Name() == "sqlite" {
		return "unixepoch(" + col + ", 'subsec')"
	}
	return col
}

func (s *GormStore) SetEventAlbum(ctx context.Context, eventRowID int64, albumID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&Event{}).
		Where("id = ? AND (album_id IS NULL OR album_id = '')", eventRowID).
		Update("album_id", albumID)
	if res.Error != nil {
		return false, errs.Storage("set event album", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) EventAlbum(ctx context.Context, eventRowID int64) (string, error) {
	var albumID sql.NullString
	err := s.db.WithContext(ctx).
		Model(&Event{}).
		Select("album_id").
		Where("id = ?", eventRowID).
		Row().
		Scan(&albumID)
	if err != nil {
		return "", errs.Storage("select event album", err)
	}
	return albumID.String, nil
}

// Migrate creates the location, event and photo tables and their indexes
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Location{}, &Event{}, &Photo{}); err != nil {
		return errs.Storage("auto migrate", err)
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}
	return sqlDB.Close()
}
