package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/url"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/doug4987/New-MM-Test/internal/schema"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"

	snapshotKey = "maker"
)

// PostgresOption defines connection options for the PostgreSQL backend.
type PostgresOption struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Config   *gorm.Config
}

// snapshotRecord is the single-row table holding the latest snapshot.
type snapshotRecord struct {
	Key       string `gorm:"primaryKey"`
	Data      []byte `gorm:"type:jsonb"`
	UpdatedAt time.Time
}

func (snapshotRecord) TableName() string { return "state_snapshots" }

// Postgres persists snapshots in a single upserted row.
type Postgres struct {
	db *gorm.DB
}

// NewPostgres connects and migrates the snapshot table.
func NewPostgres(opt PostgresOption) (*Postgres, error) {
	config := opt.Config
	if config == nil {
		config = &gorm.Config{}
	}
	db, err := gorm.Open(postgres.Open(opt.dsn()), config)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := db.AutoMigrate(&snapshotRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate snapshot table")
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Save(ctx context.Context, snap schema.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	record := snapshotRecord{Key: snapshotKey, Data: data, UpdatedAt: time.Now().UTC()}
	err = p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(&record).Error
	if err != nil {
		return errors.Wrap(err, "save snapshot")
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context) (schema.Snapshot, error) {
	var record snapshotRecord
	err := p.db.WithContext(ctx).First(&record, "key = ?", snapshotKey).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return schema.Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return schema.Snapshot{}, errors.Wrap(err, "load snapshot")
	}
	var snap schema.Snapshot
	if err := json.Unmarshal(record.Data, &snap); err != nil {
		return schema.Snapshot{}, errors.Wrap(err, "decode snapshot")
	}
	return snap, nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (opt PostgresOption) dsn() string {
	host := opt.Host
	if host == "" {
		host = defaultPostgresHost
	}
	port := opt.Port
	if port == 0 {
		port = defaultPostgresPort
	}
	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultPostgresSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}
	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}
	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}
	query := url.Values{}
	query.Set("sslmode", sslMode)
	u.RawQuery = query.Encode()
	return u.String()
}
