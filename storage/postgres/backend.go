package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"vote-program/storage"
)

type accountModel struct {
	Address   string `gorm:"column:address;primaryKey;size:42"`
	Data      []byte `gorm:"column:data;type:bytea;not null"`
	Space     int    `gorm:"column:space;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (accountModel) TableName() string {
	return "vote_accounts"
}

// Backend stores account regions in the vote_accounts table.
type Backend struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewBackend(db *gorm.DB, logger zerolog.Logger) *Backend {
	return &Backend{
		db:     db,
		logger: logger.With().Str("component", "postgres").Logger(),
	}
}

// Connect opens a gorm connection and checks it is reachable.
func Connect(ctx context.Context, dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "open gorm postgres")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "resolve postgres sql db handle")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	return db, nil
}

// Migrate creates the vote_accounts table if needed.
func (b *Backend) Migrate(ctx context.Context) error {
	if err := b.db.WithContext(ctx).AutoMigrate(&accountModel{}); err != nil {
		return errors.Wrap(err, "migrate vote_accounts")
	}
	return nil
}

func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (b *Backend) Insert(ctx context.Context, addr common.Address, data []byte) error {
	row := accountModel{
		Address: key(addr),
		Data:    data,
		Space:   len(data),
	}
	if err := b.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return storage.ErrAccountExists
		}
		return b.logError("account_insert_failed", err, addr)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, addr common.Address) ([]byte, error) {
	var row accountModel
	err := b.db.WithContext(ctx).
		Where("address = ?", key(addr)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrAccountNotFound
		}
		return nil, b.logError("account_get_failed", err, addr)
	}
	return row.Data, nil
}

func (b *Backend) Put(ctx context.Context, addr common.Address, data []byte) error {
	res := b.db.WithContext(ctx).
		Model(&accountModel{}).
		Where("address = ?", key(addr)).
		Updates(map[string]any{
			"data":       data,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return b.logError("account_put_failed", res.Error, addr)
	}
	if res.RowsAffected == 0 {
		return storage.ErrAccountNotFound
	}
	return nil
}

func (b *Backend) logError(event string, err error, addr common.Address) error {
	b.logger.Error().
		Str("event", event).
		Str("account", addr.Hex()).
		Err(err).
		Msg("postgres account operation failed")
	return errors.Wrap(err, event)
}

func key(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
