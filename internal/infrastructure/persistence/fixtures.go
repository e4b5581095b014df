package persistence

import (
	"context"
	"fmt"

	"github.com/bloom/bloomctl/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountType is a fixture row for the account_types table
type AccountType struct {
	Key   string
	Title string
}

// DefaultAccountTypes are the account types every installation starts with.
// The title is the upper-case form of the key.
var DefaultAccountTypes = []AccountType{
	{Key: "admin", Title: "ADMIN"},
	{Key: "business", Title: "BUSINESS"},
	{Key: "supplier", Title: "SUPPLIER"},
	{Key: "user", Title: "USER"},
}

// FixtureLoader seeds reference data that the application expects to exist.
type FixtureLoader struct {
	db           *Database
	enabled      bool
	accountTypes []AccountType
	logger       *zap.Logger
}

// NewFixtureLoader creates a loader for the default fixtures.
// A disabled loader succeeds without touching the database.
func NewFixtureLoader(db *Database, enabled bool, logger *zap.Logger) *FixtureLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FixtureLoader{
		db:           db,
		enabled:      enabled,
		accountTypes: DefaultAccountTypes,
		logger:       logger,
	}
}

// Load inserts missing fixture rows. A row clashing with an existing key or
// title is skipped, so running it on every start is safe.
func (l *FixtureLoader) Load(ctx context.Context) error {
	if !l.enabled {
		l.logger.Info("Fixture loading disabled, skipping")
		return nil
	}

	rows := make([]models.AccountTypeModel, 0, len(l.accountTypes))
	for _, at := range l.accountTypes {
		rows = append(rows, models.AccountTypeModel{Key: at.Key, Title: at.Title})
	}

	var inserted int64
	err := l.db.Transaction(ctx, func(tx *gorm.DB) error {
		// Both key and title are unique
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
		if result.Error != nil {
			return result.Error
		}
		inserted = result.RowsAffected
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load account types: %w", err)
	}

	l.logger.Info("Fixtures loaded",
		zap.Int("account_types", len(rows)),
		zap.Int64("inserted", inserted),
	)
	return nil
}
