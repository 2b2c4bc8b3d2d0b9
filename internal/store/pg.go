package store

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"gorm.io/gorm"

	"github.com/feral-file/ff-token-gate/internal/ruleset"
)

// LedgerBinding names the externally owned ledger balance table and the
// columns the ownership query reads. Identifiers are substituted into
// the query verbatim; the caller is trusted to supply safe names
// (SQL-identifier sanitization is a non-goal here).
type LedgerBinding struct {
	Schema        string
	Table         string
	AddressColumn string
	TokenColumn   string
	AmountColumn  string
}

// LedgerBindingFromSpec derives the ledger binding from a loaded rule
// specification
func LedgerBindingFromSpec(spec *ruleset.Spec) LedgerBinding {
	return LedgerBinding{
		Schema:        spec.Schema,
		Table:         spec.Table,
		AddressColumn: spec.Columns.Address,
		TokenColumn:   spec.Columns.Token,
		AmountColumn:  spec.Columns.Amount,
	}
}

// qualifiedTable returns the schema-qualified table name
func (b LedgerBinding) qualifiedTable() string {
	if b.Schema == "" {
		return b.Table
	}
	return fmt.Sprintf("%s.%s", b.Schema, b.Table)
}

// WhitelistBinding names the externally owned whitelist table
type WhitelistBinding struct {
	Schema        string
	Table         string
	AddressColumn string
	ClaimedColumn string
}

// DefaultWhitelistBinding matches the bundled whitelist schema model
func DefaultWhitelistBinding() WhitelistBinding {
	return WhitelistBinding{
		Table:         "whitelist_entries",
		AddressColumn: "address",
		ClaimedColumn: "claimed",
	}
}

// qualifiedTable returns the schema-qualified table name
func (b WhitelistBinding) qualifiedTable() string {
	if b.Schema == "" {
		return b.Table
	}
	return fmt.Sprintf("%s.%s", b.Schema, b.Table)
}

type pgStore struct {
	db        *gorm.DB
	ledger    LedgerBinding
	whitelist WhitelistBinding
}

// NewPGStore creates a new PostgreSQL store instance bound to the given
// ledger and whitelist tables
func NewPGStore(db *gorm.DB, ledger LedgerBinding, whitelist WhitelistBinding) Store {
	return &pgStore{db: db, ledger: ledger, whitelist: whitelist}
}

// OwnsAny issues a single aggregate query summing the ledger amount for
// rows matching the address and any id in tokenIDs. No matching rows is
// a zero sum, never an error. Amounts may be numeric(78,0); the sum is
// read back as text and compared as an exact integer, never through
// floating point.
func (s *pgStore) OwnsAny(ctx context.Context, address string, tokenIDs []int64) (bool, error) {
	if address == "" || len(tokenIDs) == 0 {
		return false, nil
	}

	query := fmt.Sprintf(
		"SELECT COALESCE(SUM(%s), 0)::text AS total FROM %s WHERE %s = ? AND %s IN ?",
		s.ledger.AmountColumn, s.ledger.qualifiedTable(), s.ledger.AddressColumn, s.ledger.TokenColumn,
	)

	var row struct {
		Total string `gorm:"column:total"`
	}
	if err := s.db.WithContext(ctx).Raw(query, address, tokenIDs).Scan(&row).Error; err != nil {
		return false, fmt.Errorf("failed to sum ledger balances: %w", err)
	}

	total, ok := new(big.Int).SetString(row.Total, 10)
	if !ok {
		return false, fmt.Errorf("ledger returned non-integer balance sum %q", row.Total)
	}

	return total.Sign() > 0, nil
}

// IsWhitelisted reports whether address has an unclaimed whitelist row.
// An empty address is always denied without a round trip.
func (s *pgStore) IsWhitelisted(ctx context.Context, address string) (bool, error) {
	if address == "" {
		return false, nil
	}

	query := fmt.Sprintf(
		"SELECT COUNT(1) FROM %s WHERE %s = ? AND %s = false",
		s.whitelist.qualifiedTable(), s.whitelist.AddressColumn, s.whitelist.ClaimedColumn,
	)

	var count int64
	if err := s.db.WithContext(ctx).Raw(query, address).Scan(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check whitelist: %w", err)
	}

	return count > 0, nil
}

// ConfigureConnectionPool configures the connection pool settings for a
// GORM database connection. Zero values fall back to defaults.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool
// settings into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
//
// Notes:
//   - database/sql treats MaxOpenConns=0 as "unlimited"
//   - database/sql treats MaxIdleConns=0 as "no idle connections"
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}
