package schema

import (
	"time"
)

// WhitelistEntry represents the whitelist_entries table - the optional
// secondary allow-list. An address passes the whitelist gate iff a row
// exists for it with claimed = false.
type WhitelistEntry struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Address is the caller address the entry allows
	Address string `gorm:"column:address;not null;type:text;uniqueIndex:idx_whitelist_address"`
	// Claimed marks an entry that has been used up and no longer grants access
	Claimed bool `gorm:"column:claimed;not null;default:false"`
	// CreatedAt is the timestamp when this entry was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this entry was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the WhitelistEntry model
func (WhitelistEntry) TableName() string {
	return "whitelist_entries"
}
