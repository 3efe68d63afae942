package models

import "time"

// PurgeWatermarkID is the primary key of the only purge_watermarks row.
const PurgeWatermarkID = 1

// PurgeWatermark records the last purge. Version is bumped on every claim so concurrent
// instances can race on it with a compare-and-set update.
type PurgeWatermark struct {
	ID           uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	LastPurgedAt time.Time `gorm:"not null" json:"last_purged_at"`
	Version      int64     `gorm:"not null;default:0" json:"version"`
}
