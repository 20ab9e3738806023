package pg

import (
	"time"
)

// Timestamps is embedded by entities that track creation and update times.
type Timestamps struct {
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
