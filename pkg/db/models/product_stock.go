package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avrportal/tindago-backend/pkg/enums"
)

// ProductStock tracks the available quantity per product. Rows are only ever
// mutated under a row-level write lock inside the order transaction.
type ProductStock struct {
	ProductID    uuid.UUID         `gorm:"column:product_id;type:uuid;primaryKey"`
	BusinessID   uuid.UUID         `gorm:"column:business_id;type:uuid;not null"`
	CurrentStock int               `gorm:"column:current_stock;not null;default:0"`
	Status       enums.StockStatus `gorm:"column:status;type:stock_status;not null;default:'active'"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
