package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONB JSONB类型
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan JSONB: %v", value)
	}
	return json.Unmarshal(bytes, j)
}

// ProductionOrder 生产订单
type ProductionOrder struct {
	ID            string `json:"id" gorm:"primaryKey;size:32"`
	DrawingNumber string `json:"drawing_number" gorm:"size:64;uniqueIndex;not null"` // 图号, 唯一
	Name          string `json:"name" gorm:"size:200;not null"`
	Spec          string `json:"spec" gorm:"size:500"`                  // 自由文本规格, 如 "3-axis milling"
	ProcessType   string `json:"process_type" gorm:"size:20;not null"`  // milling/turning
	Status        string `json:"status" gorm:"size:20;default:open"`    // open/in_production/archived
	Quantity      int    `json:"quantity" gorm:"default:1"`
	Priority      int    `json:"priority" gorm:"default:0"`

	// 图纸附件 (MinIO)
	DrawingFileKey  string `json:"drawing_file_key,omitempty" gorm:"size:256"`
	DrawingFileName string `json:"drawing_file_name,omitempty" gorm:"size:256"`

	Attrs JSONB `json:"attrs,omitempty" gorm:"type:jsonb"`

	CreatedBy  string     `json:"created_by" gorm:"size:32"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Notes      string     `json:"notes" gorm:"type:text"`
}

func (ProductionOrder) TableName() string {
	return "mes_orders"
}

// 订单状态
const (
	OrderStatusOpen         = "open"
	OrderStatusInProduction = "in_production"
	OrderStatusArchived     = "archived"
)
