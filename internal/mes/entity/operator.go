package entity

import "time"

// Operator 操作工
type Operator struct {
	ID           string    `json:"id" gorm:"primaryKey;size:32"`
	Name         string    `json:"name" gorm:"size:100;not null"`
	OperatorType string    `json:"operator_type" gorm:"size:20;not null"` // milling/turning/both
	IsActive     bool      `json:"is_active" gorm:"default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Operator) TableName() string {
	return "mes_operators"
}

// 操作工工种
const (
	OperatorTypeMilling = "milling"
	OperatorTypeTurning = "turning"
	OperatorTypeBoth    = "both"
)

// CanRun 工种是否可以操作指定类型的机床
func (o *Operator) CanRun(machineType string) bool {
	return o.OperatorType == OperatorTypeBoth || o.OperatorType == machineType
}
