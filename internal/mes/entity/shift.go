package entity

import "time"

// Shift 排班记录: 一个订单在某日占用一台机床和一名操作工.
// 释放后记录保留作为历史, 不做物理删除.
type Shift struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	OrderID    string    `json:"order_id" gorm:"size:32;not null;index"`
	MachineID  string    `json:"machine_id" gorm:"size:32;not null;index"`
	OperatorID string    `json:"operator_id" gorm:"size:32;not null;index"`
	ShiftDate  time.Time `json:"shift_date" gorm:"type:date;not null;index"`

	Status string `json:"status" gorm:"size:20;not null;default:reserved"` // reserved/confirmed/released

	// 预留保护期, 超时未确认由后台任务自动释放
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Notes     string    `json:"notes" gorm:"type:text"`

	// 关联 (非拥有关系, 删除Shift不级联)
	Order    *ProductionOrder `json:"order,omitempty" gorm:"foreignKey:OrderID"`
	Machine  *Machine         `json:"machine,omitempty" gorm:"foreignKey:MachineID"`
	Operator *Operator        `json:"operator,omitempty" gorm:"foreignKey:OperatorID"`
}

func (Shift) TableName() string {
	return "mes_shifts"
}

// 排班状态
const (
	ShiftStatusReserved  = "reserved"
	ShiftStatusConfirmed = "confirmed"
	ShiftStatusReleased  = "released"
)

// Occupying 是否仍占用机床 (reserved/confirmed)
func (s *Shift) Occupying() bool {
	return s.Status == ShiftStatusReserved || s.Status == ShiftStatusConfirmed
}
