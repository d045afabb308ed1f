package entity

import "time"

// Machine 机床台账
type Machine struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	Code       string `json:"code" gorm:"size:32;uniqueIndex;not null"` // F1, T2 ...
	Name       string `json:"name" gorm:"size:200"`
	Type       string `json:"type" gorm:"size:20;not null"` // milling/turning
	Axes       int    `json:"axes" gorm:"not null"`         // 联动轴数, 3 or 4
	IsActive   bool   `json:"is_active" gorm:"default:true"`
	IsOccupied bool   `json:"is_occupied" gorm:"default:false"`

	// 乐观锁版本号, 占用状态写入时做CAS
	Version int `json:"version" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Notes     string    `json:"notes" gorm:"type:text"`
}

func (Machine) TableName() string {
	return "mes_machines"
}

// 机床类型
const (
	MachineTypeMilling = "milling"
	MachineTypeTurning = "turning"
)
