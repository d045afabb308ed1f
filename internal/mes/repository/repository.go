package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	ErrConflict  = errors.New("scheduling conflict")
)

// Repositories 仓库集合
type Repositories struct {
	Machine  *MachineRepository
	Order    *OrderRepository
	Operator *OperatorRepository
	Shift    *ShiftRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Machine:  NewMachineRepository(db),
		Order:    NewOrderRepository(db),
		Operator: NewOperatorRepository(db),
		Shift:    NewShiftRepository(db),
	}
}
