package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ShiftRepository 排班仓库
type ShiftRepository struct {
	db *gorm.DB
}

func NewShiftRepository(db *gorm.DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

// FindByID 根据ID查找排班
func (r *ShiftRepository) FindByID(ctx context.Context, id string) (*entity.Shift, error) {
	var shift entity.Shift
	err := r.db.WithContext(ctx).
		Preload("Order").
		Preload("Machine").
		Preload("Operator").
		Where("id = ?", id).
		First(&shift).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &shift, nil
}

// FindByDateRange 查询日期区间内的排班 (闭区间), 按日期、机床编号排序
func (r *ShiftRepository) FindByDateRange(ctx context.Context, start, end time.Time) ([]entity.Shift, error) {
	var items []entity.Shift
	err := r.db.WithContext(ctx).
		Joins("JOIN mes_machines ON mes_machines.id = mes_shifts.machine_id").
		Where("mes_shifts.shift_date BETWEEN ? AND ?", start, end).
		Order("mes_shifts.shift_date ASC, mes_machines.code ASC").
		Preload("Order").
		Preload("Machine").
		Preload("Operator").
		Find(&items).Error
	return items, err
}

// CreateReserved 预留排班: 在单个事务内锁定机床行, 校验占用与当日冲突后写入.
// 同机床同日的并发预留在行锁上串行化; 等锁超过 lock_timeout 直接报 ErrConflict,
// 不无限排队.
func (r *ShiftRepository) CreateReserved(ctx context.Context, shift *entity.Shift, lockTimeout time.Duration) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if lockTimeout <= 0 {
			lockTimeout = 3 * time.Second
		}
		// SET 不支持绑定参数, 毫秒数由 Duration 构造, 无注入面
		if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockTimeout.Milliseconds())).Error; err != nil {
			return err
		}

		// 锁定机床行, reserve/confirm/release 互斥
		var machine entity.Machine
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", shift.MachineID).
			First(&machine).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if !machine.IsActive || machine.IsOccupied {
			return ErrConflict
		}

		// 同机床同日已有占用中的排班 → 冲突
		var count int64
		if err := tx.Model(&entity.Shift{}).
			Where("machine_id = ? AND shift_date = ? AND status IN (?)",
				shift.MachineID, shift.ShiftDate,
				[]string{entity.ShiftStatusReserved, entity.ShiftStatusConfirmed}).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrConflict
		}

		return tx.Create(shift).Error
	})

	if err != nil && isLockTimeout(err) {
		// 锁等待超时视为可重试冲突
		return ErrConflict
	}
	return err
}

// ConfirmReserved 确认预留: reserved → confirmed, 同事务内置位机床占用.
// 机床已被其他排班占用或已停用时报 ErrConflict (同一机床的多个预留只有
// 第一个确认能成功). 任一步失败整体回滚, 不会留下无主的 RESERVED 状态.
func (r *ShiftRepository) ConfirmReserved(ctx context.Context, shiftID string) (*entity.Shift, error) {
	var confirmed entity.Shift
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var shift entity.Shift
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", shiftID).
			First(&shift).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if shift.Status != entity.ShiftStatusReserved {
			return ErrConflict
		}

		// 锁定机床行并复查状态: RESERVED → OCCUPIED 只允许发生在空闲机床上
		var machine entity.Machine
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", shift.MachineID).
			First(&machine).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !machine.IsActive || machine.IsOccupied {
			return ErrConflict
		}

		shift.Status = entity.ShiftStatusConfirmed
		shift.ExpiresAt = nil
		if err := tx.Save(&shift).Error; err != nil {
			return err
		}

		if err := tx.Model(&entity.Machine{}).
			Where("id = ?", machine.ID).
			Updates(map[string]interface{}{
				"is_occupied": true,
				"version":     gorm.Expr("version + 1"),
			}).Error; err != nil {
			return err
		}

		confirmed = shift
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &confirmed, nil
}

// Release 释放排班: confirmed/reserved → released, 机床回到空闲.
// 排班记录保留作为历史.
func (r *ShiftRepository) Release(ctx context.Context, shiftID string) (*entity.Shift, error) {
	var released entity.Shift
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var shift entity.Shift
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", shiftID).
			First(&shift).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if shift.Status == entity.ShiftStatusReleased {
			return ErrConflict
		}
		wasConfirmed := shift.Status == entity.ShiftStatusConfirmed

		now := time.Now()
		shift.Status = entity.ShiftStatusReleased
		shift.ReleasedAt = &now
		shift.ExpiresAt = nil
		if err := tx.Save(&shift).Error; err != nil {
			return err
		}

		// 只有确认过的排班才置过占用位; 同机床仍有其他确认中的排班时不清
		if wasConfirmed {
			var others int64
			if err := tx.Model(&entity.Shift{}).
				Where("machine_id = ? AND status = ? AND id <> ?",
					shift.MachineID, entity.ShiftStatusConfirmed, shift.ID).
				Count(&others).Error; err != nil {
				return err
			}
			if others == 0 {
				if err := tx.Model(&entity.Machine{}).
					Where("id = ?", shift.MachineID).
					Updates(map[string]interface{}{
						"is_occupied": false,
						"version":     gorm.Expr("version + 1"),
					}).Error; err != nil {
					return err
				}
			}
		}

		released = shift
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &released, nil
}

// ExpireStaleReservations 释放超时未确认的预留, 返回释放条数
func (r *ShiftRepository) ExpireStaleReservations(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.Shift{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?",
			entity.ShiftStatusReserved, now).
		Updates(map[string]interface{}{
			"status":      entity.ShiftStatusReleased,
			"released_at": now,
			"expires_at":  nil,
		})
	return result.RowsAffected, result.Error
}

// CountOccupying 统计某机床占用中的排班数 (测试与诊断用)
func (r *ShiftRepository) CountOccupying(ctx context.Context, machineID string, date time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Shift{}).
		Where("machine_id = ? AND shift_date = ? AND status IN (?)",
			machineID, date,
			[]string{entity.ShiftStatusReserved, entity.ShiftStatusConfirmed}).
		Count(&count).Error
	return count, err
}

func isLockTimeout(err error) bool {
	// postgres lock_not_available: SQLSTATE 55P03
	return err != nil && (strings.Contains(err.Error(), "55P03") ||
		strings.Contains(err.Error(), "lock timeout"))
}
