package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// MachineRepository 机床仓库
type MachineRepository struct {
	db *gorm.DB
}

func NewMachineRepository(db *gorm.DB) *MachineRepository {
	return &MachineRepository{db: db}
}

// FindAll 查询机床列表
func (r *MachineRepository) FindAll(ctx context.Context, filters map[string]string) ([]entity.Machine, error) {
	var items []entity.Machine

	query := r.db.WithContext(ctx).Model(&entity.Machine{})

	if t := filters["type"]; t != "" {
		query = query.Where("type = ?", t)
	}
	if axes := filters["axes"]; axes != "" {
		query = query.Where("axes >= ?", axes)
	}
	if filters["available"] == "true" {
		query = query.Where("is_active = ? AND is_occupied = ?", true, false)
	}

	err := query.Order("code ASC").Find(&items).Error
	return items, err
}

// FindAvailable 查询可排班机床: 启用、未占用、轴数满足、类型匹配, 按编号升序
func (r *MachineRepository) FindAvailable(ctx context.Context, requiredAxes int, requiredType string) ([]entity.Machine, error) {
	var items []entity.Machine
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND is_occupied = ? AND axes >= ? AND type = ?",
			true, false, requiredAxes, requiredType).
		Order("code ASC").
		Find(&items).Error
	return items, err
}

// FindByCode 根据编号查找机床
func (r *MachineRepository) FindByCode(ctx context.Context, code string) (*entity.Machine, error) {
	var machine entity.Machine
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&machine).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &machine, nil
}

// FindByID 根据ID查找机床
func (r *MachineRepository) FindByID(ctx context.Context, id string) (*entity.Machine, error) {
	var machine entity.Machine
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&machine).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &machine, nil
}

// ExistsByCode 编号是否已存在
func (r *MachineRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Machine{}).
		Where("code = ?", code).
		Count(&count).Error
	return count > 0, err
}

// Create 创建机床
func (r *MachineRepository) Create(ctx context.Context, machine *entity.Machine) error {
	return r.db.WithContext(ctx).Create(machine).Error
}

// Update 更新机床
func (r *MachineRepository) Update(ctx context.Context, machine *entity.Machine) error {
	return r.db.WithContext(ctx).Save(machine).Error
}

// UpdateOccupancyCAS 按版本号CAS更新占用标志.
// 版本不匹配 (并发写入) 时返回 ErrConflict, 由调用方决定是否重试.
func (r *MachineRepository) UpdateOccupancyCAS(ctx context.Context, id string, occupied bool, version int) error {
	result := r.db.WithContext(ctx).
		Model(&entity.Machine{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]interface{}{
			"is_occupied": occupied,
			"version":     version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// SetActive 启用/停用机床 (软停用, 不删除)
func (r *MachineRepository) SetActive(ctx context.Context, id string, active bool) error {
	updates := map[string]interface{}{"is_active": active}
	if !active {
		// 停用隐含释放占用, 保证 is_occupied ⇒ is_active 不变式
		updates["is_occupied"] = false
	}
	result := r.db.WithContext(ctx).
		Model(&entity.Machine{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
