package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// OperatorRepository 操作工仓库
type OperatorRepository struct {
	db *gorm.DB
}

func NewOperatorRepository(db *gorm.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// FindAll 查询操作工列表
func (r *OperatorRepository) FindAll(ctx context.Context, filters map[string]string) ([]entity.Operator, error) {
	var items []entity.Operator

	query := r.db.WithContext(ctx).Model(&entity.Operator{})

	if t := filters["operator_type"]; t != "" {
		query = query.Where("operator_type IN (?)", []string{t, entity.OperatorTypeBoth})
	}
	if filters["active"] == "true" {
		query = query.Where("is_active = ?", true)
	}

	err := query.Order("name ASC").Find(&items).Error
	return items, err
}

// FindByID 根据ID查找操作工
func (r *OperatorRepository) FindByID(ctx context.Context, id string) (*entity.Operator, error) {
	var operator entity.Operator
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&operator).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &operator, nil
}

// Create 创建操作工
func (r *OperatorRepository) Create(ctx context.Context, operator *entity.Operator) error {
	return r.db.WithContext(ctx).Create(operator).Error
}

// Update 更新操作工
func (r *OperatorRepository) Update(ctx context.Context, operator *entity.Operator) error {
	return r.db.WithContext(ctx).Save(operator).Error
}
