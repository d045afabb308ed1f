package service

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/google/uuid"
)

// OperatorService 操作工服务
type OperatorService struct {
	repo *repository.OperatorRepository
}

func NewOperatorService(repo *repository.OperatorRepository) *OperatorService {
	return &OperatorService{repo: repo}
}

// CreateOperatorRequest 创建操作工请求
type CreateOperatorRequest struct {
	Name         string `json:"name" binding:"required"`
	OperatorType string `json:"operator_type" binding:"required,oneof=milling turning both"`
}

// Create 创建操作工
func (s *OperatorService) Create(ctx context.Context, req *CreateOperatorRequest) (*entity.Operator, error) {
	now := time.Now()
	operator := &entity.Operator{
		ID:           uuid.New().String()[:32],
		Name:         req.Name,
		OperatorType: req.OperatorType,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, operator); err != nil {
		return nil, err
	}
	return operator, nil
}

// List 查询操作工列表
func (s *OperatorService) List(ctx context.Context, filters map[string]string) ([]entity.Operator, error) {
	return s.repo.FindAll(ctx, filters)
}

// Get 根据ID获取操作工
func (s *OperatorService) Get(ctx context.Context, id string) (*entity.Operator, error) {
	return s.repo.FindByID(ctx, id)
}
