package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService 生产订单服务
type OrderService struct {
	repo        *repository.OrderRepository
	machineRepo *repository.MachineRepository
	logger      *zap.Logger
}

func NewOrderService(repo *repository.OrderRepository, machineRepo *repository.MachineRepository, logger *zap.Logger) *OrderService {
	return &OrderService{repo: repo, machineRepo: machineRepo, logger: logger}
}

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	DrawingNumber string       `json:"drawing_number" binding:"required"`
	Name          string       `json:"name" binding:"required"`
	Spec          string       `json:"spec"`
	ProcessType   string       `json:"process_type" binding:"required,oneof=milling turning"`
	Quantity      int          `json:"quantity"`
	Priority      int          `json:"priority"`
	Attrs         entity.JSONB `json:"attrs"`
	Notes         string       `json:"notes"`
}

// Create 创建订单. 图号为空报校验错误, 重复报冲突.
func (s *OrderService) Create(ctx context.Context, userID string, req *CreateOrderRequest) (*entity.ProductionOrder, error) {
	drawingNumber := strings.TrimSpace(req.DrawingNumber)
	if drawingNumber == "" {
		return nil, fmt.Errorf("%w: drawing number is required", ErrValidation)
	}

	now := time.Now()
	order := &entity.ProductionOrder{
		ID:            uuid.New().String()[:32],
		DrawingNumber: drawingNumber,
		Name:          req.Name,
		Spec:          req.Spec,
		ProcessType:   req.ProcessType,
		Status:        entity.OrderStatusOpen,
		Quantity:      req.Quantity,
		Priority:      req.Priority,
		Attrs:         req.Attrs,
		CreatedBy:     userID,
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if order.Quantity <= 0 {
		order.Quantity = 1
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// List 查询订单列表
func (s *OrderService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.ProductionOrder, int64, error) {
	return s.repo.FindAll(ctx, page, pageSize, filters)
}

// Get 根据ID获取订单
func (s *OrderService) Get(ctx context.Context, id string) (*entity.ProductionOrder, error) {
	return s.repo.FindByID(ctx, id)
}

// GetByDrawingNumber 根据图号获取订单
func (s *OrderService) GetByDrawingNumber(ctx context.Context, drawingNumber string) (*entity.ProductionOrder, error) {
	return s.repo.FindByDrawingNumber(ctx, drawingNumber)
}

// Archive 归档订单 (保留历史, 不删除)
func (s *OrderService) Archive(ctx context.Context, id string) error {
	return s.repo.Archive(ctx, id)
}

// AxisRequirement 解析订单规格中的轴数要求, 回退时记日志
func (s *OrderService) AxisRequirement(order *entity.ProductionOrder) AxisRequirement {
	req := ParseAxisRequirement(order.Spec)
	if req.UsedDefault && s.logger != nil {
		s.logger.Info("axis requirement unparseable, using default",
			zap.String("order_id", order.ID),
			zap.String("drawing_number", order.DrawingNumber),
			zap.String("spec", order.Spec),
			zap.Int("default_axes", DefaultAxisCount),
		)
	}
	return req
}

// Candidates 订单的候选机床: 解析轴数要求后做能力匹配.
// 没有合适机床时返回空列表, 属正常结果.
func (s *OrderService) Candidates(ctx context.Context, orderID string) ([]entity.Machine, AxisRequirement, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, AxisRequirement{}, err
	}

	axisReq := s.AxisRequirement(order)

	machines, err := s.machineRepo.FindAvailable(ctx, axisReq.Axes, order.ProcessType)
	if err != nil {
		return nil, axisReq, fmt.Errorf("find available machines: %w", err)
	}

	return RankMachines(axisReq.Axes, order.ProcessType, machines), axisReq, nil
}
