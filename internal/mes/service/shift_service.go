package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ShiftService 排班服务.
// 机床状态机: FREE → RESERVED → OCCUPIED → FREE.
// reserve/confirm/release 在机床行锁上互斥; 预留有保护期,
// 超时未确认由 ExpireStaleReservations 自动释放.
type ShiftService struct {
	shiftRepo    *repository.ShiftRepository
	machineRepo  *repository.MachineRepository
	orderRepo    *repository.OrderRepository
	operatorRepo *repository.OperatorRepository
	holdTTL      time.Duration
	lockTimeout  time.Duration
	logger       *zap.Logger

	// confirm/release/超时清理改写机床占用位, 必须让机床列表缓存失效
	invalidateMachineCache func(ctx context.Context)
}

func NewShiftService(
	shiftRepo *repository.ShiftRepository,
	machineRepo *repository.MachineRepository,
	orderRepo *repository.OrderRepository,
	operatorRepo *repository.OperatorRepository,
	cfg *config.Config,
	logger *zap.Logger,
	invalidateMachineCache func(ctx context.Context),
) *ShiftService {
	holdTTL := cfg.Scheduler.HoldTTL
	if holdTTL <= 0 {
		holdTTL = 15 * time.Minute
	}
	lockTimeout := cfg.Scheduler.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &ShiftService{
		shiftRepo:              shiftRepo,
		machineRepo:            machineRepo,
		orderRepo:              orderRepo,
		operatorRepo:           operatorRepo,
		holdTTL:                holdTTL,
		lockTimeout:            lockTimeout,
		logger:                 logger,
		invalidateMachineCache: invalidateMachineCache,
	}
}

func (s *ShiftService) clearMachineCache(ctx context.Context) {
	if s.invalidateMachineCache != nil {
		s.invalidateMachineCache(ctx)
	}
}

// ReserveShiftRequest 预留排班请求
type ReserveShiftRequest struct {
	OrderID     string `json:"order_id" binding:"required"`
	MachineCode string `json:"machine_code" binding:"required"`
	OperatorID  string `json:"operator_id" binding:"required"`
	Date        string `json:"date" binding:"required"` // YYYY-MM-DD
}

// Reserve 预留排班: FREE → RESERVED.
// 同机床同日冲突报 repository.ErrConflict, 由调用方决定是否重试, 服务端不自动重试.
func (s *ShiftService) Reserve(ctx context.Context, userID string, req *ReserveShiftRequest) (*entity.Shift, error) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", ErrValidation, req.Date)
	}

	order, err := s.orderRepo.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if order.Status == entity.OrderStatusArchived {
		return nil, fmt.Errorf("%w: order %s is archived", ErrValidation, order.DrawingNumber)
	}

	machine, err := s.machineRepo.FindByCode(ctx, req.MachineCode)
	if err != nil {
		return nil, fmt.Errorf("find machine: %w", err)
	}

	operator, err := s.operatorRepo.FindByID(ctx, req.OperatorID)
	if err != nil {
		return nil, fmt.Errorf("find operator: %w", err)
	}
	if !operator.IsActive {
		return nil, fmt.Errorf("%w: operator %s is not active", ErrValidation, operator.Name)
	}
	if !operator.CanRun(machine.Type) {
		return nil, fmt.Errorf("%w: operator %s cannot run %s machines", ErrValidation, operator.Name, machine.Type)
	}

	// 轴数要求是排班前的提示性校验, 规格解析回退到默认值时记日志
	axisReq := ParseAxisRequirement(order.Spec)
	if axisReq.UsedDefault {
		s.logger.Info("axis requirement unparseable, using default",
			zap.String("order_id", order.ID),
			zap.String("spec", order.Spec),
			zap.Int("default_axes", DefaultAxisCount),
		)
	}
	if machine.Axes < axisReq.Axes {
		return nil, fmt.Errorf("%w: machine %s has %d axes, order requires %d",
			ErrValidation, machine.Code, machine.Axes, axisReq.Axes)
	}

	now := time.Now()
	expires := now.Add(s.holdTTL)
	shift := &entity.Shift{
		ID:         uuid.New().String()[:32],
		OrderID:    order.ID,
		MachineID:  machine.ID,
		OperatorID: operator.ID,
		ShiftDate:  date,
		Status:     entity.ShiftStatusReserved,
		ExpiresAt:  &expires,
		CreatedBy:  userID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.shiftRepo.CreateReserved(ctx, shift, s.lockTimeout); err != nil {
		return nil, err
	}

	s.logger.Info("shift reserved",
		zap.String("shift_id", shift.ID),
		zap.String("machine", machine.Code),
		zap.String("drawing_number", order.DrawingNumber),
		zap.String("date", req.Date),
	)
	return shift, nil
}

// Confirm 确认排班: RESERVED → OCCUPIED, 置位机床占用.
// 持久化失败时事务整体回滚, 不留幽灵预留.
func (s *ShiftService) Confirm(ctx context.Context, shiftID string) (*entity.Shift, error) {
	shift, err := s.shiftRepo.ConfirmReserved(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	s.clearMachineCache(ctx)
	s.logger.Info("shift confirmed",
		zap.String("shift_id", shift.ID),
		zap.String("machine_id", shift.MachineID),
	)
	return shift, nil
}

// Release 释放排班: OCCUPIED → FREE. 记录保留作为历史.
func (s *ShiftService) Release(ctx context.Context, shiftID string) (*entity.Shift, error) {
	shift, err := s.shiftRepo.Release(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	s.clearMachineCache(ctx)
	s.logger.Info("shift released",
		zap.String("shift_id", shift.ID),
		zap.String("machine_id", shift.MachineID),
	)
	return shift, nil
}

// Get 根据ID获取排班
func (s *ShiftService) Get(ctx context.Context, id string) (*entity.Shift, error) {
	return s.shiftRepo.FindByID(ctx, id)
}

// ExpireStaleReservations 释放超时未确认的预留
func (s *ShiftService) ExpireStaleReservations(ctx context.Context) {
	n, err := s.shiftRepo.ExpireStaleReservations(ctx, time.Now())
	if err != nil {
		s.logger.Error("expire stale reservations failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.clearMachineCache(ctx)
		s.logger.Info("expired stale reservations", zap.Int64("count", n))
	}
}

// StartExpirySweeper 启动预留超时清理任务, ctx取消时退出
func (s *ShiftService) StartExpirySweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.ExpireStaleReservations(ctx)
			}
		}
	}()
}
