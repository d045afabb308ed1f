package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	machineListCacheKey = "mes:machines:all"
	machineListCacheTTL = 5 * time.Minute

	// 占用位CAS写入的最大重试次数
	occupancyCASRetries = 3
)

// ErrValidation 参数校验错误 (handler 映射为 400)
var ErrValidation = errors.New("validation failed")

// MachineService 机床服务
type MachineService struct {
	repo *repository.MachineRepository
	rdb  *redis.Client
}

func NewMachineService(repo *repository.MachineRepository, rdb *redis.Client) *MachineService {
	return &MachineService{repo: repo, rdb: rdb}
}

// RegisterMachineRequest 登记机床请求
type RegisterMachineRequest struct {
	Code  string `json:"code" binding:"required"`
	Name  string `json:"name"`
	Type  string `json:"type" binding:"required,oneof=milling turning"`
	Axes  int    `json:"axes" binding:"required,gt=0"`
	Notes string `json:"notes"`
}

// Register 登记机床, 编号重复或轴数非正报校验错误
func (s *MachineService) Register(ctx context.Context, req *RegisterMachineRequest) (*entity.Machine, error) {
	if req.Axes <= 0 {
		return nil, fmt.Errorf("%w: axes must be positive", ErrValidation)
	}

	exists, err := s.repo.ExistsByCode(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("check machine code: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: machine code %s", repository.ErrDuplicate, req.Code)
	}

	now := time.Now()
	machine := &entity.Machine{
		ID:        uuid.New().String()[:32],
		Code:      req.Code,
		Name:      req.Name,
		Type:      req.Type,
		Axes:      req.Axes,
		IsActive:  true,
		Notes:     req.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, machine); err != nil {
		return nil, fmt.Errorf("create machine: %w", err)
	}

	s.clearCache(ctx)
	return machine, nil
}

// List 查询机床列表. 无过滤条件时走Redis缓存.
func (s *MachineService) List(ctx context.Context, filters map[string]string) ([]entity.Machine, error) {
	cacheable := filters["type"] == "" && filters["axes"] == "" && filters["available"] == ""

	if cacheable && s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, machineListCacheKey).Result(); err == nil {
			var items []entity.Machine
			if json.Unmarshal([]byte(cached), &items) == nil {
				return items, nil
			}
		}
	}

	items, err := s.repo.FindAll(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}

	if cacheable && s.rdb != nil {
		if data, err := json.Marshal(items); err == nil {
			s.rdb.Set(ctx, machineListCacheKey, data, machineListCacheTTL)
		}
	}

	return items, nil
}

// Get 根据编号获取机床
func (s *MachineService) Get(ctx context.Context, code string) (*entity.Machine, error) {
	return s.repo.FindByCode(ctx, code)
}

// ListAvailable 查询可排班机床, 按编号升序
func (s *MachineService) ListAvailable(ctx context.Context, requiredAxes int, requiredType string) ([]entity.Machine, error) {
	return s.repo.FindAvailable(ctx, requiredAxes, requiredType)
}

// SetOccupied 手工置位/释放占用标志. 版本CAS, 冲突时重读重试.
// 不变式: 占用中的机床必须处于启用状态.
func (s *MachineService) SetOccupied(ctx context.Context, code string, occupied bool) (*entity.Machine, error) {
	for i := 0; i < occupancyCASRetries; i++ {
		machine, err := s.repo.FindByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if occupied && !machine.IsActive {
			return nil, fmt.Errorf("%w: machine %s is not active", ErrValidation, code)
		}

		err = s.repo.UpdateOccupancyCAS(ctx, machine.ID, occupied, machine.Version)
		if err == nil {
			machine.IsOccupied = occupied
			machine.Version++
			s.clearCache(ctx)
			return machine, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("update occupancy: %w", err)
		}
		// 版本冲突, 重读后重试
	}
	return nil, fmt.Errorf("%w: machine %s occupancy contention", repository.ErrConflict, code)
}

// SetActive 启用/停用机床 (软停用代替删除)
func (s *MachineService) SetActive(ctx context.Context, code string, active bool) (*entity.Machine, error) {
	machine, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetActive(ctx, machine.ID, active); err != nil {
		return nil, fmt.Errorf("set machine active: %w", err)
	}
	s.clearCache(ctx)
	return s.repo.FindByCode(ctx, code)
}

// clearCache 清除机床列表缓存
func (s *MachineService) clearCache(ctx context.Context) {
	if s.rdb != nil {
		s.rdb.Del(ctx, machineListCacheKey)
	}
}
