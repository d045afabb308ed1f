package service

import (
	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Services 服务集合
type Services struct {
	Machine  *MachineService
	Order    *OrderService
	Operator *OperatorService
	Shift    *ShiftService
	Calendar *CalendarService
	Drawing  *DrawingService
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	// 初始化MinIO客户端 (图纸附件存储)
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("MinIO client init failed, drawing storage disabled", zap.Error(err))
			minioClient = nil
		}
	}

	machineSvc := NewMachineService(repos.Machine, rdb)

	return &Services{
		Machine:  machineSvc,
		Order:    NewOrderService(repos.Order, repos.Machine, logger),
		Operator: NewOperatorService(repos.Operator),
		Shift:    NewShiftService(repos.Shift, repos.Machine, repos.Order, repos.Operator, cfg, logger, machineSvc.clearCache),
		Calendar: NewCalendarService(repos.Shift),
		Drawing:  NewDrawingService(repos.Order, minioClient, cfg.MinIO.Bucket),
	}
}
