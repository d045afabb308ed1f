package service

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/minio/minio-go/v7"
)

// DrawingService 订单图纸附件服务 (MinIO存储)
type DrawingService struct {
	orderRepo   *repository.OrderRepository
	minioClient *minio.Client
	bucketName  string
}

func NewDrawingService(orderRepo *repository.OrderRepository, minioClient *minio.Client, bucketName string) *DrawingService {
	return &DrawingService{orderRepo: orderRepo, minioClient: minioClient, bucketName: bucketName}
}

// Upload 上传订单图纸, 以图号+文件名生成对象键
func (s *DrawingService) Upload(ctx context.Context, orderID, fileName, contentType string, reader io.Reader, fileSize int64) (*entity.ProductionOrder, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if s.minioClient == nil {
		return nil, fmt.Errorf("storage not configured")
	}

	objectName := path.Join("drawings", order.DrawingNumber, fileName)
	_, err = s.minioClient.PutObject(ctx, s.bucketName, objectName, reader, fileSize, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("upload drawing: %w", err)
	}

	order.DrawingFileKey = objectName
	order.DrawingFileName = fileName
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("save drawing reference: %w", err)
	}

	return order, nil
}

// Download 下载订单图纸
func (s *DrawingService) Download(ctx context.Context, orderID string) (io.ReadCloser, *entity.ProductionOrder, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	if order.DrawingFileKey == "" {
		return nil, nil, fmt.Errorf("%w: order has no drawing file", repository.ErrNotFound)
	}
	if s.minioClient == nil {
		return nil, order, fmt.Errorf("storage not configured")
	}

	object, err := s.minioClient.GetObject(ctx, s.bucketName, order.DrawingFileKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("get object: %w", err)
	}

	return object, order, nil
}
