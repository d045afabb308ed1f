package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// OrderHandler 生产订单处理器
type OrderHandler struct {
	svc        *service.OrderService
	drawingSvc *service.DrawingService
}

func NewOrderHandler(svc *service.OrderService, drawingSvc *service.DrawingService) *OrderHandler {
	return &OrderHandler{svc: svc, drawingSvc: drawingSvc}
}

// Create 创建订单
// POST /api/v1/orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.svc.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		HandleError(c, err, "创建订单失败")
		return
	}
	Created(c, order)
}

// List 订单列表
// GET /api/v1/orders?search=xxx&status=open&process_type=milling
func (h *OrderHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"search":       c.Query("search"),
		"status":       c.Query("status"),
		"process_type": c.Query("process_type"),
	}

	orders, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取订单列表失败: "+err.Error())
		return
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	Success(c, ListResponse{
		Items: orders,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}

// Get 订单详情
// GET /api/v1/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err, "获取订单失败")
		return
	}
	Success(c, order)
}

// GetByDrawingNumber 按图号查询订单
// GET /api/v1/orders/by-drawing/:drawing_number
func (h *OrderHandler) GetByDrawingNumber(c *gin.Context) {
	order, err := h.svc.GetByDrawingNumber(c.Request.Context(), c.Param("drawing_number"))
	if err != nil {
		HandleError(c, err, "获取订单失败")
		return
	}
	Success(c, order)
}

// Archive 归档订单
// POST /api/v1/orders/:id/archive
func (h *OrderHandler) Archive(c *gin.Context) {
	if err := h.svc.Archive(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, err, "归档订单失败")
		return
	}
	Success(c, gin.H{"message": "订单已归档"})
}

// Candidates 订单候选机床
// GET /api/v1/orders/:id/candidates
func (h *OrderHandler) Candidates(c *gin.Context) {
	machines, axisReq, err := h.svc.Candidates(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err, "获取候选机床失败")
		return
	}
	Success(c, gin.H{
		"items":         machines,
		"required_axes": axisReq.Axes,
		"used_default":  axisReq.UsedDefault,
	})
}

// UploadDrawing 上传订单图纸
// POST /api/v1/orders/:id/drawing
func (h *OrderHandler) UploadDrawing(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少上传文件")
		return
	}

	src, err := file.Open()
	if err != nil {
		InternalError(c, "读取上传文件失败: "+err.Error())
		return
	}
	defer src.Close()

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	order, err := h.drawingSvc.Upload(c.Request.Context(), c.Param("id"), file.Filename, contentType, src, file.Size)
	if err != nil {
		HandleError(c, err, "上传图纸失败")
		return
	}
	Success(c, order)
}

// DownloadDrawing 下载订单图纸
// GET /api/v1/orders/:id/drawing
func (h *OrderHandler) DownloadDrawing(c *gin.Context) {
	object, order, err := h.drawingSvc.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err, "下载图纸失败")
		return
	}
	defer object.Close()

	c.Header("Content-Disposition", "attachment; filename=\""+order.DrawingFileName+"\"")
	c.DataFromReader(200, -1, "application/octet-stream", object, nil)
}
