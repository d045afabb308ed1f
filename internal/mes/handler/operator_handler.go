package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// OperatorHandler 操作工处理器
type OperatorHandler struct {
	svc *service.OperatorService
}

func NewOperatorHandler(svc *service.OperatorService) *OperatorHandler {
	return &OperatorHandler{svc: svc}
}

// Create 创建操作工
// POST /api/v1/operators
func (h *OperatorHandler) Create(c *gin.Context) {
	var req service.CreateOperatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	operator, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		HandleError(c, err, "创建操作工失败")
		return
	}
	Created(c, operator)
}

// List 操作工列表
// GET /api/v1/operators?operator_type=milling
func (h *OperatorHandler) List(c *gin.Context) {
	filters := map[string]string{
		"operator_type": c.Query("operator_type"),
	}

	operators, err := h.svc.List(c.Request.Context(), filters)
	if err != nil {
		InternalError(c, "获取操作工列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": operators})
}

// Get 操作工详情
// GET /api/v1/operators/:id
func (h *OperatorHandler) Get(c *gin.Context) {
	operator, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err, "获取操作工失败")
		return
	}
	Success(c, operator)
}
