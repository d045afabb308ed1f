package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// MachineHandler 机床处理器
type MachineHandler struct {
	svc *service.MachineService
}

func NewMachineHandler(svc *service.MachineService) *MachineHandler {
	return &MachineHandler{svc: svc}
}

// Register 登记机床
// POST /api/v1/machines
func (h *MachineHandler) Register(c *gin.Context) {
	var req service.RegisterMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	machine, err := h.svc.Register(c.Request.Context(), &req)
	if err != nil {
		HandleError(c, err, "登记机床失败")
		return
	}
	Created(c, machine)
}

// List 机床列表
// GET /api/v1/machines?type=milling&axes=4&available=true
func (h *MachineHandler) List(c *gin.Context) {
	filters := map[string]string{
		"type":      c.Query("type"),
		"axes":      c.Query("axes"),
		"available": c.Query("available"),
	}

	machines, err := h.svc.List(c.Request.Context(), filters)
	if err != nil {
		InternalError(c, "获取机床列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": machines})
}

// Get 机床详情
// GET /api/v1/machines/:code
func (h *MachineHandler) Get(c *gin.Context) {
	machine, err := h.svc.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		HandleError(c, err, "获取机床失败")
		return
	}
	Success(c, machine)
}

type setOccupiedRequest struct {
	Occupied *bool `json:"occupied" binding:"required"`
}

// SetOccupied 手工置位/释放占用标志
// PUT /api/v1/machines/:code/occupancy
func (h *MachineHandler) SetOccupied(c *gin.Context) {
	var req setOccupiedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	machine, err := h.svc.SetOccupied(c.Request.Context(), c.Param("code"), *req.Occupied)
	if err != nil {
		HandleError(c, err, "更新机床占用状态失败")
		return
	}
	Success(c, machine)
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetActive 启用/停用机床
// PUT /api/v1/machines/:code/active
func (h *MachineHandler) SetActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	machine, err := h.svc.SetActive(c.Request.Context(), c.Param("code"), *req.Active)
	if err != nil {
		HandleError(c, err, "更新机床启用状态失败")
		return
	}
	Success(c, machine)
}
