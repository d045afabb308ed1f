package handler

import (
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// ShiftHandler 排班处理器
type ShiftHandler struct {
	svc         *service.ShiftService
	calendarSvc *service.CalendarService
}

func NewShiftHandler(svc *service.ShiftService, calendarSvc *service.CalendarService) *ShiftHandler {
	return &ShiftHandler{svc: svc, calendarSvc: calendarSvc}
}

// Reserve 预留排班
// POST /api/v1/shifts
func (h *ShiftHandler) Reserve(c *gin.Context) {
	var req service.ReserveShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	shift, err := h.svc.Reserve(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		HandleError(c, err, "预留排班失败")
		return
	}
	Created(c, shift)
}

// Confirm 确认排班
// POST /api/v1/shifts/:id/confirm
func (h *ShiftHandler) Confirm(c *gin.Context) {
	shift, err := h.svc.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err, "确认排班失败")
		return
	}
	Success(c, shift)
}

// Release 释放排班
// POST /api/v1/shifts/:id/release
func (h *ShiftHandler) Release(c *gin.Context) {
	shift, err := h.svc.Release(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err, "释放排班失败")
		return
	}
	Success(c, shift)
}

// Get 排班详情
// GET /api/v1/shifts/:id
func (h *ShiftHandler) Get(c *gin.Context) {
	shift, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err, "获取排班失败")
		return
	}
	Success(c, shift)
}

// List 区间排班日历
// GET /api/v1/shifts?start_date=2026-01-01&end_date=2026-01-31
func (h *ShiftHandler) List(c *gin.Context) {
	shifts, err := h.calendarSvc.ListShifts(c.Request.Context(), c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		HandleError(c, err, "获取排班日历失败")
		return
	}
	Success(c, gin.H{"items": shifts})
}

// Export 导出区间排班为Excel
// GET /api/v1/shifts/export?start_date=2026-01-01&end_date=2026-01-31
func (h *ShiftHandler) Export(c *gin.Context) {
	f, err := h.calendarSvc.ExportShifts(c.Request.Context(), c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		HandleError(c, err, "导出排班失败")
		return
	}

	fileName := fmt.Sprintf("shifts_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", "attachment; filename=\""+fileName+"\"")
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "写出Excel失败: "+err.Error())
	}
}
