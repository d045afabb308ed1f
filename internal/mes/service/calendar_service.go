package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/xuri/excelize/v2"
)

// 只读查询对瞬时存储错误的有限重试 (不用于预留写入, 避免重复占机)
const (
	readRetryAttempts = 3
	readRetryBase     = 100 * time.Millisecond
)

// CalendarService 排班日历查询服务 (读侧投影)
type CalendarService struct {
	shiftRepo *repository.ShiftRepository
}

func NewCalendarService(shiftRepo *repository.ShiftRepository) *CalendarService {
	return &CalendarService{shiftRepo: shiftRepo}
}

// ParseDateRange 解析并校验日期区间. 格式错误或 end < start 报校验错误.
func ParseDateRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid start date %q", ErrValidation, startStr)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid end date %q", ErrValidation, endStr)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end date %s before start date %s", ErrValidation, endStr, startStr)
	}
	return start, end, nil
}

// ListShifts 查询闭区间内的排班, 按日期、机床编号排序
func (s *CalendarService) ListShifts(ctx context.Context, startStr, endStr string) ([]entity.Shift, error) {
	start, end, err := ParseDateRange(startStr, endStr)
	if err != nil {
		return nil, err
	}

	var items []entity.Shift
	err = withReadRetry(ctx, func() error {
		var findErr error
		items, findErr = s.shiftRepo.FindByDateRange(ctx, start, end)
		return findErr
	})
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	return items, nil
}

var shiftExportHeaders = []string{"日期", "机床", "机床类型", "图号", "订单名称", "操作工", "状态"}

// ExportShifts 导出区间排班为xlsx
func (s *CalendarService) ExportShifts(ctx context.Context, startStr, endStr string) (*excelize.File, error) {
	items, err := s.ListShifts(ctx, startStr, endStr)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := "排班"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range shiftExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for rowIdx, shift := range items {
		row := rowIdx + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), shift.ShiftDate.Format("2006-01-02"))
		if shift.Machine != nil {
			f.SetCellValue(sheet, fmt.Sprintf("B%d", row), shift.Machine.Code)
			f.SetCellValue(sheet, fmt.Sprintf("C%d", row), shift.Machine.Type)
		}
		if shift.Order != nil {
			f.SetCellValue(sheet, fmt.Sprintf("D%d", row), shift.Order.DrawingNumber)
			f.SetCellValue(sheet, fmt.Sprintf("E%d", row), shift.Order.Name)
		}
		if shift.Operator != nil {
			f.SetCellValue(sheet, fmt.Sprintf("F%d", row), shift.Operator.Name)
		}
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), shift.Status)
	}

	colWidths := []float64{12, 8, 10, 16, 24, 12, 10}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	return f, nil
}

// withReadRetry 幂等读操作的有限指数退避重试
func withReadRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < readRetryAttempts; attempt++ {
		err = fn()
		if err == nil || errors.Is(err, repository.ErrNotFound) || errors.Is(err, ErrValidation) {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(readRetryBase << attempt):
		}
	}
	return err
}
