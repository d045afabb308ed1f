package handler

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/bitfantasy/nimo-mes/internal/mes/testutil"
	"go.uber.org/zap"
)

func setupShiftTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, nil, &config.Config{}, zap.NewNop())
	h := NewShiftHandler(services.Shift, services.Calendar)

	api := testutil.AuthGroup(router, "/api/v1")
	api.GET("/shifts", h.List)
	api.POST("/shifts", h.Reserve)
	api.GET("/shifts/:id", h.Get)
	api.POST("/shifts/:id/confirm", h.Confirm)
	api.POST("/shifts/:id/release", h.Release)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func seedShiftFixtures(t *testing.T, env *testutil.TestEnv) (*entity.ProductionOrder, *entity.Machine, *entity.Operator) {
	t.Helper()
	order := testutil.SeedOrder(t, env.DB, "DWG-SHIFT-001", "3-axis milling", "milling")
	machine := testutil.SeedMachine(t, env.DB, "M-601", "milling", 4)
	operator := testutil.SeedOperator(t, env.DB, "op-601", "Иванов", "milling")
	return order, machine, operator
}

func TestShiftLifecycle(t *testing.T) {
	env := setupShiftTest(t)
	token := testutil.DefaultTestToken()
	order, machine, operator := seedShiftFixtures(t, env)

	// 预留
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts", map[string]interface{}{
		"order_id":     order.ID,
		"machine_code": machine.Code,
		"operator_id":  operator.ID,
		"date":         "2026-09-01",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["status"] != "reserved" {
		t.Errorf("Expected status reserved, got %v", data["status"])
	}
	if data["expires_at"] == nil {
		t.Errorf("Expected expires_at set on reservation")
	}
	shiftID := data["id"].(string)

	// 确认: 机床置为占用
	w2 := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts/"+shiftID+"/confirm", nil, token)
	if w2.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w2.Code, w2.Body.String())
	}
	resp2 := testutil.ParseResponse(w2)
	if resp2["data"].(map[string]interface{})["status"] != "confirmed" {
		t.Errorf("Expected status confirmed")
	}

	var m entity.Machine
	env.DB.Where("code = ?", machine.Code).First(&m)
	if !m.IsOccupied {
		t.Errorf("Expected machine occupied after confirm")
	}

	// 重复确认冲突
	w3 := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts/"+shiftID+"/confirm", nil, token)
	if w3.Code != http.StatusConflict {
		t.Fatalf("Expected 409 for double confirm, got %d: %s", w3.Code, w3.Body.String())
	}

	// 释放: 机床回到空闲, 记录保留
	w4 := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts/"+shiftID+"/release", nil, token)
	if w4.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w4.Code, w4.Body.String())
	}
	resp4 := testutil.ParseResponse(w4)
	data4 := resp4["data"].(map[string]interface{})
	if data4["status"] != "released" {
		t.Errorf("Expected status released, got %v", data4["status"])
	}
	if data4["released_at"] == nil {
		t.Errorf("Expected released_at set")
	}

	env.DB.Where("code = ?", machine.Code).First(&m)
	if m.IsOccupied {
		t.Errorf("Expected machine free after release")
	}

	// 历史记录仍可查询
	w5 := testutil.DoRequest(env.Router, "GET", "/api/v1/shifts/"+shiftID, nil, token)
	if w5.Code != http.StatusOK {
		t.Fatalf("Expected 200 for released shift, got %d", w5.Code)
	}
}

func TestShiftReserveSameMachineSameDayConflict(t *testing.T) {
	env := setupShiftTest(t)
	token := testutil.DefaultTestToken()
	order, machine, operator := seedShiftFixtures(t, env)
	order2 := testutil.SeedOrder(t, env.DB, "DWG-SHIFT-002", "3-axis milling", "milling")

	body := map[string]interface{}{
		"order_id":     order.ID,
		"machine_code": machine.Code,
		"operator_id":  operator.ID,
		"date":         "2026-09-02",
	}
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	body["order_id"] = order2.ID
	w2 := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts", body, token)
	if w2.Code != http.StatusConflict {
		t.Fatalf("Expected 409 for same machine same day, got %d: %s", w2.Code, w2.Body.String())
	}

	// 另一天可以预留
	body["date"] = "2026-09-03"
	w3 := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts", body, token)
	if w3.Code != http.StatusCreated {
		t.Fatalf("Expected 201 for different day, got %d: %s", w3.Code, w3.Body.String())
	}
}

func TestShiftReserveValidation(t *testing.T) {
	env := setupShiftTest(t)
	token := testutil.DefaultTestToken()
	order, machine, _ := seedShiftFixtures(t, env)
	turner := testutil.SeedOperator(t, env.DB, "op-602", "Петров", "turning")

	// 操作工类型不匹配
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts", map[string]interface{}{
		"order_id":     order.ID,
		"machine_code": machine.Code,
		"operator_id":  turner.ID,
		"date":         "2026-09-05",
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for operator type mismatch, got %d: %s", w.Code, w.Body.String())
	}

	// 日期格式错误
	w2 := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts", map[string]interface{}{
		"order_id":     order.ID,
		"machine_code": machine.Code,
		"operator_id":  "op-601",
		"date":         "05.09.2026",
	}, token)
	if w2.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for bad date format, got %d: %s", w2.Code, w2.Body.String())
	}
}

func TestShiftReserveAxisRequirement(t *testing.T) {
	env := setupShiftTest(t)
	token := testutil.DefaultTestToken()

	order := testutil.SeedOrder(t, env.DB, "DWG-SHIFT-5AX", "5-axis milling", "milling")
	machine := testutil.SeedMachine(t, env.DB, "M-602", "milling", 3)
	operator := testutil.SeedOperator(t, env.DB, "op-603", "Сидоров", "both")

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts", map[string]interface{}{
		"order_id":     order.ID,
		"machine_code": machine.Code,
		"operator_id":  operator.ID,
		"date":         "2026-09-06",
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for insufficient axes, got %d: %s", w.Code, w.Body.String())
	}
}

// 同机床不同日期的两个预留, 只有第一个确认能成功;
// 释放后另一个才能确认
func TestShiftConfirmConflictOnOccupiedMachine(t *testing.T) {
	env := setupShiftTest(t)
	token := testutil.DefaultTestToken()
	order, machine, operator := seedShiftFixtures(t, env)

	reserve := func(date string) string {
		t.Helper()
		w := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts", map[string]interface{}{
			"order_id":     order.ID,
			"machine_code": machine.Code,
			"operator_id":  operator.ID,
			"date":         date,
		}, token)
		if w.Code != http.StatusCreated {
			t.Fatalf("Reserve for %s failed: %d %s", date, w.Code, w.Body.String())
		}
		return testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)
	}

	shiftA := reserve("2026-09-11")
	shiftB := reserve("2026-09-12")

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts/"+shiftA+"/confirm", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for first confirm, got %d: %s", w.Code, w.Body.String())
	}

	// 机床已被A占用, B的确认必须冲突
	w2 := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts/"+shiftB+"/confirm", nil, token)
	if w2.Code != http.StatusConflict {
		t.Fatalf("Expected 409 confirming on occupied machine, got %d: %s", w2.Code, w2.Body.String())
	}

	var m entity.Machine
	env.DB.Where("code = ?", machine.Code).First(&m)
	if !m.IsOccupied {
		t.Errorf("Expected machine still occupied by first shift")
	}

	// 释放A后机床空闲, B可以确认
	w3 := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts/"+shiftA+"/release", nil, token)
	if w3.Code != http.StatusOK {
		t.Fatalf("Expected 200 releasing first shift, got %d: %s", w3.Code, w3.Body.String())
	}
	env.DB.Where("code = ?", machine.Code).First(&m)
	if m.IsOccupied {
		t.Errorf("Expected machine free after release")
	}

	w4 := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts/"+shiftB+"/confirm", nil, token)
	if w4.Code != http.StatusOK {
		t.Fatalf("Expected 200 confirming after release, got %d: %s", w4.Code, w4.Body.String())
	}
}

func TestShiftReserveInactiveOperator(t *testing.T) {
	env := setupShiftTest(t)
	token := testutil.DefaultTestToken()
	order, machine, operator := seedShiftFixtures(t, env)

	env.DB.Model(&entity.Operator{}).Where("id = ?", operator.ID).
		Update("is_active", false)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts", map[string]interface{}{
		"order_id":     order.ID,
		"machine_code": machine.Code,
		"operator_id":  operator.ID,
		"date":         "2026-09-08",
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for inactive operator, got %d: %s", w.Code, w.Body.String())
	}
}

func TestShiftReserveArchivedOrder(t *testing.T) {
	env := setupShiftTest(t)
	token := testutil.DefaultTestToken()
	order, machine, operator := seedShiftFixtures(t, env)

	env.DB.Model(&entity.ProductionOrder{}).Where("id = ?", order.ID).
		Update("status", entity.OrderStatusArchived)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts", map[string]interface{}{
		"order_id":     order.ID,
		"machine_code": machine.Code,
		"operator_id":  operator.ID,
		"date":         "2026-09-07",
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for archived order, got %d: %s", w.Code, w.Body.String())
	}
}

// 并发预留同一机床同一天: 恰好一个成功
func TestShiftReserveConcurrent(t *testing.T) {
	env := setupShiftTest(t)
	token := testutil.DefaultTestToken()
	order, machine, operator := seedShiftFixtures(t, env)

	const workers = 8
	codes := make([]int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts", map[string]interface{}{
				"order_id":     order.ID,
				"machine_code": machine.Code,
				"operator_id":  operator.ID,
				"date":         "2026-09-10",
			}, token)
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			// expected for the losers
		default:
			t.Errorf("Unexpected status %d", code)
		}
	}
	if created != 1 {
		t.Fatalf("Expected exactly 1 successful reservation, got %d", created)
	}

	repo := repository.NewShiftRepository(env.DB)
	date, _ := time.Parse("2006-01-02", "2026-09-10")
	count, err := repo.CountOccupying(context.Background(), machine.ID, date)
	if err != nil {
		t.Fatalf("CountOccupying failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 occupying shift in DB, got %d", count)
	}
}

func TestShiftCalendarRange(t *testing.T) {
	env := setupShiftTest(t)
	token := testutil.DefaultTestToken()
	order, machine, operator := seedShiftFixtures(t, env)

	for _, date := range []string{"2026-09-01", "2026-09-02", "2026-09-15"} {
		w := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts", map[string]interface{}{
			"order_id":     order.ID,
			"machine_code": machine.Code,
			"operator_id":  operator.ID,
			"date":         date,
		}, token)
		if w.Code != http.StatusCreated {
			t.Fatalf("Seed reservation for %s failed: %d %s", date, w.Code, w.Body.String())
		}
	}

	// 闭区间包含边界日
	w := testutil.DoRequest(env.Router, "GET",
		"/api/v1/shifts?start_date=2026-09-01&end_date=2026-09-02", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	items := resp["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 2 {
		t.Errorf("Expected 2 shifts in range, got %d", len(items))
	}

	// 预加载关联
	first := items[0].(map[string]interface{})
	if first["machine"] == nil || first["order"] == nil {
		t.Errorf("Expected machine and order preloaded in calendar items")
	}
}

func TestShiftCalendarInvalidRange(t *testing.T) {
	env := setupShiftTest(t)
	token := testutil.DefaultTestToken()

	// end < start
	w := testutil.DoRequest(env.Router, "GET",
		"/api/v1/shifts?start_date=2026-09-10&end_date=2026-09-01", nil, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for inverted range, got %d: %s", w.Code, w.Body.String())
	}

	// 格式错误
	w2 := testutil.DoRequest(env.Router, "GET",
		"/api/v1/shifts?start_date=nonsense&end_date=2026-09-01", nil, token)
	if w2.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for unparseable date, got %d: %s", w2.Code, w2.Body.String())
	}
}

func TestShiftExpirySweep(t *testing.T) {
	env := setupShiftTest(t)
	token := testutil.DefaultTestToken()
	order, machine, operator := seedShiftFixtures(t, env)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts", map[string]interface{}{
		"order_id":     order.ID,
		"machine_code": machine.Code,
		"operator_id":  operator.ID,
		"date":         "2026-09-20",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	shiftID := resp["data"].(map[string]interface{})["id"].(string)

	// 把保护期拨到过去
	past := time.Now().Add(-time.Minute)
	env.DB.Model(&entity.Shift{}).Where("id = ?", shiftID).Update("expires_at", past)

	repo := repository.NewShiftRepository(env.DB)
	n, err := repo.ExpireStaleReservations(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("ExpireStaleReservations failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1 expired reservation, got %d", n)
	}

	var shift entity.Shift
	env.DB.Where("id = ?", shiftID).First(&shift)
	if shift.Status != entity.ShiftStatusReleased {
		t.Errorf("Expected expired shift released, got %s", shift.Status)
	}

	// 过期释放后同日可重新预留
	w2 := testutil.DoRequest(env.Router, "POST", "/api/v1/shifts", map[string]interface{}{
		"order_id":     order.ID,
		"machine_code": machine.Code,
		"operator_id":  operator.ID,
		"date":         "2026-09-20",
	}, token)
	if w2.Code != http.StatusCreated {
		t.Fatalf("Expected 201 after expiry, got %d: %s", w2.Code, w2.Body.String())
	}
}
