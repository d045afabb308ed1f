package handler

import (
	"net/http"
	"testing"

	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/bitfantasy/nimo-mes/internal/mes/testutil"
	"go.uber.org/zap"
)

func setupMachineTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, nil, &config.Config{}, zap.NewNop())
	h := NewMachineHandler(services.Machine)

	api := testutil.AuthGroup(router, "/api/v1")
	api.GET("/machines", h.List)
	api.POST("/machines", h.Register)
	api.GET("/machines/:code", h.Get)
	api.PUT("/machines/:code/occupancy", h.SetOccupied)
	api.PUT("/machines/:code/active", h.SetActive)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func TestMachineRegisterAndGet(t *testing.T) {
	env := setupMachineTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/machines", map[string]interface{}{
		"code": "M-001",
		"name": "DMG MORI",
		"type": "milling",
		"axes": 5,
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w2 := testutil.DoRequest(env.Router, "GET", "/api/v1/machines/M-001", nil, token)
	if w2.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w2.Code, w2.Body.String())
	}
	resp := testutil.ParseResponse(w2)
	data := resp["data"].(map[string]interface{})
	if data["code"] != "M-001" {
		t.Errorf("Expected code M-001, got %v", data["code"])
	}
	if data["axes"].(float64) != 5 {
		t.Errorf("Expected 5 axes, got %v", data["axes"])
	}
	if data["is_active"] != true {
		t.Errorf("Expected machine active by default")
	}
}

func TestMachineRegisterDuplicateCode(t *testing.T) {
	env := setupMachineTest(t)
	token := testutil.DefaultTestToken()

	body := map[string]interface{}{"code": "M-010", "type": "turning", "axes": 3}
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/machines", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w2 := testutil.DoRequest(env.Router, "POST", "/api/v1/machines", body, token)
	if w2.Code != http.StatusConflict {
		t.Fatalf("Expected 409 for duplicate code, got %d: %s", w2.Code, w2.Body.String())
	}
	resp := testutil.ParseResponse(w2)
	if resp["code"].(float64) != 40900 {
		t.Errorf("Expected business code 40900, got %v", resp["code"])
	}
}

func TestMachineRegisterInvalidAxes(t *testing.T) {
	env := setupMachineTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/machines", map[string]interface{}{
		"code": "M-020", "type": "milling", "axes": -1,
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for negative axes, got %d: %s", w.Code, w.Body.String())
	}
}

func TestMachineListFilters(t *testing.T) {
	env := setupMachineTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedMachine(t, env.DB, "M-101", "milling", 3)
	testutil.SeedMachine(t, env.DB, "M-102", "milling", 5)
	testutil.SeedMachine(t, env.DB, "T-101", "turning", 4)

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/machines?type=milling", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	items := resp["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 2 {
		t.Errorf("Expected 2 milling machines, got %d", len(items))
	}

	w2 := testutil.DoRequest(env.Router, "GET", "/api/v1/machines?type=milling&axes=4", nil, token)
	resp2 := testutil.ParseResponse(w2)
	items2 := resp2["data"].(map[string]interface{})["items"].([]interface{})
	if len(items2) != 1 {
		t.Errorf("Expected 1 milling machine with >=4 axes, got %d", len(items2))
	}
}

func TestMachineOccupancyToggle(t *testing.T) {
	env := setupMachineTest(t)
	token := testutil.DefaultTestToken()
	testutil.SeedMachine(t, env.DB, "M-201", "milling", 3)

	w := testutil.DoRequest(env.Router, "PUT", "/api/v1/machines/M-201/occupancy",
		map[string]interface{}{"occupied": true}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["is_occupied"] != true {
		t.Errorf("Expected machine occupied")
	}
	if data["version"].(float64) != 1 {
		t.Errorf("Expected version bumped to 1, got %v", data["version"])
	}

	w2 := testutil.DoRequest(env.Router, "PUT", "/api/v1/machines/M-201/occupancy",
		map[string]interface{}{"occupied": false}, token)
	if w2.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w2.Code, w2.Body.String())
	}
}

func TestMachineDeactivateClearsOccupancy(t *testing.T) {
	env := setupMachineTest(t)
	token := testutil.DefaultTestToken()
	testutil.SeedMachine(t, env.DB, "M-301", "turning", 4)

	testutil.DoRequest(env.Router, "PUT", "/api/v1/machines/M-301/occupancy",
		map[string]interface{}{"occupied": true}, token)

	w := testutil.DoRequest(env.Router, "PUT", "/api/v1/machines/M-301/active",
		map[string]interface{}{"active": false}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["is_active"] != false {
		t.Errorf("Expected machine inactive")
	}
	if data["is_occupied"] != false {
		t.Errorf("Deactivation should clear occupancy")
	}

	// 停用的机床不能再置占用
	w2 := testutil.DoRequest(env.Router, "PUT", "/api/v1/machines/M-301/occupancy",
		map[string]interface{}{"occupied": true}, token)
	if w2.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 when occupying inactive machine, got %d: %s", w2.Code, w2.Body.String())
	}
}

func TestMachineUnauthorized(t *testing.T) {
	env := setupMachineTest(t)

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/machines", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without token, got %d", w.Code)
	}
}
