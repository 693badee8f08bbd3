package handler_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qwertyboy0325/etc-all/internal/label/entity"
	"github.com/qwertyboy0325/etc-all/internal/label/handler"
	"github.com/qwertyboy0325/etc-all/internal/label/repository"
	"github.com/qwertyboy0325/etc-all/internal/label/service"
	"github.com/qwertyboy0325/etc-all/internal/label/testutil"
)

func setupVehicleTypeRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	h := handler.NewVehicleTypeHandler(service.NewVehicleTypeService(repos, zap.NewNop()))

	testutil.SeedUser(t, db, "admin-1", "Admin")
	testutil.SeedProject(t, db, "proj-1", "Test Project", "admin-1")

	r := testutil.SetupRouter()
	group := testutil.AuthGroup(r, "/api/v1")
	vt := group.Group("/projects/:project_id/vehicle-types")
	{
		vt.POST("", h.Create)
		vt.GET("", h.List)
		vt.GET("/:id", h.Get)
		vt.PUT("/:id", h.Update)
		vt.DELETE("/:id", h.Delete)
	}

	token := testutil.GenerateTestToken("admin-1", "Admin", "admin@example.com", []string{entity.RoleProjectAdmin})
	return r, token
}

func TestVehicleTypeCRUD(t *testing.T) {
	r, token := setupVehicleTypeRouter(t)

	// 创建
	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/projects/proj-1/vehicle-types",
		gin.H{"name": "truck", "display_name": "大货车", "color": "#ff0000"}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	body := testutil.ParseResponse(w)
	data := body["data"].(map[string]interface{})
	id := data["id"].(string)
	assert.Equal(t, "truck", data["name"])

	// 重名冲突
	w = testutil.DoRequest(r, http.MethodPost, "/api/v1/projects/proj-1/vehicle-types",
		gin.H{"name": "Truck"}, token)
	assert.Equal(t, http.StatusConflict, w.Code)

	// 列表
	w = testutil.DoRequest(r, http.MethodGet, "/api/v1/projects/proj-1/vehicle-types", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	body = testutil.ParseResponse(w)
	items := body["data"].(map[string]interface{})["items"].([]interface{})
	assert.Len(t, items, 1)

	// 更新不改名
	w = testutil.DoRequest(r, http.MethodPut, "/api/v1/projects/proj-1/vehicle-types/"+id,
		gin.H{"display_name": "重型货车"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	body = testutil.ParseResponse(w)
	data = body["data"].(map[string]interface{})
	assert.Equal(t, "truck", data["name"])
	assert.Equal(t, "重型货车", data["display_name"])

	// 删除
	w = testutil.DoRequest(r, http.MethodDelete, "/api/v1/projects/proj-1/vehicle-types/"+id, nil, token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.DoRequest(r, http.MethodGet, "/api/v1/projects/proj-1/vehicle-types/"+id, nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVehicleTypeValidation(t *testing.T) {
	r, token := setupVehicleTypeRouter(t)

	// 缺少名称
	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/projects/proj-1/vehicle-types",
		gin.H{"display_name": "匿名"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 未认证
	w = testutil.DoRequest(r, http.MethodGet, "/api/v1/projects/proj-1/vehicle-types", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
