package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/qwertyboy0325/etc-all/internal/label/service"
)

// VehicleTypeHandler 车种标签处理器
type VehicleTypeHandler struct {
	svc *service.VehicleTypeService
}

// NewVehicleTypeHandler 创建车种标签处理器
func NewVehicleTypeHandler(svc *service.VehicleTypeService) *VehicleTypeHandler {
	return &VehicleTypeHandler{svc: svc}
}

// Create 创建标签
// POST /api/v1/projects/:project_id/vehicle-types
func (h *VehicleTypeHandler) Create(c *gin.Context) {
	var req service.CreateVehicleTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}

	vt, err := h.svc.Create(c.Request.Context(), c.Param("project_id"), GetUserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, vt)
}

// Get 标签详情
// GET /api/v1/projects/:project_id/vehicle-types/:id
func (h *VehicleTypeHandler) Get(c *gin.Context) {
	vt, err := h.svc.Get(c.Request.Context(), c.Param("project_id"), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, vt)
}

// List 项目标签列表
// GET /api/v1/projects/:project_id/vehicle-types
func (h *VehicleTypeHandler) List(c *gin.Context) {
	activeOnly := c.Query("active_only") == "true"
	vts, err := h.svc.List(c.Request.Context(), c.Param("project_id"), activeOnly)
	if err != nil {
		InternalError(c, "获取标签列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": vts})
}

// Update 更新标签
// PUT /api/v1/projects/:project_id/vehicle-types/:id
func (h *VehicleTypeHandler) Update(c *gin.Context) {
	var req service.UpdateVehicleTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}

	vt, err := h.svc.Update(c.Request.Context(), c.Param("project_id"), c.Param("id"), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, vt)
}

// Delete 删除标签
// DELETE /api/v1/projects/:project_id/vehicle-types/:id
func (h *VehicleTypeHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("project_id"), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"deleted": true})
}
