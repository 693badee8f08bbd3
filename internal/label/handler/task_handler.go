package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/qwertyboy0325/etc-all/internal/label/service"
)

// TaskHandler 任务处理器
type TaskHandler struct {
	svc *service.TaskService
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(svc *service.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// CreateBatch 批量创建任务
// POST /api/v1/projects/:project_id/tasks/batch
func (h *TaskHandler) CreateBatch(c *gin.Context) {
	var req service.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}

	tasks, err := h.svc.CreateBatch(c.Request.Context(), c.Param("project_id"), GetUserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, gin.H{"items": tasks, "count": len(tasks)})
}

// Get 任务详情
// GET /api/v1/projects/:project_id/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.svc.Get(c.Request.Context(), c.Param("project_id"), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, task)
}

// List 项目任务列表
// GET /api/v1/projects/:project_id/tasks
func (h *TaskHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]interface{}{
		"status":      c.Query("status"),
		"assigned_to": c.Query("assigned_to"),
		"priority":    c.Query("priority"),
	}

	tasks, total, err := h.svc.List(c.Request.Context(), c.Param("project_id"), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取任务列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"items":     tasks,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ListMine 指派给当前用户的任务
// GET /api/v1/tasks/mine
func (h *TaskHandler) ListMine(c *gin.Context) {
	tasks, err := h.svc.ListMine(c.Request.Context(), GetUserID(c))
	if err != nil {
		InternalError(c, "获取任务列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": tasks})
}

// Assign 指派任务
// POST /api/v1/projects/:project_id/tasks/:id/assign
func (h *TaskHandler) Assign(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}

	task, err := h.svc.Assign(c.Request.Context(), c.Param("project_id"), c.Param("id"), req.UserID)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, task)
}
