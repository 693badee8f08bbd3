package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/qwertyboy0325/etc-all/internal/label/service"
)

// AnnotationHandler 标注处理器
type AnnotationHandler struct {
	svc *service.AnnotationService
}

// NewAnnotationHandler 创建标注处理器
func NewAnnotationHandler(svc *service.AnnotationService) *AnnotationHandler {
	return &AnnotationHandler{svc: svc}
}

// Create 创建标注草稿
// POST /api/v1/projects/:project_id/annotations
func (h *AnnotationHandler) Create(c *gin.Context) {
	var req service.CreateAnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}

	annotation, err := h.svc.Create(c.Request.Context(), c.Param("project_id"), GetUserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, annotation)
}

// Get 标注详情
// GET /api/v1/projects/:project_id/annotations/:id
func (h *AnnotationHandler) Get(c *gin.Context) {
	annotation, err := h.svc.Get(c.Request.Context(), c.Param("project_id"), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, annotation)
}

// ListByTask 任务下全部标注
// GET /api/v1/projects/:project_id/tasks/:id/annotations
func (h *AnnotationHandler) ListByTask(c *gin.Context) {
	annotations, err := h.svc.ListByTask(c.Request.Context(), c.Param("project_id"), c.Param("id"))
	if err != nil {
		InternalError(c, "获取标注列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": annotations})
}

// ListMine 当前用户的标注
// GET /api/v1/projects/:project_id/annotations/mine
func (h *AnnotationHandler) ListMine(c *gin.Context) {
	page, pageSize := GetPagination(c)
	annotations, err := h.svc.ListMine(c.Request.Context(),
		c.Param("project_id"), GetUserID(c), c.Query("status"), pageSize, (page-1)*pageSize)
	if err != nil {
		InternalError(c, "获取标注列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": annotations})
}

// PendingReview 待审核标注列表
// GET /api/v1/projects/:project_id/annotations/pending-review
func (h *AnnotationHandler) PendingReview(c *gin.Context) {
	annotations, err := h.svc.ListPendingReview(c.Request.Context(), c.Param("project_id"))
	if err != nil {
		InternalError(c, "获取待审核列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": annotations})
}

// Update 更新标注内容
// PUT /api/v1/projects/:project_id/annotations/:id
func (h *AnnotationHandler) Update(c *gin.Context) {
	var req service.UpdateAnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}

	annotation, err := h.svc.Update(c.Request.Context(),
		c.Param("project_id"), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, annotation)
}

// Submit 提交标注进入审核
// POST /api/v1/projects/:project_id/annotations/:id/submit
func (h *AnnotationHandler) Submit(c *gin.Context) {
	annotation, err := h.svc.Submit(c.Request.Context(),
		c.Param("project_id"), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, annotation)
}

// Review 审核标注
// POST /api/v1/projects/:project_id/annotations/:id/review
func (h *AnnotationHandler) Review(c *gin.Context) {
	var req service.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}

	review, err := h.svc.Review(c.Request.Context(),
		c.Param("project_id"), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, review)
}

// Delete 删除标注草稿
// DELETE /api/v1/projects/:project_id/annotations/:id
func (h *AnnotationHandler) Delete(c *gin.Context) {
	err := h.svc.Delete(c.Request.Context(), c.Param("project_id"), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"deleted": true})
}
