package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/qwertyboy0325/etc-all/internal/label/jobs"
	"github.com/qwertyboy0325/etc-all/internal/label/repository"
	"github.com/qwertyboy0325/etc-all/internal/label/service"
)

// JobHandler 后台作业处理器：投递导出/导入/训练作业并查询进度
type JobHandler struct {
	jobs     *repository.JobRepository
	enqueuer *jobs.Enqueuer
}

// NewJobHandler 创建作业处理器
func NewJobHandler(jobRepo *repository.JobRepository, enqueuer *jobs.Enqueuer) *JobHandler {
	return &JobHandler{jobs: jobRepo, enqueuer: enqueuer}
}

// Export 投递数据集导出作业
// POST /api/v1/projects/:project_id/export
func (h *JobHandler) Export(c *gin.Context) {
	job, err := h.enqueuer.EnqueueExport(c.Request.Context(), c.Param("project_id"), GetUserID(c))
	if err != nil {
		InternalError(c, "投递导出作业失败: "+err.Error())
		return
	}
	Accepted(c, job)
}

// Import 投递目录导入作业
// POST /api/v1/projects/:project_id/import
func (h *JobHandler) Import(c *gin.Context) {
	var req struct {
		SourcePath  string                   `json:"source_path" binding:"required"`
		Recursive   bool                     `json:"recursive"`
		CreateTasks bool                     `json:"create_tasks"`
		TaskOptions service.BatchTaskOptions `json:"task_options"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}

	payload := &jobs.ImportPayload{
		ProjectID:   c.Param("project_id"),
		SourcePath:  req.SourcePath,
		Recursive:   req.Recursive,
		CreateTasks: req.CreateTasks,
		TaskOptions: req.TaskOptions,
	}
	job, err := h.enqueuer.EnqueueImport(c.Request.Context(), payload, GetUserID(c))
	if err != nil {
		InternalError(c, "投递导入作业失败: "+err.Error())
		return
	}
	Accepted(c, job)
}

// Train 投递模型训练作业
// POST /api/v1/projects/:project_id/train
func (h *JobHandler) Train(c *gin.Context) {
	var req struct {
		DatasetPath string `json:"dataset_path" binding:"required"`
		Model       string `json:"model"`
		Epochs      int    `json:"epochs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}

	payload := &jobs.TrainPayload{
		ProjectID:   c.Param("project_id"),
		DatasetPath: req.DatasetPath,
		Model:       req.Model,
		Epochs:      req.Epochs,
	}
	job, err := h.enqueuer.EnqueueTrain(c.Request.Context(), payload, GetUserID(c))
	if err != nil {
		InternalError(c, "投递训练作业失败: "+err.Error())
		return
	}
	Accepted(c, job)
}

// Get 查询作业状态
// GET /api/v1/projects/:project_id/jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.jobs.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == repository.ErrNotFound {
			NotFound(c, "作业不存在")
			return
		}
		InternalError(c, "查询作业失败: "+err.Error())
		return
	}
	if job.ProjectID != c.Param("project_id") {
		NotFound(c, "作业不存在")
		return
	}
	Success(c, job)
}

// List 项目作业历史
// GET /api/v1/projects/:project_id/jobs
func (h *JobHandler) List(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}

	items, err := h.jobs.ListByProject(c.Request.Context(), c.Param("project_id"), limit)
	if err != nil {
		InternalError(c, "获取作业列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": items})
}
