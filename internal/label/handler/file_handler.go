package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qwertyboy0325/etc-all/internal/label/service"
)

// FileHandler 点云文件处理器
type FileHandler struct {
	svc *service.UploadService
}

// NewFileHandler 创建文件处理器
func NewFileHandler(svc *service.UploadService) *FileHandler {
	return &FileHandler{svc: svc}
}

// Upload 上传点云文件（multipart，支持多文件）
// POST /api/v1/projects/:project_id/files
func (h *FileHandler) Upload(c *gin.Context) {
	projectID := c.Param("project_id")
	userID := GetUserID(c)

	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, "无效的 multipart 表单: "+err.Error())
		return
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		BadRequest(c, "缺少上传文件")
		return
	}

	names := make([]string, 0, len(fileHeaders))
	contents := make([][]byte, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		content, err := readMultipartFile(fh)
		if err != nil {
			BadRequest(c, fmt.Sprintf("读取文件 %s 失败: %v", fh.Filename, err))
			return
		}
		names = append(names, fh.Filename)
		contents = append(contents, content)
	}

	if len(names) == 1 {
		file, err := h.svc.Upload(c.Request.Context(), projectID, userID, names[0], contents[0])
		if err != nil {
			HandleError(c, err)
			return
		}
		Created(c, file)
		return
	}

	result, err := h.svc.BatchUpload(c.Request.Context(), projectID, userID, names, contents)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, result)
}

// UploadArchive 上传 zip 压缩包批量导入
// POST /api/v1/projects/:project_id/files/archive
func (h *FileHandler) UploadArchive(c *gin.Context) {
	projectID := c.Param("project_id")
	userID := GetUserID(c)

	fh, err := c.FormFile("archive")
	if err != nil {
		BadRequest(c, "缺少压缩包文件")
		return
	}
	content, err := readMultipartFile(fh)
	if err != nil {
		BadRequest(c, "读取压缩包失败: "+err.Error())
		return
	}

	result, err := h.svc.UploadArchive(c.Request.Context(), projectID, userID, fh.Filename, content)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, result)
}

// List 项目文件列表
// GET /api/v1/projects/:project_id/files
func (h *FileHandler) List(c *gin.Context) {
	projectID := c.Param("project_id")
	page, pageSize := GetPagination(c)
	status := c.Query("status")

	files, total, err := h.svc.List(c.Request.Context(), projectID, page, pageSize, status)
	if err != nil {
		InternalError(c, "获取文件列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"items":     files,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Get 文件详情
// GET /api/v1/projects/:project_id/files/:id
func (h *FileHandler) Get(c *gin.Context) {
	file, err := h.svc.Get(c.Request.Context(), c.Param("project_id"), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, file)
}

// Download 下载文件内容
// GET /api/v1/projects/:project_id/files/:id/download
func (h *FileHandler) Download(c *gin.Context) {
	rc, file, err := h.svc.Download(c.Request.Context(), c.Param("project_id"), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.OriginalFilename))
	c.Header("Content-Type", file.MimeType)
	c.DataFromReader(200, file.FileSize, file.MimeType, rc, nil)
}

// DownloadURL 生成临时下载链接
// GET /api/v1/projects/:project_id/files/:id/download-url
func (h *FileHandler) DownloadURL(c *gin.Context) {
	expiry := time.Hour
	if raw := c.Query("expiry"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			expiry = d
		}
	}

	url, err := h.svc.DownloadURL(c.Request.Context(), c.Param("project_id"), c.Param("id"), expiry)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"url": url, "expires_in": expiry.Seconds()})
}

// Delete 软删除文件
// DELETE /api/v1/projects/:project_id/files/:id
func (h *FileHandler) Delete(c *gin.Context) {
	if err := h.svc.SoftDelete(c.Request.Context(), c.Param("project_id"), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"deleted": true})
}

// Reprocess 重新解析文件元数据
// POST /api/v1/projects/:project_id/files/:id/reprocess
func (h *FileHandler) Reprocess(c *gin.Context) {
	file, err := h.svc.Reprocess(c.Request.Context(), c.Param("project_id"), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, file)
}

// Stats 项目文件统计
// GET /api/v1/projects/:project_id/files/stats
func (h *FileHandler) Stats(c *gin.Context) {
	stats, err := h.svc.ProjectStats(c.Request.Context(), c.Param("project_id"))
	if err != nil {
		InternalError(c, "获取文件统计失败: "+err.Error())
		return
	}
	Success(c, stats)
}

func readMultipartFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
