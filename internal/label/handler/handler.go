package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/qwertyboy0325/etc-all/internal/label/jobs"
	"github.com/qwertyboy0325/etc-all/internal/label/repository"
	"github.com/qwertyboy0325/etc-all/internal/label/service"
)

// Handlers 处理器集合
type Handlers struct {
	File        *FileHandler
	Annotation  *AnnotationHandler
	Task        *TaskHandler
	VehicleType *VehicleTypeHandler
	Job         *JobHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, repos *repository.Repositories, enqueuer *jobs.Enqueuer) *Handlers {
	return &Handlers{
		File:        NewFileHandler(svc.Upload),
		Annotation:  NewAnnotationHandler(svc.Annotation),
		Task:        NewTaskHandler(svc.Task),
		VehicleType: NewVehicleTypeHandler(svc.VehicleType),
		Job:         NewJobHandler(repos.Job, enqueuer),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Accepted 已受理响应（异步作业）
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(202, Response{
		Code:    0,
		Message: "accepted",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// Forbidden 禁止访问响应
func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// HandleError 按业务错误类型映射 HTTP 状态码
func HandleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		BadRequest(c, err.Error())
	case errors.Is(err, service.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, service.ErrPermission):
		Forbidden(c, err.Error())
	case errors.Is(err, service.ErrConflict):
		Error(c, 40900, err.Error())
	case errors.Is(err, service.ErrGone):
		Error(c, 41000, err.Error())
	case errors.Is(err, service.ErrStorage), errors.Is(err, service.ErrAnalysis):
		Error(c, 50200, err.Error())
	case errors.Is(err, service.ErrTimeout):
		Error(c, 50400, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}
