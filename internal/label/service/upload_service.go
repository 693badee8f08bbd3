package service

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qwertyboy0325/etc-all/internal/config"
	"github.com/qwertyboy0325/etc-all/internal/label/entity"
	"github.com/qwertyboy0325/etc-all/internal/label/npz"
	"github.com/qwertyboy0325/etc-all/internal/label/repository"
	"github.com/qwertyboy0325/etc-all/internal/label/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// UploadService 点云文件上传与生命周期服务
type UploadService struct {
	files    *repository.PointCloudRepository
	projects *repository.ProjectRepository
	store    storage.ObjectStore
	rdb      *redis.Client
	cfg      *config.Config
	logger   *zap.Logger
	allowed  map[string]bool
}

// NewUploadService 创建上传服务
func NewUploadService(repos *repository.Repositories, store storage.ObjectStore, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *UploadService {
	allowed := make(map[string]bool, len(cfg.Upload.AllowedExtensions))
	for _, ext := range cfg.Upload.AllowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}
	return &UploadService{
		files:    repos.PointCloud,
		projects: repos.Project,
		store:    store,
		rdb:      rdb,
		cfg:      cfg,
		logger:   logger,
		allowed:  allowed,
	}
}

// UploadResult 批量上传结果
type UploadResult struct {
	Uploaded []entity.PointCloudFile `json:"uploaded"`
	Errors   []string                `json:"errors"`
}

// FileStats 项目文件统计
type FileStats struct {
	TotalFiles   int64            `json:"total_files"`
	TotalSize    int64            `json:"total_size"`
	StatusCounts map[string]int64 `json:"status_counts"`
}

// Upload 上传单个点云文件。先落库（uploading）再写对象存储，
// 任何一步失败都会清理对象并把记录置为 failed，错误信息保留在记录上。
func (s *UploadService) Upload(ctx context.Context, projectID, uploadedBy, filename string, content []byte) (*entity.PointCloudFile, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !s.allowed[ext] {
		return nil, fmt.Errorf("%w: 不支持的文件类型 %q", ErrValidation, ext)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: 文件内容为空", ErrValidation)
	}
	if maxSize := s.cfg.Upload.MaxSizeMB * 1024 * 1024; int64(len(content)) > maxSize {
		return nil, fmt.Errorf("%w: 文件超过大小上限 %dMB", ErrValidation, s.cfg.Upload.MaxSizeMB)
	}

	sum := sha256.Sum256(content)
	checksum := hex.EncodeToString(sum[:])

	storedName := uuid.New().String() + ext
	now := time.Now()
	file := &entity.PointCloudFile{
		ID:               uuid.New().String()[:32],
		ProjectID:        projectID,
		Filename:         storedName,
		OriginalFilename: filepath.Base(filename),
		FilePath:         fmt.Sprintf("projects/%s/pointclouds/%s", projectID, storedName),
		FileSize:         int64(len(content)),
		FileExtension:    ext,
		MimeType:         "application/octet-stream",
		Checksum:         checksum,
		Status:           entity.FileStatusUploading,
		UploadedBy:       uploadedBy,
		UploadStartedAt:  &now,
	}

	// 先建记录再写对象，失败的上传也要留痕
	if err := s.files.Create(ctx, file); err != nil {
		return nil, fmt.Errorf("创建文件记录失败: %w", err)
	}

	if err := s.store.Put(ctx, file.FilePath, bytes.NewReader(content), file.FileSize, file.MimeType); err != nil {
		s.markFailed(ctx, file, "object write failed: "+err.Error())
		return nil, fmt.Errorf("%w: 写入对象存储失败: %v", ErrStorage, err)
	}
	file.MarkUploaded()

	analysis, err := npz.Analyze(content, ext)
	if err != nil {
		s.removeObject(ctx, file.FilePath)
		s.markFailed(ctx, file, "analysis failed: "+err.Error())
		return nil, fmt.Errorf("%w: 解析点云失败: %v", ErrAnalysis, err)
	}
	applyAnalysis(file, analysis)
	file.MarkProcessed()

	if err := s.files.Update(ctx, file); err != nil {
		return nil, fmt.Errorf("更新文件记录失败: %w", err)
	}

	s.invalidateStats(ctx, projectID)

	// 读后写，返回数据库里的最终状态
	return s.files.FindByID(ctx, file.ID)
}

// BatchUpload 批量上传，逐个处理并收集失败原因
func (s *UploadService) BatchUpload(ctx context.Context, projectID, uploadedBy string, names []string, contents [][]byte) (*UploadResult, error) {
	if len(names) != len(contents) {
		return nil, fmt.Errorf("%w: 文件名与内容数量不一致", ErrValidation)
	}

	result := &UploadResult{}
	for i, name := range names {
		file, err := s.Upload(ctx, projectID, uploadedBy, name, contents[i])
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		result.Uploaded = append(result.Uploaded, *file)
	}

	if len(result.Uploaded) == 0 && len(result.Errors) > 0 {
		return result, fmt.Errorf("%w: 全部文件上传失败", ErrValidation)
	}
	return result, nil
}

// UploadArchive 上传 zip 压缩包，逐个展开其中的点云文件。
// 跳过目录、隐藏文件和 __MACOSX 元数据。
func (s *UploadService) UploadArchive(ctx context.Context, projectID, uploadedBy, archiveName string, content []byte) (*UploadResult, error) {
	if !strings.EqualFold(filepath.Ext(archiveName), ".zip") {
		return nil, fmt.Errorf("%w: 仅支持 zip 压缩包", ErrValidation)
	}

	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: 压缩包损坏: %v", ErrValidation, err)
	}

	var names []string
	var contents [][]byte
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		base := filepath.Base(f.Name)
		if strings.HasPrefix(f.Name, "__MACOSX/") || strings.HasPrefix(base, ".") {
			continue
		}
		if !s.allowed[strings.ToLower(filepath.Ext(base))] {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("读取压缩包成员 %s 失败: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("读取压缩包成员 %s 失败: %w", f.Name, err)
		}
		names = append(names, base)
		contents = append(contents, data)
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("%w: 压缩包中没有可用的点云文件", ErrValidation)
	}
	return s.BatchUpload(ctx, projectID, uploadedBy, names, contents)
}

// ImportLocalFile 从本地磁盘导入单个文件（目录导入作业使用）
func (s *UploadService) ImportLocalFile(ctx context.Context, projectID, uploadedBy, path string) (*entity.PointCloudFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取本地文件失败: %w", err)
	}
	return s.Upload(ctx, projectID, uploadedBy, filepath.Base(path), content)
}

// Get 获取文件详情
func (s *UploadService) Get(ctx context.Context, projectID, fileID string) (*entity.PointCloudFile, error) {
	return s.findInProject(ctx, projectID, fileID)
}

// List 项目文件列表
func (s *UploadService) List(ctx context.Context, projectID string, page, pageSize int, status string) ([]entity.PointCloudFile, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}
	return s.files.ListByProject(ctx, projectID, page, pageSize, status)
}

// Download 下载文件内容。已删除的文件返回 ErrGone。
func (s *UploadService) Download(ctx context.Context, projectID, fileID string) (io.ReadCloser, *entity.PointCloudFile, error) {
	file, err := s.findInProject(ctx, projectID, fileID)
	if err != nil {
		return nil, nil, err
	}
	if file.Status == entity.FileStatusDeleted {
		return nil, nil, fmt.Errorf("%w: 文件已删除", ErrGone)
	}
	rc, err := s.store.Get(ctx, file.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: 读取对象存储失败: %v", ErrStorage, err)
	}
	return rc, file, nil
}

// DownloadURL 生成临时下载链接
func (s *UploadService) DownloadURL(ctx context.Context, projectID, fileID string, expiry time.Duration) (string, error) {
	file, err := s.findInProject(ctx, projectID, fileID)
	if err != nil {
		return "", err
	}
	if file.Status == entity.FileStatusDeleted {
		return "", fmt.Errorf("%w: 文件已删除", ErrGone)
	}
	if expiry <= 0 {
		expiry = time.Hour
	}
	url, err := s.store.PresignedGetURL(ctx, file.FilePath, expiry)
	if err != nil {
		return "", fmt.Errorf("%w: 生成下载链接失败: %v", ErrStorage, err)
	}
	return url, nil
}

// SoftDelete 软删除文件：移除对象，数据库记录保留供审计
func (s *UploadService) SoftDelete(ctx context.Context, projectID, fileID string) error {
	file, err := s.findInProject(ctx, projectID, fileID)
	if err != nil {
		return err
	}
	if file.Status == entity.FileStatusDeleted {
		return fmt.Errorf("%w: 文件已删除", ErrGone)
	}

	if err := s.store.Remove(ctx, file.FilePath); err != nil {
		return fmt.Errorf("%w: 删除对象失败: %v", ErrStorage, err)
	}

	file.MarkDeleted()
	if err := s.files.Update(ctx, file); err != nil {
		return fmt.Errorf("更新文件记录失败: %w", err)
	}
	s.invalidateStats(ctx, projectID)
	return nil
}

// Reprocess 重新解析文件元数据（解析逻辑升级后补算旧文件）
func (s *UploadService) Reprocess(ctx context.Context, projectID, fileID string) (*entity.PointCloudFile, error) {
	file, err := s.findInProject(ctx, projectID, fileID)
	if err != nil {
		return nil, err
	}
	if file.Status == entity.FileStatusDeleted {
		return nil, fmt.Errorf("%w: 文件已删除", ErrGone)
	}

	rc, err := s.store.Get(ctx, file.FilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取对象存储失败: %v", ErrStorage, err)
	}
	content, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: 读取对象存储失败: %v", ErrStorage, err)
	}

	file.Status = entity.FileStatusProcessing
	if err := s.files.Update(ctx, file); err != nil {
		return nil, fmt.Errorf("更新文件记录失败: %w", err)
	}

	analysis, err := npz.Analyze(content, file.FileExtension)
	if err != nil {
		s.markFailed(ctx, file, "analysis failed: "+err.Error())
		return nil, fmt.Errorf("%w: 解析点云失败: %v", ErrAnalysis, err)
	}
	applyAnalysis(file, analysis)
	file.ErrorMessage = ""
	file.MarkProcessed()
	if err := s.files.Update(ctx, file); err != nil {
		return nil, fmt.Errorf("更新文件记录失败: %w", err)
	}
	return s.files.FindByID(ctx, file.ID)
}

// ProjectStats 项目文件统计，Redis 缓存 30 秒
func (s *UploadService) ProjectStats(ctx context.Context, projectID string) (*FileStats, error) {
	cacheKey := "label:filestats:" + projectID
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
			var stats FileStats
			if json.Unmarshal(cached, &stats) == nil {
				return &stats, nil
			}
		}
	}

	counts, totalBytes, err := s.files.StatusCounts(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("统计项目文件失败: %w", err)
	}
	stats := &FileStats{
		TotalSize:    totalBytes,
		StatusCounts: counts,
	}
	for status, n := range counts {
		if status != entity.FileStatusDeleted {
			stats.TotalFiles += n
		}
	}

	if s.rdb != nil {
		if data, err := json.Marshal(stats); err == nil {
			s.rdb.Set(ctx, cacheKey, data, 30*time.Second)
		}
	}
	return stats, nil
}

// applyAnalysis 把解析出的结构元数据写回记录，网格类格式无元数据
func applyAnalysis(file *entity.PointCloudFile, analysis *npz.Analysis) {
	if analysis == nil {
		return
	}
	count := analysis.PointCount
	dims := analysis.Dimensions
	file.PointCount = &count
	file.Dimensions = &dims
	file.BoundingBox = &entity.BoundingBox{
		MinX: analysis.BoundingBox.MinX,
		MaxX: analysis.BoundingBox.MaxX,
		MinY: analysis.BoundingBox.MinY,
		MaxY: analysis.BoundingBox.MaxY,
		MinZ: analysis.BoundingBox.MinZ,
		MaxZ: analysis.BoundingBox.MaxZ,
	}
}

func (s *UploadService) findInProject(ctx context.Context, projectID, fileID string) (*entity.PointCloudFile, error) {
	file, err := s.files.FindByID(ctx, fileID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, fmt.Errorf("%w: 文件不存在", ErrNotFound)
		}
		return nil, err
	}
	if file.ProjectID != projectID {
		return nil, fmt.Errorf("%w: 文件不存在", ErrNotFound)
	}
	return file, nil
}

func (s *UploadService) markFailed(ctx context.Context, file *entity.PointCloudFile, msg string) {
	file.MarkFailed(msg)
	if err := s.files.Update(ctx, file); err != nil {
		s.logger.Error("mark file failed",
			zap.String("file_id", file.ID),
			zap.Error(err))
	}
}

func (s *UploadService) removeObject(ctx context.Context, objectName string) {
	if err := s.store.Remove(ctx, objectName); err != nil {
		s.logger.Warn("remove orphan object",
			zap.String("object", objectName),
			zap.Error(err))
	}
}

func (s *UploadService) invalidateStats(ctx context.Context, projectID string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, "label:filestats:"+projectID).Err(); err != nil && err != redis.Nil {
		s.logger.Warn("invalidate file stats cache",
			zap.String("project_id", projectID),
			zap.Error(err))
	}
}
