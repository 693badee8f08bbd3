package service

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/qwertyboy0325/etc-all/internal/label/entity"
	"github.com/qwertyboy0325/etc-all/internal/label/npz"
	"github.com/qwertyboy0325/etc-all/internal/label/repository"
	"github.com/qwertyboy0325/etc-all/internal/label/storage"
	"go.uber.org/zap"
)

// ExportService 训练数据集导出服务。
// 把项目内全部已提交标注按标签分目录导出，train/test 划分只依赖
// 原始文件名的哈希，同一文件在任何一次导出中都落在同一侧。
type ExportService struct {
	annotations *repository.AnnotationRepository
	store       storage.ObjectStore
	logger      *zap.Logger
}

// NewExportService 创建导出服务
func NewExportService(repos *repository.Repositories, store storage.ObjectStore, logger *zap.Logger) *ExportService {
	return &ExportService{
		annotations: repos.Annotation,
		store:       store,
		logger:      logger,
	}
}

// ExportResult 导出结果
type ExportResult struct {
	Status    string   `json:"status"`
	Exported  int      `json:"exported"`
	ExportDir string   `json:"export_dir"`
	Errors    []string `json:"errors,omitempty"`
}

// SplitTrain 按原始文件名决定 train/test 归属：MD5 摘要按大整数取模，
// 余数 0-89 进训练集。同名文件永远落在同一侧。
func SplitTrain(originalFilename string) bool {
	sum := md5.Sum([]byte(originalFilename))
	// 等价于把摘要视作大整数后 mod 100，逐字节折算避免大数运算
	v := 0
	for _, b := range sum {
		v = (v*256 + int(b)) % 100
	}
	return v < 90
}

// Slugify 把标签名退化成目录安全的形式：小写，空白与分隔符归一为
// 下划线，去掉其余符号
func Slugify(name string) string {
	var sb strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			lastUnderscore = false
		case unicode.IsSpace(r) || r == '-' || r == '/' || r == '_':
			if !lastUnderscore && sb.Len() > 0 {
				sb.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	slug := strings.TrimRight(sb.String(), "_")
	if slug == "" {
		slug = "unknown"
	}
	return slug
}

// Export 导出项目的训练数据集到本地目录。
// 目录结构 {label}/{train|test}/{label}_{00000}.{ext}，序号按
// (标签, 划分) 独立从 0 递增。npz 文件重写为仅含 pts 成员，
// 缺少点阵列的文件原样拷贝并记录告警。
func (s *ExportService) Export(ctx context.Context, projectID, basePath string) (*ExportResult, error) {
	annotations, err := s.annotations.ListSubmittedByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("查找已提交标注失败: %w", err)
	}

	exportDir := filepath.Join(basePath, "exports",
		fmt.Sprintf("%s_%s", projectID, time.Now().Format("20060102_150405")))

	result := &ExportResult{ExportDir: exportDir}
	if len(annotations) == 0 {
		result.Status = entity.JobStatusCompleted
		return result, nil
	}

	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建导出目录失败: %w", err)
	}

	// (标签, 划分) 各自独立计数
	counters := make(map[string]int)

	for _, ann := range annotations {
		if ann.VehicleType == nil || ann.File == nil {
			continue
		}
		if ann.File.Status == entity.FileStatusDeleted {
			continue
		}

		label := Slugify(ann.VehicleType.Name)
		split := "test"
		if SplitTrain(ann.File.OriginalFilename) {
			split = "train"
		}

		targetDir := filepath.Join(exportDir, label, split)
		if err := os.MkdirAll(targetDir, 0o755); err != nil {
			return nil, fmt.Errorf("创建导出目录失败: %w", err)
		}

		content, err := s.fetch(ctx, ann.File.FilePath)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: %v", ann.File.OriginalFilename, err))
			continue
		}

		// npz 重写为仅含 pts 的容器，失败则原样保留
		if ann.File.FileExtension == ".npz" {
			cleaned, err := npz.ExtractPts(content)
			if err != nil {
				s.logger.Warn("export keeps original npz",
					zap.String("file", ann.File.OriginalFilename),
					zap.Error(err))
			} else {
				content = cleaned
			}
		}

		counterKey := label + "/" + split
		seq := counters[counterKey]

		targetName := fmt.Sprintf("%s_%05d%s", label, seq, ann.File.FileExtension)
		if err := os.WriteFile(filepath.Join(targetDir, targetName), content, 0o644); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: write: %v", ann.File.OriginalFilename, err))
			continue
		}
		counters[counterKey] = seq + 1
		result.Exported++
	}

	switch {
	case len(result.Errors) == 0:
		result.Status = entity.JobStatusCompleted
	case result.Exported > 0:
		result.Status = entity.JobStatusPartial
	default:
		result.Status = entity.JobStatusFailed
	}
	return result, nil
}

func (s *ExportService) fetch(ctx context.Context, objectName string) ([]byte, error) {
	rc, err := s.store.Get(ctx, objectName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return content, nil
}
