package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/qwertyboy0325/etc-all/internal/config"
	"go.uber.org/zap"
)

// TrainService 训练子进程服务。训练脚本独立运行，超过配置的
// 时限会被强制结束。
type TrainService struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewTrainService 创建训练服务
func NewTrainService(cfg *config.Config, logger *zap.Logger) *TrainService {
	return &TrainService{cfg: cfg, logger: logger}
}

// TrainOptions 训练参数
type TrainOptions struct {
	DatasetPath string `json:"dataset_path"`
	Model       string `json:"model"`
	Epochs      int    `json:"epochs"`
}

// TrainResult 训练结果
type TrainResult struct {
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
	Output   string        `json:"output"`
}

// Run 同步执行训练脚本，超时返回 ErrTimeout
func (s *TrainService) Run(ctx context.Context, opts *TrainOptions) (*TrainResult, error) {
	script := s.cfg.Export.TrainScript
	if script == "" {
		return nil, fmt.Errorf("%w: 未配置训练脚本", ErrValidation)
	}
	if opts.DatasetPath == "" {
		return nil, fmt.Errorf("%w: 缺少数据集路径", ErrValidation)
	}
	if opts.Epochs <= 0 {
		opts.Epochs = 50
	}

	timeout := s.cfg.Export.TrainTimeout
	if timeout <= 0 {
		timeout = 4 * time.Hour
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"--data", opts.DatasetPath,
		"--epochs", strconv.Itoa(opts.Epochs),
	}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}

	var output bytes.Buffer
	cmd := exec.CommandContext(runCtx, script, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	s.logger.Info("training started",
		zap.String("script", script),
		zap.String("dataset", opts.DatasetPath),
		zap.Duration("timeout", timeout))

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := &TrainResult{
		Duration: duration,
		Output:   output.String(),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return result, fmt.Errorf("%w: 训练超过 %s 被终止", ErrTimeout, timeout)
	}
	if err != nil {
		return result, fmt.Errorf("训练脚本退出异常: %w", err)
	}

	s.logger.Info("training finished", zap.Duration("duration", duration))
	return result, nil
}
