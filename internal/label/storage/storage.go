// Package storage 对象存储访问层。关系库是状态的唯一事实来源，
// 对象存储只存内容，不存状态。
package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStore 对象存储接口
type ObjectStore interface {
	// Put 写入对象
	Put(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	// Get 读取对象
	Get(ctx context.Context, objectName string) (io.ReadCloser, error)
	// Remove 删除对象
	Remove(ctx context.Context, objectName string) error
	// PresignedGetURL 生成临时下载链接
	PresignedGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}
