package service_test

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qwertyboy0325/etc-all/internal/config"
	"github.com/qwertyboy0325/etc-all/internal/label/entity"
	"github.com/qwertyboy0325/etc-all/internal/label/npz"
	"github.com/qwertyboy0325/etc-all/internal/label/repository"
	"github.com/qwertyboy0325/etc-all/internal/label/service"
	"github.com/qwertyboy0325/etc-all/internal/label/storage"
	"github.com/qwertyboy0325/etc-all/internal/label/testutil"
)

func testConfig() *config.Config {
	return &config.Config{
		Upload: config.UploadConfig{
			MaxSizeMB:         10,
			AllowedExtensions: []string{".npy", ".npz", ".ply", ".pcd"},
		},
	}
}

func setupUpload(t *testing.T) (*service.UploadService, *repository.Repositories, *storage.MemoryStore) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	store := storage.NewMemoryStore()
	svc := service.NewUploadService(repos, store, nil, testConfig(), zap.NewNop())

	testutil.SeedUser(t, db, "user-1", "Uploader")
	testutil.SeedProject(t, db, "proj-1", "Test Project", "user-1")
	return svc, repos, store
}

func validNPZ(t *testing.T) []byte {
	t.Helper()
	content, err := npz.WritePts(3, 3, []float64{
		0, 0, 0,
		1, 2, 3,
		-1, -2, -3,
	})
	require.NoError(t, err)
	return content
}

func TestUploadAndAnalyze(t *testing.T) {
	svc, _, store := setupUpload(t)
	ctx := context.Background()
	content := validNPZ(t)

	file, err := svc.Upload(ctx, "proj-1", "user-1", "scene_001.npz", content)
	require.NoError(t, err)

	assert.Equal(t, entity.FileStatusProcessed, file.Status)
	assert.Equal(t, "scene_001.npz", file.OriginalFilename)
	assert.Equal(t, ".npz", file.FileExtension)
	assert.Equal(t, int64(len(content)), file.FileSize)

	sum := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(sum[:]), file.Checksum)

	require.NotNil(t, file.PointCount)
	assert.Equal(t, 3, *file.PointCount)
	require.NotNil(t, file.Dimensions)
	assert.Equal(t, 3, *file.Dimensions)
	require.NotNil(t, file.BoundingBox)
	assert.Equal(t, -1.0, file.BoundingBox.MinX)
	assert.Equal(t, 3.0, file.BoundingBox.MaxZ)

	assert.NotNil(t, file.UploadStartedAt)
	assert.NotNil(t, file.UploadEndedAt)
	assert.Equal(t, 1, store.Len())
}

func TestUploadRejectsUnknownExtension(t *testing.T) {
	svc, _, store := setupUpload(t)

	_, err := svc.Upload(context.Background(), "proj-1", "user-1", "notes.txt", []byte("hi"))
	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Equal(t, 0, store.Len())
}

func TestUploadRejectsEmptyContent(t *testing.T) {
	svc, _, _ := setupUpload(t)

	_, err := svc.Upload(context.Background(), "proj-1", "user-1", "empty.npz", nil)
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestUploadAnalysisFailureKeepsFailedRecord(t *testing.T) {
	svc, repos, store := setupUpload(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "proj-1", "user-1", "broken.npz", []byte("not a zip at all"))
	assert.ErrorIs(t, err, service.ErrAnalysis)

	// 记录留痕为 failed，对象已清理
	files, total, listErr := repos.PointCloud.ListByProject(ctx, "proj-1", 1, 10, "")
	require.NoError(t, listErr)
	require.Equal(t, int64(1), total)
	assert.Equal(t, entity.FileStatusFailed, files[0].Status)
	assert.NotEmpty(t, files[0].ErrorMessage)
	assert.Equal(t, 0, store.Len())
}

func TestUploadDuplicateContentAllowed(t *testing.T) {
	svc, _, _ := setupUpload(t)
	ctx := context.Background()
	content := validNPZ(t)

	first, err := svc.Upload(ctx, "proj-1", "user-1", "dup.npz", content)
	require.NoError(t, err)
	second, err := svc.Upload(ctx, "proj-1", "user-1", "dup.npz", content)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Checksum, second.Checksum)
	assert.NotEqual(t, first.FilePath, second.FilePath)
}

func TestBatchUploadPartialFailure(t *testing.T) {
	svc, _, _ := setupUpload(t)
	ctx := context.Background()

	names := []string{"a.npz", "b.npz", "c.txt", "d.npz", "e.npz"}
	contents := make([][]byte, len(names))
	for i := range contents {
		contents[i] = validNPZ(t)
	}

	result, err := svc.BatchUpload(ctx, "proj-1", "user-1", names, contents)
	require.NoError(t, err)
	assert.Len(t, result.Uploaded, 4)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "c.txt")
}

func TestBatchUploadAllFailed(t *testing.T) {
	svc, _, _ := setupUpload(t)

	_, err := svc.BatchUpload(context.Background(), "proj-1", "user-1",
		[]string{"a.txt", "b.exe"}, [][]byte{[]byte("x"), []byte("y")})
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestSoftDeleteThenReadGone(t *testing.T) {
	svc, _, store := setupUpload(t)
	ctx := context.Background()

	file, err := svc.Upload(ctx, "proj-1", "user-1", "gone.npz", validNPZ(t))
	require.NoError(t, err)

	require.NoError(t, svc.SoftDelete(ctx, "proj-1", file.ID))
	assert.Equal(t, 0, store.Len())

	// 记录保留，内容访问返回 gone
	kept, err := svc.Get(ctx, "proj-1", file.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.FileStatusDeleted, kept.Status)

	_, _, err = svc.Download(ctx, "proj-1", file.ID)
	assert.ErrorIs(t, err, service.ErrGone)

	err = svc.SoftDelete(ctx, "proj-1", file.ID)
	assert.ErrorIs(t, err, service.ErrGone)
}

func TestUploadArchiveFiltersMembers(t *testing.T) {
	svc, _, _ := setupUpload(t)
	ctx := context.Background()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("scene_a.npz")
	w.Write(validNPZ(t))
	w, _ = zw.Create("__MACOSX/scene_a.npz")
	w.Write([]byte("metadata junk"))
	w, _ = zw.Create(".hidden.npz")
	w.Write([]byte("junk"))
	w, _ = zw.Create("readme.txt")
	w.Write([]byte("notes"))
	require.NoError(t, zw.Close())

	result, err := svc.UploadArchive(ctx, "proj-1", "user-1", "batch.zip", buf.Bytes())
	require.NoError(t, err)
	assert.Len(t, result.Uploaded, 1)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "scene_a.npz", result.Uploaded[0].OriginalFilename)
}

func TestUploadArchiveNoUsableMembers(t *testing.T) {
	svc, _, _ := setupUpload(t)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("readme.txt")
	w.Write([]byte("notes"))
	require.NoError(t, zw.Close())

	_, err := svc.UploadArchive(context.Background(), "proj-1", "user-1", "empty.zip", buf.Bytes())
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestProjectStats(t *testing.T) {
	svc, _, _ := setupUpload(t)
	ctx := context.Background()

	a, err := svc.Upload(ctx, "proj-1", "user-1", "a.npz", validNPZ(t))
	require.NoError(t, err)
	_, err = svc.Upload(ctx, "proj-1", "user-1", "b.npz", validNPZ(t))
	require.NoError(t, err)
	require.NoError(t, svc.SoftDelete(ctx, "proj-1", a.ID))

	stats, err := svc.ProjectStats(ctx, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalFiles)
	assert.Equal(t, int64(1), stats.StatusCounts[entity.FileStatusProcessed])
	assert.Equal(t, int64(1), stats.StatusCounts[entity.FileStatusDeleted])
}

func TestReprocessRestoresMetadata(t *testing.T) {
	svc, repos, _ := setupUpload(t)
	ctx := context.Background()

	file, err := svc.Upload(ctx, "proj-1", "user-1", "re.npz", validNPZ(t))
	require.NoError(t, err)

	// 清掉元数据模拟旧文件
	file.PointCount = nil
	file.Dimensions = nil
	file.BoundingBox = nil
	require.NoError(t, repos.PointCloud.Update(ctx, file))

	redone, err := svc.Reprocess(ctx, "proj-1", file.ID)
	require.NoError(t, err)
	require.NotNil(t, redone.PointCount)
	assert.Equal(t, 3, *redone.PointCount)
	assert.Equal(t, entity.FileStatusProcessed, redone.Status)
}
