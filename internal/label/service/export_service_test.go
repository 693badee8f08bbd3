package service_test

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qwertyboy0325/etc-all/internal/label/entity"
	"github.com/qwertyboy0325/etc-all/internal/label/npz"
	"github.com/qwertyboy0325/etc-all/internal/label/repository"
	"github.com/qwertyboy0325/etc-all/internal/label/service"
	"github.com/qwertyboy0325/etc-all/internal/label/storage"
	"github.com/qwertyboy0325/etc-all/internal/label/testutil"
)

type exportEnv struct {
	db    *gorm.DB
	store *storage.MemoryStore
	svc   *service.ExportService
}

func setupExport(t *testing.T) *exportEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	store := storage.NewMemoryStore()
	svc := service.NewExportService(repos, store, zap.NewNop())

	testutil.SeedUser(t, db, "admin-1", "Admin")
	testutil.SeedUser(t, db, "ann-1", "Annotator")
	testutil.SeedProject(t, db, "proj-1", "Export Project", "admin-1")
	testutil.SeedMember(t, db, "proj-1", "ann-1", entity.RoleAnnotator)
	testutil.SeedVehicleType(t, db, "vt-truck", "proj-1", "Big Truck", "admin-1")
	testutil.SeedTask(t, db, "task-1", "proj-1", "admin-1", "ann-1")
	return &exportEnv{db: db, store: store, svc: svc}
}

// seedSubmitted 造一个已提交标注，并把对应的 npz 对象放进存储。
// content 为 nil 时写入一个三点的合法 npz。
func (e *exportEnv) seedSubmitted(t *testing.T, fileID, originalName string, content []byte) {
	t.Helper()
	file := testutil.SeedFile(t, e.db, fileID, "proj-1", originalName, "admin-1")
	if content == nil {
		var err error
		content, err = npz.WritePts(3, 3, []float64{
			0, 0, 0,
			1, 1, 1,
			2, 2, 2,
		})
		require.NoError(t, err)
	}
	require.NoError(t, e.store.Put(context.Background(), file.FilePath,
		bytes.NewReader(content), int64(len(content)), "application/octet-stream"))

	now := time.Now()
	vt := "vt-truck"
	ann := &entity.Annotation{
		ID:               uuid.New().String()[:32],
		ProjectID:        "proj-1",
		TaskID:           "task-1",
		PointCloudFileID: fileID,
		AnnotatorID:      "ann-1",
		VehicleTypeID:    &vt,
		Status:           entity.AnnotationStatusSubmitted,
		StartedAt:        now,
		SubmittedAt:      &now,
	}
	require.NoError(t, e.db.Create(ann).Error)
}

// zipMembers 列出 npz 容器内的成员名
func zipMembers(t *testing.T, path string) []string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestExportLayoutAndCounters(t *testing.T) {
	env := setupExport(t)
	for i := 0; i < 6; i++ {
		env.seedSubmitted(t, fmt.Sprintf("file-%d", i), fmt.Sprintf("scan_%04d.npz", i), nil)
	}

	result, err := env.svc.Export(context.Background(), "proj-1", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, result.Status)
	assert.Equal(t, 6, result.Exported)
	assert.Empty(t, result.Errors)

	// 每个划分内序号从 0 连续递增
	for _, split := range []string{"train", "test"} {
		dir := filepath.Join(result.ExportDir, "big_truck", split)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		require.NoError(t, err)
		for i, e := range entries {
			assert.Equal(t, fmt.Sprintf("big_truck_%05d.npz", i), e.Name())
		}
	}
}

func TestExportSplitDeterministic(t *testing.T) {
	env := setupExport(t)
	for i := 0; i < 4; i++ {
		env.seedSubmitted(t, fmt.Sprintf("file-%d", i), fmt.Sprintf("det_%04d.npz", i), nil)
	}
	ctx := context.Background()

	first, err := env.svc.Export(ctx, "proj-1", t.TempDir())
	require.NoError(t, err)
	second, err := env.svc.Export(ctx, "proj-1", t.TempDir())
	require.NoError(t, err)

	countSplit := func(dir string) (train, test int) {
		trainEntries, _ := os.ReadDir(filepath.Join(dir, "big_truck", "train"))
		testEntries, _ := os.ReadDir(filepath.Join(dir, "big_truck", "test"))
		return len(trainEntries), len(testEntries)
	}
	tr1, te1 := countSplit(first.ExportDir)
	tr2, te2 := countSplit(second.ExportDir)
	assert.Equal(t, tr1, tr2)
	assert.Equal(t, te1, te2)
	assert.Equal(t, 4, tr1+te1)
}

func TestExportRewritesNpzToPtsOnly(t *testing.T) {
	env := setupExport(t)

	// 多成员容器导出后只剩 pts
	pts, err := npz.WritePts(2, 3, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(pts), int64(len(pts)))
	require.NoError(t, err)
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		w, err := zw.Create(f.Name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	extra, err := zw.Create("intensity.npy")
	require.NoError(t, err)
	_, err = extra.Write([]byte("not a real array"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	env.seedSubmitted(t, "file-multi", "multi.npz", buf.Bytes())

	result, err := env.svc.Export(context.Background(), "proj-1", t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 1, result.Exported)

	var exported string
	err = filepath.WalkDir(result.ExportDir, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			exported = path
		}
		return err
	})
	require.NoError(t, err)
	require.NotEmpty(t, exported)
	assert.Equal(t, []string{"pts.npy"}, zipMembers(t, exported))
}

func TestExportKeepsOriginalWhenNoPts(t *testing.T) {
	env := setupExport(t)

	// 没有点阵列的容器原样导出
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("metadata.npy")
	require.NoError(t, err)
	_, _ = w.Write([]byte("opaque"))
	require.NoError(t, zw.Close())
	original := buf.Bytes()

	env.seedSubmitted(t, "file-nopts", "nopts.npz", original)

	result, err := env.svc.Export(context.Background(), "proj-1", t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 1, result.Exported)
	assert.Equal(t, entity.JobStatusCompleted, result.Status)

	var exported string
	require.NoError(t, filepath.WalkDir(result.ExportDir, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			exported = path
		}
		return err
	}))
	content, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Equal(t, original, content)
}

func TestExportMissingBlobPartial(t *testing.T) {
	env := setupExport(t)
	env.seedSubmitted(t, "file-ok", "present.npz", nil)
	env.seedSubmitted(t, "file-gone", "missing.npz", nil)
	require.NoError(t, env.store.Remove(context.Background(),
		"projects/proj-1/pointclouds/file-gone.npz"))

	result, err := env.svc.Export(context.Background(), "proj-1", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusPartial, result.Status)
	assert.Equal(t, 1, result.Exported)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "missing.npz")
}

func TestExportEmptyProject(t *testing.T) {
	env := setupExport(t)

	result, err := env.svc.Export(context.Background(), "proj-1", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, result.Status)
	assert.Equal(t, 0, result.Exported)

	// 空导出不落目录
	_, statErr := os.Stat(result.ExportDir)
	assert.True(t, os.IsNotExist(statErr))
}
