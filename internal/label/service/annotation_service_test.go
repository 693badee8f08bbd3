package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qwertyboy0325/etc-all/internal/label/entity"
	"github.com/qwertyboy0325/etc-all/internal/label/repository"
	"github.com/qwertyboy0325/etc-all/internal/label/service"
	"github.com/qwertyboy0325/etc-all/internal/label/testutil"
)

type annotationEnv struct {
	db    *gorm.DB
	repos *repository.Repositories
	svc   *service.AnnotationService
}

// 典型项目：管理员、审核员、标注员各一人，
// 一个任务指派给标注员，任务只含一个文件。
func setupAnnotation(t *testing.T) *annotationEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := service.NewAnnotationService(db, repos, zap.NewNop())

	testutil.SeedUser(t, db, "admin-1", "Admin")
	testutil.SeedUser(t, db, "rev-1", "Reviewer")
	testutil.SeedUser(t, db, "ann-1", "Annotator")
	testutil.SeedProject(t, db, "proj-1", "Test Project", "admin-1")
	testutil.SeedMember(t, db, "proj-1", "rev-1", entity.RoleReviewer)
	testutil.SeedMember(t, db, "proj-1", "ann-1", entity.RoleAnnotator)

	testutil.SeedFile(t, db, "file-1", "proj-1", "scan_0001.npz", "admin-1")
	testutil.SeedTask(t, db, "task-1", "proj-1", "admin-1", "ann-1", "file-1")
	testutil.SeedVehicleType(t, db, "vt-1", "proj-1", "truck", "admin-1")
	return &annotationEnv{db: db, repos: repos, svc: svc}
}

func (e *annotationEnv) taskStatus(t *testing.T, taskID string) string {
	t.Helper()
	task, err := e.repos.Task.FindByID(context.Background(), taskID)
	require.NoError(t, err)
	return task.Status
}

func vtID(id string) *string { return &id }

func TestAnnotationLifecycle(t *testing.T) {
	env := setupAnnotation(t)
	ctx := context.Background()

	// 草稿
	ann, err := env.svc.Create(ctx, "proj-1", "ann-1", &service.CreateAnnotationRequest{
		TaskID:           "task-1",
		PointCloudFileID: "file-1",
		VehicleTypeID:    vtID("vt-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.AnnotationStatusDraft, ann.Status)
	assert.Equal(t, entity.TaskStatusInProgress, env.taskStatus(t, "task-1"))

	// 提交
	ann, err = env.svc.Submit(ctx, "proj-1", ann.ID, "ann-1")
	require.NoError(t, err)
	assert.Equal(t, entity.AnnotationStatusSubmitted, ann.Status)
	require.NotNil(t, ann.SubmittedAt)
	assert.Equal(t, entity.TaskStatusCompleted, env.taskStatus(t, "task-1"))

	// 审核通过
	review, err := env.svc.Review(ctx, "proj-1", ann.ID, "rev-1", &service.ReviewRequest{
		Status:   entity.ReviewStatusApproved,
		Comments: "clean",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.ReviewStatusApproved, review.Status)

	ann, err = env.svc.Get(ctx, "proj-1", ann.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.AnnotationStatusApproved, ann.Status)
	assert.Len(t, ann.Reviews, 1)

	// 审核后不能重复审核，也不能再编辑
	_, err = env.svc.Review(ctx, "proj-1", ann.ID, "rev-1", &service.ReviewRequest{
		Status: entity.ReviewStatusRejected,
	})
	assert.ErrorIs(t, err, service.ErrConflict)

	notes := "late edit"
	_, err = env.svc.Update(ctx, "proj-1", ann.ID, "ann-1", &service.UpdateAnnotationRequest{Notes: &notes})
	assert.ErrorIs(t, err, service.ErrConflict)
}

func TestSubmitRequiresLabel(t *testing.T) {
	env := setupAnnotation(t)
	ctx := context.Background()

	ann, err := env.svc.Create(ctx, "proj-1", "ann-1", &service.CreateAnnotationRequest{
		TaskID:           "task-1",
		PointCloudFileID: "file-1",
	})
	require.NoError(t, err)

	_, err = env.svc.Submit(ctx, "proj-1", ann.ID, "ann-1")
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestCreateRequiresAssignment(t *testing.T) {
	env := setupAnnotation(t)

	_, err := env.svc.Create(context.Background(), "proj-1", "rev-1", &service.CreateAnnotationRequest{
		TaskID:           "task-1",
		PointCloudFileID: "file-1",
	})
	assert.ErrorIs(t, err, service.ErrPermission)
}

func TestCreateDuplicateConflict(t *testing.T) {
	env := setupAnnotation(t)
	ctx := context.Background()

	req := &service.CreateAnnotationRequest{
		TaskID:           "task-1",
		PointCloudFileID: "file-1",
	}
	_, err := env.svc.Create(ctx, "proj-1", "ann-1", req)
	require.NoError(t, err)

	_, err = env.svc.Create(ctx, "proj-1", "ann-1", req)
	assert.ErrorIs(t, err, service.ErrConflict)
}

func TestUpdateRevertsSubmitted(t *testing.T) {
	env := setupAnnotation(t)
	ctx := context.Background()

	ann, err := env.svc.Create(ctx, "proj-1", "ann-1", &service.CreateAnnotationRequest{
		TaskID:           "task-1",
		PointCloudFileID: "file-1",
		VehicleTypeID:    vtID("vt-1"),
	})
	require.NoError(t, err)
	_, err = env.svc.Submit(ctx, "proj-1", ann.ID, "ann-1")
	require.NoError(t, err)
	require.Equal(t, entity.TaskStatusCompleted, env.taskStatus(t, "task-1"))

	// 编辑已提交的标注退回草稿，任务进度同步回退
	notes := "second thoughts"
	reverted, err := env.svc.Update(ctx, "proj-1", ann.ID, "ann-1", &service.UpdateAnnotationRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, entity.AnnotationStatusDraft, reverted.Status)
	assert.Nil(t, reverted.SubmittedAt)
	assert.Equal(t, entity.TaskStatusInProgress, env.taskStatus(t, "task-1"))
}

func TestReviewRejectionRegressesTask(t *testing.T) {
	env := setupAnnotation(t)
	ctx := context.Background()

	ann, err := env.svc.Create(ctx, "proj-1", "ann-1", &service.CreateAnnotationRequest{
		TaskID:           "task-1",
		PointCloudFileID: "file-1",
		VehicleTypeID:    vtID("vt-1"),
	})
	require.NoError(t, err)
	_, err = env.svc.Submit(ctx, "proj-1", ann.ID, "ann-1")
	require.NoError(t, err)
	require.Equal(t, entity.TaskStatusCompleted, env.taskStatus(t, "task-1"))

	_, err = env.svc.Review(ctx, "proj-1", ann.ID, "rev-1", &service.ReviewRequest{
		Status:   entity.ReviewStatusRejected,
		Comments: "wrong label",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusInProgress, env.taskStatus(t, "task-1"))
}

func TestReviewPermission(t *testing.T) {
	env := setupAnnotation(t)
	ctx := context.Background()

	ann, err := env.svc.Create(ctx, "proj-1", "ann-1", &service.CreateAnnotationRequest{
		TaskID:           "task-1",
		PointCloudFileID: "file-1",
		VehicleTypeID:    vtID("vt-1"),
	})
	require.NoError(t, err)
	_, err = env.svc.Submit(ctx, "proj-1", ann.ID, "ann-1")
	require.NoError(t, err)

	// 标注员不能审核
	_, err = env.svc.Review(ctx, "proj-1", ann.ID, "ann-1", &service.ReviewRequest{
		Status: entity.ReviewStatusApproved,
	})
	assert.ErrorIs(t, err, service.ErrPermission)

	// 非成员不能审核
	testutil.SeedUser(t, env.db, "outsider", "Outsider")
	_, err = env.svc.Review(ctx, "proj-1", ann.ID, "outsider", &service.ReviewRequest{
		Status: entity.ReviewStatusApproved,
	})
	assert.ErrorIs(t, err, service.ErrPermission)
}

func TestDeleteDraftOnly(t *testing.T) {
	env := setupAnnotation(t)
	ctx := context.Background()

	ann, err := env.svc.Create(ctx, "proj-1", "ann-1", &service.CreateAnnotationRequest{
		TaskID:           "task-1",
		PointCloudFileID: "file-1",
		VehicleTypeID:    vtID("vt-1"),
	})
	require.NoError(t, err)
	_, err = env.svc.Submit(ctx, "proj-1", ann.ID, "ann-1")
	require.NoError(t, err)

	err = env.svc.Delete(ctx, "proj-1", ann.ID, "ann-1")
	assert.ErrorIs(t, err, service.ErrConflict)

	// 退回草稿后可删除，任务进度回退
	notes := "redo"
	_, err = env.svc.Update(ctx, "proj-1", ann.ID, "ann-1", &service.UpdateAnnotationRequest{Notes: &notes})
	require.NoError(t, err)
	require.NoError(t, env.svc.Delete(ctx, "proj-1", ann.ID, "ann-1"))

	_, err = env.svc.Get(ctx, "proj-1", ann.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestRecomputeTaskProgressIdempotent(t *testing.T) {
	env := setupAnnotation(t)
	ctx := context.Background()

	ann, err := env.svc.Create(ctx, "proj-1", "ann-1", &service.CreateAnnotationRequest{
		TaskID:           "task-1",
		PointCloudFileID: "file-1",
		VehicleTypeID:    vtID("vt-1"),
	})
	require.NoError(t, err)
	_, err = env.svc.Submit(ctx, "proj-1", ann.ID, "ann-1")
	require.NoError(t, err)

	// 重复推导不改变结果
	for i := 0; i < 3; i++ {
		require.NoError(t, env.svc.RecomputeTaskProgress(ctx, "task-1"))
		assert.Equal(t, entity.TaskStatusCompleted, env.taskStatus(t, "task-1"))
	}
}

func TestProgressPartialFiles(t *testing.T) {
	env := setupAnnotation(t)
	ctx := context.Background()

	// 两个文件的任务，只提交其中一个
	testutil.SeedFile(t, env.db, "file-2", "proj-1", "scan_0002.npz", "admin-1")
	testutil.SeedTask(t, env.db, "task-2", "proj-1", "admin-1", "ann-1", "file-1", "file-2")

	ann, err := env.svc.Create(ctx, "proj-1", "ann-1", &service.CreateAnnotationRequest{
		TaskID:           "task-2",
		PointCloudFileID: "file-1",
		VehicleTypeID:    vtID("vt-1"),
	})
	require.NoError(t, err)
	_, err = env.svc.Submit(ctx, "proj-1", ann.ID, "ann-1")
	require.NoError(t, err)

	// 只完成一个文件，任务停在 in_progress
	assert.Equal(t, entity.TaskStatusInProgress, env.taskStatus(t, "task-2"))
}

func TestVehicleTypeUsedGuard(t *testing.T) {
	env := setupAnnotation(t)
	ctx := context.Background()
	vtSvc := service.NewVehicleTypeService(env.repos, zap.NewNop())

	_, err := env.svc.Create(ctx, "proj-1", "ann-1", &service.CreateAnnotationRequest{
		TaskID:           "task-1",
		PointCloudFileID: "file-1",
		VehicleTypeID:    vtID("vt-1"),
	})
	require.NoError(t, err)

	// 被引用的标签不可删除
	err = vtSvc.Delete(ctx, "proj-1", "vt-1")
	assert.ErrorIs(t, err, service.ErrConflict)

	vt, err := vtSvc.Get(ctx, "proj-1", "vt-1")
	require.NoError(t, err)
	assert.True(t, vt.IsUsed)
}
