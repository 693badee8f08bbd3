package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/qwertyboy0325/etc-all/internal/label/entity"
	"github.com/qwertyboy0325/etc-all/internal/middleware"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TestSchema = "test_label"
	JWTSecret  = "label-jwt-secret-key-2025"
)

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// loadEnv loads .env from the project root
func loadEnv() {
	root := projectRoot()
	if root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

// SetupTestDB creates a test database connection using a dedicated test schema.
// Each test gets an isolated schema that is cleaned up after the test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "label")
	password := getEnv("DB_PASSWORD", "label123")
	dbname := getEnv("DB_NAME", "etc_label")

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// Create a unique test schema for isolation
	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)

	// First: create schema using a temporary connection
	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to database for schema setup: %v", err)
	}
	setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName))
	sqlSetup, _ := setupDB.DB()
	sqlSetup.Close()

	// Second: open connection with search_path in DSN so ALL pooled connections use test schema
	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Migrate test tables
	err = db.AutoMigrate(
		&entity.User{},
		&entity.Project{},
		&entity.ProjectMember{},
		&entity.PointCloudFile{},
		&entity.Task{},
		&entity.TaskFile{},
		&entity.Annotation{},
		&entity.AnnotationReview{},
		&entity.ProjectVehicleType{},
		&entity.Job{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	// Cleanup on test completion
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		// Reconnect to drop the schema
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			sqlClean, _ := cleanDB.DB()
			if sqlClean != nil {
				sqlClean.Close()
			}
		}
	})

	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name, email string, roles []string) string {
	if roles == nil {
		roles = []string{}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": email,
		"roles": roles,
		"iss":   "etc-label",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedUser creates a test user in the database
func SeedUser(t *testing.T, db *gorm.DB, id, name string) *entity.User {
	t.Helper()
	user := &entity.User{
		ID:       id,
		Username: "user_" + id,
		Name:     name,
		Email:    id + "@test.com",
		Status:   "active",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to seed test user: %v", err)
	}
	return user
}

// SeedProject creates a test project with its creator as project admin
func SeedProject(t *testing.T, db *gorm.DB, id, name, creatorID string) *entity.Project {
	t.Helper()
	project := &entity.Project{
		ID:        id,
		Name:      name,
		Status:    entity.ProjectStatusActive,
		CreatedBy: creatorID,
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("Failed to seed test project: %v", err)
	}
	SeedMember(t, db, id, creatorID, entity.RoleProjectAdmin)
	return project
}

// SeedMember adds a user to a project with the given role
func SeedMember(t *testing.T, db *gorm.DB, projectID, userID, role string) *entity.ProjectMember {
	t.Helper()
	member := &entity.ProjectMember{
		ID:        uuid.New().String()[:32],
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		IsActive:  true,
		JoinedAt:  time.Now(),
	}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("Failed to seed project member: %v", err)
	}
	return member
}

// SeedFile creates a processed point cloud file record
func SeedFile(t *testing.T, db *gorm.DB, id, projectID, originalName, uploadedBy string) *entity.PointCloudFile {
	t.Helper()
	file := &entity.PointCloudFile{
		ID:               id,
		ProjectID:        projectID,
		Filename:         id + ".npz",
		OriginalFilename: originalName,
		FilePath:         fmt.Sprintf("projects/%s/pointclouds/%s.npz", projectID, id),
		FileSize:         1024,
		FileExtension:    ".npz",
		MimeType:         "application/octet-stream",
		Status:           entity.FileStatusProcessed,
		UploadedBy:       uploadedBy,
	}
	if err := db.Create(file).Error; err != nil {
		t.Fatalf("Failed to seed point cloud file: %v", err)
	}
	return file
}

// SeedTask creates a task linked to the given files
func SeedTask(t *testing.T, db *gorm.DB, id, projectID, createdBy string, assignedTo string, fileIDs ...string) *entity.Task {
	t.Helper()
	task := &entity.Task{
		ID:             id,
		ProjectID:      projectID,
		Name:           "task_" + id,
		Status:         entity.TaskStatusPending,
		Priority:       entity.TaskPriorityMedium,
		MaxAnnotations: 3,
		RequireReview:  true,
		CreatedBy:      createdBy,
	}
	if assignedTo != "" {
		now := time.Now()
		task.AssignedTo = &assignedTo
		task.AssignedAt = &now
		task.Status = entity.TaskStatusAssigned
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("Failed to seed task: %v", err)
	}
	for _, fid := range fileIDs {
		link := &entity.TaskFile{TaskID: id, PointCloudFileID: fid, CreatedAt: time.Now()}
		if err := db.Create(link).Error; err != nil {
			t.Fatalf("Failed to link task file: %v", err)
		}
	}
	return task
}

// SeedVehicleType creates a project vehicle type label
func SeedVehicleType(t *testing.T, db *gorm.DB, id, projectID, name, createdBy string) *entity.ProjectVehicleType {
	t.Helper()
	vt := &entity.ProjectVehicleType{
		ID:          id,
		ProjectID:   projectID,
		Name:        name,
		DisplayName: name,
		IsActive:    true,
		CreatedBy:   createdBy,
	}
	if err := db.Create(vt).Error; err != nil {
		t.Fatalf("Failed to seed vehicle type: %v", err)
	}
	return vt
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
