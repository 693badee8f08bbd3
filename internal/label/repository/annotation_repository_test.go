package repository

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"

	"github.com/qwertyboy0325/etc-all/internal/label/entity"
)

// 这里的裸 SQL 片段绕开了 GORM 的字段映射，
// 列名必须与迁移出来的实际列一致。
func TestAnnotationColumnNames(t *testing.T) {
	s, err := schema.Parse(&entity.Annotation{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	field := s.LookUpField("PointCloudFileID")
	require.NotNil(t, field)
	assert.Equal(t, "point_cloud_file_id", field.DBName)

	// 聚合器扫描结构体的 column 标签同样要对上
	scanField, ok := reflect.TypeOf(FileAnnotationStatus{}).FieldByName("PointCloudFileID")
	require.True(t, ok)
	assert.Equal(t, "column:point_cloud_file_id", scanField.Tag.Get("gorm"))
}
