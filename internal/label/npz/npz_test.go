package npz

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func npyBytes(t *testing.T, rows, cols int, data []float64) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, npyio.Write(&buf, mat.NewDense(rows, cols, data)))
	return buf.Bytes()
}

// npzBytes 按给定顺序打包成员，顺序影响回退策略
func npzBytes(t *testing.T, names []string, arrays [][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, name := range names {
		w, err := zw.Create(name + ".npy")
		require.NoError(t, err)
		_, err = w.Write(arrays[i])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestAnalyzeNPY(t *testing.T) {
	content := npyBytes(t, 4, 3, []float64{
		0, 0, 0,
		1, 2, 3,
		-1, 5, 0.5,
		2, -2, 10,
	})

	a, err := Analyze(content, ".npy")
	require.NoError(t, err)
	require.NotNil(t, a)

	assert.Equal(t, 4, a.PointCount)
	assert.Equal(t, 3, a.Dimensions)
	assert.Equal(t, -1.0, a.BoundingBox.MinX)
	assert.Equal(t, 2.0, a.BoundingBox.MaxX)
	assert.Equal(t, -2.0, a.BoundingBox.MinY)
	assert.Equal(t, 5.0, a.BoundingBox.MaxY)
	assert.Equal(t, 0.0, a.BoundingBox.MinZ)
	assert.Equal(t, 10.0, a.BoundingBox.MaxZ)
}

func TestAnalyzeNPYExtraColumns(t *testing.T) {
	// 超过3列只取前三列做包围盒
	content := npyBytes(t, 2, 5, []float64{
		1, 1, 1, 99, 99,
		2, 2, 2, -99, -99,
	})

	a, err := Analyze(content, ".npy")
	require.NoError(t, err)
	assert.Equal(t, 2, a.PointCount)
	assert.Equal(t, 5, a.Dimensions)
	assert.Equal(t, 1.0, a.BoundingBox.MinX)
	assert.Equal(t, 2.0, a.BoundingBox.MaxZ)
}

func TestAnalyzeNPZPreferredKey(t *testing.T) {
	colors := npyBytes(t, 3, 3, []float64{255, 0, 0, 0, 255, 0, 0, 0, 255})
	points := npyBytes(t, 2, 3, []float64{0, 0, 0, 4, 4, 4})
	content := npzBytes(t, []string{"colors", "points"}, [][]byte{colors, points})

	a, err := Analyze(content, ".npz")
	require.NoError(t, err)
	assert.Equal(t, 2, a.PointCount)
	assert.Equal(t, 4.0, a.BoundingBox.MaxX)
}

func TestAnalyzeNPZFallbackWideArray(t *testing.T) {
	// 没有常见名字时取第一个列数>=3的二维数组
	narrow := npyBytes(t, 2, 2, []float64{1, 2, 3, 4})
	wide := npyBytes(t, 3, 4, []float64{
		0, 0, 0, 1,
		1, 1, 1, 1,
		2, 2, 2, 1,
	})
	content := npzBytes(t, []string{"meta", "cloud"}, [][]byte{narrow, wide})

	a, err := Analyze(content, ".npz")
	require.NoError(t, err)
	assert.Equal(t, 3, a.PointCount)
	assert.Equal(t, 4, a.Dimensions)
}

func TestAnalyzeNPZFallbackFirstMember(t *testing.T) {
	narrow := npyBytes(t, 2, 2, []float64{1, 2, 3, 4})
	content := npzBytes(t, []string{"misc"}, [][]byte{narrow})

	a, err := Analyze(content, ".npz")
	require.NoError(t, err)
	assert.Equal(t, 2, a.PointCount)
	assert.Equal(t, 2, a.Dimensions)
	// 缺少第三轴时补零
	assert.Equal(t, 0.0, a.BoundingBox.MinZ)
	assert.Equal(t, 0.0, a.BoundingBox.MaxZ)
}

func TestAnalyzeMeshFormats(t *testing.T) {
	for _, ext := range []string{".ply", ".pcd"} {
		a, err := Analyze([]byte("whatever"), ext)
		require.NoError(t, err)
		assert.Nil(t, a, "mesh format %s should not be analyzed", ext)
	}
}

func TestAnalyzeCorruptNPZ(t *testing.T) {
	_, err := Analyze([]byte("not a zip"), ".npz")
	assert.Error(t, err)
}

func TestExtractPts(t *testing.T) {
	pts := npyBytes(t, 2, 3, []float64{1, 2, 3, 4, 5, 6})
	colors := npyBytes(t, 2, 3, []float64{255, 255, 255, 0, 0, 0})
	content := npzBytes(t, []string{"colors", "pts"}, [][]byte{colors, pts})

	cleaned, err := ExtractPts(content)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(cleaned), int64(len(cleaned)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "pts.npy", zr.File[0].Name)

	// 重写后的容器仍可解析，数据不变
	a, err := Analyze(cleaned, ".npz")
	require.NoError(t, err)
	assert.Equal(t, 2, a.PointCount)
	assert.Equal(t, 1.0, a.BoundingBox.MinX)
	assert.Equal(t, 6.0, a.BoundingBox.MaxZ)
}

func TestExtractPtsMissing(t *testing.T) {
	colors := npyBytes(t, 1, 3, []float64{1, 2, 3})
	content := npzBytes(t, []string{"colors"}, [][]byte{colors})

	_, err := ExtractPts(content)
	assert.ErrorIs(t, err, ErrNoPtsField)
}
