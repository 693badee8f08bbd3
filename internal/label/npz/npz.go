// Package npz 读写 NumPy 点云容器（.npy 单数组，.npz 为 .npy 成员的 zip 包）。
package npz

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNoPointArray 容器内找不到可用的点阵列
	ErrNoPointArray = errors.New("no point array found")
	// ErrNoPtsField 导出重写时缺少 pts 成员
	ErrNoPtsField = errors.New("npz missing pts field")
)

// 常见点阵列成员名，按优先级排列
var preferredKeys = []string{"points", "pts", "data", "xyz", "lidar", "vertex"}

// BoundingBox 逐轴极值
type BoundingBox struct {
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// Analysis 点云结构元数据
type Analysis struct {
	PointCount  int
	Dimensions  int
	BoundingBox BoundingBox
}

type array struct {
	shape []int
	data  []float64
}

// Analyze 解析点云内容并提取结构元数据。
// .npy 直接取其数组；.npz 按成员名回退策略选择点阵列：
// 先查常见名字，再取第一个列数≥3的二维数组，最后兜底取第一个成员。
// 其他格式（.ply/.pcd 网格类）不做解析，返回 nil。
func Analyze(content []byte, extension string) (*Analysis, error) {
	var arr *array
	var err error

	switch strings.ToLower(extension) {
	case ".npy":
		arr, err = readNPY(bytes.NewReader(content))
		if err != nil {
			return nil, fmt.Errorf("read npy: %w", err)
		}
	case ".npz":
		arr, err = pickArray(content)
		if err != nil {
			return nil, err
		}
	default:
		return nil, nil
	}

	if len(arr.shape) != 2 {
		return nil, fmt.Errorf("point cloud data must be 2D array, got %d dims", len(arr.shape))
	}

	rows, cols := arr.shape[0], arr.shape[1]
	a := &Analysis{
		PointCount: rows,
		Dimensions: cols,
	}
	a.BoundingBox = boundingBox(arr.data, rows, cols)
	return a, nil
}

// pickArray 在 npz 成员中选择点阵列
func pickArray(content []byte) (*array, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open npz: %w", err)
	}
	if len(zr.File) == 0 {
		return nil, ErrNoPointArray
	}

	members := make(map[string]*zip.File, len(zr.File))
	order := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		key := strings.TrimSuffix(f.Name, ".npy")
		members[key] = f
		order = append(order, key)
	}

	// 1. 常见名字
	for _, key := range preferredKeys {
		if f, ok := members[key]; ok {
			return readMember(f)
		}
	}

	// 2. 第一个列数≥3的二维数组（按成员顺序）
	for _, key := range order {
		arr, err := readMember(members[key])
		if err != nil {
			continue
		}
		if len(arr.shape) == 2 && arr.shape[1] >= 3 {
			return arr, nil
		}
	}

	// 3. 兜底取第一个成员
	return readMember(members[order[0]])
}

func readMember(f *zip.File) (*array, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open npz member %s: %w", f.Name, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read npz member %s: %w", f.Name, err)
	}
	return readNPY(bytes.NewReader(raw))
}

// readNPY 按头部 dtype 读取数组并统一为 float64
func readNPY(r io.Reader) (*array, error) {
	nr, err := npyio.NewReader(r)
	if err != nil {
		return nil, err
	}

	shape := nr.Header.Descr.Shape
	n := 1
	for _, dim := range shape {
		n *= dim
	}

	data := make([]float64, 0, n)
	switch dtype := nr.Header.Descr.Type; dtype {
	case "<f8", "f8", ">f8":
		raw := make([]float64, n)
		if err := nr.Read(&raw); err != nil {
			return nil, err
		}
		data = raw
	case "<f4", "f4", ">f4":
		raw := make([]float32, n)
		if err := nr.Read(&raw); err != nil {
			return nil, err
		}
		for _, v := range raw {
			data = append(data, float64(v))
		}
	case "<i8", "i8", ">i8":
		raw := make([]int64, n)
		if err := nr.Read(&raw); err != nil {
			return nil, err
		}
		for _, v := range raw {
			data = append(data, float64(v))
		}
	case "<i4", "i4", ">i4":
		raw := make([]int32, n)
		if err := nr.Read(&raw); err != nil {
			return nil, err
		}
		for _, v := range raw {
			data = append(data, float64(v))
		}
	default:
		return nil, fmt.Errorf("unsupported dtype %q", dtype)
	}

	return &array{shape: shape, data: data}, nil
}

// boundingBox 取前三列极值，缺列补零
func boundingBox(data []float64, rows, cols int) BoundingBox {
	var bb BoundingBox
	if rows == 0 || cols == 0 {
		return bb
	}

	axes := cols
	if axes > 3 {
		axes = 3
	}

	mins := make([]float64, axes)
	maxs := make([]float64, axes)
	for c := 0; c < axes; c++ {
		mins[c] = data[c]
		maxs[c] = data[c]
	}
	for rIdx := 1; rIdx < rows; rIdx++ {
		for c := 0; c < axes; c++ {
			v := data[rIdx*cols+c]
			if v < mins[c] {
				mins[c] = v
			}
			if v > maxs[c] {
				maxs[c] = v
			}
		}
	}

	bb.MinX, bb.MaxX = mins[0], maxs[0]
	if axes > 1 {
		bb.MinY, bb.MaxY = mins[1], maxs[1]
	}
	if axes > 2 {
		bb.MinZ, bb.MaxZ = mins[2], maxs[2]
	}
	return bb
}

// ExtractPts 从 npz 中取出 pts 成员并重新打包成只含 pts 的 npz。
// 训练端只认 pts 字段，其余辅助成员（颜色、强度等）一律丢弃。
func ExtractPts(content []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open npz: %w", err)
	}

	var ptsFile *zip.File
	for _, f := range zr.File {
		if strings.TrimSuffix(f.Name, ".npy") == "pts" {
			ptsFile = f
			break
		}
	}
	if ptsFile == nil {
		return nil, ErrNoPtsField
	}

	arr, err := readMember(ptsFile)
	if err != nil {
		return nil, fmt.Errorf("read pts: %w", err)
	}
	if len(arr.shape) != 2 {
		return nil, fmt.Errorf("pts must be 2D array, got %d dims", len(arr.shape))
	}

	return WritePts(arr.shape[0], arr.shape[1], arr.data)
}

// WritePts 打包一个只含 pts 成员的 npz
func WritePts(rows, cols int, data []float64) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create("pts.npy")
	if err != nil {
		return nil, fmt.Errorf("create pts member: %w", err)
	}
	m := mat.NewDense(rows, cols, data)
	if err := npyio.Write(w, m); err != nil {
		return nil, fmt.Errorf("write pts member: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close npz: %w", err)
	}
	return buf.Bytes(), nil
}
