package service

import (
	"crypto/md5"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitTrainMatchesBigIntMod(t *testing.T) {
	// 逐字节折算必须和把整个摘要当大整数取模一致
	for i := 0; i < 500; i++ {
		name := fmt.Sprintf("scan_%04d.npz", i)
		sum := md5.Sum([]byte(name))
		ref := new(big.Int).SetBytes(sum[:])
		ref.Mod(ref, big.NewInt(100))

		assert.Equal(t, ref.Int64() < 90, SplitTrain(name), "name %s", name)
	}
}

func TestSplitTrainDeterministic(t *testing.T) {
	for _, name := range []string{"a.npz", "b.npy", "車流_0001.npz", ""} {
		first := SplitTrain(name)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, SplitTrain(name))
		}
	}
}

func TestSplitTrainDistribution(t *testing.T) {
	train := 0
	const total = 2000
	for i := 0; i < total; i++ {
		if SplitTrain(fmt.Sprintf("pointcloud_%06d.npz", i)) {
			train++
		}
	}
	// 期望约 90%，给哈希波动留余量
	assert.Greater(t, train, total*85/100)
	assert.Less(t, train, total*95/100)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Big Truck":      "big_truck",
		" Trailer/Long ": "trailer_long",
		"bus":            "bus",
		"mini-van":       "mini_van",
		"A  B":           "a_b",
		"小客車":            "小客車",
		"###":            "unknown",
		"":               "unknown",
		"truck_":         "truck",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}
