package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeDevice struct {
	used  uint64
	total uint64
}

func (f fakeDevice) usedBytes() uint64  { return f.used }
func (f fakeDevice) totalBytes() uint64 { return f.total }

func TestRegisterAndIsLoaded(t *testing.T) {
	r := newWithDevice(fakeDevice{used: 1000, total: 10000})
	assert.False(t, r.IsLoaded("sdxl-base"))

	r.Register(ModelInfo{ModelID: "sdxl-base", EstimatedBytes: 4000})
	assert.True(t, r.IsLoaded("sdxl-base"))

	r.Unregister("sdxl-base")
	assert.False(t, r.IsLoaded("sdxl-base"))
}

func TestCanFit(t *testing.T) {
	r := newWithDevice(fakeDevice{used: 6000, total: 10000})
	assert.True(t, r.CanFit(3000))
	assert.False(t, r.CanFit(5000))
}

func TestAvailableBytesClampsAtZero(t *testing.T) {
	r := newWithDevice(fakeDevice{used: 12000, total: 10000})
	assert.Equal(t, uint64(0), r.AvailableBytes())
}

func TestStatsReflectsRegisteredModels(t *testing.T) {
	r := newWithDevice(fakeDevice{used: 1000, total: 10000})
	r.Register(ModelInfo{ModelID: "sdxl-base"})
	r.Register(ModelInfo{ModelID: "sdxl-refiner"})

	stats := r.Stats()
	assert.ElementsMatch(t, []string{"sdxl-base", "sdxl-refiner"}, stats.LoadedModels)
	assert.Equal(t, uint64(1000), stats.UsedBytes)
	assert.Equal(t, uint64(9000), stats.AvailableBytes)
	assert.Equal(t, uint64(10000), stats.TotalBytes)
}
