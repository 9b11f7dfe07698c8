package descriptors

import (
	"fmt"

	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

// PoolSizeRatio asks for Ratio descriptors of Type per set in a pool.
type PoolSizeRatio struct {
	Type  gpu.DescriptorType
	Ratio float32
}

func poolDesc(sets uint32, ratios []PoolSizeRatio) gpu.DescriptorPoolDesc {
	desc := gpu.DescriptorPoolDesc{MaxSets: sets}
	for _, r := range ratios {
		desc.Sizes = append(desc.Sizes, gpu.DescriptorPoolSize{
			Type:  r.Type,
			Count: uint32(r.Ratio * float32(sets)),
		})
	}
	return desc
}

// Allocator hands out sets from one fixed size pool. It suits sets that
// live as long as the engine and are written once.
type Allocator struct {
	dev  gpu.Device
	pool gpu.DescriptorPool
}

func (a *Allocator) InitPool(dev gpu.Device, maxSets uint32, ratios []PoolSizeRatio) error {
	pool, err := dev.CreateDescriptorPool(poolDesc(maxSets, ratios))
	if err != nil {
		return fmt.Errorf("create descriptor pool: %w", err)
	}
	a.dev = dev
	a.pool = pool
	return nil
}

// ClearDescriptors invalidates every set allocated so far and keeps the
// pool. It does nothing before InitPool.
func (a *Allocator) ClearDescriptors() error {
	if a.pool == gpu.Null {
		return nil
	}
	return a.dev.ResetDescriptorPool(a.pool)
}

func (a *Allocator) DestroyPool() {
	if a.dev == nil || a.pool == gpu.Null {
		return
	}
	a.dev.Destroy(a.pool)
	a.pool = gpu.Null
}

func (a *Allocator) Release() error {
	a.DestroyPool()
	return nil
}

// Allocate fails once the pool is exhausted.
func (a *Allocator) Allocate(layout gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	if a.pool == gpu.Null {
		return gpu.Null, fmt.Errorf("allocate descriptor set: %w", core.ErrNotInitialized)
	}
	set, err := a.dev.AllocateDescriptorSet(a.pool, layout)
	if err != nil {
		return gpu.Null, fmt.Errorf("allocate descriptor set: %w", err)
	}
	return set, nil
}
