package descriptors

import (
	"fmt"

	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/math"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

const (
	growthFactor   = 1.5
	maxSetsPerPool = 4092
)

// GrowableAllocator hands out short lived sets. Pools with room sit in
// ready, exhausted ones in full. When ready runs dry a new pool is created,
// each one larger than the last up to maxSetsPerPool.
type GrowableAllocator struct {
	dev         gpu.Device
	ratios      []PoolSizeRatio
	ready       []gpu.DescriptorPool
	full        []gpu.DescriptorPool
	setsPerPool uint32
}

func (g *GrowableAllocator) Init(dev gpu.Device, maxSets uint32, ratios []PoolSizeRatio) error {
	g.dev = dev
	g.ratios = append(g.ratios[:0], ratios...)

	pool, err := g.createPool(maxSets)
	if err != nil {
		return err
	}
	g.setsPerPool = grow(maxSets)
	g.ready = append(g.ready, pool)
	return nil
}

func grow(sets uint32) uint32 {
	return math.Clamp(uint32(float32(sets)*growthFactor), 1, maxSetsPerPool)
}

func (g *GrowableAllocator) createPool(sets uint32) (gpu.DescriptorPool, error) {
	pool, err := g.dev.CreateDescriptorPool(poolDesc(sets, g.ratios))
	if err != nil {
		return gpu.Null, fmt.Errorf("create descriptor pool of %d sets: %w", sets, err)
	}
	return pool, nil
}

func (g *GrowableAllocator) getPool() (gpu.DescriptorPool, error) {
	if n := len(g.ready); n > 0 {
		pool := g.ready[n-1]
		g.ready = g.ready[:n-1]
		return pool, nil
	}
	pool, err := g.createPool(g.setsPerPool)
	if err != nil {
		return gpu.Null, err
	}
	core.LogDebug("descriptor pool of %d sets created", g.setsPerPool)
	g.setsPerPool = grow(g.setsPerPool)
	return pool, nil
}

// Allocate takes a set from a ready pool. If that pool turns out to be
// exhausted it is retired to full and the allocation is retried once on
// another pool.
func (g *GrowableAllocator) Allocate(layout gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	pool, err := g.getPool()
	if err != nil {
		return gpu.Null, err
	}
	set, err := g.dev.AllocateDescriptorSet(pool, layout)
	if gpu.IsPoolExhausted(err) {
		g.full = append(g.full, pool)
		if pool, err = g.getPool(); err != nil {
			return gpu.Null, err
		}
		set, err = g.dev.AllocateDescriptorSet(pool, layout)
	}
	g.ready = append(g.ready, pool)
	if err != nil {
		return gpu.Null, fmt.Errorf("allocate descriptor set: %w", err)
	}
	return set, nil
}

// ClearPools resets every pool and makes all of them ready again. No set
// from these pools may still be in use by the device.
func (g *GrowableAllocator) ClearPools() error {
	for _, pool := range g.ready {
		if err := g.dev.ResetDescriptorPool(pool); err != nil {
			return err
		}
	}
	for _, pool := range g.full {
		if err := g.dev.ResetDescriptorPool(pool); err != nil {
			return err
		}
		g.ready = append(g.ready, pool)
	}
	g.full = g.full[:0]
	return nil
}

func (g *GrowableAllocator) DestroyPools() {
	for _, pool := range g.ready {
		g.dev.Destroy(pool)
	}
	for _, pool := range g.full {
		g.dev.Destroy(pool)
	}
	g.ready = g.ready[:0]
	g.full = g.full[:0]
}

func (g *GrowableAllocator) Release() error {
	g.DestroyPools()
	return nil
}

// Pools is the number of pools owned, ready or full.
func (g *GrowableAllocator) Pools() int {
	return len(g.ready) + len(g.full)
}
