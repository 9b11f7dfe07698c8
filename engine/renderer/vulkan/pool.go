package vulkan

import "sync"

type LockGroup string

const (
	QueueManagement      LockGroup = "queue_management"
	DescriptorManagement LockGroup = "descriptor_management"
	ObjectManagement     LockGroup = "object_management"
)

// lockPool serializes the calls Vulkan requires to be externally
// synchronized, one mutex per group.
type lockPool struct {
	mu    sync.Mutex
	locks map[LockGroup]*sync.Mutex
}

func newLockPool() *lockPool {
	return &lockPool{locks: make(map[LockGroup]*sync.Mutex)}
}

func (p *lockPool) lock(group LockGroup) *sync.Mutex {
	p.mu.Lock()
	l, ok := p.locks[group]
	if !ok {
		l = &sync.Mutex{}
		p.locks[group] = l
	}
	p.mu.Unlock()
	l.Lock()
	return l
}

func (p *lockPool) SafeCall(group LockGroup, fn func() error) error {
	l := p.lock(group)
	defer l.Unlock()
	return fn()
}
