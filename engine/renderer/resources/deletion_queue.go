package resources

import (
	"errors"

	"github.com/spaghettifunk/lantern/engine/containers"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

// Releaser is a resource that can hand its device objects back.
type Releaser interface {
	Release() error
}

// ReleaseFunc adapts a plain teardown function to a Releaser.
type ReleaseFunc func() error

func (f ReleaseFunc) Release() error { return f() }

type deviceObject struct {
	dev gpu.Device
	obj gpu.Object
}

func (o deviceObject) Release() error {
	o.dev.Destroy(o.obj)
	return nil
}

// DeletionQueue is a resource arena. Resources are registered right after
// they are created and Flush destroys them last-in first-out, so anything
// built on top of another resource goes before it.
type DeletionQueue struct {
	entries containers.Stack[Releaser]
}

func NewDeletionQueue() *DeletionQueue {
	return &DeletionQueue{}
}

func (q *DeletionQueue) Push(r Releaser) {
	q.entries.Push(r)
}

// PushObjects registers raw device objects. Each object is its own entry,
// so objs are destroyed in reverse argument order.
func (q *DeletionQueue) PushObjects(dev gpu.Device, objs ...gpu.Object) {
	for _, o := range objs {
		q.entries.Push(deviceObject{dev: dev, obj: o})
	}
}

// Flush releases every entry, newest first. It keeps going past failures
// and returns them joined.
func (q *DeletionQueue) Flush() error {
	var errs []error
	q.entries.Drain(func(r Releaser) {
		if err := r.Release(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

func (q *DeletionQueue) Len() int {
	return q.entries.Len()
}
