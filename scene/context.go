package scene

import "sync"

// RenderContext guards the renderer-owned resources of a scene: cached point batches and marker
// geometry. They may only be created, destroyed or drawn while the context is current.
type RenderContext struct {
	mu sync.Mutex
}

// MakeCurrent blocks until the context is available and makes it current. The returned func
// releases it and is safe to call more than once.
func (rc *RenderContext) MakeCurrent() (done func()) {
	rc.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(rc.mu.Unlock)
	}
}

// TryMakeCurrent is MakeCurrent without blocking; ok is false when the context is held elsewhere.
func (rc *RenderContext) TryMakeCurrent() (done func(), ok bool) {
	if !rc.mu.TryLock() {
		return func() {}, false
	}
	var once sync.Once
	return func() {
		once.Do(rc.mu.Unlock)
	}, true
}
