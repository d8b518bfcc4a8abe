package robotmodel

import (
	"sync"
	"sync/atomic"

	"go.viam.com/rdk/logging"
)

var (
	globalSurface *Surface
	surfaceMutex  sync.Mutex
	refCount      int64
)

// AcquireDefaultSurface returns the process-wide Surface, creating it on first use.
// Every call must be paired with ReleaseDefaultSurface.
func AcquireDefaultSurface(logger logging.Logger) *Surface {
	surfaceMutex.Lock()
	defer surfaceMutex.Unlock()

	if globalSurface == nil {
		globalSurface = NewSurface(logger)
		atomic.StoreInt64(&refCount, 0)
	}
	atomic.AddInt64(&refCount, 1)
	return globalSurface
}

// ReleaseDefaultSurface drops one reference to the process-wide Surface. The last
// release closes it, deleting any handles still allocated.
func ReleaseDefaultSurface() {
	surfaceMutex.Lock()
	defer surfaceMutex.Unlock()

	currentRefCount := atomic.AddInt64(&refCount, -1)
	if currentRefCount <= 0 && globalSurface != nil {
		globalSurface.Close()
		globalSurface = nil
		atomic.StoreInt64(&refCount, 0)
	}
}

// DefaultSurfaceStatus reports the reference count of the process-wide Surface
// and whether it currently exists.
func DefaultSurfaceStatus() (int64, bool) {
	surfaceMutex.Lock()
	defer surfaceMutex.Unlock()
	return atomic.LoadInt64(&refCount), globalSurface != nil
}
