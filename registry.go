package robotmodel

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// Handle is an opaque token for an ownership slot in a Surface. The zero Handle is null.
type Handle uint64

// NullHandle never refers to an allocated slot.
const NullHandle Handle = 0

var (
	// ErrUnknownHandle is returned for the null handle and for handles that were deleted or never allocated.
	ErrUnknownHandle = errors.New("unknown robot model handle")
	// ErrEmptyHandle is returned when a query is made on a handle that holds no model.
	ErrEmptyHandle = errors.New("robot model handle is empty")
)

// sharedModel is a model co-owned by one or more handles.
type sharedModel struct {
	model    RobotModel
	id       uuid.UUID
	refCount int64 // Atomic reference counter
}

func (s *sharedModel) acquire() *sharedModel {
	atomic.AddInt64(&s.refCount, 1)
	return s
}

// release drops one reference and reports whether it was the last.
func (s *sharedModel) release() bool {
	return atomic.AddInt64(&s.refCount, -1) <= 0
}

// slot is the ownership cell behind a Handle. A nil model means Empty.
type slot struct {
	model *sharedModel
}

// HandleStatus describes the state of a handle's ownership slot.
type HandleStatus struct {
	Populated bool
	ModelID   string
	RefCount  int64
}

// Surface is an arena of handles, each holding an optional shared robot model.
// It is safe for concurrent use.
type Surface struct {
	logger logging.Logger

	slots map[Handle]*slot
	next  Handle
	mu    sync.RWMutex
}

// NewSurface returns an empty Surface.
func NewSurface(logger logging.Logger) *Surface {
	return &Surface{
		logger: logger,
		slots:  make(map[Handle]*slot),
	}
}

// New allocates an Empty handle. The caller must eventually Delete it.
func (s *Surface) New() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	h := s.next
	s.slots[h] = &slot{}
	s.logger.Debugf("allocated robot model handle %d", h)
	return h
}

// Delete frees the handle and drops its model reference. Null and unknown handles are ignored.
func (s *Surface) Delete(h Handle) {
	if h == NullHandle {
		return
	}

	s.mu.Lock()
	sl, exists := s.slots[h]
	delete(s.slots, h)
	s.mu.Unlock()

	if !exists {
		s.logger.Warnf("ignoring delete of unknown robot model handle %d", h)
		return
	}
	s.drop(h, sl.model)
	s.logger.Debugf("freed robot model handle %d", h)
}

// Release empties the handle's slot, dropping one reference to its model.
func (s *Surface) Release(h Handle) error {
	s.mu.Lock()
	sl, exists := s.slots[h]
	if !exists {
		s.mu.Unlock()
		return errors.Wrapf(ErrUnknownHandle, "handle %d", h)
	}
	old := sl.model
	sl.model = nil
	s.mu.Unlock()

	s.drop(h, old)
	return nil
}

// Assign populates the handle with a newly owned model, dropping any model it held before.
func (s *Surface) Assign(h Handle, model RobotModel) error {
	if model == nil {
		return errors.New("cannot assign a nil robot model")
	}
	shared := &sharedModel{model: model, id: uuid.New(), refCount: 1}

	s.mu.Lock()
	sl, exists := s.slots[h]
	if !exists {
		s.mu.Unlock()
		return errors.Wrapf(ErrUnknownHandle, "handle %d", h)
	}
	old := sl.model
	sl.model = shared
	s.mu.Unlock()

	s.drop(h, old)
	s.logger.Infof("handle %d now holds robot model %q (%s)", h, model.Name(), shared.id)
	return nil
}

// Share makes dst a co-owner of the model held by src.
func (s *Surface) Share(dst, src Handle) error {
	s.mu.Lock()
	srcSlot, exists := s.slots[src]
	if !exists {
		s.mu.Unlock()
		return errors.Wrapf(ErrUnknownHandle, "source handle %d", src)
	}
	dstSlot, exists := s.slots[dst]
	if !exists {
		s.mu.Unlock()
		return errors.Wrapf(ErrUnknownHandle, "destination handle %d", dst)
	}
	if srcSlot.model == nil {
		s.mu.Unlock()
		return errors.Wrapf(ErrEmptyHandle, "source handle %d", src)
	}
	old := dstSlot.model
	if old == srcSlot.model {
		s.mu.Unlock()
		return nil
	}
	dstSlot.model = srcSlot.model.acquire()
	s.mu.Unlock()

	s.drop(dst, old)
	return nil
}

func (s *Surface) drop(h Handle, shared *sharedModel) {
	if shared == nil {
		return
	}
	if shared.release() {
		s.logger.Debugf("last reference to robot model %q (%s) dropped by handle %d", shared.model.Name(), shared.id, h)
	}
}

func (s *Surface) model(h Handle) (RobotModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sl, exists := s.slots[h]
	if !exists {
		return nil, errors.Wrapf(ErrUnknownHandle, "handle %d", h)
	}
	if sl.model == nil {
		return nil, errors.Wrapf(ErrEmptyHandle, "handle %d", h)
	}
	return sl.model.model, nil
}

// Name returns the model's name.
func (s *Surface) Name(h Handle) (string, error) {
	m, err := s.model(h)
	if err != nil {
		return "", err
	}
	return m.Name(), nil
}

// ModelFrame returns the name of the model's root reference frame.
func (s *Surface) ModelFrame(h Handle) (string, error) {
	m, err := s.model(h)
	if err != nil {
		return "", err
	}
	return m.ModelFrame(), nil
}

// IsEmpty reports whether the model itself has no content. This is distinct
// from the handle being empty, which is an error.
func (s *Surface) IsEmpty(h Handle) (bool, error) {
	m, err := s.model(h)
	if err != nil {
		return false, err
	}
	return m.IsEmpty(), nil
}

// PrintModelInfo returns the model's diagnostic dump.
func (s *Surface) PrintModelInfo(h Handle) (string, error) {
	m, err := s.model(h)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := m.PrintModelInfo(&buf); err != nil {
		return "", errors.Wrapf(err, "failed to print info for handle %d", h)
	}
	return buf.String(), nil
}

// RootJointName returns the name of the model's root joint.
func (s *Surface) RootJointName(h Handle) (string, error) {
	m, err := s.model(h)
	if err != nil {
		return "", err
	}
	return m.RootJointName(), nil
}

// Status reports the state of the handle's slot.
func (s *Surface) Status(h Handle) (HandleStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sl, exists := s.slots[h]
	if !exists {
		return HandleStatus{}, errors.Wrapf(ErrUnknownHandle, "handle %d", h)
	}
	if sl.model == nil {
		return HandleStatus{}, nil
	}
	return HandleStatus{
		Populated: true,
		ModelID:   sl.model.id.String(),
		RefCount:  atomic.LoadInt64(&sl.model.refCount),
	}, nil
}

// Len returns the number of allocated handles.
func (s *Surface) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// Close deletes every allocated handle.
func (s *Surface) Close() {
	s.mu.Lock()
	slots := s.slots
	s.slots = make(map[Handle]*slot)
	s.mu.Unlock()

	for h, sl := range slots {
		s.drop(h, sl.model)
	}
	if len(slots) > 0 {
		s.logger.Debugf("closed robot model surface with %d live handles", len(slots))
	}
}
