package robotmodel

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

func testSurface(t *testing.T) *Surface {
	t.Helper()
	s := NewSurface(logging.NewTestLogger(t))
	t.Cleanup(s.Close)
	return s
}

func testPanda(t *testing.T) RobotModel {
	t.Helper()
	m, err := DefaultModel()
	if err != nil {
		t.Fatalf("Failed to load embedded panda model: %v", err)
	}
	return m
}

// TestSurfaceCreation tests basic surface creation and initialization
func TestSurfaceCreation(t *testing.T) {
	s := testSurface(t)

	if s.slots == nil {
		t.Fatal("Surface slots map not initialized")
	}
	if s.Len() != 0 {
		t.Fatal("Surface should start empty")
	}
}

func TestNewHandlesAreDistinctAndEmpty(t *testing.T) {
	s := testSurface(t)

	a := s.New()
	b := s.New()
	if a == NullHandle || b == NullHandle {
		t.Fatal("New must never return the null handle")
	}
	if a == b {
		t.Fatalf("Expected distinct handles, got %d twice", a)
	}

	st, err := s.Status(a)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.Populated {
		t.Error("Fresh handle should be empty")
	}
}

func TestDeleteNeverPopulated(t *testing.T) {
	s := testSurface(t)

	h := s.New()
	s.Delete(h)

	if s.Len() != 0 {
		t.Fatalf("Expected no handles after delete, got %d", s.Len())
	}
	if _, err := s.Status(h); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("Expected ErrUnknownHandle for deleted handle, got %v", err)
	}
}

func TestDeleteNullAndUnknownIsNoop(t *testing.T) {
	s := testSurface(t)
	h := s.New()

	for _, candidate := range []Handle{NullHandle, h + 1, h + 1000, ^Handle(0)} {
		s.Delete(candidate)
	}
	// Deleting twice is also a no-op.
	s.Delete(h)
	s.Delete(h)

	if s.Len() != 0 {
		t.Fatalf("Expected no handles, got %d", s.Len())
	}
}

func TestAssignAndQuery(t *testing.T) {
	s := testSurface(t)
	h := s.New()

	if err := s.Assign(h, testPanda(t)); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	name, err := s.Name(h)
	if err != nil {
		t.Fatalf("Name failed: %v", err)
	}
	if name != "panda" {
		t.Errorf("Expected name panda, got %q", name)
	}

	frame, err := s.ModelFrame(h)
	if err != nil {
		t.Fatalf("ModelFrame failed: %v", err)
	}
	if frame != "panda_link0" {
		t.Errorf("Expected model frame panda_link0, got %q", frame)
	}

	root, err := s.RootJointName(h)
	if err != nil {
		t.Fatalf("RootJointName failed: %v", err)
	}
	if root != "panda_joint1" {
		t.Errorf("Expected root joint panda_joint1, got %q", root)
	}

	empty, err := s.IsEmpty(h)
	if err != nil {
		t.Fatalf("IsEmpty failed: %v", err)
	}
	if empty {
		t.Error("Panda model should not be empty")
	}

	info, err := s.PrintModelInfo(h)
	if err != nil {
		t.Fatalf("PrintModelInfo failed: %v", err)
	}
	if info == "" || !strings.Contains(info, "panda") {
		t.Errorf("Expected info to mention the model name, got %q", info)
	}
}

func TestQueriesOnEmptyHandle(t *testing.T) {
	s := testSurface(t)
	h := s.New()

	if _, err := s.Name(h); !errors.Is(err, ErrEmptyHandle) {
		t.Errorf("Name: expected ErrEmptyHandle, got %v", err)
	}
	if _, err := s.ModelFrame(h); !errors.Is(err, ErrEmptyHandle) {
		t.Errorf("ModelFrame: expected ErrEmptyHandle, got %v", err)
	}
	if _, err := s.IsEmpty(h); !errors.Is(err, ErrEmptyHandle) {
		t.Errorf("IsEmpty: expected ErrEmptyHandle, got %v", err)
	}
	if _, err := s.PrintModelInfo(h); !errors.Is(err, ErrEmptyHandle) {
		t.Errorf("PrintModelInfo: expected ErrEmptyHandle, got %v", err)
	}
	if _, err := s.RootJointName(h); !errors.Is(err, ErrEmptyHandle) {
		t.Errorf("RootJointName: expected ErrEmptyHandle, got %v", err)
	}
}

func TestQueriesOnUnknownHandle(t *testing.T) {
	s := testSurface(t)

	if _, err := s.Name(NullHandle); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("Expected ErrUnknownHandle for null handle, got %v", err)
	}
	if err := s.Release(42); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("Expected ErrUnknownHandle on release, got %v", err)
	}
	if err := s.Assign(42, testPanda(t)); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("Expected ErrUnknownHandle on assign, got %v", err)
	}
}

func TestReleaseEmptiesHandle(t *testing.T) {
	s := testSurface(t)
	h := s.New()
	if err := s.Assign(h, testPanda(t)); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	if err := s.Release(h); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if s.Len() != 1 {
		t.Fatal("Release must not free the handle itself")
	}
	if _, err := s.Name(h); !errors.Is(err, ErrEmptyHandle) {
		t.Fatalf("Expected ErrEmptyHandle after release, got %v", err)
	}

	// Releasing an already empty handle is harmless.
	if err := s.Release(h); err != nil {
		t.Fatalf("Second release failed: %v", err)
	}
}

func TestShareReferenceCounting(t *testing.T) {
	s := testSurface(t)
	a := s.New()
	b := s.New()
	if err := s.Assign(a, testPanda(t)); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if err := s.Share(b, a); err != nil {
		t.Fatalf("Share failed: %v", err)
	}

	frameA, _ := s.ModelFrame(a)
	frameB, _ := s.ModelFrame(b)
	if frameA != frameB {
		t.Fatalf("Shared handles report different frames: %q vs %q", frameA, frameB)
	}

	stA, _ := s.Status(a)
	stB, _ := s.Status(b)
	if stA.ModelID != stB.ModelID {
		t.Fatalf("Expected shared model ID, got %s and %s", stA.ModelID, stB.ModelID)
	}
	if stA.RefCount != 2 {
		t.Fatalf("Expected refCount 2, got %d", stA.RefCount)
	}

	// Sharing again with the same model does not add a reference.
	if err := s.Share(b, a); err != nil {
		t.Fatalf("Repeated share failed: %v", err)
	}
	stA, _ = s.Status(a)
	if stA.RefCount != 2 {
		t.Fatalf("Expected refCount to stay 2, got %d", stA.RefCount)
	}

	// The model outlives the original holder.
	if err := s.Release(a); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	name, err := s.Name(b)
	if err != nil || name != "panda" {
		t.Fatalf("Expected surviving holder to report panda, got %q (%v)", name, err)
	}
	stB, _ = s.Status(b)
	if stB.RefCount != 1 {
		t.Fatalf("Expected refCount 1 after release, got %d", stB.RefCount)
	}
}

func TestShareErrors(t *testing.T) {
	s := testSurface(t)
	a := s.New()
	b := s.New()

	if err := s.Share(b, a); !errors.Is(err, ErrEmptyHandle) {
		t.Errorf("Expected ErrEmptyHandle sharing from empty handle, got %v", err)
	}
	if err := s.Share(b, 99); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("Expected ErrUnknownHandle for unknown source, got %v", err)
	}
	if err := s.Share(99, a); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("Expected ErrUnknownHandle for unknown destination, got %v", err)
	}
}

func TestAssignReplacesModel(t *testing.T) {
	s := testSurface(t)
	a := s.New()
	b := s.New()
	if err := s.Assign(a, testPanda(t)); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if err := s.Share(b, a); err != nil {
		t.Fatalf("Share failed: %v", err)
	}

	other, err := LoadModel(pandaModelJSON, "other")
	if err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}
	if err := s.Assign(a, other); err != nil {
		t.Fatalf("Reassign failed: %v", err)
	}

	nameA, _ := s.Name(a)
	nameB, _ := s.Name(b)
	if nameA != "other" || nameB != "panda" {
		t.Fatalf("Expected other/panda, got %s/%s", nameA, nameB)
	}
	stB, _ := s.Status(b)
	if stB.RefCount != 1 {
		t.Fatalf("Expected refCount 1 for previously shared model, got %d", stB.RefCount)
	}

	if err := s.Assign(a, nil); err == nil {
		t.Fatal("Expected error assigning nil model")
	}
}

// TestConcurrentAccess tests concurrent handle operations
func TestConcurrentAccess(t *testing.T) {
	s := testSurface(t)
	source := s.New()
	if err := s.Assign(source, testPanda(t)); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	const numGoroutines = 16
	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			h := s.New()
			defer s.Delete(h)
			if err := s.Share(h, source); err != nil {
				errs <- fmt.Errorf("goroutine %d: %w", id, err)
				return
			}
			if name, err := s.Name(h); err != nil || name != "panda" {
				errs <- fmt.Errorf("goroutine %d: got %q (%v)", id, name, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	st, err := s.Status(source)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.RefCount != 1 {
		t.Fatalf("Expected refCount 1 after all sharers deleted, got %d", st.RefCount)
	}
	if s.Len() != 1 {
		t.Fatalf("Expected 1 handle, got %d", s.Len())
	}
}

func TestCloseDeletesAllHandles(t *testing.T) {
	s := NewSurface(logging.NewTestLogger(t))
	a := s.New()
	s.New()
	if err := s.Assign(a, testPanda(t)); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	s.Close()

	if s.Len() != 0 {
		t.Fatalf("Expected 0 handles after close, got %d", s.Len())
	}
	if _, err := s.Name(a); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("Expected ErrUnknownHandle after close, got %v", err)
	}
}
