// Package persist implements the node's lazy write-behind persistence for
// ACL, region-map, and prefs state (spec.md §2 component C12, §4.11).
package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dantte-lp/meshrepd/internal/clock"
)

// Kind identifies which store a mark_dirty call refers to (spec.md §4.11:
// "mark_dirty(kind) starts or extends a coalescing timer").
type Kind int

// Recognized dirty kinds.
const (
	KindACL Kind = iota
	KindRegions
	KindPrefs
)

func (k Kind) String() string {
	switch k {
	case KindACL:
		return "acl"
	case KindRegions:
		return "regions"
	case KindPrefs:
		return "prefs"
	default:
		return "unknown"
	}
}

// CoalesceWindow is the default coalescing delay before a dirty kind is
// flushed to disk (spec.md §4.11: "a coalescing timer (a few seconds)").
const CoalesceWindow = 5 * time.Second

// Encoder produces the bytes to persist for a given kind. The core
// supplies one per kind (ACL.Encode, RegionMap export, prefs encode).
type Encoder func() ([]byte, error)

// Store coalesces mark_dirty calls per kind and flushes via atomic
// temp-file-then-rename writes when the CoreLoop's tick observes an
// expired deadline (spec.md §4.12: CoreLoop "check each timer ...
// dirty-contacts"). Store itself performs no background goroutines or
// timers of its own — the single-threaded CoreLoop drives it, matching
// spec.md §5's "no blocking operations" and "mutated only from the main
// thread" model.
type Store struct {
	mu       sync.Mutex
	dir      string
	clk      clock.Clock
	window   time.Duration
	encoders map[Kind]Encoder
	deadline map[Kind]time.Time // zero means not pending
}

// New returns a Store rooted at dir, using clk for deadline bookkeeping.
func New(dir string, clk clock.Clock) *Store {
	return &Store{
		dir:      dir,
		clk:      clk,
		window:   CoalesceWindow,
		encoders: make(map[Kind]Encoder),
		deadline: make(map[Kind]time.Time),
	}
}

// SetEncoder registers the byte-producing function for a kind.
func (s *Store) SetEncoder(kind Kind, enc Encoder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encoders[kind] = enc
}

// MarkDirty starts or extends the coalescing deadline for kind (spec.md
// §4.11). Guest logins must call neither this nor trigger any ACL write
// (hot-path write avoidance is enforced by the caller, not here).
func (s *Store) MarkDirty(kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadline[kind] = s.clk.WallNow().Add(s.window)
}

// Tick checks every kind's deadline against now and flushes those that
// have expired. Returns the kinds that were flushed and the first error
// encountered; per spec.md §7's PersistenceFailure disposition ("leave
// the dirty flag set; the next coalescing tick retries"), a kind whose
// flush fails keeps its deadline armed for nowand the deadline is not
// cleared.
func (s *Store) Tick(now time.Time) ([]Kind, error) {
	s.mu.Lock()
	due := make([]Kind, 0, len(s.deadline))
	for kind, dl := range s.deadline {
		if !dl.IsZero() && !now.Before(dl) {
			due = append(due, kind)
		}
	}
	s.mu.Unlock()

	var flushed []Kind
	var firstErr error
	for _, kind := range due {
		if err := s.flush(kind); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("persist %s: %w", kind, err)
			}
			continue
		}
		flushed = append(flushed, kind)
		s.mu.Lock()
		s.deadline[kind] = time.Time{}
		s.mu.Unlock()
	}

	return flushed, firstErr
}

func (s *Store) flush(kind Kind) error {
	s.mu.Lock()
	enc, ok := s.encoders[kind]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	data, err := enc()
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}

	return AtomicWrite(filepath.Join(s.dir, kind.String()+".bin"), data)
}

// AtomicWrite serialises data to a temporary file in the same directory
// as path, then renames it into place, so a crash mid-write never leaves
// a truncated file at path (spec.md §4.11: "flush the affected store(s)
// with an atomic write: serialise to a temporary file then rename").
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create persist dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s to %s: %w", tmpName, path, err)
	}
	return nil
}

// ReadFile reads a persisted file, returning (nil, false) if it does not
// yet exist — the forward-compatible "defaulting on read" behavior
// spec.md §6 requires ("the only requirement is atomic replacement on
// write and forward-compatible defaulting on read").
func ReadFile(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	return data, true, nil
}
