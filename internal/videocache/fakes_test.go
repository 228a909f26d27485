package videocache

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hszk-dev/vidcache/internal/domain/model"
	"github.com/hszk-dev/vidcache/internal/domain/repository"
	"github.com/hszk-dev/vidcache/internal/media"
)

// fakeStore is an in-memory StateStore with failure injection.
type fakeStore struct {
	mu        sync.Mutex
	data      map[string][]byte
	loadErr   error
	saveErr   error
	deleteErr error
	saves     int
	deletes   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (s *fakeStore) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	data, ok := s.data[key]
	if !ok {
		return nil, repository.ErrStateNotFound
	}
	return data, nil
}

func (s *fakeStore) Save(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data[key] = append([]byte(nil), data...)
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.data, key)
	return nil
}

func (s *fakeStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *fakeStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

// fakeDecoder hands out fakeSessions and records what it opened.
type fakeDecoder struct {
	probe   media.Probe
	openErr error
	loadErr error
	seekErr error
	// gate, when set, delays the metadata signal until it is closed.
	gate chan struct{}
	// opened is signalled on every Open when set.
	opened chan struct{}

	mu       sync.Mutex
	sessions []*fakeSession
	paths    []string
	opens    atomic.Int32
}

func (d *fakeDecoder) Open(ctx context.Context, path string) (media.Session, error) {
	d.opens.Add(1)
	if d.opened != nil {
		d.opened <- struct{}{}
	}
	if d.openErr != nil {
		return nil, d.openErr
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	s := &fakeSession{decoder: d, loaded: make(chan media.LoadResult, 1)}

	d.mu.Lock()
	d.sessions = append(d.sessions, s)
	d.paths = append(d.paths, path)
	d.mu.Unlock()

	go func() {
		if d.gate != nil {
			<-d.gate
		}
		s.loaded <- media.LoadResult{Probe: d.probe, Err: d.loadErr}
	}()

	return s, nil
}

func (d *fakeDecoder) lastSession() *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sessions) == 0 {
		return nil
	}
	return d.sessions[len(d.sessions)-1]
}

func (d *fakeDecoder) lastPath() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.paths) == 0 {
		return ""
	}
	return d.paths[len(d.paths)-1]
}

// fakeSession produces a frame only after a seek has completed.
type fakeSession struct {
	decoder *fakeDecoder
	loaded  chan media.LoadResult

	mu     sync.Mutex
	seekTo []time.Duration
	frame  image.Image
	closed bool
}

func (s *fakeSession) Loaded() <-chan media.LoadResult {
	return s.loaded
}

func (s *fakeSession) Seek(at time.Duration) <-chan error {
	done := make(chan error, 1)
	go func() {
		// Land the seek asynchronously, as a real decoder would.
		time.Sleep(time.Millisecond)
		if s.decoder.seekErr != nil {
			done <- s.decoder.seekErr
			return
		}
		s.mu.Lock()
		s.seekTo = append(s.seekTo, at)
		s.frame = image.NewRGBA(image.Rect(0, 0, 64, 36))
		s.mu.Unlock()
		done <- nil
	}()
	return done
}

func (s *fakeSession) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil, media.ErrNoFrame
	}
	return s.frame, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeRasterizer records the canvas it was asked for.
type fakeRasterizer struct {
	mu      sync.Mutex
	calls   int
	width   int
	height  int
	quality float64
	err     error
}

const fakeThumbnail = "data:image/jpeg;base64,dGh1bWI="

func (r *fakeRasterizer) Rasterize(frame image.Image, width, height int, quality float64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.width, r.height, r.quality = width, height, quality
	if r.err != nil {
		return "", r.err
	}
	if frame == nil {
		return "", media.ErrNoFrame
	}
	return fakeThumbnail, nil
}

type fakePreview struct {
	err   error
	calls atomic.Int32
}

const fakePreviewClip = "data:video/mp4;base64,Y2xpcA=="

func (p *fakePreview) GeneratePreview(ctx context.Context, path string, probe media.Probe) (string, error) {
	p.calls.Add(1)
	if p.err != nil {
		return "", p.err
	}
	return fakePreviewClip, nil
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1700000000000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig scales the byte budget down to 100 bytes so tests can use
// small files while keeping the default count and expiry.
func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MaxBytes = 100
	cfg.TempDir = t.TempDir()
	return cfg
}

func defaultProbe() media.Probe {
	return media.Probe{Duration: 20, Width: 1280, Height: 720, Format: "video/mp4"}
}

type testEnv struct {
	cache      *Cache
	store      *fakeStore
	decoder    *fakeDecoder
	rasterizer *fakeRasterizer
	clock      *fakeClock
}

func newTestEnv(t *testing.T, cfg Config, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		store:      newFakeStore(),
		decoder:    &fakeDecoder{probe: defaultProbe()},
		rasterizer: &fakeRasterizer{},
		clock:      newFakeClock(),
	}
	env.cache = env.open(t, cfg, opts...)
	return env
}

// open builds a cache over the env's store, as a process restart would.
func (env *testEnv) open(t *testing.T, cfg Config, opts ...Option) *Cache {
	t.Helper()
	base := []Option{
		WithRasterizer(env.rasterizer),
		WithClock(env.clock.Now),
		WithLogger(discardLogger()),
	}
	c, err := New(context.Background(), cfg, env.store, env.decoder, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	return c
}

// add adds a file of the given size and advances the clock by one second
// so that consecutive entries have distinct timestamps.
func (env *testEnv) add(t *testing.T, name string, size int) string {
	t.Helper()
	id, err := env.cache.Add(context.Background(), testFile(name, size), nil, model.AddOptions{})
	if err != nil {
		t.Fatalf("Add(%s) unexpected error: %v", name, err)
	}
	env.clock.Advance(time.Second)
	return id
}

func testFile(name string, size int) model.SourceFile {
	return model.SourceFile{
		Name:         name,
		Size:         int64(size),
		LastModified: time.UnixMilli(1690000000000),
		Type:         "video/mp4",
		Data:         bytes.Repeat([]byte{0x42}, size),
	}
}

func assertBounds(t *testing.T, c *Cache) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) > c.cfg.MaxEntries {
		t.Errorf("entries = %d, exceeds max %d", len(c.entries), c.cfg.MaxEntries)
	}
	if c.memoryUsage > c.cfg.MaxBytes {
		t.Errorf("memory usage = %d, exceeds max %d", c.memoryUsage, c.cfg.MaxBytes)
	}
	if len(c.order) != len(c.entries) {
		t.Errorf("order has %d ids, entries has %d", len(c.order), len(c.entries))
	}
	var sum int64
	for _, e := range c.entries {
		sum += e.Metadata.Size
	}
	if sum != c.memoryUsage {
		t.Errorf("memory usage = %d, sum of entry sizes = %d", c.memoryUsage, sum)
	}
}

func cachedIDs(c *Cache) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}
