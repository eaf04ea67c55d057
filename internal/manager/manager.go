// Package manager implements the viewer-side chunk manager: the
// per-chunk state machine, bounded-concurrency load scheduler, blob
// parsing, and GPU upload handoff (spec.md §4.5).
package manager

import (
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jrmoran/tilecache/internal/errs"
	"github.com/jrmoran/tilecache/internal/tile"
)

// ChunkState is the lifecycle variant of one chunk in the viewer
// (spec.md §3).
type ChunkState int

const (
	Unrequested ChunkState = iota
	Requesting
	InCpu
	InGpu
	Error
)

func (s ChunkState) String() string {
	switch s {
	case Unrequested:
		return "Unrequested"
	case Requesting:
		return "Requesting"
	case InCpu:
		return "InCpu"
	case InGpu:
		return "InGpu"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// ID identifies a chunk by its grid indices.
type ID struct {
	Cx, Cy uint32
}

// ChunkFetcher is the narrow dependency the manager needs from the
// chunk server: retrieving one chunk's framed blob bytes.
type ChunkFetcher interface {
	GetChunk(path string, cx, cy uint32) ([]byte, error)
}

// GPUUploader is the contract-only collaborator that turns decoded
// pixels into a GPU texture handle. The renderer and its texture
// backend are out of scope; this interface is the whole of the
// manager's dependency on them (spec.md §4.5 "GPU upload").
type GPUUploader interface {
	Upload(pixels []byte, width, height uint32) (texture any, err error)
	Release(texture any)
}

// entry is the manager's per-chunk bookkeeping.
type entry struct {
	Info       tile.Info
	State      ChunkState
	Texture    any
	LastAccess time.Time
	Err        error
}

// ChunkManager drives progressive, bounded-concurrency chunk loading
// for a single opened source.
type ChunkManager struct {
	fetcher  ChunkFetcher
	uploader GPUUploader
	cap      int64
	sem      *semaphore.Weighted

	mu      sync.Mutex
	path    string
	entries map[ID]*entry
	queue   []ID
	queued  map[ID]bool
	waiters map[ID][]chan struct{}
	onReady func(ID)
}

// New creates a ChunkManager. cap bounds the number of outstanding
// request-and-upload pipelines in flight at once (spec.md §4.5; default
// recommended by the spec is 3), enforced with a counting semaphore the
// same way the teacher's encode permits bound in-flight encode chunks.
func New(fetcher ChunkFetcher, uploader GPUUploader, cap int) *ChunkManager {
	if cap < 1 {
		cap = 1
	}
	return &ChunkManager{
		fetcher:  fetcher,
		uploader: uploader,
		cap:      int64(cap),
		sem:      semaphore.NewWeighted(int64(cap)),
		entries:  make(map[ID]*entry),
		queued:   make(map[ID]bool),
		waiters:  make(map[ID][]chan struct{}),
	}
}

// Initialize installs metadata for path and creates one ChunkState per
// ChunkInfo, all starting Unrequested. Any prior state is dropped
// without releasing textures — callers should Cleanup() before
// switching sources.
func (m *ChunkManager) Initialize(path string, grid tile.Grid) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.path = path
	m.entries = make(map[ID]*entry, len(grid.Chunks))
	m.queue = nil
	m.queued = make(map[ID]bool)
	m.waiters = make(map[ID][]chan struct{})
	m.sem = semaphore.NewWeighted(m.cap)

	for _, info := range grid.Chunks {
		m.entries[ID{Cx: info.Cx, Cy: info.Cy}] = &entry{Info: info, State: Unrequested}
	}
}

// SetOnReady installs a callback invoked each time a chunk reaches InGpu.
func (m *ChunkManager) SetOnReady(cb func(ID)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReady = cb
}

// Request enqueues id for loading. Idempotent: ignored if the chunk is
// already Requesting, InCpu, or InGpu, or already queued (spec.md §4.5).
func (m *ChunkManager) Request(id ID) {
	m.mu.Lock()

	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	if e.State == Requesting || e.State == InCpu || e.State == InGpu {
		m.mu.Unlock()
		return
	}
	if m.queued[id] {
		m.mu.Unlock()
		return
	}

	m.queue = append(m.queue, id)
	m.queued[id] = true
	m.startNextLocked()
	m.mu.Unlock()
}

// startNextLocked dequeues and starts work while a semaphore permit is
// available. Must be called with m.mu held.
func (m *ChunkManager) startNextLocked() {
	for len(m.queue) > 0 && m.sem.TryAcquire(1) {
		id := m.queue[0]
		m.queue = m.queue[1:]
		delete(m.queued, id)

		e := m.entries[id]
		e.State = Requesting

		go m.run(id)
	}
}

// run executes one chunk's request-parse-upload pipeline, then settles
// the in-flight slot and starts the next queued chunk.
func (m *ChunkManager) run(id ID) {
	pixels, width, height, err := m.fetchAndParse(id)
	if err != nil {
		m.settle(id, nil, err)
		return
	}

	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	e.State = InCpu
	m.mu.Unlock()

	texture, err := m.uploader.Upload(pixels, width, height)
	if err != nil {
		m.settle(id, nil, errs.Wrap(errs.GpuUploadFailed, "texture upload failed", err))
		return
	}

	m.settle(id, texture, nil)
}

// fetchAndParse performs the get_chunk call and blob framing
// validation (spec.md §4.5 "Blob parsing").
func (m *ChunkManager) fetchAndParse(id ID) (pixels []byte, width, height uint32, err error) {
	m.mu.Lock()
	path := m.path
	m.mu.Unlock()

	raw, err := m.fetcher.GetChunk(path, id.Cx, id.Cy)
	if err != nil {
		return nil, 0, 0, err
	}

	decoded, err := tile.DecodeBlob(raw)
	if err != nil {
		return nil, 0, 0, err
	}

	return decoded.Pixels, decoded.Width, decoded.Height, nil
}

// settle transitions id to InGpu (success) or Error (failure), releases
// its in-flight slot, invokes the ready callback on success, and starts
// the next queued chunk (spec.md §4.5 "After each settle").
func (m *ChunkManager) settle(id ID, texture any, err error) {
	m.mu.Lock()

	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return
	}

	m.sem.Release(1)
	e.LastAccess = time.Now()

	if err != nil {
		e.State = Error
		e.Err = err
		waiters := m.waiters[id]
		delete(m.waiters, id)
		m.startNextLocked()
		m.mu.Unlock()
		closeAll(waiters)
		return
	}

	e.State = InGpu
	e.Texture = texture
	cb := m.onReady
	waiters := m.waiters[id]
	delete(m.waiters, id)
	m.startNextLocked()
	m.mu.Unlock()

	closeAll(waiters)
	if cb != nil {
		cb(id)
	}
}

func closeAll(chans []chan struct{}) {
	for _, ch := range chans {
		close(ch)
	}
}

// waitFor returns a channel that closes once id next settles (reaches
// InGpu or Error). If id is unknown or already settled, the returned
// channel is already closed.
func (m *ChunkManager) waitFor(id ID) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok || e.State == InGpu || e.State == Error {
		ch := make(chan struct{})
		close(ch)
		return ch
	}

	ch := make(chan struct{})
	m.waiters[id] = append(m.waiters[id], ch)
	return ch
}

// LoadBatch requests every chunk in ids and blocks until all of them
// have settled (reached InGpu or Error). This is the scheduler's
// inter-batch join barrier (spec.md §4.6, §5): batch k+1 must not begin
// until every request in batch k has settled, success or failure alike.
func (m *ChunkManager) LoadBatch(ids []ID) {
	chans := make([]<-chan struct{}, len(ids))
	for i, id := range ids {
		chans[i] = m.waitFor(id)
		m.Request(id)
	}
	for _, ch := range chans {
		<-ch
	}
}

// LoadedChunks returns every chunk currently in InGpu.
func (m *ChunkManager) LoadedChunks() []ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ID
	for id, e := range m.entries {
		if e.State == InGpu {
			out = append(out, id)
		}
	}
	return out
}

// StatusStats returns a count per ChunkState variant.
func (m *ChunkManager) StatusStats() (unrequested, requesting, inCpu, inGpu, errored int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		switch e.State {
		case Unrequested:
			unrequested++
		case Requesting:
			requesting++
		case InCpu:
			inCpu++
		case InGpu:
			inGpu++
		case Error:
			errored++
		}
	}
	return
}

// Cleanup releases every InGpu texture and clears all state.
func (m *ChunkManager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.State == InGpu && e.Texture != nil {
			m.uploader.Release(e.Texture)
		}
	}

	m.entries = make(map[ID]*entry)
	m.queue = nil
	m.queued = make(map[ID]bool)
	m.waiters = make(map[ID][]chan struct{})
	m.sem = semaphore.NewWeighted(m.cap)
	m.path = ""
}
