package manager

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrmoran/tilecache/internal/tile"
)

type fakeFetcher struct {
	mu       sync.Mutex
	failOn   map[ID]bool
	delay    time.Duration
	requests []ID
}

func (f *fakeFetcher) GetChunk(path string, cx, cy uint32) ([]byte, error) {
	id := ID{Cx: cx, Cy: cy}

	f.mu.Lock()
	f.requests = append(f.requests, id)
	fail := f.failOn[id]
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	if fail {
		return nil, fmt.Errorf("simulated fetch failure for %v", id)
	}

	return tile.EncodeBlob(4, 4, make([]byte, 4*4*4)), nil
}

type fakeUploader struct {
	mu        sync.Mutex
	uploaded  int
	released  int
	failAll   bool
}

func (u *fakeUploader) Upload(pixels []byte, width, height uint32) (any, error) {
	if u.failAll {
		return nil, fmt.Errorf("simulated upload failure")
	}
	u.mu.Lock()
	u.uploaded++
	u.mu.Unlock()
	return "texture-handle", nil
}

func (u *fakeUploader) Release(texture any) {
	u.mu.Lock()
	u.released++
	u.mu.Unlock()
}

func testGrid(t *testing.T) tile.Grid {
	t.Helper()
	grid, err := tile.ComputeGrid(16, 16, 4)
	require.NoError(t, err)
	return grid
}

func waitForStats(t *testing.T, m *ChunkManager, wantInGpu, wantError int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, _, _, inGpu, errored := m.StatusStats()
		if inGpu == wantInGpu && errored == wantError {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for inGpu=%d error=%d", wantInGpu, wantError)
}

func TestManagerLoadsAllChunksSuccessfully(t *testing.T) {
	grid := testGrid(t)
	fetcher := &fakeFetcher{}
	uploader := &fakeUploader{}

	m := New(fetcher, uploader, 2)
	m.Initialize("source.png", grid)

	var readyMu sync.Mutex
	var ready []ID
	m.SetOnReady(func(id ID) {
		readyMu.Lock()
		ready = append(ready, id)
		readyMu.Unlock()
	})

	for _, info := range grid.Chunks {
		m.Request(ID{Cx: info.Cx, Cy: info.Cy})
	}

	waitForStats(t, m, len(grid.Chunks), 0)

	readyMu.Lock()
	assert.Len(t, ready, len(grid.Chunks))
	readyMu.Unlock()

	assert.Len(t, m.LoadedChunks(), len(grid.Chunks))
}

func TestManagerRequestIsIdempotent(t *testing.T) {
	grid := testGrid(t)
	fetcher := &fakeFetcher{delay: 20 * time.Millisecond}
	uploader := &fakeUploader{}

	m := New(fetcher, uploader, 1)
	m.Initialize("source.png", grid)

	id := ID{Cx: 0, Cy: 0}
	m.Request(id)
	m.Request(id)
	m.Request(id)

	// Run to completion for every id (request the rest too), then check
	// the fetcher only ever saw one call for the repeatedly requested id.
	for _, info := range grid.Chunks {
		m.Request(ID{Cx: info.Cx, Cy: info.Cy})
	}

	waitForStats(t, m, len(grid.Chunks), 0)

	fetcher.mu.Lock()
	count := 0
	for _, r := range fetcher.requests {
		if r == id {
			count++
		}
	}
	fetcher.mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestManagerFailedFetchTransitionsToError(t *testing.T) {
	grid := testGrid(t)
	fetcher := &fakeFetcher{failOn: map[ID]bool{{Cx: 0, Cy: 0}: true}}
	uploader := &fakeUploader{}

	m := New(fetcher, uploader, 2)
	m.Initialize("source.png", grid)

	for _, info := range grid.Chunks {
		m.Request(ID{Cx: info.Cx, Cy: info.Cy})
	}

	waitForStats(t, m, len(grid.Chunks)-1, 1)

	// A chunk whose get_chunk call fails must go straight from
	// Requesting to Error: it never reaches InCpu, so the uploader
	// must never be asked to upload it (spec.md §4.5).
	uploader.mu.Lock()
	defer uploader.mu.Unlock()
	assert.Equal(t, len(grid.Chunks)-1, uploader.uploaded)
}

func TestManagerConcurrencyNeverExceedsCap(t *testing.T) {
	grid := testGrid(t)
	const cap = 2

	var mu sync.Mutex
	var inFlight, maxSeen int
	fetcher := &trackingFetcher{
		before: func() {
			mu.Lock()
			inFlight++
			if inFlight > maxSeen {
				maxSeen = inFlight
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
		},
		after: func() {
			mu.Lock()
			inFlight--
			mu.Unlock()
		},
	}
	uploader := &fakeUploader{}

	m := New(fetcher, uploader, cap)
	m.Initialize("source.png", grid)

	for _, info := range grid.Chunks {
		m.Request(ID{Cx: info.Cx, Cy: info.Cy})
	}

	waitForStats(t, m, len(grid.Chunks), 0)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, maxSeen, cap)
}

type trackingFetcher struct {
	before, after func()
}

func (f *trackingFetcher) GetChunk(path string, cx, cy uint32) ([]byte, error) {
	f.before()
	defer f.after()
	return tile.EncodeBlob(4, 4, make([]byte, 4*4*4)), nil
}

func TestManagerCleanupReleasesTextures(t *testing.T) {
	grid := testGrid(t)
	fetcher := &fakeFetcher{}
	uploader := &fakeUploader{}

	m := New(fetcher, uploader, 4)
	m.Initialize("source.png", grid)

	for _, info := range grid.Chunks {
		m.Request(ID{Cx: info.Cx, Cy: info.Cy})
	}
	waitForStats(t, m, len(grid.Chunks), 0)

	m.Cleanup()

	uploader.mu.Lock()
	defer uploader.mu.Unlock()
	assert.Equal(t, uploader.uploaded, uploader.released)
}

func TestManagerLoadBatchBlocksUntilAllSettle(t *testing.T) {
	grid := testGrid(t)
	fetcher := &fakeFetcher{failOn: map[ID]bool{{Cx: 0, Cy: 0}: true}}
	uploader := &fakeUploader{}

	m := New(fetcher, uploader, 3)
	m.Initialize("source.png", grid)

	ids := make([]ID, len(grid.Chunks))
	for i, info := range grid.Chunks {
		ids[i] = ID{Cx: info.Cx, Cy: info.Cy}
	}

	m.LoadBatch(ids)

	_, _, _, inGpu, errored := m.StatusStats()
	assert.Equal(t, len(ids)-1, inGpu)
	assert.Equal(t, 1, errored)
}

func TestManagerFailedUploadTransitionsToError(t *testing.T) {
	grid := testGrid(t)
	fetcher := &fakeFetcher{}
	uploader := &fakeUploader{failAll: true}

	m := New(fetcher, uploader, 2)
	m.Initialize("source.png", grid)

	for _, info := range grid.Chunks {
		m.Request(ID{Cx: info.Cx, Cy: info.Cy})
	}

	waitForStats(t, m, 0, len(grid.Chunks))
}
