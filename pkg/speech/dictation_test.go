package speech

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDictationTracksManager(t *testing.T) {
	rec := newFakeRecognizer()
	d, err := NewDictation(rec.provider(), DictationOptions(), nil)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, Snapshot{Supported: true}, d.Snapshot())

	var (
		mu      sync.Mutex
		changes []Snapshot
	)
	unsubscribe := d.OnChange(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, s)
	})

	d.Start()
	rec.emit(Event{Type: EventStart})
	rec.final("buy milk")
	eventually(t, func() bool { return d.Snapshot().Transcript == "buy milk" }, "transcript")

	snap := d.Snapshot()
	assert.True(t, snap.IsListening)
	assert.True(t, snap.Supported)
	assert.Empty(t, snap.Error)

	d.Reset()
	assert.Equal(t, "", d.Snapshot().Transcript)

	d.Stop()
	rec.emit(Event{Type: EventEnd})
	eventually(t, func() bool { return !d.Snapshot().IsListening }, "stopped")

	unsubscribe()
	mu.Lock()
	count := len(changes)
	mu.Unlock()
	assert.GreaterOrEqual(t, count, 4)

	d.Reset()
	mu.Lock()
	assert.Len(t, changes, count, "no deliveries after unsubscribe")
	mu.Unlock()

	rec.mu.Lock()
	assert.False(t, rec.opts.InterimResults)
	rec.mu.Unlock()
}

func TestDictationUnsupported(t *testing.T) {
	provider := func() (Recognizer, error) {
		return nil, fmt.Errorf("%w: no speech command configured", ErrUnsupported)
	}

	d, err := NewDictation(provider, DictationOptions(), nil)
	require.NoError(t, err)
	defer d.Close()

	snap := d.Snapshot()
	assert.False(t, snap.Supported)
	assert.Contains(t, snap.Error, "not supported")

	d.Start()
	snap = d.Snapshot()
	assert.False(t, snap.Supported)
	assert.False(t, snap.IsListening)
	assert.Contains(t, snap.Error, "not supported", "the retry reports again")
}

func TestDictationStartClearsError(t *testing.T) {
	rec := newFakeRecognizer()
	d, err := NewDictation(rec.provider(), DictationOptions(), nil)
	require.NoError(t, err)
	defer d.Close()

	d.Start()
	rec.emit(Event{Type: EventStart})
	rec.emit(Event{Type: EventError, Err: "no-speech"})
	eventually(t, func() bool { return d.Snapshot().Error != "" }, "error recorded")
	assert.True(t, d.Snapshot().Supported)

	d.Stop()
	rec.emit(Event{Type: EventEnd})
	eventually(t, func() bool { return !d.Snapshot().IsListening }, "stopped")

	d.Start()
	assert.Empty(t, d.Snapshot().Error)
}

func TestDictationCloseStopsActiveSession(t *testing.T) {
	rec := newFakeRecognizer()
	d, err := NewDictation(rec.provider(), DictationOptions(), nil)
	require.NoError(t, err)

	d.Start()
	rec.emit(Event{Type: EventStart})
	eventually(t, func() bool { return d.Snapshot().IsListening }, "listening")

	require.NoError(t, d.Close())

	_, stops := rec.counts()
	assert.Equal(t, 1, stops)
	assert.True(t, rec.closed)
}

func TestDictationRejectsInvalidOptions(t *testing.T) {
	_, err := NewDictation(newFakeRecognizer().provider(), Options{}, nil)
	assert.Error(t, err)
}
