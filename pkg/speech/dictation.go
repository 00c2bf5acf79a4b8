package speech

import (
	"sync"

	"github.com/entrhq/memos/pkg/logging"
)

// Snapshot is the dictation state presented to an editor.
type Snapshot struct {
	Transcript  string
	IsListening bool
	Error       string
	Supported   bool
}

// Dictation adapts a Manager for an editing surface. It keeps the latest
// Snapshot and fans changes out to OnChange listeners.
type Dictation struct {
	manager *Manager

	mu        sync.Mutex
	snap      Snapshot
	listeners map[int]func(Snapshot)
	nextID    int
}

// NewDictation creates a Manager with opts and tracks its state. Use
// DictationOptions for the editor defaults.
func NewDictation(provider Provider, opts Options, log *logging.Logger) (*Dictation, error) {
	if log == nil {
		log = logging.Discard()
	}

	d := &Dictation{
		snap:      Snapshot{Supported: true},
		listeners: make(map[int]func(Snapshot)),
	}

	m, err := NewManager(provider, opts, WithLogger(log), WithCallbacks(Callbacks{
		OnTranscriptChange: func(t string) {
			d.set(func(s *Snapshot) { s.Transcript = t })
		},
		OnListeningChange: func(l bool) {
			d.set(func(s *Snapshot) { s.IsListening = l })
		},
		OnError: func(msg string) {
			d.set(func(s *Snapshot) {
				s.Error = msg
				if IsUnsupported(msg) {
					s.Supported = false
				}
			})
		},
	}))
	if err != nil {
		return nil, err
	}
	d.manager = m
	return d, nil
}

func (d *Dictation) set(fn func(*Snapshot)) {
	d.mu.Lock()
	fn(&d.snap)
	snap := d.snap
	listeners := make([]func(Snapshot), 0, len(d.listeners))
	for _, l := range d.listeners {
		listeners = append(listeners, l)
	}
	d.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

// Snapshot returns the current state.
func (d *Dictation) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snap
}

// OnChange registers fn for every state change and returns a function
// that removes it.
func (d *Dictation) OnChange(fn func(Snapshot)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.listeners[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.listeners, id)
	}
}

// Start clears the error and begins listening.
func (d *Dictation) Start() {
	d.set(func(s *Snapshot) { s.Error = "" })
	d.manager.StartListening()
}

// Stop ends listening.
func (d *Dictation) Stop() {
	d.manager.StopListening()
}

// Reset clears the transcript.
func (d *Dictation) Reset() {
	d.manager.ResetTranscript()
}

// Close stops an active session and releases the recognizer.
func (d *Dictation) Close() error {
	if d.manager.IsListening() {
		d.manager.StopListening()
	}
	return d.manager.Close()
}
