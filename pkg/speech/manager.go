package speech

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/entrhq/memos/pkg/logging"
)

// State is the lifecycle state of a Manager.
type State int

const (
	// StateUninitialized means no recognizer has been acquired yet, or the
	// last attempt failed for a reason other than missing support.
	StateUninitialized State = iota
	// StateReady means a recognizer is available and idle.
	StateReady
	// StateListening means a session is active.
	StateListening
	// StateUnsupported means the platform offers no recognizer.
	StateUnsupported
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateListening:
		return "listening"
	case StateUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Callbacks receive Manager notifications. Nil fields are skipped.
// Callbacks run synchronously and must not call back into the Manager.
type Callbacks struct {
	OnTranscriptChange func(transcript string)
	OnListeningChange  func(listening bool)
	OnError            func(message string)
}

// Manager runs a single continuous recognition session.
type Manager struct {
	provider Provider
	opts     Options
	log      *logging.Logger

	// notifyMu orders state changes with their notifications.
	notifyMu sync.Mutex

	mu         sync.Mutex
	rec        Recognizer
	state      State
	listening  bool
	transcript string
	lastError  string
	callbacks  Callbacks
	done       chan struct{}
	closed     bool

	wg sync.WaitGroup
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = l
	}
}

// WithCallbacks installs callbacks before the recognizer is acquired, so
// construction failures are delivered too.
func WithCallbacks(cb Callbacks) ManagerOption {
	return func(m *Manager) {
		m.callbacks = cb
	}
}

// NewManager validates opts and tries to acquire a recognizer from
// provider. Failing to acquire one is not an error: the Manager reports it
// through OnError and retries on the next StartListening.
func NewManager(provider Provider, opts Options, options ...ManagerOption) (*Manager, error) {
	if provider == nil {
		return nil, fmt.Errorf("speech provider is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid speech options: %w", err)
	}

	m := &Manager{
		provider: provider,
		opts:     opts,
		log:      logging.Discard(),
		done:     make(chan struct{}),
	}
	for _, opt := range options {
		opt(m)
	}

	m.initialize()
	return m, nil
}

// initialize acquires and configures a recognizer and starts the event
// loop. It reports whether a recognizer is available afterwards.
func (m *Manager) initialize() bool {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.rec != nil {
		m.mu.Unlock()
		return true
	}
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()

	rec, err := m.provider()
	if err == nil {
		if cerr := rec.Configure(m.opts); cerr != nil {
			closeRecognizer(rec)
			rec, err = nil, cerr
		}
	}

	m.mu.Lock()
	if err != nil {
		var msg string
		if errors.Is(err, ErrUnsupported) {
			m.state = StateUnsupported
			msg = err.Error()
		} else {
			m.state = StateUninitialized
			msg = fmt.Sprintf("failed to initialize speech recognition: %v", err)
		}
		m.lastError = msg
		onError := m.callbacks.OnError
		m.mu.Unlock()

		m.log.Warnf("Speech recognition unavailable: %v", err)
		if onError != nil {
			onError(msg)
		}
		return false
	}

	m.rec = rec
	m.state = StateReady
	m.mu.Unlock()

	m.log.Infof("Speech recognizer ready (language=%s, continuous=%t, interim=%t)",
		m.opts.Language, m.opts.Continuous, m.opts.InterimResults)

	m.wg.Add(1)
	go m.loop(rec)
	return true
}

func (m *Manager) loop(rec Recognizer) {
	defer m.wg.Done()

	events := rec.Events()
	for {
		select {
		case <-m.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.handle(rec, ev)
		}
	}
}

func (m *Manager) handle(rec Recognizer, ev Event) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	switch ev.Type {
	case EventStart:
		m.mu.Lock()
		m.listening = true
		m.state = StateListening
		cb := m.callbacks.OnListeningChange
		m.mu.Unlock()

		m.log.Debugf("Recognition session started")
		if cb != nil {
			cb(true)
		}

	case EventResult:
		m.mu.Lock()
		final := m.transcript
		var interim string
		for _, r := range ev.Results {
			if r.Final {
				final += r.Transcript
			} else {
				interim += r.Transcript
			}
		}
		m.transcript = final
		cb := m.callbacks.OnTranscriptChange
		m.mu.Unlock()

		if cb != nil {
			cb(final + interim)
		}

	case EventError:
		msg := fmt.Sprintf("recognition error: %s", ev.Err)
		m.mu.Lock()
		m.lastError = msg
		cb := m.callbacks.OnError
		m.mu.Unlock()

		m.log.Warnf("%s", msg)
		if cb != nil {
			cb(msg)
		}

	case EventEnd:
		m.mu.Lock()
		restart := m.listening
		m.mu.Unlock()

		if restart {
			m.log.Debugf("Recognition session ended by platform, restarting")
			err := rec.Start()
			if err == nil {
				m.mu.Lock()
				stopped := !m.listening
				m.mu.Unlock()
				if stopped {
					// StopListening ran while the restart was in flight.
					m.log.Debugf("Recognition stopped during restart, stopping new session")
					if serr := rec.Stop(); serr != nil {
						m.log.Warnf("Failed to stop restarted recognition: %v", serr)
					}
				}
				return
			}
			m.log.Warnf("Failed to restart recognition: %v", err)
		}

		m.mu.Lock()
		m.listening = false
		if m.state == StateListening {
			m.state = StateReady
		}
		cb := m.callbacks.OnListeningChange
		m.mu.Unlock()

		if cb != nil {
			cb(false)
		}
	}
}

func (m *Manager) reportError(msg string) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	m.lastError = msg
	cb := m.callbacks.OnError
	m.mu.Unlock()

	m.log.Errorf("%s", msg)
	if cb != nil {
		cb(msg)
	}
}

// StartListening asks the recognizer to begin a session, acquiring one
// first if needed. It returns immediately; OnListeningChange(true) follows
// once capture begins. It does nothing while a session is active. A start
// issued while a stopped session is still winding down goes to the
// recognizer, and its refusal is reported through OnError.
func (m *Manager) StartListening() {
	m.mu.Lock()
	if m.closed || m.listening {
		m.mu.Unlock()
		return
	}
	rec := m.rec
	m.mu.Unlock()

	if rec == nil {
		if !m.initialize() {
			return
		}
		m.mu.Lock()
		rec = m.rec
		m.mu.Unlock()
	}

	if err := rec.Start(); err != nil {
		m.reportError(fmt.Sprintf("failed to start recognition: %v", err))
	}
}

// StopListening clears the intent to listen and then asks the recognizer
// to stop, so the resulting end event does not trigger a restart.
func (m *Manager) StopListening() {
	m.mu.Lock()
	rec := m.rec
	if rec == nil {
		m.mu.Unlock()
		return
	}
	m.listening = false
	m.mu.Unlock()

	if err := rec.Stop(); err != nil {
		m.reportError(fmt.Sprintf("failed to stop recognition: %v", err))
	}
}

// ResetTranscript clears the accumulated transcript and notifies "".
func (m *Manager) ResetTranscript() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	m.transcript = ""
	cb := m.callbacks.OnTranscriptChange
	m.mu.Unlock()

	if cb != nil {
		cb("")
	}
}

// SetCallbacks replaces the active callback set.
func (m *Manager) SetCallbacks(cb Callbacks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = cb
}

// Transcript returns the accumulated final transcript.
func (m *Manager) Transcript() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transcript
}

// IsListening reports whether the caller's session is active.
func (m *Manager) IsListening() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listening
}

// Error returns the last reported error message, or "".
func (m *Manager) Error() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Close stops any active session, ends the event loop and releases the
// recognizer. The Manager cannot be restarted afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	rec := m.rec
	wasListening := m.listening
	m.listening = false
	m.mu.Unlock()

	var err error
	if rec != nil && wasListening {
		err = rec.Stop()
	}

	close(m.done)
	m.wg.Wait()

	if rec != nil {
		if cerr := closeRecognizer(rec); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func closeRecognizer(rec Recognizer) error {
	if c, ok := rec.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
