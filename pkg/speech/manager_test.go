package speech

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, opts ...ManagerOption) (*Manager, *fakeRecognizer, *recorder) {
	t.Helper()
	rec := newFakeRecognizer()
	r := &recorder{}

	m, err := NewManager(rec.provider(), DefaultOptions(), append([]ManagerOption{WithCallbacks(r.callbacks())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m, rec, r
}

// listen starts a session and waits for the listening notification.
func listen(t *testing.T, m *Manager, rec *fakeRecognizer, r *recorder) {
	t.Helper()
	before := r.listeningCount()
	m.StartListening()
	rec.emit(Event{Type: EventStart})
	eventually(t, func() bool { return r.listeningCount() > before }, "listening notification")
}

func TestOptions(t *testing.T) {
	defaults := DefaultOptions()
	assert.Equal(t, "ru-RU", defaults.Language)
	assert.True(t, defaults.Continuous)
	assert.True(t, defaults.InterimResults)
	assert.Equal(t, 1, defaults.MaxAlternatives)

	dictation := DictationOptions()
	assert.False(t, dictation.InterimResults)
	assert.Equal(t, defaults.Language, dictation.Language)

	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{name: "defaults", opts: DefaultOptions()},
		{name: "no language", opts: Options{MaxAlternatives: 1}, wantErr: "language"},
		{name: "no alternatives", opts: Options{Language: "en-US"}, wantErr: "max alternatives"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewManager(t *testing.T) {
	t.Run("configures the recognizer", func(t *testing.T) {
		m, rec, _ := newTestManager(t)

		assert.Equal(t, StateReady, m.State())
		rec.mu.Lock()
		assert.Equal(t, DefaultOptions(), rec.opts)
		rec.mu.Unlock()
	})

	t.Run("rejects invalid options", func(t *testing.T) {
		_, err := NewManager(newFakeRecognizer().provider(), Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid speech options")
	})

	t.Run("requires a provider", func(t *testing.T) {
		_, err := NewManager(nil, DefaultOptions())
		assert.Error(t, err)
	})
}

func TestFinalResultsAccumulate(t *testing.T) {
	m, rec, r := newTestManager(t)
	listen(t, m, rec, r)

	rec.final("hello ")
	rec.final("world")

	eventually(t, func() bool { return r.lastTranscript() == "hello world" }, "accumulated transcript")
	assert.Equal(t, "hello world", m.Transcript())

	transcripts, _, _ := r.snapshot()
	assert.Equal(t, []string{"hello ", "hello world"}, transcripts)
}

func TestInterimResultsDoNotPersist(t *testing.T) {
	m, rec, r := newTestManager(t)
	listen(t, m, rec, r)

	rec.interim("wor")
	eventually(t, func() bool { return r.lastTranscript() == "wor" }, "interim shown")
	assert.Equal(t, "", m.Transcript())

	rec.final("world")
	eventually(t, func() bool { return r.lastTranscript() == "world" }, "final replaces interim")
	assert.Equal(t, "world", m.Transcript())

	rec.emit(Event{Type: EventResult, Results: []Result{
		{Transcript: " again", Final: true},
		{Transcript: " and"},
	}})
	eventually(t, func() bool { return r.lastTranscript() == "world again and" }, "mixed batch")
	assert.Equal(t, "world again", m.Transcript())
}

func TestAutoRestartKeepsListening(t *testing.T) {
	m, rec, r := newTestManager(t)
	listen(t, m, rec, r)

	rec.emit(Event{Type: EventEnd})
	eventually(t, func() bool {
		starts, _ := rec.counts()
		return starts == 2
	}, "restart issued")

	rec.emit(Event{Type: EventStart})
	eventually(t, func() bool { return r.listeningCount() == 2 }, "second start reported")

	_, listening, _ := r.snapshot()
	assert.Equal(t, []bool{true, true}, listening, "restart must not report false")
	assert.True(t, m.IsListening())
	assert.Equal(t, StateListening, m.State())
}

func TestRestartFailureFallsBackToReady(t *testing.T) {
	m, rec, r := newTestManager(t)
	listen(t, m, rec, r)

	rec.setStartErr(errors.New("audio device busy"))
	rec.emit(Event{Type: EventEnd})

	eventually(t, func() bool { return r.listeningCount() == 2 }, "listening change")
	_, listening, _ := r.snapshot()
	assert.Equal(t, []bool{true, false}, listening)
	assert.False(t, m.IsListening())
	assert.Equal(t, StateReady, m.State())
}

func TestStopListeningDoesNotRestart(t *testing.T) {
	m, rec, r := newTestManager(t)
	listen(t, m, rec, r)

	m.StopListening()
	assert.False(t, m.IsListening(), "intent cleared before the platform stops")

	rec.emit(Event{Type: EventEnd})
	eventually(t, func() bool { return r.listeningCount() == 2 }, "stop reported")

	starts, stops := rec.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
	assert.Equal(t, StateReady, m.State())
}

func TestStopDuringRestartStopsNewSession(t *testing.T) {
	m, rec, r := newTestManager(t)
	rec.setOnStart(func(n int) {
		if n == 2 {
			m.StopListening()
		}
	})
	listen(t, m, rec, r)

	rec.emit(Event{Type: EventEnd})
	eventually(t, func() bool {
		_, stops := rec.counts()
		return stops == 2
	}, "restarted session stopped")
	assert.False(t, m.IsListening())

	rec.emit(Event{Type: EventEnd})
	eventually(t, func() bool { return r.listeningCount() == 2 }, "stop reported")

	_, listening, _ := r.snapshot()
	assert.Equal(t, []bool{true, false}, listening)
	assert.Equal(t, StateReady, m.State())

	m.StartListening()
	starts, _ := rec.counts()
	assert.Equal(t, 3, starts, "start works again after the stop")
}

func TestStartWhileStoppingIsNotDropped(t *testing.T) {
	m, rec, r := newTestManager(t)
	listen(t, m, rec, r)

	m.StopListening()
	rec.setStartErr(ErrAlreadyStarted)
	m.StartListening()

	starts, _ := rec.counts()
	assert.Equal(t, 2, starts, "start reaches the recognizer")
	_, _, errs := r.snapshot()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "failed to start recognition")

	rec.emit(Event{Type: EventEnd})
	eventually(t, func() bool { return r.listeningCount() == 2 }, "stop reported")
	assert.Equal(t, StateReady, m.State())

	rec.setStartErr(nil)
	listen(t, m, rec, r)
	assert.True(t, m.IsListening())
	assert.Equal(t, StateListening, m.State())
}

func TestStartWhileListeningIsIgnored(t *testing.T) {
	m, rec, r := newTestManager(t)
	listen(t, m, rec, r)

	m.StartListening()

	starts, _ := rec.counts()
	assert.Equal(t, 1, starts)
	assert.Zero(t, r.errorCount())
}

func TestResetTranscript(t *testing.T) {
	m, rec, r := newTestManager(t)
	listen(t, m, rec, r)
	rec.final("hello ")
	eventually(t, func() bool { return r.lastTranscript() == "hello " }, "first result")

	m.ResetTranscript()
	assert.Equal(t, "", r.lastTranscript())
	assert.Equal(t, "", m.Transcript())
	assert.True(t, m.IsListening(), "reset does not affect listening")

	rec.final("again")
	eventually(t, func() bool { return r.lastTranscript() == "again" }, "accumulation restarts")
}

func TestPlatformErrorsAreReported(t *testing.T) {
	m, rec, r := newTestManager(t)
	listen(t, m, rec, r)

	rec.emit(Event{Type: EventError, Err: "network"})
	eventually(t, func() bool { return r.errorCount() == 1 }, "error delivered")

	_, _, errs := r.snapshot()
	assert.Equal(t, []string{"recognition error: network"}, errs)
	assert.Equal(t, "recognition error: network", m.Error())
	assert.True(t, m.IsListening(), "errors do not end the session")
}

func TestStartFailureIsReported(t *testing.T) {
	m, rec, r := newTestManager(t)
	rec.setStartErr(errors.New("permission denied"))

	m.StartListening()

	_, _, errs := r.snapshot()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "failed to start recognition")
	assert.Contains(t, errs[0], "permission denied")
}

func TestUnsupportedPlatform(t *testing.T) {
	calls := 0
	provider := func() (Recognizer, error) {
		calls++
		return nil, fmt.Errorf("%w: no microphone", ErrUnsupported)
	}
	r := &recorder{}

	m, err := NewManager(provider, DefaultOptions(), WithCallbacks(r.callbacks()))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, StateUnsupported, m.State())
	_, _, errs := r.snapshot()
	require.Len(t, errs, 1)
	assert.True(t, IsUnsupported(errs[0]))

	m.StartListening()
	assert.Equal(t, 2, calls, "start re-attempts acquisition")
	assert.Equal(t, StateUnsupported, m.State())
	assert.False(t, m.IsListening())
}

func TestLazyInitialization(t *testing.T) {
	rec := newFakeRecognizer()
	attempts := 0
	provider := func() (Recognizer, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("device not ready")
		}
		return rec, nil
	}
	r := &recorder{}

	m, err := NewManager(provider, DefaultOptions(), WithCallbacks(r.callbacks()))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, StateUninitialized, m.State())
	_, _, errs := r.snapshot()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "failed to initialize speech recognition")
	assert.False(t, IsUnsupported(errs[0]))

	m.StartListening()
	assert.Equal(t, StateReady, m.State())
	starts, _ := rec.counts()
	assert.Equal(t, 1, starts)
}

func TestConfigureFailure(t *testing.T) {
	rec := newFakeRecognizer()
	rec.configErr = errors.New("language unavailable")
	r := &recorder{}

	m, err := NewManager(rec.provider(), DefaultOptions(), WithCallbacks(r.callbacks()))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, StateUninitialized, m.State())
	assert.Contains(t, m.Error(), "language unavailable")
	assert.True(t, rec.closed)
}

func TestSetCallbacksReplaces(t *testing.T) {
	m, rec, first := newTestManager(t)
	listen(t, m, rec, first)

	second := &recorder{}
	m.SetCallbacks(second.callbacks())
	rec.final("hi")

	eventually(t, func() bool { return second.lastTranscript() == "hi" }, "new callbacks used")
	assert.Zero(t, first.transcriptCount())
}

func TestCloseStopsSessionAndRecognizer(t *testing.T) {
	rec := newFakeRecognizer()
	r := &recorder{}
	m, err := NewManager(rec.provider(), DefaultOptions(), WithCallbacks(r.callbacks()))
	require.NoError(t, err)
	listen(t, m, rec, r)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, stops := rec.counts()
	assert.Equal(t, 1, stops)
	assert.True(t, rec.closed)

	m.StartListening()
	starts, _ := rec.counts()
	assert.Equal(t, 1, starts, "closed manager ignores start")
}

func TestIsUnsupported(t *testing.T) {
	assert.True(t, IsUnsupported(ErrUnsupported.Error()))
	assert.True(t, IsUnsupported("Speech Recognition NOT SUPPORTED here"))
	assert.False(t, IsUnsupported("recognition error: network"))
}
