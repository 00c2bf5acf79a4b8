package speech

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, r *CommandRecognizer, until EventType) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-r.Events():
			events = append(events, ev)
			if ev.Type == until {
				return events
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event, got %v", until, events)
			return nil
		}
	}
}

func results(events []Event) []Result {
	var out []Result
	for _, ev := range events {
		if ev.Type == EventResult {
			out = append(out, ev.Results...)
		}
	}
	return out
}

func types(events []Event) []EventType {
	out := make([]EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want Result
		ok   bool
	}{
		{line: `{"text":"wor","final":false}`, want: Result{Transcript: "wor"}, ok: true},
		{line: `{"text":"world","final":true}`, want: Result{Transcript: "world", Final: true}, ok: true},
		{line: "hello ", want: Result{Transcript: "hello ", Final: true}, ok: true},
		{line: "привет\r", want: Result{Transcript: "привет", Final: true}, ok: true},
		{line: "{not json", want: Result{Transcript: "{not json", Final: true}, ok: true},
		{line: "   ", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := parseLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCommandProviderUnsupported(t *testing.T) {
	_, err := NewCommandProvider(nil, nil)()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupported))
	assert.True(t, IsUnsupported(err.Error()))

	_, err = NewCommandProvider([]string{"memos-no-such-recognizer"}, nil)()
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestCommandRecognizerSession(t *testing.T) {
	script := `echo '{"text":"wor","final":false}'
echo '{"text":"hello ","final":true}'
echo "world"
echo "$MEMOS_SPEECH_LANGUAGE"`
	r := NewCommandRecognizer([]string{"sh", "-c", script}, nil)
	defer r.Close()
	require.NoError(t, r.Configure(Options{Language: "en-US", Continuous: true, InterimResults: true, MaxAlternatives: 1}))

	require.NoError(t, r.Start())
	events := collect(t, r, EventEnd)

	assert.Equal(t, EventStart, events[0].Type)
	assert.Equal(t, []Result{
		{Transcript: "wor"},
		{Transcript: "hello ", Final: true},
		{Transcript: "world", Final: true},
		{Transcript: "en-US", Final: true},
	}, results(events))
}

func TestCommandRecognizerDropsInterimWhenDisabled(t *testing.T) {
	script := `echo '{"text":"wor","final":false}'; echo '{"text":"world","final":true}'`
	r := NewCommandRecognizer([]string{"sh", "-c", script}, nil)
	defer r.Close()
	require.NoError(t, r.Configure(DictationOptions()))

	require.NoError(t, r.Start())
	events := collect(t, r, EventEnd)

	assert.Equal(t, []Result{{Transcript: "world", Final: true}}, results(events))
}

func TestCommandRecognizerStop(t *testing.T) {
	r := NewCommandRecognizer([]string{"sh", "-c", "exec sleep 30"}, nil)
	defer r.Close()

	require.NoError(t, r.Start())
	first := collect(t, r, EventStart)
	assert.Equal(t, []EventType{EventStart}, types(first))

	assert.ErrorIs(t, r.Start(), ErrAlreadyStarted)

	require.NoError(t, r.Stop())
	rest := collect(t, r, EventEnd)
	assert.Equal(t, []EventType{EventEnd}, types(rest), "an intentional stop is not an error")

	require.NoError(t, r.Stop(), "stop without a session is a no-op")
}

func TestCommandRecognizerSingleShot(t *testing.T) {
	script := `echo "one"; exec sleep 30`
	r := NewCommandRecognizer([]string{"sh", "-c", script}, nil)
	defer r.Close()
	opts := DefaultOptions()
	opts.Continuous = false
	require.NoError(t, r.Configure(opts))

	require.NoError(t, r.Start())
	events := collect(t, r, EventEnd)

	assert.Equal(t, []EventType{EventStart, EventResult, EventEnd}, types(events))
}

func TestCommandRecognizerFailures(t *testing.T) {
	r := NewCommandRecognizer([]string{"sh", "-c", "exit 3"}, nil)
	defer r.Close()

	require.NoError(t, r.Start())
	events := collect(t, r, EventEnd)
	assert.Equal(t, []EventType{EventStart, EventError, EventEnd}, types(events))
	assert.Contains(t, events[1].Err, "exit status 3")

	err := r.Start()
	require.Error(t, err, "a command that dies immediately is not restarted")
	assert.Contains(t, err.Error(), "exited immediately")

	require.NoError(t, r.Start(), "an explicit retry runs the command again")
	collect(t, r, EventEnd)
}

func TestManagerOverCommandRecognizer(t *testing.T) {
	r := &recorder{}
	m, err := NewManager(NewCommandProvider([]string{"sh", "-c", `echo "hello "; echo "world"; exec sleep 30`}, nil),
		DictationOptions(), WithCallbacks(r.callbacks()))
	require.NoError(t, err)

	m.StartListening()
	eventually(t, func() bool { return r.lastTranscript() == "hello world" }, "transcript from command")
	assert.True(t, m.IsListening())

	m.StopListening()
	eventually(t, func() bool { return !m.IsListening() && m.State() == StateReady }, "stopped")

	require.NoError(t, m.Close())
}

func TestCommandRecognizerClosed(t *testing.T) {
	r := NewCommandRecognizer([]string{"sh", "-c", "true"}, nil)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Error(t, r.Start())
}
