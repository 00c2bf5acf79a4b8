package speech

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/memos/pkg/logging"
)

// Environment passed to the speech command describing the session.
const (
	EnvSpeechLanguage        = "MEMOS_SPEECH_LANGUAGE"
	EnvSpeechContinuous      = "MEMOS_SPEECH_CONTINUOUS"
	EnvSpeechInterim         = "MEMOS_SPEECH_INTERIM"
	EnvSpeechMaxAlternatives = "MEMOS_SPEECH_MAX_ALTERNATIVES"
)

// fastFailWindow is how soon after starting a failing exit counts as a
// broken command rather than a session timeout.
const fastFailWindow = time.Second

// ErrAlreadyStarted is returned by Start while a session is active.
var ErrAlreadyStarted = errors.New("recognition already started")

// commandLine is one line of speech command output.
type commandLine struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// CommandRecognizer runs an external speech-to-text program per session.
// The program writes one result per line on stdout, either a JSON object
// {"text": "...", "final": true|false} or plain text, which is treated as a
// final result. The session ends when the program exits. Programs should
// exec their recognizer rather than fork it, so stopping the session
// closes stdout.
type CommandRecognizer struct {
	command []string
	log     *logging.Logger
	events  chan Event
	closed  chan struct{}

	mu         sync.Mutex
	opts       Options
	cmd        *exec.Cmd
	stopping   bool
	failedFast bool

	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ Recognizer = (*CommandRecognizer)(nil)

// NewCommandProvider returns a Provider backed by command. An empty
// command, or one that is not on PATH, is reported as unsupported.
func NewCommandProvider(command []string, log *logging.Logger) Provider {
	return func() (Recognizer, error) {
		if len(command) == 0 {
			return nil, fmt.Errorf("%w: no speech command configured", ErrUnsupported)
		}
		if _, err := exec.LookPath(command[0]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		return NewCommandRecognizer(command, log), nil
	}
}

// NewCommandRecognizer creates a recognizer running command.
func NewCommandRecognizer(command []string, log *logging.Logger) *CommandRecognizer {
	if log == nil {
		log = logging.Discard()
	}
	return &CommandRecognizer{
		command: command,
		log:     log,
		events:  make(chan Event, 16),
		closed:  make(chan struct{}),
		opts:    DefaultOptions(),
	}
}

// Configure sets the options passed to the next session.
func (r *CommandRecognizer) Configure(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts = opts
	return nil
}

// Events returns the event channel.
func (r *CommandRecognizer) Events() <-chan Event {
	return r.events
}

// Start launches the command. The start event is emitted once it runs.
func (r *CommandRecognizer) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.closed:
		return fmt.Errorf("recognizer closed")
	default:
	}
	if r.cmd != nil {
		return ErrAlreadyStarted
	}
	if r.failedFast {
		r.failedFast = false
		return fmt.Errorf("speech command %q exited immediately", r.command[0])
	}

	cmd := exec.Command(r.command[0], r.command[1:]...)
	cmd.Env = append(os.Environ(),
		EnvSpeechLanguage+"="+r.opts.Language,
		EnvSpeechContinuous+"="+strconv.FormatBool(r.opts.Continuous),
		EnvSpeechInterim+"="+strconv.FormatBool(r.opts.InterimResults),
		EnvSpeechMaxAlternatives+"="+strconv.Itoa(r.opts.MaxAlternatives),
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open speech command output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start speech command: %w", err)
	}

	r.cmd = cmd
	r.stopping = false
	opts := r.opts
	started := time.Now()

	r.log.Debugf("Started speech command %s (pid %d)", r.command[0], cmd.Process.Pid)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		r.emit(Event{Type: EventStart})

		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			res, ok := parseLine(scanner.Text())
			if !ok || (!res.Final && !opts.InterimResults) {
				continue
			}
			r.emit(Event{Type: EventResult, Results: []Result{res}})
			if res.Final && !opts.Continuous {
				r.Stop()
			}
		}

		waitErr := cmd.Wait()

		r.mu.Lock()
		stopping := r.stopping
		r.cmd = nil
		if waitErr != nil && !stopping && time.Since(started) < fastFailWindow {
			r.failedFast = true
		}
		r.mu.Unlock()

		if waitErr != nil && !stopping {
			r.log.Warnf("Speech command exited: %v", waitErr)
			r.emit(Event{Type: EventError, Err: waitErr.Error()})
		}
		r.emit(Event{Type: EventEnd})
	}()

	return nil
}

// Stop terminates the running command. The end event follows.
func (r *CommandRecognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil || r.stopping {
		return nil
	}
	r.stopping = true
	if err := r.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to stop speech command: %w", err)
	}
	return nil
}

// Close stops any session and waits for its output to drain.
func (r *CommandRecognizer) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.Stop()
		close(r.closed)
		r.wg.Wait()
	})
	return err
}

func (r *CommandRecognizer) emit(ev Event) {
	select {
	case r.events <- ev:
	case <-r.closed:
	}
}

func parseLine(line string) (Result, bool) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return Result{}, false
	}
	if strings.HasPrefix(strings.TrimSpace(line), "{") {
		var cl commandLine
		if err := json.Unmarshal([]byte(line), &cl); err == nil {
			return Result{Transcript: cl.Text, Final: cl.Final}, true
		}
	}
	return Result{Transcript: line, Final: true}, true
}
