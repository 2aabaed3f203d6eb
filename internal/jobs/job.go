package jobs

import (
	"crypto/rand"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"hikfetch/internal/isapi"
	"hikfetch/internal/retrieval"
)

// State is a job lifecycle state.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// CancelledMessage is the error recorded on cancelled jobs.
const CancelledMessage = "cancelled by request"

const (
	displayCodeLength   = 8
	displayCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Terminal reports whether no further transitions are allowed from s.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

func canTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateRunning || to == StateCancelled || to == StateFailed
	case StateRunning:
		return to == StateCompleted || to == StateFailed || to == StateCancelled
	default:
		return false
	}
}

// Params is the immutable retrieval request of a job. Start and End are
// device-local "YYYY-MM-DD HH:MM[:SS]" text.
type Params struct {
	DeviceURL string          `json:"device_url"`
	Username  string          `json:"username"`
	Password  string          `json:"password,omitempty"`
	Start     string          `json:"start"`
	End       string          `json:"end"`
	Channel   int             `json:"channel"`
	Media     isapi.MediaKind `json:"media"`
}

// Result is the summary recorded on completed jobs.
type Result struct {
	Status string `json:"status"`
	Files  int    `json:"files"`
}

// Job is one retrieval request and its lifecycle.
type Job struct {
	id          string
	displayCode string
	params      Params
	createdAt   time.Time

	cancelRequested atomic.Bool
	cancelOnce      sync.Once
	cancelCh        chan struct{}

	mu          sync.RWMutex
	state       State
	progress    int
	total       int
	currentFile string
	errMsg      string
	result      *Result
	startedAt   time.Time
	completedAt time.Time
}

func newJob(params Params, now time.Time) *Job {
	if params.Channel < 1 {
		params.Channel = 1
	}
	if params.Media == "" {
		params.Media = isapi.MediaVideo
	}
	return &Job{
		id:          uuid.NewString(),
		displayCode: newDisplayCode(),
		params:      params,
		createdAt:   now,
		state:       StatePending,
		cancelCh:    make(chan struct{}),
	}
}

func newDisplayCode() string {
	code := make([]byte, displayCodeLength)
	limit := big.NewInt(int64(len(displayCodeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			code[i] = displayCodeAlphabet[i%len(displayCodeAlphabet)]
			continue
		}
		code[i] = displayCodeAlphabet[n.Int64()]
	}
	return string(code)
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// DisplayCode returns the short operator-facing code.
func (j *Job) DisplayCode() string { return j.displayCode }

// State returns the current lifecycle state.
func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Cancelled reports whether cancellation was requested. It is polled by the
// retrieval pipeline between steps and before every downloaded chunk.
func (j *Job) Cancelled() bool {
	return j.cancelRequested.Load()
}

func (j *Job) cancelSignal() <-chan struct{} {
	return j.cancelCh
}

// requestCancel raises the cancellation flag. Repeated calls are no-ops.
func (j *Job) requestCancel() {
	j.cancelOnce.Do(func() {
		j.cancelRequested.Store(true)
		close(j.cancelCh)
	})
}

// SetTotal records the number of segments found.
func (j *Job) SetTotal(total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.total = total
}

// SetProgress records completed files. Progress never moves backwards.
func (j *Job) SetProgress(done int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() || done < j.progress {
		return
	}
	j.progress = done
}

// SetCurrentFile records the file being written.
func (j *Job) SetCurrentFile(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.currentFile = path
}

func (j *Job) request() retrieval.Request {
	return retrieval.Request{
		DeviceURL: j.params.DeviceURL,
		Username:  j.params.Username,
		Password:  j.params.Password,
		Start:     j.params.Start,
		End:       j.params.End,
		Channel:   j.params.Channel,
		Media:     j.params.Media,
	}
}

// transition moves the job to next and runs apply under the lock. It returns
// false when the move is not allowed from the current state.
func (j *Job) transition(next State, apply func()) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !canTransition(j.state, next) {
		return false
	}
	j.state = next
	if apply != nil {
		apply()
	}
	return true
}

func (j *Job) markRunning(now time.Time) bool {
	return j.transition(StateRunning, func() { j.startedAt = now })
}

func (j *Job) complete(result Result, now time.Time) bool {
	return j.transition(StateCompleted, func() {
		j.result = &result
		j.currentFile = ""
		j.completedAt = now
	})
}

func (j *Job) fail(message string, now time.Time) bool {
	return j.transition(StateFailed, func() {
		j.errMsg = message
		j.currentFile = ""
		j.completedAt = now
	})
}

func (j *Job) markCancelled(now time.Time) bool {
	return j.transition(StateCancelled, func() {
		j.errMsg = CancelledMessage
		j.currentFile = ""
		if j.completedAt.IsZero() {
			j.completedAt = now
		}
	})
}

// Snapshot is a consistent, serializable copy of a job. The device password
// is never included.
type Snapshot struct {
	ID              string     `json:"id"`
	DisplayCode     string     `json:"display_code"`
	Params          Params     `json:"params"`
	State           State      `json:"state"`
	Progress        int        `json:"progress"`
	Total           int        `json:"total"`
	CurrentFile     string     `json:"current_file,omitempty"`
	Error           string     `json:"error,omitempty"`
	Result          *Result    `json:"result,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CancelRequested bool       `json:"cancel_requested"`
}

// Snapshot returns a copy of the job taken under its lock.
func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	params := j.params
	params.Password = ""
	snap := Snapshot{
		ID:              j.id,
		DisplayCode:     j.displayCode,
		Params:          params,
		State:           j.state,
		Progress:        j.progress,
		Total:           j.total,
		CurrentFile:     j.currentFile,
		Error:           j.errMsg,
		CreatedAt:       j.createdAt,
		StartedAt:       timePtr(j.startedAt),
		CompletedAt:     timePtr(j.completedAt),
		CancelRequested: j.cancelRequested.Load(),
	}
	if j.result != nil {
		result := *j.result
		snap.Result = &result
	}
	return snap
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
