package workloads

import (
	"context"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/balaji-balu/nerve-cli/internal/msapi"
)

// Download states of a newly added workload version.
const (
	StateRequested   = "requested"
	StateDownloading = "downloading"
	StateDownloaded  = "downloaded"
	StateTimedOut    = "timed_out"
	StateLost        = "lost"
)

const (
	eventDownloading = "downloading"
	eventComplete    = "complete"
	eventExpire      = "expire"
	eventVanish      = "vanish"
)

const (
	DefaultPollInterval    = time.Second
	DefaultDownloadTimeout = 300 * time.Second
)

// DownloadTracker waits until the management system finished pulling the
// newest version of a workload.
type DownloadTracker struct {
	client   *msapi.Client
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	onPoll   func(state string)
}

type TrackerOption func(*DownloadTracker)

func WithPolling(interval, timeout time.Duration) TrackerOption {
	return func(t *DownloadTracker) {
		if interval > 0 {
			t.interval = interval
		}
		if timeout > 0 {
			t.timeout = timeout
		}
	}
}

func WithTrackerLogger(l *zap.Logger) TrackerOption {
	return func(t *DownloadTracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// OnPoll registers fn to be called after every poll with the current state.
func OnPoll(fn func(state string)) TrackerOption {
	return func(t *DownloadTracker) { t.onPoll = fn }
}

func NewDownloadTracker(c *msapi.Client, opts ...TrackerOption) *DownloadTracker {
	t := &DownloadTracker{
		client:   c,
		interval: DefaultPollInterval,
		timeout:  DefaultDownloadTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *DownloadTracker) newMachine(id string) *fsm.FSM {
	return fsm.NewFSM(
		StateRequested,
		fsm.Events{
			{Name: eventDownloading, Src: []string{StateRequested}, Dst: StateDownloading},
			{Name: eventComplete, Src: []string{StateRequested, StateDownloading}, Dst: StateDownloaded},
			{Name: eventExpire, Src: []string{StateRequested, StateDownloading}, Dst: StateTimedOut},
			{Name: eventVanish, Src: []string{StateRequested, StateDownloading}, Dst: StateLost},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				t.logger.Debug("workload download transition",
					zap.String("workload_id", id),
					zap.String("event", e.Event),
					zap.String("src", e.Src),
					zap.String("dst", e.Dst),
				)
			},
		},
	)
}

// Wait polls the workload until its last version is no longer downloading.
// It returns the final state. Running out of time is not an error: the
// download goes on on the server and a warning is logged. A workload that
// disappears while waiting is an ActionError.
func (t *DownloadTracker) Wait(ctx context.Context, id string) (string, error) {
	machine := t.newMachine(id)
	polls := int(t.timeout / t.interval)
	if polls < 1 {
		polls = 1
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for left := polls; ; {
		select {
		case <-ctx.Done():
			return machine.Current(), ctx.Err()
		case <-ticker.C:
		}
		left--

		wl, err := GetByID(ctx, t.client, id)
		if IsNotFound(err) {
			_ = machine.Event(ctx, eventVanish)
			t.notify(machine)
			return machine.Current(), msapi.Actionf("wait for download",
				"Unexpected issue: cannot get info for workload %s anymore.", id)
		}
		if err != nil {
			return machine.Current(), err
		}
		if len(wl.Versions) == 0 {
			return machine.Current(), msapi.Formatf("workload "+id, "no versions while waiting for a download")
		}

		if !wl.Versions[len(wl.Versions)-1].IsDownloading {
			_ = machine.Event(ctx, eventComplete)
			t.notify(machine)
			return machine.Current(), nil
		}
		if machine.Is(StateRequested) {
			_ = machine.Event(ctx, eventDownloading)
		}
		if left == 0 {
			_ = machine.Event(ctx, eventExpire)
			t.notify(machine)
			t.logger.Warn("workload version download timeout, won't wait any longer but the download continues",
				zap.String("workload_id", id), zap.Duration("waited", t.timeout))
			return machine.Current(), nil
		}
		t.notify(machine)
	}
}

func (t *DownloadTracker) notify(m *fsm.FSM) {
	if t.onPoll != nil {
		t.onPoll(m.Current())
	}
}
