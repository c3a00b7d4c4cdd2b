package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron"

	"airquality-eda/pkg/logging"
)

// Reload triggers
const (
	TriggerManual   = "manual"
	TriggerWatch    = "watch"
	TriggerSchedule = "schedule"
)

// DefaultDebounce is how long the watcher waits for writes to settle
const DefaultDebounce = 2 * time.Second

// Reloadable is anything that can rebuild its snapshot
type Reloadable interface {
	Reload(ctx context.Context, trigger string) (*Snapshot, error)
}

// Reloader rebuilds the analysis snapshot when the source file changes on
// disk or on a cron schedule
type Reloader struct {
	target   Reloadable
	log      *logging.ContextLogger
	path     string
	schedule string
	debounce time.Duration

	watcher *fsnotify.Watcher
	cron    *cron.Cron

	mu      sync.Mutex
	timer   *time.Timer
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// ReloaderOptions configures a Reloader. An empty WatchPath disables file
// watching; an empty Schedule disables the cron trigger.
type ReloaderOptions struct {
	WatchPath string
	Schedule  string
	Debounce  time.Duration
}

// NewReloader validates opts and prepares a reloader; nothing runs until
// Start
func NewReloader(target Reloadable, opts ReloaderOptions, logger *logging.StructuredLogger) (*Reloader, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	r := &Reloader{
		target:   target,
		log:      logger.WithFields(logging.Fields{"component": "reloader"}),
		path:     opts.WatchPath,
		schedule: opts.Schedule,
		debounce: opts.Debounce,
	}

	if r.schedule != "" {
		r.cron = cron.New()
		if err := r.cron.AddFunc(r.schedule, func() { r.fire(TriggerSchedule) }); err != nil {
			return nil, fmt.Errorf("invalid refresh schedule %q: %w", r.schedule, err)
		}
	}
	return r, nil
}

// Enabled reports whether any trigger is configured
func (r *Reloader) Enabled() bool {
	return r.path != "" || r.cron != nil
}

// Start begins watching and scheduling. It returns once the watcher is
// registered; events are handled in the background until Stop or ctx ends.
func (r *Reloader) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("reloader already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	if r.path != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			cancel()
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		// Watch the directory so editors that replace the file are seen.
		if err := watcher.Add(filepath.Dir(r.path)); err != nil {
			watcher.Close()
			cancel()
			return fmt.Errorf("failed to watch %s: %w", r.path, err)
		}
		r.watcher = watcher
		go r.watch(ctx)
	} else {
		close(r.done)
	}

	if r.cron != nil {
		r.cron.Start()
	}

	r.started = true
	r.log.Info(ctx, "[RELOADER_START] Reload triggers active", logging.Fields{
		"watch_path": r.path,
		"schedule":   r.schedule,
		"debounce":   r.debounce.String(),
	})
	return nil
}

// Stop halts all triggers and waits for the watcher loop to exit
func (r *Reloader) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	if r.timer != nil {
		r.timer.Stop()
	}
	if r.cron != nil {
		r.cron.Stop()
	}
	r.cancel()
	if r.watcher != nil {
		r.watcher.Close()
	}
	done := r.done
	r.mu.Unlock()

	<-done
}

func (r *Reloader) watch(ctx context.Context) {
	defer close(r.done)
	target := filepath.Clean(r.path)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			r.arm()
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log.Error(ctx, "[RELOADER_WATCH_ERROR] File watcher error", logging.Fields{
				"watch_path": r.path,
			}, err)
		}
	}
}

// arm starts the debounce timer, restarting it on every event
func (r *Reloader) arm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, func() { r.fire(TriggerWatch) })
}

func (r *Reloader) fire(trigger string) {
	ctx := context.Background()
	if _, err := r.target.Reload(ctx, trigger); err != nil {
		r.log.Warn(ctx, "[RELOADER_FAILED] Triggered reload failed", logging.Fields{
			"trigger": trigger,
			"error":   err.Error(),
		})
	}
}
