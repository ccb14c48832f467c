package watch

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// event is one coalesced filesystem notification.
type event struct {
	path string
	op   fsnotify.Op
}

// debouncer coalesces raw fsnotify events per path over a fixed delay
// and surfaces them to the session loop as discrete events. Rapid
// successive writes to the same file within the window collapse into
// one event carrying the union of the observed ops.
type debouncer struct {
	delay   time.Duration
	events  chan event
	timer   *time.Timer
	pending map[string]fsnotify.Op
	mutex   sync.Mutex
}

func newDebouncer(delay time.Duration) *debouncer {
	if delay <= 0 {
		delay = 10 * time.Millisecond
	}

	return &debouncer{
		delay:   delay,
		events:  make(chan event, 64),
		pending: make(map[string]fsnotify.Op),
	}
}

// start pumps the watcher's raw event stream into the debouncer until
// shutdown closes or the watcher's channels close.
func (d *debouncer) start(watcher *fsnotify.Watcher, shutdown <-chan struct{}) {
	go func() {
		for {
			select {
			case <-shutdown:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				d.add(ev)
			case _, ok := <-watcher.Errors:
				// Watcher errors carry no path to reload; skip them
				// and keep watching.
				if !ok {
					return
				}
			}
		}
	}()
}

func (d *debouncer) add(ev fsnotify.Event) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending[ev.Name] |= ev.Op

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *debouncer) flush() {
	d.mutex.Lock()
	pending := d.pending
	d.pending = make(map[string]fsnotify.Op)
	d.mutex.Unlock()

	for path, op := range pending {
		select {
		case d.events <- event{path: path, op: op}:
		default:
			// Buffer full; the session is not draining fast enough.
			// Dropping is safe: a reload recompiles from disk, so the
			// next surviving event produces the same output.
		}
	}
}
