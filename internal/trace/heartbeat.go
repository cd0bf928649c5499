package trace

import (
	"strconv"
	"sync"
	"time"
)

// Heartbeat emits periodic liveness events. A trace whose heartbeats keep
// coming without span ends points at a hung oracle.
type Heartbeat struct {
	tracer   Tracer
	interval time.Duration
	stop     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// StartHeartbeat starts the ticker goroutine. It returns nil when tracing
// is off or interval is not positive; Stop accepts nil.
func StartHeartbeat(t Tracer, interval time.Duration) *Heartbeat {
	if t == nil || !t.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{tracer: t, interval: interval, stop: make(chan struct{})}
	h.wg.Add(1)
	go h.run()
	return h
}

func (h *Heartbeat) run() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	var n uint64
	for {
		select {
		case <-ticker.C:
			n++
			h.tracer.Emit(&Event{
				Time:   time.Now(),
				Kind:   KindHeartbeat,
				Scope:  ScopeDriver,
				GID:    goroutineID(),
				Name:   "heartbeat",
				Detail: "#" + strconv.FormatUint(n, 10),
			})
		case <-h.stop:
			return
		}
	}
}

// Stop ends the ticker and waits for the goroutine to exit.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	h.wg.Wait()
}
