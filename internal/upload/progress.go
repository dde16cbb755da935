package upload

import (
	"sync"
	"time"
)

// Progress is a simulated percentage that climbs on a timer while a request is
// outstanding. The backend sends no progress of its own.
type Progress struct {
	mu       sync.Mutex
	value    int
	onUpdate func(int)

	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// StartProgress begins at 0 and adds step every interval until cap is reached.
// onUpdate, if set, is called from the ticker goroutine with each new value.
// Callers must call Stop (or Complete) on every exit path.
func StartProgress(interval time.Duration, step, cap int, onUpdate func(int)) *Progress {
	p := &Progress{
		onUpdate: onUpdate,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	p.emit(0)

	go func() {
		defer close(p.stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.done:
				return
			case <-ticker.C:
				p.mu.Lock()
				next := p.value + step
				if next > cap {
					next = cap
				}
				changed := next != p.value
				p.value = next
				p.mu.Unlock()
				if changed && p.onUpdate != nil {
					select {
					case <-p.done:
						return
					default:
					}
					p.onUpdate(next)
				}
			}
		}
	}()
	return p
}

func (p *Progress) emit(v int) {
	p.mu.Lock()
	p.value = v
	p.mu.Unlock()
	if p.onUpdate != nil {
		p.onUpdate(v)
	}
}

// Stop halts the ticker and waits for it to exit. No update is delivered after
// Stop returns. Safe to call more than once.
func (p *Progress) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	<-p.stopped
}

// Complete stops the ticker and jumps to 100.
func (p *Progress) Complete() {
	p.Stop()
	p.emit(100)
}

// Value returns the current percentage.
func (p *Progress) Value() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}
