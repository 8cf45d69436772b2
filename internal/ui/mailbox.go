package ui

import "github.com/large-farva/livechart/internal/series"

// latest holds at most one pending view. offer never blocks; a view that
// has not been taken yet is replaced by the newer one.
type latest struct {
	ch chan series.View
}

func newLatest() *latest {
	return &latest{ch: make(chan series.View, 1)}
}

func (l *latest) offer(v series.View) {
	for {
		select {
		case l.ch <- v:
			return
		default:
		}
		select {
		case <-l.ch:
		default:
		}
	}
}

// forward hands each pending view to send until done is closed.
func (l *latest) forward(done <-chan struct{}, send func(series.View)) {
	for {
		select {
		case <-done:
			return
		case v := <-l.ch:
			send(v)
		}
	}
}
