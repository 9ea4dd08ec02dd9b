package capture

import "context"

// Pending tracks one in-flight extraction.
type Pending struct {
	done    chan struct{}
	applied bool
	err     error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// completedPending is returned when nothing was launched.
func completedPending() *Pending {
	p := newPending()
	close(p.done)
	return p
}

// Done is closed once the completion has been handled, whether it was
// applied to the session or discarded.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Applied reports whether the completion reached the session. Valid after Done.
func (p *Pending) Applied() bool {
	<-p.done
	return p.applied
}

// Err is the extraction failure, if any. Valid after Done.
func (p *Pending) Err() error {
	<-p.done
	return p.err
}

// Wait blocks until the completion has been handled or ctx ends.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
