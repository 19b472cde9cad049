package port

// BookListener is a passive observer notified after every accepted
// submission, cancellation or match. Notifications are delivered off the
// engine goroutine and may be coalesced; a listener can never block matching.
type BookListener interface {
	OnBookChanged()
}

// BookListenerFunc adapts a plain function to BookListener.
type BookListenerFunc func()

func (f BookListenerFunc) OnBookChanged() { f() }
