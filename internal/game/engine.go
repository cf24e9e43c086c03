package game

// Listener consumes engine events. Handle runs synchronously while the engine
// holds its state lock, so implementations must return quickly and must not
// call back into the Manager; anything slow belongs behind a channel.
type Listener interface {
	Handle(ev Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ev Event)

func (f ListenerFunc) Handle(ev Event) { f(ev) }

// Listeners fans an event out in registration order.
type Listeners []Listener

func (ls Listeners) Handle(ev Event) {
	for _, l := range ls {
		l.Handle(ev)
	}
}
