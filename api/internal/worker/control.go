package worker

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// State — состояние воркера.
type State int

const (
	Idle State = iota
	Running
	Paused
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Signal — имя управляющего сигнала.
type Signal string

const (
	SignalStart      Signal = "start"
	SignalStop       Signal = "stop"
	SignalContinuate Signal = "continuate"
	SignalClose      Signal = "close"
)

// Control владеет состоянием воркера. Сигналы можно слать из любой горутины;
// каждый срабатывает не больше одного раза, после close переходов нет.
type Control struct {
	mu        sync.Mutex
	state     State
	changed   chan struct{} // закрывается и пересоздаётся при каждом переходе
	closed    chan struct{}
	listeners []func(State)
}

func NewControl() *Control {
	return &Control{
		changed: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

func (c *Control) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Changed возвращает канал, который закроется при следующем переходе.
func (c *Control) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// Closed закрывается при переходе в closed.
func (c *Control) Closed() <-chan struct{} { return c.closed }

// Notify подписывает fn на переходы. fn вызывается вне блокировки.
func (c *Control) Notify(fn func(State)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Start: idle → running.
func (c *Control) Start() bool { return c.transition(Running, Idle) }

// Stop: running → paused.
func (c *Control) Stop() bool { return c.transition(Paused, Running) }

// Continuate: paused → running.
func (c *Control) Continuate() bool { return c.transition(Running, Paused) }

// Close: из любого состояния, кроме closed.
func (c *Control) Close() bool { return c.transition(Closed, Idle, Running, Paused) }

// Send применяет сигнал по имени; false, если сигнал неизвестен или не подходит к состоянию.
func (c *Control) Send(sig Signal) bool {
	switch sig {
	case SignalStart:
		return c.Start()
	case SignalStop:
		return c.Stop()
	case SignalContinuate:
		return c.Continuate()
	case SignalClose:
		return c.Close()
	}
	return false
}

func (c *Control) transition(to State, from ...State) bool {
	c.mu.Lock()
	ok := false
	for _, f := range from {
		if c.state == f {
			ok = true
			break
		}
	}
	if !ok {
		c.mu.Unlock()
		return false
	}
	c.state = to
	close(c.changed)
	c.changed = make(chan struct{})
	if to == Closed {
		close(c.closed)
	}
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(to)
	}
	return true
}

// WaitRunning блокируется, пока воркер в idle или paused.
// Возвращает ErrClosed после close и ctx.Err() при отмене контекста.
func (c *Control) WaitRunning(ctx context.Context) error {
	for {
		c.mu.Lock()
		st, ch := c.state, c.changed
		c.mu.Unlock()

		switch st {
		case Running:
			return nil
		case Closed:
			return ErrClosed
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Sleep ждёт d; прерывается close (ErrClosed) или ctx.
func (c *Control) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if c.State() == Closed {
			return ErrClosed
		}
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ifOpen выполняет fn под блокировкой, если воркер ещё не закрыт.
func (c *Control) ifOpen(fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Closed {
		return false
	}
	fn()
	return true
}
