package http

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

var ErrListenerClosed = errors.New("http: listener closed")

// Listener accepts requests for a set of prefixes and queues them as Contexts
// for GetContext.
type Listener struct {
	cfg     Config
	manager *EndPointManager

	mu       sync.Mutex
	prefixes []*ListenerPrefix

	listening atomic.Bool
	closed    atomic.Bool
	queue     *contextQueue
	conns     *xsync.MapOf[string, *Connection]

	ctx    context.Context
	cancel context.CancelFunc
}

func NewListener(opts ...Option) *Listener {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.normalize()

	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		cfg:     cfg,
		manager: NewEndPointManager(cfg),
		queue:   newContextQueue(cfg.QueueCapacity),
		conns:   xsync.NewMapOf[string, *Connection](),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddPrefix registers a prefix such as "http://*:8080/app/". On a started
// listener the prefix is bound immediately.
func (l *Listener) AddPrefix(uri string) error {
	if l.closed.Load() {
		return ErrListenerClosed
	}

	p, err := ParsePrefix(uri)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, existing := range l.prefixes {
		if existing.String() == p.String() {
			return ErrPrefixInUse
		}
	}
	p.owner = l

	if l.listening.Load() {
		if err := l.manager.AddPrefix(p, l); err != nil {
			return err
		}
	}
	l.prefixes = append(l.prefixes, p)
	return nil
}

func (l *Listener) RemovePrefix(uri string) error {
	p, err := ParsePrefix(uri)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for i, existing := range l.prefixes {
		if existing.String() != p.String() {
			continue
		}
		if l.listening.Load() {
			l.manager.RemovePrefix(existing)
		}
		l.prefixes = append(l.prefixes[:i], l.prefixes[i+1:]...)
		return nil
	}
	return nil
}

func (l *Listener) Prefixes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	uris := make([]string, len(l.prefixes))
	for i, p := range l.prefixes {
		uris[i] = p.String()
	}
	return uris
}

// Addrs lists the bound socket addresses of a started listener.
func (l *Listener) Addrs() []net.Addr {
	return l.manager.Addrs()
}

func (l *Listener) Start() error {
	if l.closed.Load() {
		return ErrListenerClosed
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.listening.Load() {
		return nil
	}

	for _, p := range l.prefixes {
		if err := l.manager.AddPrefix(p, l); err != nil {
			l.manager.RemoveListener(l)
			return err
		}
	}
	l.listening.Store(true)

	l.cfg.Logger.Info("listener started", "prefixes", len(l.prefixes))
	return nil
}

// Stop unbinds every prefix, force-closes live connections and fails every
// queued context. The listener can be started again.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.listening.CompareAndSwap(true, false) {
		return
	}

	l.manager.RemoveListener(l)
	l.conns.Range(func(_ string, c *Connection) bool {
		c.close()
		return true
	})
	failed := l.queue.drain()

	l.cfg.Logger.Info("listener stopped", "failed_contexts", failed)
}

// Close stops the listener for good and releases blocked GetContext calls.
func (l *Listener) Close() {
	if !l.closed.CompareAndSwap(false, true) {
		return
	}

	l.Stop()
	l.queue.close()
	l.cancel()
}

func (l *Listener) IsListening() bool {
	return l.listening.Load()
}

// GetContext blocks until a request is available, ctx is done or the listener is closed.
func (l *Listener) GetContext(ctx context.Context) (*Context, error) {
	if l.closed.Load() {
		return nil, ErrListenerClosed
	}
	return l.queue.pop(ctx)
}

// Connections is the number of live connections.
func (l *Listener) Connections() int {
	return l.conns.Size()
}

func (l *Listener) enqueue(c *Context) bool {
	if !l.listening.Load() {
		return false
	}
	return l.queue.push(c)
}

func (l *Listener) addConnection(c *Connection) {
	l.conns.Store(c.ID, c)
}

func (l *Listener) removeConnection(c *Connection) {
	l.conns.Delete(c.ID)
}
