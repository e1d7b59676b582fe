package http

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

var ErrTLSConfigRequired = errors.New("http: https prefix registered without a TLS config")

// EndPointListener owns the socket bound to one address and port. It accepts
// connections and routes their requests to the prefix that matches them.
type EndPointListener struct {
	manager *EndPointManager
	addr    string
	secure  bool
	ln      net.Listener

	mu       sync.RWMutex
	prefixes []*ListenerPrefix

	conns  *xsync.MapOf[string, *Connection]
	closed atomic.Bool
}

func newEndPointListener(manager *EndPointManager, addr string, secure bool) (*EndPointListener, error) {
	if secure && manager.cfg.TLSConfig == nil {
		return nil, ErrTLSConfigRequired
	}

	lc := net.ListenConfig{Control: controlSocket}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, err
	}
	if secure {
		ln = tls.NewListener(ln, manager.cfg.TLSConfig)
	}

	ep := &EndPointListener{
		manager: manager,
		addr:    addr,
		secure:  secure,
		ln:      ln,
		conns:   xsync.NewMapOf[string, *Connection](),
	}
	go ep.acceptLoop()

	return ep, nil
}

// Addr is the address the socket is actually bound to.
func (ep *EndPointListener) Addr() net.Addr {
	return ep.ln.Addr()
}

func (ep *EndPointListener) acceptLoop() {
	var backoff time.Duration
	for {
		conn, err := ep.ln.Accept()
		if err != nil {
			if ep.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}

			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff < time.Second {
				backoff *= 2
			}
			ep.manager.cfg.Logger.Warn("accept failed", "address", ep.addr, "error", err, "retry", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		acceptedConnections.Add(context.Background(), 1)
		activeConnections.Add(context.Background(), 1)

		c := newConnection(conn, ep)
		ep.conns.Store(c.ID, c)
		go c.serve()
	}
}

// addPrefix keeps prefixes ordered so that exact hosts are tried before
// wildcards and longer paths before shorter ones.
func (ep *EndPointListener) addPrefix(p *ListenerPrefix) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	for _, existing := range ep.prefixes {
		if strings.EqualFold(existing.Host, p.Host) && existing.Path == p.Path {
			return ErrPrefixInUse
		}
	}

	ep.prefixes = append(ep.prefixes, p)
	sort.SliceStable(ep.prefixes, func(i, j int) bool {
		a, b := ep.prefixes[i], ep.prefixes[j]
		if a.IsWildcard() != b.IsWildcard() {
			return !a.IsWildcard()
		}
		return len(a.Path) > len(b.Path)
	})
	return nil
}

// removePrefix reports whether the endpoint has no prefixes left.
func (ep *EndPointListener) removePrefix(p *ListenerPrefix) bool {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	for i, existing := range ep.prefixes {
		if existing == p {
			ep.prefixes = append(ep.prefixes[:i], ep.prefixes[i+1:]...)
			break
		}
	}
	return len(ep.prefixes) == 0
}

func (ep *EndPointListener) prefixesOf(owner *Listener) []*ListenerPrefix {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	var owned []*ListenerPrefix
	for _, p := range ep.prefixes {
		if p.owner == owner {
			owned = append(owned, p)
		}
	}
	return owned
}

func (ep *EndPointListener) match(host, path string) *ListenerPrefix {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, p := range ep.prefixes {
		if p.matchesHost(host) && p.matchesPath(path) {
			return p
		}
	}
	return nil
}

func (ep *EndPointListener) removeConnection(c *Connection) {
	ep.conns.Delete(c.ID)
}

// close stops accepting and force-closes every connection of the endpoint.
func (ep *EndPointListener) close() {
	if !ep.closed.CompareAndSwap(false, true) {
		return
	}

	if err := ep.ln.Close(); err != nil {
		ep.manager.cfg.Logger.Debug("closing endpoint failed", "address", ep.addr, "error", err)
	}
	ep.conns.Range(func(_ string, c *Connection) bool {
		c.close()
		return true
	})
}
