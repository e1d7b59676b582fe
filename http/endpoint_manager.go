package http

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

const resolveTimeout = 5 * time.Second

// EndPointManager maps prefixes onto shared EndPointListeners, one per
// resolved address and port.
type EndPointManager struct {
	cfg Config

	mu        sync.Mutex
	endpoints *xsync.MapOf[string, *EndPointListener]
}

func NewEndPointManager(cfg Config) *EndPointManager {
	cfg.normalize()
	return &EndPointManager{
		cfg:       cfg,
		endpoints: xsync.NewMapOf[string, *EndPointListener](),
	}
}

// AddPrefix attaches p to the endpoint of its address, binding the socket if
// this is the first prefix for it.
func (m *EndPointManager) AddPrefix(p *ListenerPrefix, owner *Listener) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	addr := m.resolve(p)

	ep, ok := m.endpoints.Load(addr)
	if !ok {
		var err error
		ep, err = newEndPointListener(m, addr, p.Secure)
		if err != nil {
			return fmt.Errorf("http: listening on %s: %w", addr, err)
		}
		m.endpoints.Store(addr, ep)
	} else if ep.secure != p.Secure {
		return fmt.Errorf("%w: %s mixes http and https", ErrInvalidPrefix, addr)
	}

	p.owner = owner
	p.addr = addr
	if err := ep.addPrefix(p); err != nil {
		if !ok {
			ep.close()
			m.endpoints.Delete(addr)
		}
		return fmt.Errorf("%w: %s", err, p.Original)
	}
	return nil
}

// RemovePrefix detaches p. The endpoint socket is closed with its last prefix.
func (m *EndPointManager) RemovePrefix(p *ListenerPrefix) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removePrefix(p.addr, p)
}

// RemoveListener detaches every prefix owned by owner.
func (m *EndPointManager) RemoveListener(owner *Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.endpoints.Range(func(addr string, ep *EndPointListener) bool {
		for _, p := range ep.prefixesOf(owner) {
			m.removePrefix(addr, p)
		}
		return true
	})
}

// Addrs lists the bound socket addresses.
func (m *EndPointManager) Addrs() []net.Addr {
	var addrs []net.Addr
	m.endpoints.Range(func(_ string, ep *EndPointListener) bool {
		addrs = append(addrs, ep.Addr())
		return true
	})
	return addrs
}

func (m *EndPointManager) removePrefix(addr string, p *ListenerPrefix) {
	ep, ok := m.endpoints.Load(addr)
	if !ok {
		return
	}
	if ep.removePrefix(p) {
		ep.close()
		m.endpoints.Delete(addr)
	}
}

// resolve picks the bind address of a prefix. Unresolvable hosts fall back to
// the wildcard address.
func (m *EndPointManager) resolve(p *ListenerPrefix) string {
	ip := m.wildcard()

	if !p.IsWildcard() {
		if parsed := net.ParseIP(p.Host); parsed != nil {
			ip = parsed
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
			addrs, err := net.DefaultResolver.LookupIPAddr(ctx, p.Host)
			cancel()

			if err != nil || len(addrs) == 0 {
				m.cfg.Logger.Warn("resolving prefix host failed, binding wildcard", "host", p.Host, "error", err)
			} else {
				ip = addrs[0].IP
			}
		}
	}

	return net.JoinHostPort(ip.String(), strconv.Itoa(p.Port))
}

func (m *EndPointManager) wildcard() net.IP {
	if m.cfg.PreferIPv6 {
		return net.IPv6unspecified
	}
	return net.IPv4zero
}
