package http

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

var (
	ErrInvalidPrefix = errors.New("http: invalid listener prefix")
	ErrPrefixInUse   = errors.New("http: listener prefix already registered")
)

// ListenerPrefix is a registered (scheme, host, port, path) tuple a Listener answers to.
type ListenerPrefix struct {
	Original string
	Scheme   string
	Host     string
	Port     int
	Path     string
	Secure   bool

	owner *Listener
	// addr is the resolved bind address, set once registered.
	addr string
}

// ParsePrefix parses and validates a prefix of the form http(s)://host:port/path/.
// The path is normalized to end with a slash.
func ParsePrefix(uri string) (*ListenerPrefix, error) {
	p := &ListenerPrefix{Original: uri}

	scheme, rest, found := strings.Cut(uri, "://")
	if !found {
		return nil, fmt.Errorf("%w: %q has no scheme", ErrInvalidPrefix, uri)
	}

	switch strings.ToLower(scheme) {
	case "http":
		p.Scheme, p.Port = "http", 80
	case "https":
		p.Scheme, p.Port, p.Secure = "https", 443, true
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidPrefix, scheme)
	}

	hostPort, path := rest, "/"
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		hostPort, path = rest[:i], rest[i:]
	}

	host, port, err := splitPrefixHost(hostPort)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrefix, err)
	}
	if port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("%w: port %q out of range", ErrInvalidPrefix, port)
		}
		p.Port = n
	}
	p.Host = host

	if strings.Contains(path, "%") {
		return nil, fmt.Errorf("%w: path %q contains '%%'", ErrInvalidPrefix, path)
	}
	if strings.Contains(path, "//") {
		return nil, fmt.Errorf("%w: path %q contains '//'", ErrInvalidPrefix, path)
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	p.Path = path

	return p, nil
}

func splitPrefixHost(hostPort string) (host, port string, err error) {
	if hostPort == "" {
		return "", "", errors.New("empty host")
	}

	if strings.HasPrefix(hostPort, "[") {
		end := strings.IndexByte(hostPort, ']')
		if end < 0 {
			return "", "", fmt.Errorf("unterminated IPv6 host %q", hostPort)
		}
		host = hostPort[1:end]
		rest := hostPort[end+1:]
		if rest == "" {
			return host, "", nil
		}
		if !strings.HasPrefix(rest, ":") {
			return "", "", fmt.Errorf("malformed host %q", hostPort)
		}
		return host, rest[1:], nil
	}

	host, port, found := strings.Cut(hostPort, ":")
	if found && port == "" {
		return "", "", fmt.Errorf("empty port in %q", hostPort)
	}
	return host, port, nil
}

// IsWildcard reports whether the prefix answers to any host.
func (p *ListenerPrefix) IsWildcard() bool {
	return p.Host == "*" || p.Host == "+" || p.Host == ""
}

func (p *ListenerPrefix) String() string {
	host := p.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return p.Scheme + "://" + host + ":" + strconv.Itoa(p.Port) + p.Path
}

// matchesHost compares the prefix host with a Host header value, port stripped.
func (p *ListenerPrefix) matchesHost(host string) bool {
	if p.IsWildcard() {
		return true
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	return strings.EqualFold(p.Host, host)
}

// matchesPath reports whether path falls under the prefix path.
// "/api" matches the prefix "/api/".
func (p *ListenerPrefix) matchesPath(path string) bool {
	if strings.HasPrefix(path, p.Path) {
		return true
	}
	return path+"/" == p.Path
}
