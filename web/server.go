package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/freekieb7/embedio/filecache"
	"github.com/freekieb7/embedio/http"
	"github.com/freekieb7/embedio/scheduler"
	"github.com/freekieb7/embedio/session/storage"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const DefaultHousekeepingInterval = time.Minute

var (
	ErrServerStarted = errors.New("web: server already started")
	ErrNoPrefixes    = errors.New("web: no url prefix configured")
)

type State int32

const (
	StateCreated State = iota
	StateLoading
	StateListening
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateLoading:
		return "loading"
	case StateListening:
		return "listening"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// WebServer runs a module pipeline on an http Listener.
type WebServer struct {
	prefixes             []string
	listenerOptions      []http.Option
	housekeepingInterval time.Duration
	logger               *slog.Logger

	listener  *http.Listener
	modules   *ModuleCollection
	cache     *filecache.Cache
	scheduler *scheduler.Scheduler

	started        atomic.Bool
	state          atomic.Int32
	stateMu        sync.Mutex
	onStateChanged []func(old, new State)

	errs  []error
	named int
}

type ServerOption func(*WebServer)

// WithURLPrefix adds prefixes such as "http://*:9696/".
func WithURLPrefix(prefixes ...string) ServerOption {
	return func(s *WebServer) {
		s.prefixes = append(s.prefixes, prefixes...)
	}
}

func WithListenerOptions(opts ...http.Option) ServerOption {
	return func(s *WebServer) {
		s.listenerOptions = append(s.listenerOptions, opts...)
	}
}

func WithHousekeeping(interval time.Duration) ServerOption {
	return func(s *WebServer) {
		s.housekeepingInterval = interval
	}
}

func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *WebServer) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewWebServer(opts ...ServerOption) *WebServer {
	s := &WebServer{
		housekeepingInterval: DefaultHousekeepingInterval,
		logger:               logger,
		cache:                filecache.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.listenerOptions = append(s.listenerOptions, http.WithLogger(s.logger))
	s.listener = http.NewListener(s.listenerOptions...)
	s.modules = NewModuleCollection(s.logger)
	s.scheduler = scheduler.NewScheduler()
	return s
}

func (s *WebServer) Listener() *http.Listener {
	return s.listener
}

func (s *WebServer) Modules() *ModuleCollection {
	return s.modules
}

// Cache is the file cache shared by the static folders of the server.
func (s *WebServer) Cache() *filecache.Cache {
	return s.cache
}

func (s *WebServer) State() State {
	return State(s.state.Load())
}

// OnStateChanged registers fn, called synchronously on each transition.
func (s *WebServer) OnStateChanged(fn func(old, new State)) *WebServer {
	s.stateMu.Lock()
	s.onStateChanged = append(s.onStateChanged, fn)
	s.stateMu.Unlock()
	return s
}

func (s *WebServer) setState(state State) {
	old := State(s.state.Swap(int32(state)))
	if old == state {
		return
	}
	s.logger.Debug("Server state changed", slog.String("from", old.String()), slog.String("to", state.String()))

	s.stateMu.Lock()
	callbacks := slices.Clone(s.onStateChanged)
	s.stateMu.Unlock()
	for _, fn := range callbacks {
		fn(old, state)
	}
}

// nextName names a module added by one of the With helpers. The sequence
// number keeps repeated registrations on one base route apart.
func (s *WebServer) nextName(kind, baseRoute string) string {
	s.named++
	return fmt.Sprintf("%s:%s#%d", kind, baseRoute, s.named)
}

// WithModule registers m. Registration errors are reported by Run.
func (s *WebServer) WithModule(name string, m Module) *WebServer {
	if err := s.modules.Add(name, m); err != nil {
		s.errs = append(s.errs, err)
	}
	return s
}

func (s *WebServer) WithStaticFolder(baseRoute, root string, opts ...StaticOption) *WebServer {
	opts = append([]StaticOption{WithFileCache(s.cache)}, opts...)
	m, err := NewStaticFilesModule(baseRoute, root, opts...)
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("static folder %q: %w", baseRoute, err))
		return s
	}
	return s.WithModule(s.nextName("static", m.BaseRoute()), m)
}

func (s *WebServer) WithWebAPI(baseRoute string, controllers ...Controller) *WebServer {
	m := NewWebAPIModule(baseRoute)
	for _, c := range controllers {
		if err := m.RegisterController(c); err != nil {
			s.errs = append(s.errs, err)
		}
	}
	return s.WithModule(s.nextName("api", m.BaseRoute()), m)
}

func (s *WebServer) WithCors(baseRoute string, opts cors.Options) *WebServer {
	m := NewCorsModule(baseRoute, opts)
	return s.WithModule(s.nextName("cors", m.BaseRoute()), m)
}

func (s *WebServer) WithAction(baseRoute, verb string, action ActionFunc) *WebServer {
	m := NewActionModule(baseRoute, verb, action)
	return s.WithModule(s.nextName("action:"+m.verb, m.BaseRoute()), m)
}

func (s *WebServer) WithSessions(baseRoute string, store storage.SessionStore, opts ...SessionOption) *WebServer {
	m := NewSessionModule(baseRoute, store, opts...)
	return s.WithModule(s.nextName("session", m.BaseRoute()), m)
}

// Run listens until ctx is done, then force-closes the open connections and
// waits for the running handlers.
func (s *WebServer) Run(ctx context.Context) error {
	if err := errors.Join(s.errs...); err != nil {
		return err
	}
	if len(s.prefixes) == 0 {
		return ErrNoPrefixes
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrServerStarted
	}
	s.setState(StateLoading)

	for _, prefix := range s.prefixes {
		if err := s.listener.AddPrefix(prefix); err != nil {
			s.listener.Close()
			s.setState(StateStopped)
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.modules.Start(ctx)
	housekeeping := s.startHousekeeping(ctx)

	if err := s.listener.Start(); err != nil {
		cancel()
		<-housekeeping
		s.listener.Close()
		s.setState(StateStopped)
		return err
	}
	s.setState(StateListening)
	s.logger.Info("Server listening", slog.Any("prefixes", s.listener.Prefixes()))

	var wg sync.WaitGroup
	var err error
	for {
		var c *http.Context
		c, err = s.listener.GetContext(ctx)
		if err != nil {
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(c)
		}()
	}

	s.setState(StateStopping)
	cancel()
	s.listener.Close()
	wg.Wait()
	<-housekeeping
	s.setState(StateStopped)

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (s *WebServer) startHousekeeping(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	job := scheduler.NewJob("housekeeping").WithInterval(s.housekeepingInterval).WithExecuteAt(time.Now().Add(s.housekeepingInterval))
	for _, name := range s.modules.Names() {
		m, _ := s.modules.Get(name)
		if h, ok := m.(Housekeeper); ok {
			job.AddTask(h.Housekeep)
		}
	}
	s.scheduler.AddJob(job)

	go func() {
		defer close(done)
		s.scheduler.Run(ctx)
	}()
	return done
}

func (s *WebServer) handle(c *http.Context) {
	defer c.Close()

	req := c.Request
	spanCtx, span := tracer.Start(c.Context(), req.Method+" "+req.Path,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("url.path", req.Path),
			attribute.String("http.context_id", c.ID),
		))
	defer span.End()
	c.SetContext(spanCtx)

	start := time.Now()
	s.modules.Dispatch(c)

	status := c.Response.StatusCode
	span.SetAttributes(attribute.Int("http.status_code", status))
	if status >= 500 {
		span.SetStatus(codes.Error, http.StatusText(status))
	}

	attrs := metric.WithAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.status_class", strconv.Itoa(status/100)+"xx"),
	)
	requestCount.Add(spanCtx, 1, attrs)
	requestDuration.Record(spanCtx, time.Since(start).Seconds(), attrs)
}
