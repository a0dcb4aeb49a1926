package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HandlerFunc answers one method call.
type HandlerFunc func(ctx context.Context, params Params) (any, error)

// Config represents the configuration of the server.
type Config struct {
	Log *zap.SugaredLogger

	// Ready is consulted before every gated method. A non nil error is
	// returned to the caller as CodeNotLoaded.
	Ready func() error

	// Observe is called once per call with the method and the resulting
	// error code, zero on success.
	Observe func(method string, code int)

	// MaxInFlight caps the calls a single websocket connection may have
	// running at once. Zero means DefaultMaxInFlight.
	MaxInFlight int
}

// DefaultMaxInFlight is the per connection cap on running calls.
const DefaultMaxInFlight = 32

type method struct {
	handler HandlerFunc
	gated   bool
}

// Server dispatches calls to the registered methods. Calls are independent
// and run concurrently.
type Server struct {
	log     *zap.SugaredLogger
	ready   func() error
	observe func(method string, code int)
	maxCall int

	mu      sync.RWMutex
	methods map[string]method
	apis    map[string]int
}

// NewServer constructs a server without any methods.
func NewServer(cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	maxCall := cfg.MaxInFlight
	if maxCall <= 0 {
		maxCall = DefaultMaxInFlight
	}

	return &Server{
		log:     log,
		ready:   cfg.Ready,
		observe: cfg.Observe,
		maxCall: maxCall,
		methods: make(map[string]method),
		apis:    make(map[string]int),
	}
}

// Register adds a method that requires the server to be ready.
func (s *Server) Register(name string, h HandlerFunc) {
	s.register(name, h, true)
}

// RegisterUngated adds a method that is served even before the server
// is ready.
func (s *Server) RegisterUngated(name string, h HandlerFunc) {
	s.register(name, h, false)
}

// RegisterAPI names an api for the call envelope. Calling the api name as a
// method returns its numeric id, the way legacy clients discover apis.
func (s *Server) RegisterAPI(name string, id int) {
	s.mu.Lock()
	s.apis[name] = id
	s.mu.Unlock()

	s.RegisterUngated(name, func(ctx context.Context, params Params) (any, error) {
		return id, nil
	})
}

func (s *Server) register(name string, h HandlerFunc, gated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.methods[name] = method{handler: h, gated: gated}
}

// Methods returns the registered method names in order.
func (s *Server) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Dispatch decodes one request message, handles it and returns the encoded
// response.
func (s *Server) Dispatch(ctx context.Context, raw []byte) []byte {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return s.encode(Response{Error: NewError(CodeParse, "parse error: %s", err)})
	}

	return s.encode(s.Handle(ctx, req))
}

// Handle answers one decoded request.
func (s *Server) Handle(ctx context.Context, req Request) (resp Response) {
	resp = Response{
		JSONRPC: req.JSONRPC,
		ID:      req.ID,
	}

	name := req.Method
	defer func() {
		if s.observe != nil {
			code := 0
			if resp.Error != nil {
				code = resp.Error.Code
			}
			s.observe(name, code)
		}
	}()

	if req.Method == "" {
		resp.Error = NewError(CodeInvalidRequest, "missing method")
		return resp
	}

	params, err := parseParams(req.Params)
	if err != nil {
		resp.Error = toError(err)
		return resp
	}

	if req.Method == "call" {
		name, params, err = s.unwrapCall(params)
		if err != nil {
			resp.Error = toError(err)
			return resp
		}
	}

	s.mu.RLock()
	m, exists := s.methods[name]
	s.mu.RUnlock()

	if !exists {
		resp.Error = NewError(CodeMethodNotFound, "method not found: %s", name)
		return resp
	}

	if m.gated && s.ready != nil {
		if err := s.ready(); err != nil {
			resp.Error = NewError(CodeNotLoaded, "%s", err)
			return resp
		}
	}

	result, err := s.invoke(ctx, name, m.handler, params)
	if err != nil {
		resp.Error = toError(err)
		if resp.Error.Code == CodeInternal {
			s.log.Errorw("rpc", "method", name, "ERROR", err)
		}
		return resp
	}

	resp.Result = result
	return resp
}

// unwrapCall turns ["api", "method", [args]] into the method and its args.
func (s *Server) unwrapCall(params Params) (string, Params, error) {
	if params.Len() < 2 {
		return "", nil, InvalidParams("call expects [api, method, args]")
	}

	var api any
	if err := params.Decode(0, &api); err != nil {
		return "", nil, err
	}
	if name, ok := api.(string); ok {
		s.mu.RLock()
		_, known := s.apis[name]
		s.mu.RUnlock()
		if !known {
			return "", nil, NewError(CodeMethodNotFound, "api not found: %s", name)
		}
	}

	name, err := params.String(1)
	if err != nil {
		return "", nil, err
	}

	var args Params
	if params.Has(2) {
		if args, err = parseParams(params[2]); err != nil {
			return "", nil, err
		}
	}

	return name, args, nil
}

// invoke runs the handler and turns a panic into an internal error.
func (s *Server) invoke(ctx context.Context, name string, h HandlerFunc, params Params) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Errorw("rpc", "method", name, "PANIC", rec, "TRACE", string(debug.Stack()))
			err = NewError(CodeInternal, "internal error")
		}
	}()

	return h(ctx, params)
}

func (s *Server) encode(resp Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Errorw("rpc", "status", "encoding response", "ERROR", err)
		data, _ = json.Marshal(Response{ID: resp.ID, JSONRPC: resp.JSONRPC, Error: NewError(CodeInternal, "encoding response")})
	}

	return data
}

// toError converts any error into an error object.
func toError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	return NewError(CodeInternal, "%s", err)
}

// newConnID returns an id used to tie log lines to one connection.
func newConnID() string {
	return uuid.NewString()
}

// traceFields returns the log fields for a connection.
func traceFields(connID string, extra ...any) []any {
	return append([]any{"traceid", connID}, extra...)
}
