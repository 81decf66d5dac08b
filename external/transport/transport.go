// Package transport defines the remote control channel's message
// schemas and dispatch contract: the command/response/event envelopes
// external front-ends exchange over whatever bidirectional stream they
// choose, plus the method-routing and authentication-gating logic a
// front-end wires those envelopes through. Actual socket plumbing
// (WebSocket, stdio, anything else) is out of scope — callers push
// decoded Commands in and get Responses/Events back.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Command is an inbound request envelope.
type Command struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers a Command with the same ID.
type Response struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Event is an unsolicited broadcast pushed to subscribed sessions.
type Event struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// HandlerFunc implements one remote-control method. It returns a value
// to be marshaled into Response.Result, or an error surfaced as
// Response.Error.
type HandlerFunc func(ctx context.Context, session *Session, params json.RawMessage) (interface{}, error)

const methodAuthenticate = "authenticate"

// authPayload is the params shape for the authenticate method.
type authPayload struct {
	Token string `json:"token"`
}

// subscribePayload is the params shape for the subscribe method.
type subscribePayload struct {
	EventType string `json:"event_type"`
}

// Dispatcher routes Commands to registered method handlers and tracks
// per-session authentication and event subscriptions. It is agnostic
// to the transport carrying the envelopes.
type Dispatcher struct {
	mu           sync.RWMutex
	handlers     map[string]HandlerFunc
	authRequired bool
	tokens       map[string]struct{}
}

// NewDispatcher builds a Dispatcher. When authRequired is true, every
// method other than "authenticate" fails with "Authentication
// required" until the session presents one of the given tokens.
func NewDispatcher(authRequired bool, validTokens []string) *Dispatcher {
	tokens := make(map[string]struct{}, len(validTokens))
	for _, tok := range validTokens {
		tokens[tok] = struct{}{}
	}
	d := &Dispatcher{
		handlers:     make(map[string]HandlerFunc),
		authRequired: authRequired,
		tokens:       tokens,
	}
	d.handlers[methodAuthenticate] = d.handleAuthenticate
	d.handlers["create_session"] = d.handleCreateSession
	d.handlers["subscribe"] = d.handleSubscribe
	return d
}

// RegisterMethod wires a domain handler (e.g. checkpoint.create,
// workflow.run) into the dispatch table. Built-in methods
// (authenticate, create_session, subscribe) cannot be overridden.
func (d *Dispatcher) RegisterMethod(method string, handler HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if method == methodAuthenticate || method == "create_session" || method == "subscribe" {
		return
	}
	d.handlers[method] = handler
}

// NewSession creates session-local state (authentication, event
// subscriptions) for one connected client. The caller owns how that
// session's Commands arrive and its Responses/Events leave.
func (d *Dispatcher) NewSession(id string) *Session {
	return &Session{
		id:            id,
		subscriptions: make(map[string]struct{}),
	}
}

// Dispatch routes cmd to its registered handler, enforcing the
// authentication gate first.
func (d *Dispatcher) Dispatch(ctx context.Context, session *Session, cmd Command) Response {
	d.mu.RLock()
	handler, ok := d.handlers[cmd.Method]
	d.mu.RUnlock()

	if !ok {
		return errorResponse(cmd.ID, fmt.Sprintf("unknown method: %s", cmd.Method))
	}

	if d.authRequired && cmd.Method != methodAuthenticate && !session.isAuthenticated() {
		return errorResponse(cmd.ID, "Authentication required")
	}

	result, err := handler(ctx, session, cmd.Params)
	if err != nil {
		return errorResponse(cmd.ID, err.Error())
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return errorResponse(cmd.ID, fmt.Sprintf("marshal result: %v", err))
	}
	return Response{ID: cmd.ID, Success: true, Result: raw}
}

// BuildEvent constructs the Event envelope for a broadcast of kind
// eventType. Delivery to subscribed sessions is the caller's
// responsibility; Session.IsSubscribed reports which sessions want it.
func BuildEvent(eventType string, data interface{}) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("transport: marshal event data: %w", err)
	}
	return Event{EventType: eventType, Data: raw, Timestamp: time.Now()}, nil
}

func (d *Dispatcher) handleAuthenticate(ctx context.Context, session *Session, params json.RawMessage) (interface{}, error) {
	var p authPayload
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid authenticate params: %w", err)
	}
	if _, ok := d.tokens[p.Token]; !ok {
		return nil, fmt.Errorf("invalid token")
	}
	session.setAuthenticated(true)
	return map[string]bool{"authenticated": true}, nil
}

func (d *Dispatcher) handleCreateSession(ctx context.Context, session *Session, params json.RawMessage) (interface{}, error) {
	return map[string]string{"session_id": session.id}, nil
}

func (d *Dispatcher) handleSubscribe(ctx context.Context, session *Session, params json.RawMessage) (interface{}, error) {
	var p subscribePayload
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid subscribe params: %w", err)
	}
	if p.EventType == "" {
		return nil, fmt.Errorf("event_type is required")
	}
	session.subscribe(p.EventType)
	return map[string]string{"event_type": p.EventType}, nil
}

func errorResponse(id, message string) Response {
	return Response{ID: id, Success: false, Error: message}
}

// Session holds one connected remote-control client's dispatch-visible
// state: authentication status and event-type subscriptions.
type Session struct {
	id string

	mu            sync.Mutex
	authenticated bool
	subscriptions map[string]struct{}
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// IsSubscribed reports whether the session wants events of eventType.
func (s *Session) IsSubscribed(eventType string) bool {
	return s.isSubscribed(eventType)
}

func (s *Session) isAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *Session) setAuthenticated(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = v
}

func (s *Session) subscribe(eventType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[eventType] = struct{}{}
}

func (s *Session) isSubscribed(eventType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subscriptions[eventType]
	return ok
}
