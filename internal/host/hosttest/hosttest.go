// Package hosttest provides a scripted in-memory host for tests.
package hosttest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/kailas-cloud/casetable/internal/host"
)

// Responder answers one request.
type Responder func(req host.Request) (host.Response, error)

type route struct {
	action   host.Action
	resource string
	fn       Responder
}

// Host implements host.Client. Routes registered later take precedence.
type Host struct {
	mu       sync.Mutex
	routes   []route
	requests []host.Request
	subs     map[int]subscription
	nextSub  int
}

type subscription struct {
	matcher string
	h       host.Handler
}

var _ host.Client = (*Host)(nil)

// New creates an empty scripted host. Unrouted requests get success=false.
func New() *Host {
	return &Host{subs: make(map[int]subscription)}
}

// OK builds a successful response carrying values.
func OK(values any) host.Response {
	if values == nil {
		return host.Response{Success: true}
	}
	b, err := json.Marshal(values)
	if err != nil {
		panic(fmt.Sprintf("hosttest: marshal values: %v", err))
	}
	return host.Response{Success: true, Values: b}
}

// Rejected builds a success=false response with an error message.
func Rejected(msg string) host.Response {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return host.Response{Success: false, Values: b}
}

// On routes requests matching action and resource (trailing "*" allowed) to fn.
func (h *Host) On(action host.Action, resource string, fn Responder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, route{action: action, resource: resource, fn: fn})
}

// Reply routes a fixed successful response.
func (h *Host) Reply(action host.Action, resource string, values any) {
	resp := OK(values)
	h.On(action, resource, func(host.Request) (host.Response, error) { return resp, nil })
}

// Reject routes a fixed rejection.
func (h *Host) Reject(action host.Action, resource, msg string) {
	resp := Rejected(msg)
	h.On(action, resource, func(host.Request) (host.Response, error) { return resp, nil })
}

// SendRequest implements host.Client.
func (h *Host) SendRequest(ctx context.Context, req host.Request) (host.Response, error) {
	h.mu.Lock()
	h.requests = append(h.requests, req)
	var fn Responder
	for i := len(h.routes) - 1; i >= 0; i-- {
		r := h.routes[i]
		if r.action == req.Action && host.Matches(r.resource, req.Resource) {
			fn = r.fn
			break
		}
	}
	h.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return host.Response{}, err
	}
	if fn == nil {
		return Rejected("no route for " + string(req.Action) + " " + req.Resource), nil
	}
	return fn(req)
}

// Subscribe implements host.Client.
func (h *Host) Subscribe(matcher string, handler host.Handler) (host.Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSub++
	id := h.nextSub
	h.subs[id] = subscription{matcher: matcher, h: handler}
	return cancelFunc(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}), nil
}

type cancelFunc func()

func (f cancelFunc) Cancel() { f() }

// Push delivers a notification synchronously to every matching subscriber.
func (h *Host) Push(ctx context.Context, resource string, values any) {
	var raw json.RawMessage
	if values != nil {
		b, err := json.Marshal(values)
		if err != nil {
			panic(fmt.Sprintf("hosttest: marshal notification: %v", err))
		}
		raw = b
	}
	h.mu.Lock()
	var ids []int
	for id, s := range h.subs {
		if host.Matches(s.matcher, resource) {
			ids = append(ids, id)
		}
	}
	h.mu.Unlock()
	sort.Ints(ids)

	for _, id := range ids {
		h.mu.Lock()
		s, ok := h.subs[id]
		h.mu.Unlock()
		if ok {
			s.h(ctx, host.Notification{Resource: resource, Values: raw})
		}
	}
}

// Requests returns a copy of every request received.
func (h *Host) Requests() []host.Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]host.Request, len(h.requests))
	copy(out, h.requests)
	return out
}

// Count returns how many requests matched action and resource.
func (h *Host) Count(action host.Action, resource string) int {
	n := 0
	for _, r := range h.Requests() {
		if r.Action == action && host.Matches(resource, r.Resource) {
			n++
		}
	}
	return n
}

// Subscribers returns the number of live subscriptions.
func (h *Host) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
