// Package host defines the boundary to the host application: the request /
// response contract, the resource-path grammar, and notification envelopes.
package host

import (
	"context"
	"encoding/json"
)

// Action is a host request verb.
type Action string

// Actions understood by the host.
const (
	Get    Action = "get"
	Update Action = "update"
	Create Action = "create"
	Delete Action = "delete"
	Notify Action = "notify"
)

// Request is one host call.
type Request struct {
	Action   Action `json:"action"`
	Resource string `json:"resource"`
	Values   any    `json:"values,omitempty"`
}

// Response is the host answer. Values is left undecoded for the caller.
type Response struct {
	Success bool            `json:"success"`
	Values  json.RawMessage `json:"values,omitempty"`
}

// Notification is a host-pushed message.
type Notification struct {
	Resource string          `json:"resource"`
	Values   json.RawMessage `json:"values,omitempty"`
}

// Handler receives notifications whose resource matched a subscription.
type Handler func(ctx context.Context, n Notification)

// Subscription is released by calling Cancel. Deliveries that start after
// Cancel returns skip the handler; one already running may still finish.
type Subscription interface {
	Cancel()
}

// Client is the transport capability consumed by the core.
type Client interface {
	SendRequest(ctx context.Context, req Request) (Response, error)
	Subscribe(matcher string, h Handler) (Subscription, error)
}

// Matches reports whether resource matches a subscription matcher.
// A trailing "*" matches any suffix; otherwise the match is exact.
func Matches(matcher, resource string) bool {
	if n := len(matcher); n > 0 && matcher[n-1] == '*' {
		prefix := matcher[:n-1]
		return len(resource) >= len(prefix) && resource[:len(prefix)] == prefix
	}
	return matcher == resource
}
