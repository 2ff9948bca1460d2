// Package client implements the sender-side reconciliation of optimistic
// messages with the authoritative server record. A locally composed
// message renders immediately under a correlation token; when the server
// echo arrives (direct response or event stream, whichever first), it is
// merged exactly once, so the sender's own echo never double-inserts.
package client

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/yourorg/forum-chat/internal/models"
)

type State int

const (
	Composing State = iota
	Sending
	Sent
	Failed
	Edited
	Deleted
)

// Entry is one message as the client currently renders it.
type Entry struct {
	Token   string
	State   State
	Content string
	Err     error
	Server  *models.Message
}

type Reconciler struct {
	mu      sync.Mutex
	byToken map[string]*Entry
	byID    map[string]*Entry
}

func NewReconciler() *Reconciler {
	return &Reconciler{
		byToken: make(map[string]*Entry),
		byID:    make(map[string]*Entry),
	}
}

// Compose registers a draft and returns its correlation token. The token
// travels with the create call as client_token.
func (r *Reconciler) Compose(content string) string {
	token := uuid.NewString()
	r.mu.Lock()
	r.byToken[token] = &Entry{Token: token, State: Composing, Content: content}
	r.mu.Unlock()
	return token
}

func (r *Reconciler) MarkSending(token string) {
	r.mu.Lock()
	if e, ok := r.byToken[token]; ok && e.State == Composing {
		e.State = Sending
	}
	r.mu.Unlock()
}

// ResolveSend merges the authoritative message for our own send. Idempotent:
// a second resolution (echo after direct response) changes nothing.
func (r *Reconciler) ResolveSend(token string, m *models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byToken[token]
	if !ok {
		return
	}
	if e.State == Sent || e.State == Edited || e.State == Deleted {
		return
	}
	e.State = Sent
	e.Server = m
	e.Err = nil
	r.byID[m.ID] = e
}

// FailSend keeps the entry visible with a retry affordance.
func (r *Reconciler) FailSend(token string, err error) {
	r.mu.Lock()
	if e, ok := r.byToken[token]; ok && e.State == Sending {
		e.State = Failed
		e.Err = err
	}
	r.mu.Unlock()
}

// Retry moves a failed entry back to Sending under the same token.
func (r *Reconciler) Retry(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byToken[token]
	if !ok || e.State != Failed {
		return false
	}
	e.State = Sending
	e.Err = nil
	return true
}

// Apply folds a channel event into local state. Our own creations match by
// correlation token; everything else matches by message id.
func (r *Reconciler) Apply(ev models.Event) {
	var m models.Message
	if err := json.Unmarshal(ev.Payload, &m); err != nil {
		return
	}
	switch ev.Type {
	case models.EventMessageCreated:
		if m.ClientToken != "" {
			r.mu.Lock()
			_, mine := r.byToken[m.ClientToken]
			r.mu.Unlock()
			if mine {
				r.ResolveSend(m.ClientToken, &m)
				return
			}
		}
		r.mu.Lock()
		if _, seen := r.byID[m.ID]; !seen {
			r.byID[m.ID] = &Entry{State: Sent, Content: m.Content, Server: &m}
		}
		r.mu.Unlock()
	case models.EventMessageUpdated:
		r.mu.Lock()
		if e, ok := r.byID[m.ID]; ok {
			e.State = Edited
			e.Server = &m
			e.Content = m.Content
		}
		r.mu.Unlock()
	case models.EventMessageDeleted:
		r.mu.Lock()
		if e, ok := r.byID[m.ID]; ok {
			e.State = Deleted
			e.Server = &m
			e.Content = ""
		}
		r.mu.Unlock()
	}
}

// Lookup returns the entry for a server message id, if known.
func (r *Reconciler) Lookup(id string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	return e, ok
}

// ByToken returns the entry for a correlation token, if known.
func (r *Reconciler) ByToken(token string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byToken[token]
	return e, ok
}
