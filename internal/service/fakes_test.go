package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/errs"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/model"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/repository/memory"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/session"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/transport"
)

// envelope builds a response the way the HTTP transport would from a JSON body.
func envelope(body string) *transport.Envelope {
	var env transport.Envelope
	if body != "" {
		if err := json.Unmarshal([]byte(body), &env); err != nil {
			panic(err)
		}
		env.Raw = json.RawMessage(body)
	}
	return &env
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// fakeAPI records requests and answers them with handle.
type fakeAPI struct {
	mu     sync.Mutex
	calls  []transport.Request
	handle func(req transport.Request) (*transport.Envelope, error)
}

var _ transport.Transport = (*fakeAPI)(nil)

func (f *fakeAPI) Do(_ context.Context, req transport.Request) (*transport.Envelope, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	h := f.handle
	f.mu.Unlock()
	if h == nil {
		return envelope(`{"success":true}`), nil
	}
	return h(req)
}

func (f *fakeAPI) count(method, prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method && strings.HasPrefix(c.Path, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeAPI) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var transientErr = &errs.TransientError{Attempts: 3, Cause: fmt.Errorf("dial tcp: connection refused")}

// contactsBackend is an in-memory emergency-contacts API.
type contactsBackend struct {
	mu       sync.Mutex
	nextID   int64
	byID     map[int64]model.EmergencyContact
	noEcho   bool           // POST/PUT answer without data
	failPut  map[int64]error // per-contact PUT failure
	failList error
}

func newContactsBackend() *contactsBackend {
	return &contactsBackend{nextID: 100, byID: map[int64]model.EmergencyContact{}, failPut: map[int64]error{}}
}

func (b *contactsBackend) list() []model.EmergencyContact {
	out := make([]model.EmergencyContact, 0, len(b.byID))
	for _, c := range b.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *contactsBackend) snapshot() []model.EmergencyContact {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.list()
}

func (b *contactsBackend) handle(req transport.Request) (*transport.Envelope, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := int64(0)
	if rest, ok := strings.CutPrefix(req.Path, "/emergency-contacts/"); ok {
		id, _ = strconv.ParseInt(rest, 10, 64)
	}
	switch {
	case req.Method == http.MethodGet && id == 0:
		if b.failList != nil {
			return nil, b.failList
		}
		return envelope(mustJSON(map[string]any{"success": true, "data": b.list()})), nil
	case req.Method == http.MethodGet:
		c, ok := b.byID[id]
		if !ok {
			return nil, &errs.RequestError{Status: http.StatusNotFound, Message: "Contact not found"}
		}
		return envelope(mustJSON(map[string]any{"success": true, "data": c})), nil
	case req.Method == http.MethodPost:
		raw, _ := json.Marshal(req.JSON)
		var c model.EmergencyContact
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		b.nextID++
		c.ID = b.nextID
		b.byID[c.ID] = c
		if b.noEcho {
			return envelope(`{"success":true,"message":"Contact added"}`), nil
		}
		return envelope(mustJSON(map[string]any{"success": true, "message": "Contact added", "data": c})), nil
	case req.Method == http.MethodPut:
		if err := b.failPut[id]; err != nil {
			return nil, err
		}
		c, ok := b.byID[id]
		if !ok {
			return nil, &errs.RequestError{Status: http.StatusNotFound, Message: "Contact not found"}
		}
		raw, _ := json.Marshal(req.JSON)
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		b.byID[id] = c
		if b.noEcho {
			return envelope(`{"success":true,"data":[1]}`), nil
		}
		return envelope(mustJSON(map[string]any{"success": true, "data": c})), nil
	case req.Method == http.MethodDelete:
		delete(b.byID, id)
		return envelope(`{"success":true,"message":{"message":"Emergency contact removed"}}`), nil
	}
	return nil, &errs.RequestError{Status: http.StatusMethodNotAllowed}
}

// newSessions returns a session store holding a logged-in rider.
func newSessions(t *testing.T) (*session.Store, *memory.Store) {
	t.Helper()
	kv := memory.New()
	s := session.New(kv, nil)
	err := s.SaveSession(context.Background(), model.Session{
		Token: "abc",
		User:  model.User{ID: 7, Mobile: "9876543210", UserType: "Rider"},
	})
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	return s, kv
}
