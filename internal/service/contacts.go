package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/errs"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/model"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/repository"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/session"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/transport"
)

// MaxContacts is the per-user emergency contact cap.
const MaxContacts = 5

// ContactsCache is the single source of truth for the emergency-contact list.
type ContactsCache interface {
	// List fetches the list remotely; on a transient failure it returns the persisted list.
	List(ctx context.Context) ([]model.EmergencyContact, error)
	// Cached returns the persisted list without a network call.
	Cached(ctx context.Context) ([]model.EmergencyContact, error)
	// Get fetches one contact and merges it into the persisted list.
	Get(ctx context.Context, id int64) (*model.EmergencyContact, error)
	// Add validates and creates a contact. The first contact is always primary.
	Add(ctx context.Context, in ContactInput) (*model.EmergencyContact, error)
	// Update patches a contact and merges the result by id.
	Update(ctx context.Context, id int64, patch ContactPatch) (*model.EmergencyContact, error)
	// SetPrimary demotes the current primary and promotes id, returning the resulting list.
	SetPrimary(ctx context.Context, id int64) ([]model.EmergencyContact, error)
	// Remove deletes a contact and returns the server message.
	Remove(ctx context.Context, id int64) (string, error)
	// Sync forces a remote fetch and overwrites the persisted list; errors are not masked.
	Sync(ctx context.Context) ([]model.EmergencyContact, error)
}

// ContactInput carries the fields of a new contact.
type ContactInput struct {
	UserID       int64 // defaults to the session user
	ContactType  string
	Name         string
	Number       string
	Address      string
	Relationship model.Relationship
	IsPrimary    bool
}

// ContactPatch lists the fields to change; nil fields are left alone.
type ContactPatch struct {
	Name         *string
	Number       *string
	Address      *string
	Relationship *model.Relationship
	IsPrimary    *bool
}

func (p ContactPatch) body() map[string]any {
	b := map[string]any{}
	if p.Name != nil {
		b["name"] = *p.Name
	}
	if p.Number != nil {
		b["number"] = *p.Number
	}
	if p.Address != nil {
		b["address"] = *p.Address
	}
	if p.Relationship != nil {
		b["relationship"] = *p.Relationship
	}
	if p.IsPrimary != nil {
		b["is_primary"] = model.Flag(*p.IsPrimary)
	}
	return b
}

func (p ContactPatch) apply(c *model.EmergencyContact) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Number != nil {
		c.Number = *p.Number
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
	if p.Relationship != nil {
		c.Relationship = *p.Relationship
	}
	if p.IsPrimary != nil {
		c.IsPrimary = model.Flag(*p.IsPrimary)
	}
}

func (p ContactPatch) validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return &errs.ValidationError{Field: "name", Message: "Name is required"}
	}
	if p.Number != nil && !reMobile.MatchString(*p.Number) {
		return &errs.ValidationError{Field: "number", Message: "Enter a valid 10-digit number"}
	}
	if p.Relationship != nil && !p.Relationship.Valid() {
		return &errs.ValidationError{Field: "relationship", Message: "Select a relationship"}
	}
	return nil
}

// Bool returns a pointer to v, for ContactPatch literals.
func Bool(v bool) *bool { return &v }

type ContactsCacheImpl struct {
	mu       sync.Mutex
	tr       transport.Transport
	kv       repository.KV
	sessions Sessions
	log      *zap.Logger
}

// NewContactsCache constructs ContactsCache with required dependencies.
func NewContactsCache(tr transport.Transport, kv repository.KV, sessions Sessions, log *zap.Logger) *ContactsCacheImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &ContactsCacheImpl{tr: tr, kv: kv, sessions: sessions, log: log}
}

// List is remote-first with an offline fallback.
func (c *ContactsCacheImpl) List(ctx context.Context) ([]model.EmergencyContact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list, err := c.fetch(ctx)
	if err != nil {
		if errors.Is(err, errs.ErrTransient) {
			if cached, _, lerr := c.local(ctx); lerr == nil {
				c.log.Info("contact list fetch failed, serving cached copy", zap.Error(err))
				return cached, nil
			}
		}
		return nil, err
	}
	c.save(ctx, list)
	return list, nil
}

// Sync replaces the persisted list with the remote one.
func (c *ContactsCacheImpl) Sync(ctx context.Context) ([]model.EmergencyContact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.save(ctx, list)
	return list, nil
}

// Cached returns the persisted list; nothing persisted yet is an empty list.
func (c *ContactsCacheImpl) Cached(ctx context.Context) ([]model.EmergencyContact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list, _, err := c.local(ctx)
	return list, err
}

// Get fetches one contact by id.
func (c *ContactsCacheImpl) Get(ctx context.Context, id int64) (*model.EmergencyContact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	env, err := c.tr.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/emergency-contacts/%d", id),
		Auth:   true,
	})
	if err != nil {
		var re *errs.RequestError
		if errors.As(err, &re) && re.Status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w", errs.ErrNotFound, err)
		}
		return nil, err
	}
	if !env.OK() {
		return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, textOr(env, "contact not found"))
	}
	got, ok, err := transport.DecodeOne[model.EmergencyContact](env)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrNotFound
	}
	if got.ID == 0 {
		got.ID = id
	}
	if list, _, err := c.local(ctx); err == nil {
		c.save(ctx, upsert(list, *got))
	}
	return got, nil
}

// Add validates in, enforces the cap and the first-contact-primary rule, then creates the contact.
// A primary request on a non-empty list creates the contact first and then promotes it; if the
// promotion fails the created contact is returned together with the error.
func (c *ContactsCacheImpl) Add(ctx context.Context, in ContactInput) (*model.EmergencyContact, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Number = strings.TrimSpace(in.Number)
	if in.Name == "" {
		return nil, &errs.ValidationError{Field: "name", Message: "Name is required"}
	}
	if !reMobile.MatchString(in.Number) {
		return nil, &errs.ValidationError{Field: "number", Message: "Enter a valid 10-digit number"}
	}
	if !in.Relationship.Valid() {
		return nil, &errs.ValidationError{Field: "relationship", Message: "Select a relationship"}
	}
	in.Relationship = model.Relationship(strings.ToLower(string(in.Relationship)))
	if in.ContactType == "" {
		in.ContactType = model.ContactTypeEmergency
	}
	if in.UserID == 0 {
		if u, ok := c.sessions.GetUser(ctx); ok {
			in.UserID = u.ID
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	list, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	if len(list) >= MaxContacts {
		return nil, &errs.LimitExceededError{Max: MaxContacts}
	}
	first := len(list) == 0
	promoteLater := !first && in.IsPrimary

	body := map[string]any{
		"user_id":      in.UserID,
		"contact_type": in.ContactType,
		"relationship": in.Relationship,
		"name":         in.Name,
		"number":       in.Number,
		"is_primary":   model.Flag(first),
	}
	if in.Address != "" {
		body["address"] = in.Address
	}
	env, err := c.tr.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/emergency-contacts",
		JSON:   body,
		Auth:   true,
	})
	if err != nil {
		return nil, err
	}
	if err := rejected(env, "Could not add contact"); err != nil {
		return nil, err
	}

	created, ok, derr := transport.DecodeOne[model.EmergencyContact](env)
	if derr != nil || !ok || created.ID == 0 {
		// no usable echo: take the canonical list and find the new entry in it
		created = nil
		fresh, ferr := c.fetch(ctx)
		if ferr == nil {
			list = fresh
			if i := findNew(fresh, in); i >= 0 {
				created = &fresh[i]
			}
		}
		if created == nil {
			// the server id is unknown: return what was sent and let the next read reload the list
			out := model.EmergencyContact{
				UserID:       in.UserID,
				ContactType:  in.ContactType,
				Relationship: in.Relationship,
				Name:         in.Name,
				Number:       in.Number,
				Address:      in.Address,
				IsPrimary:    model.Flag(first),
			}
			c.invalidate(ctx)
			if errors.Is(ferr, errs.ErrUnauthenticated) {
				return &out, fmt.Errorf("contact added but list not reloaded: %w", ferr)
			}
			return &out, nil
		}
	} else {
		list = upsert(list, *created)
	}
	c.save(ctx, list)

	if !promoteLater || created.ID == 0 {
		out := *created
		return &out, nil
	}
	after, err := c.setPrimary(ctx, created.ID)
	if err != nil {
		out := *created
		return &out, fmt.Errorf("contact added but not made primary: %w", err)
	}
	i := indexOf(after, created.ID)
	if i < 0 {
		out := *created
		return &out, nil
	}
	out := after[i]
	return &out, nil
}

// Update patches contact id.
func (c *ContactsCacheImpl) Update(ctx context.Context, id int64, patch ContactPatch) (*model.EmergencyContact, error) {
	if err := patch.validate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.update(ctx, id, patch)
}

func (c *ContactsCacheImpl) update(ctx context.Context, id int64, patch ContactPatch) (*model.EmergencyContact, error) {
	env, err := c.tr.Do(ctx, transport.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/emergency-contacts/%d", id),
		JSON:   patch.body(),
		Auth:   true,
	})
	if err != nil {
		return nil, err
	}
	if err := rejected(env, "Could not update contact"); err != nil {
		return nil, err
	}

	list, _, lerr := c.local(ctx)
	if lerr != nil {
		c.log.Warn("read cached contacts failed", zap.Error(lerr))
		list = nil
	}

	var result model.EmergencyContact
	echo, ok, derr := transport.DecodeOne[model.EmergencyContact](env)
	switch {
	case derr == nil && ok && (echo.ID == id || echo.ID == 0) && echo.Number != "":
		result = *echo
		result.ID = id
		// the echo of a PUT may omit flags that the patch set explicitly
		if patch.IsPrimary != nil {
			result.IsPrimary = model.Flag(*patch.IsPrimary)
		}
	default:
		i := indexOf(list, id)
		if i >= 0 {
			result = list[i]
		} else {
			result = model.EmergencyContact{ID: id}
		}
		patch.apply(&result)
	}
	if lerr == nil {
		c.save(ctx, upsert(list, result))
	}
	return &result, nil
}

// SetPrimary applies the change locally, then demotes and promotes remotely. On a remote
// failure the canonical list is re-fetched, or the snapshot restored if that fails too.
func (c *ContactsCacheImpl) SetPrimary(ctx context.Context, id int64) ([]model.EmergencyContact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setPrimary(ctx, id)
}

func (c *ContactsCacheImpl) setPrimary(ctx context.Context, id int64) ([]model.EmergencyContact, error) {
	list, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(list, id)
	if idx < 0 {
		return nil, fmt.Errorf("contact %d: %w", id, errs.ErrNotFound)
	}
	if list[idx].IsPrimary && model.CountPrimary(list) == 1 {
		return list, nil
	}

	snapshot := clone(list)
	optimistic := clone(list)
	for i := range optimistic {
		optimistic[i].IsPrimary = optimistic[i].ID == id
	}
	c.save(ctx, optimistic)

	for _, ct := range snapshot {
		if !ct.IsPrimary || ct.ID == id {
			continue
		}
		if _, err := c.update(ctx, ct.ID, ContactPatch{IsPrimary: Bool(false)}); err != nil {
			return nil, c.rollback(ctx, snapshot, fmt.Errorf("demote contact %d: %w", ct.ID, err))
		}
	}
	if _, err := c.update(ctx, id, ContactPatch{IsPrimary: Bool(true)}); err != nil {
		return nil, c.rollback(ctx, snapshot, fmt.Errorf("promote contact %d: %w", id, err))
	}

	out, _, err := c.local(ctx)
	if err != nil {
		return optimistic, nil
	}
	return out, nil
}

func (c *ContactsCacheImpl) rollback(ctx context.Context, snapshot []model.EmergencyContact, cause error) error {
	if errors.Is(cause, errs.ErrUnauthenticated) {
		// the session and its caches are gone; nothing to restore into
		return cause
	}
	fresh, err := c.fetch(ctx)
	if err != nil {
		c.log.Warn("set primary failed, restoring local snapshot", zap.Error(cause), zap.NamedError("refetch", err))
		c.save(ctx, snapshot)
		return cause
	}
	c.log.Warn("set primary failed, reloaded contact list", zap.Error(cause))
	c.save(ctx, fresh)
	return cause
}

// Remove deletes contact id. A removed primary is not replaced automatically.
func (c *ContactsCacheImpl) Remove(ctx context.Context, id int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	env, err := c.tr.Do(ctx, transport.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/emergency-contacts/%d", id),
		Auth:   true,
	})
	if err != nil {
		return "", err
	}
	if err := rejected(env, "Could not delete contact"); err != nil {
		return "", err
	}
	if list, _, err := c.local(ctx); err == nil {
		if i := indexOf(list, id); i >= 0 {
			c.save(ctx, append(list[:i], list[i+1:]...))
		}
	}
	return textOr(env, "Contact deleted successfully"), nil
}

func (c *ContactsCacheImpl) fetch(ctx context.Context) ([]model.EmergencyContact, error) {
	env, err := c.tr.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/emergency-contacts",
		Auth:   true,
	})
	if err != nil {
		return nil, err
	}
	if err := rejected(env, "Could not load contacts"); err != nil {
		return nil, err
	}
	return transport.DecodeList[model.EmergencyContact](env)
}

// local reads the persisted list; found is false when nothing was ever persisted.
func (c *ContactsCacheImpl) local(ctx context.Context) (list []model.EmergencyContact, found bool, err error) {
	found, err = repository.GetJSON(ctx, c.kv, session.KeyContacts, &list)
	if err != nil {
		return nil, false, err
	}
	if list == nil {
		list = []model.EmergencyContact{}
	}
	return list, found, nil
}

// current is the list used for local checks: the persisted one, or a remote fetch if none was persisted.
func (c *ContactsCacheImpl) current(ctx context.Context) ([]model.EmergencyContact, error) {
	list, found, err := c.local(ctx)
	if err != nil {
		c.log.Warn("read cached contacts failed", zap.Error(err))
	}
	if err == nil && found {
		return list, nil
	}
	fresh, ferr := c.fetch(ctx)
	if ferr != nil {
		return nil, ferr
	}
	c.save(ctx, fresh)
	return fresh, nil
}

// save persists list while a session exists; after logout or a 401 the cache stays empty.
func (c *ContactsCacheImpl) save(ctx context.Context, list []model.EmergencyContact) {
	if _, ok := c.sessions.GetToken(ctx); !ok {
		c.log.Debug("no session, contact list not persisted")
		return
	}
	if list == nil {
		list = []model.EmergencyContact{}
	}
	if err := repository.SetJSON(ctx, c.kv, session.KeyContacts, list); err != nil {
		c.log.Warn("persist contacts failed", zap.Error(err))
	}
}

// invalidate drops the persisted list so the next read fetches it again.
func (c *ContactsCacheImpl) invalidate(ctx context.Context) {
	if err := c.kv.Remove(ctx, session.KeyContacts); err != nil {
		c.log.Warn("drop cached contacts failed", zap.Error(err))
	}
}

func indexOf(list []model.EmergencyContact, id int64) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func upsert(list []model.EmergencyContact, ct model.EmergencyContact) []model.EmergencyContact {
	if i := indexOf(list, ct.ID); i >= 0 {
		list[i] = ct
		return list
	}
	return append(list, ct)
}

func clone(list []model.EmergencyContact) []model.EmergencyContact {
	return append([]model.EmergencyContact(nil), list...)
}

// findNew locates the entry matching in, preferring the newest (last) match.
func findNew(list []model.EmergencyContact, in ContactInput) int {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Number == in.Number && strings.EqualFold(list[i].Name, in.Name) {
			return i
		}
	}
	return -1
}
