package devapi

import (
	"sort"
	"sync"
	"time"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/model"
)

type user struct {
	ID       int64
	Mobile   string
	Email    string
	UserType string
	Status   string
}

type profile struct {
	ID        int64
	UserID    int64
	FullName  string
	Gender    string
	DOB       string
	City      string
	Image     string
	CreatedAt time.Time
}

// store is the in-memory data behind the stub API.
type store struct {
	mu        sync.Mutex
	seq       int64
	users     map[int64]*user
	byMobile  map[string]int64
	otpSent   map[string]bool
	profiles  map[int64]*profile // by user id
	contacts  map[int64]model.EmergencyContact
	clockFunc func() time.Time
}

func newStore(now func() time.Time) *store {
	return &store{
		users:     map[int64]*user{},
		byMobile:  map[string]int64{},
		otpSent:   map[string]bool{},
		profiles:  map[int64]*profile{},
		contacts:  map[int64]model.EmergencyContact{},
		clockFunc: now,
	}
}

func (s *store) next() int64 {
	s.seq++
	return s.seq
}

func (s *store) requestOTP(mobile string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otpSent[mobile] = true
}

// verify consumes the pending OTP and returns the user, creating it on first login.
func (s *store) verify(mobile string) (user, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.otpSent[mobile] {
		return user{}, false
	}
	delete(s.otpSent, mobile)
	id, ok := s.byMobile[mobile]
	if !ok {
		id = s.next()
		s.users[id] = &user{ID: id, Mobile: mobile, UserType: "Rider", Status: model.StatusActive}
		s.byMobile[mobile] = id
	}
	return *s.users[id], true
}

func (s *store) userExists(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	return ok
}

func (s *store) profileRecord(userID int64) (profileRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return profileRecord{}, false
	}
	return s.record(p), true
}

func (s *store) record(p *profile) profileRecord {
	u := s.users[p.UserID]
	rec := profileRecord{
		ID:           p.ID,
		UserID:       p.UserID,
		FullName:     p.FullName,
		Gender:       p.Gender,
		DOB:          p.DOB,
		City:         p.City,
		ProfileImage: p.Image,
		CreatedAt:    p.CreatedAt.UTC().Format(time.RFC3339),
	}
	if u != nil {
		rec.User = &userRecord{Email: u.Email, Mobile: u.Mobile, UserType: u.UserType, Status: u.Status}
	}
	return rec
}

// saveProfile creates (create=true) or updates the profile of userID with the non-empty fields.
func (s *store) saveProfile(userID int64, f profileFields, create bool) (profileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, exists := s.profiles[userID]
	switch {
	case create && exists:
		return profileRecord{}, errConflict
	case !create && !exists:
		return profileRecord{}, errNotFound
	case create:
		p = &profile{ID: s.next(), UserID: userID, CreatedAt: s.clockFunc()}
		s.profiles[userID] = p
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&p.FullName, f.FullName)
	set(&p.Gender, f.Gender)
	set(&p.DOB, f.DOB)
	set(&p.City, f.City)
	set(&p.Image, f.Image)
	if u := s.users[userID]; u != nil {
		set(&u.Email, f.Email)
	}
	return s.record(p), nil
}

func (s *store) deleteProfile(userID, profileID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok || p.ID != profileID {
		return errNotFound
	}
	delete(s.profiles, userID)
	return nil
}

func (s *store) listContacts(userID int64) []model.EmergencyContact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.EmergencyContact{}
	for _, c := range s.contacts {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *store) contact(userID, id int64) (model.EmergencyContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok || c.UserID != userID {
		return model.EmergencyContact{}, errNotFound
	}
	return c, nil
}

func (s *store) addContact(c model.EmergencyContact, max int) (model.EmergencyContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, x := range s.contacts {
		if x.UserID == c.UserID {
			n++
		}
	}
	if n >= max {
		return model.EmergencyContact{}, errLimit
	}
	now := s.clockFunc().UTC().Format(time.RFC3339)
	c.ID = s.next()
	c.CreatedAt, c.UpdatedAt = now, now
	s.contacts[c.ID] = c
	return c, nil
}

func (s *store) updateContact(userID, id int64, apply func(*model.EmergencyContact)) (model.EmergencyContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok || c.UserID != userID {
		return model.EmergencyContact{}, errNotFound
	}
	apply(&c)
	c.UpdatedAt = s.clockFunc().UTC().Format(time.RFC3339)
	s.contacts[id] = c
	return c, nil
}

func (s *store) deleteContact(userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok || c.UserID != userID {
		return errNotFound
	}
	delete(s.contacts, id)
	return nil
}
