// Package model defines domain entities mirrored between the remote API and local storage.
package model

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// User is the minimal identity returned on OTP verification.
type User struct {
	ID       int64  `json:"id"`
	Mobile   string `json:"mobile"`
	UserType string `json:"userType"`
}

// Session is the authenticated identity of the app user.
type Session struct {
	Token        string
	RefreshToken string
	User         User
	ExpiresAt    time.Time // zero for opaque tokens
}

// Profile status values reported by the server.
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

// RiderProfile is the flat local shape of the rider's personal record.
type RiderProfile struct {
	ProfileID    int64  `json:"profile_id"`
	UserID       int64  `json:"user_id"`
	FullName     string `json:"fullName"`
	Gender       string `json:"gender"`
	DOB          string `json:"dob"` // ISO date
	City         string `json:"city"`
	ProfileImage string `json:"profileImage,omitempty"`
	Email        string `json:"email"`
	Mobile       string `json:"mobile"`
	UserType     string `json:"userType"`
	Status       string `json:"status"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

// IsComplete reports whether the mandatory onboarding fields are all set.
func (p *RiderProfile) IsComplete() bool {
	if p == nil {
		return false
	}
	for _, v := range []string{p.FullName, p.Gender, p.City, p.Mobile} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// Relationship tags an emergency contact.
type Relationship string

const (
	RelMother   Relationship = "mother"
	RelFather   Relationship = "father"
	RelSister   Relationship = "sister"
	RelBrother  Relationship = "brother"
	RelHusband  Relationship = "husband"
	RelWife     Relationship = "wife"
	RelFriend   Relationship = "friend"
	RelSon      Relationship = "son"
	RelDaughter Relationship = "daughter"
	RelUncle    Relationship = "uncle"
	RelAunty    Relationship = "aunty"
)

// Relationships lists the accepted relationship tags in display order.
var Relationships = []Relationship{
	RelMother, RelFather, RelSister, RelBrother, RelHusband, RelWife,
	RelFriend, RelSon, RelDaughter, RelUncle, RelAunty,
}

// Valid reports whether r is one of the known tags (case-insensitive).
func (r Relationship) Valid() bool {
	for _, k := range Relationships {
		if strings.EqualFold(string(r), string(k)) {
			return true
		}
	}
	return false
}

// ContactTypeEmergency is the only contact type the app creates.
const ContactTypeEmergency = "emergency"

// Flag is a boolean persisted as 0/1.
type Flag bool

// MarshalJSON encodes the flag as 0 or 1.
func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// UnmarshalJSON accepts 0/1, true/false, "0"/"1"/"true"/"false" and null.
func (f *Flag) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	switch strings.ToLower(s) {
	case "1", "true":
		*f = true
	case "0", "false", "", "null":
		*f = false
	default:
		return fmt.Errorf("flag: unexpected value %s", b)
	}
	return nil
}

// EmergencyContact is a person notified in a safety incident.
type EmergencyContact struct {
	ID           int64        `json:"id"`
	UserID       int64        `json:"user_id"`
	ContactType  string       `json:"contact_type"`
	Relationship Relationship `json:"relationship"`
	Name         string       `json:"name"`
	Number       string       `json:"number"`
	Address      string       `json:"address,omitempty"`
	IsPrimary    Flag         `json:"is_primary"`
	CreatedAt    string       `json:"createdAt,omitempty"`
	UpdatedAt    string       `json:"updatedAt,omitempty"`
}

// PrimaryIndex returns the index of the first primary contact or -1.
func PrimaryIndex(cs []EmergencyContact) int {
	for i := range cs {
		if cs[i].IsPrimary {
			return i
		}
	}
	return -1
}

// CountPrimary returns how many contacts are flagged primary.
func CountPrimary(cs []EmergencyContact) int {
	n := 0
	for i := range cs {
		if cs[i].IsPrimary {
			n++
		}
	}
	return n
}
