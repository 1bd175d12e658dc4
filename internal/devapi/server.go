// Package devapi is an in-memory stand-in for the rider REST API, used for local runs
// of the CLI and for end-to-end tests of the client.
package devapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/model"
)

// MaxContacts mirrors the server-side cap on emergency contacts.
const MaxContacts = 5

var (
	errNotFound = errors.New("not found")
	errConflict = errors.New("already exists")
	errLimit    = errors.New("limit reached")

	reMobile = regexp.MustCompile(`^\d{10}$`)
)

// Options configures the stub.
type Options struct {
	SigningKey string
	OTP        string
	TokenTTL   time.Duration
	Logger     *zap.Logger
	Now        func() time.Time

	// MaxOTPFailures wrong codes within LockoutWindow block further checks for LockoutWindow.
	MaxOTPFailures int
	LockoutWindow  time.Duration
}

// Server wires the in-memory store into HTTP handlers.
type Server struct {
	store   *store
	signKey []byte
	otp     string
	ttl     time.Duration
	log     *zap.Logger
	now     func() time.Time
	lockout *lockout
}

// New constructs the stub API.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	otp := opts.OTP
	if otp == "" {
		otp = "1234"
	}
	maxFails := opts.MaxOTPFailures
	if maxFails <= 0 {
		maxFails = 5
	}
	window := opts.LockoutWindow
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Server{
		lockout: newLockout(window, maxFails, window, now),
		store:   newStore(now),
		signKey: []byte(opts.SigningKey),
		otp:     otp,
		ttl:     ttl,
		log:     log,
		now:     now,
	}
}

// Routes returns the router with every endpoint mounted under /api/v1.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(Recover(s.log), Logging(s.log))

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/rider/login-by-mobile", s.handleLogin)
		api.Post("/rider/verify-otp", s.handleVerifyOTP)

		api.Group(func(authed chi.Router) {
			authed.Use(s.RequireAuth)

			authed.Get("/rider-profiles/user/{userID}", s.handleGetProfile)
			authed.Post("/rider-profiles", s.handleCreateProfile)
			authed.Put("/rider-profiles/user/{userID}", s.handleUpdateProfile)
			authed.Delete("/rider-profiles/{profileID}", s.handleDeleteProfile)

			authed.Get("/emergency-contacts", s.handleListContacts)
			authed.Post("/emergency-contacts", s.handleCreateContact)
			authed.Get("/emergency-contacts/{id}", s.handleGetContact)
			authed.Put("/emergency-contacts/{id}", s.handleUpdateContact)
			authed.Delete("/emergency-contacts/{id}", s.handleDeleteContact)
		})
	})
	return r
}

// --- wire shapes ---

type userRecord struct {
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
	UserType string `json:"userType"`
	Status   string `json:"status"`
}

type profileRecord struct {
	ID           int64       `json:"id"`
	UserID       int64       `json:"user_id"`
	FullName     string      `json:"fullName"`
	Gender       string      `json:"gender"`
	DOB          string      `json:"dob"`
	City         string      `json:"city"`
	ProfileImage string      `json:"profileImage,omitempty"`
	CreatedAt    string      `json:"createdAt"`
	User         *userRecord `json:"User,omitempty"`
}

type profileFields struct {
	FullName, Gender, DOB, City, Email, Image string
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respond(w http.ResponseWriter, msg string, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: msg, Data: data})
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Message: msg})
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// --- auth ---

type loginRequest struct {
	Mobile string `json:"mobile"`
	OTP    string `json:"otp"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !reMobile.MatchString(req.Mobile) {
		fail(w, http.StatusBadRequest, "Valid mobile number is required")
		return
	}
	s.store.requestOTP(req.Mobile)
	respond(w, "OTP sent successfully", nil)
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	client := hashClient(r)
	if allowed, wait := s.lockout.allow(req.Mobile, client); !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		fail(w, http.StatusTooManyRequests, "Too many attempts, try again later")
		return
	}
	if req.OTP != s.otp {
		if blocked, wait := s.lockout.failure(req.Mobile, client); blocked {
			s.log.Warn("otp checks blocked", zap.String("mobile", req.Mobile), zap.Duration("for", wait))
		}
		fail(w, http.StatusBadRequest, "Invalid OTP")
		return
	}
	u, found := s.store.verify(req.Mobile)
	if !found {
		fail(w, http.StatusBadRequest, "OTP expired or not requested")
		return
	}
	s.lockout.success(req.Mobile, client)
	tok, err := s.issueAccessToken(u.ID)
	if err != nil {
		s.log.Error("sign token", zap.Error(err))
		fail(w, http.StatusInternalServerError, "Could not sign token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Login successful",
		"token":   tok,
		"user":    map[string]any{"id": u.ID, "mobile": u.Mobile, "userType": u.UserType},
	})
}

// --- profiles ---

func (s *Server) ownUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	uid, _ := UserIDFromCtx(r.Context())
	id, valid := pathID(r, "userID")
	if !valid {
		fail(w, http.StatusBadRequest, "Invalid user id")
		return 0, false
	}
	if id != uid {
		fail(w, http.StatusForbidden, "Forbidden")
		return 0, false
	}
	return uid, true
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	uid, valid := s.ownUser(w, r)
	if !valid {
		return
	}
	rec, found := s.store.profileRecord(uid)
	if !found {
		fail(w, http.StatusNotFound, "Rider profile not found")
		return
	}
	respond(w, "Rider profile fetched", rec)
}

func readProfileForm(r *http.Request) (profileFields, error) {
	if err := r.ParseMultipartForm(5 << 20); err != nil {
		return profileFields{}, err
	}
	f := profileFields{
		FullName: strings.TrimSpace(r.FormValue("fullName")),
		Gender:   strings.TrimSpace(r.FormValue("gender")),
		DOB:      strings.TrimSpace(r.FormValue("dob")),
		City:     strings.TrimSpace(r.FormValue("city")),
		Email:    strings.TrimSpace(r.FormValue("email")),
	}
	if file, hdr, err := r.FormFile("image"); err == nil {
		_ = file.Close()
		f.Image = "uploads/" + path.Base(hdr.Filename)
	}
	return f, nil
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserIDFromCtx(r.Context())
	f, err := readProfileForm(r)
	if err != nil {
		fail(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	if v := r.FormValue("user_id"); v != "" && v != strconv.FormatInt(uid, 10) {
		fail(w, http.StatusForbidden, "Forbidden")
		return
	}
	if f.FullName == "" {
		fail(w, http.StatusBadRequest, "Full name is required")
		return
	}
	rec, err := s.store.saveProfile(uid, f, true)
	if errors.Is(err, errConflict) {
		writeJSON(w, http.StatusOK, envelope{Success: false, Message: "Rider profile already exists"})
		return
	}
	if err != nil {
		fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: "Rider profile created", Data: rec})
}

// handleUpdateProfile answers with the affected row count only, like the production API.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	uid, valid := s.ownUser(w, r)
	if !valid {
		return
	}
	f, err := readProfileForm(r)
	if err != nil {
		fail(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	if _, err := s.store.saveProfile(uid, f, false); err != nil {
		if errors.Is(err, errNotFound) {
			fail(w, http.StatusNotFound, "Rider profile not found")
			return
		}
		fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond(w, "Rider profile updated", []int{1})
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserIDFromCtx(r.Context())
	id, valid := pathID(r, "profileID")
	if !valid {
		fail(w, http.StatusBadRequest, "Invalid profile id")
		return
	}
	if err := s.store.deleteProfile(uid, id); err != nil {
		fail(w, http.StatusNotFound, "Rider profile not found")
		return
	}
	respond(w, "Rider profile deleted", nil)
}

// --- emergency contacts ---

type contactRequest struct {
	ContactType  *string             `json:"contact_type"`
	Relationship *model.Relationship `json:"relationship"`
	Name         *string             `json:"name"`
	Number       *string             `json:"number"`
	Address      *string             `json:"address"`
	IsPrimary    *model.Flag         `json:"is_primary"`
}

func (req contactRequest) apply(c *model.EmergencyContact) {
	if req.ContactType != nil {
		c.ContactType = *req.ContactType
	}
	if req.Relationship != nil {
		c.Relationship = *req.Relationship
	}
	if req.Name != nil {
		c.Name = strings.TrimSpace(*req.Name)
	}
	if req.Number != nil {
		c.Number = *req.Number
	}
	if req.Address != nil {
		c.Address = *req.Address
	}
	if req.IsPrimary != nil {
		c.IsPrimary = *req.IsPrimary
	}
}

func (req contactRequest) validate(create bool) string {
	if create && (req.Name == nil || strings.TrimSpace(*req.Name) == "") {
		return "Name is required"
	}
	if req.Number != nil && !reMobile.MatchString(*req.Number) {
		return "Number must be 10 digits"
	}
	if create && req.Number == nil {
		return "Number is required"
	}
	if req.Relationship != nil && !req.Relationship.Valid() {
		return "Invalid relationship"
	}
	return ""
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserIDFromCtx(r.Context())
	respond(w, "Emergency contacts fetched", s.store.listContacts(uid))
}

func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserIDFromCtx(r.Context())
	id, valid := pathID(r, "id")
	if !valid {
		fail(w, http.StatusBadRequest, "Invalid contact id")
		return
	}
	c, err := s.store.contact(uid, id)
	if err != nil {
		fail(w, http.StatusNotFound, "Emergency contact not found")
		return
	}
	respond(w, "Emergency contact fetched", c)
}

func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserIDFromCtx(r.Context())
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := req.validate(true); msg != "" {
		fail(w, http.StatusBadRequest, msg)
		return
	}
	c := model.EmergencyContact{UserID: uid, ContactType: model.ContactTypeEmergency}
	req.apply(&c)
	created, err := s.store.addContact(c, MaxContacts)
	if errors.Is(err, errLimit) {
		fail(w, http.StatusBadRequest, "Maximum 5 emergency contacts allowed")
		return
	}
	if err != nil {
		fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: "Emergency contact added", Data: created})
}

func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserIDFromCtx(r.Context())
	id, valid := pathID(r, "id")
	if !valid {
		fail(w, http.StatusBadRequest, "Invalid contact id")
		return
	}
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := req.validate(false); msg != "" {
		fail(w, http.StatusBadRequest, msg)
		return
	}
	c, err := s.store.updateContact(uid, id, req.apply)
	if err != nil {
		fail(w, http.StatusNotFound, "Emergency contact not found")
		return
	}
	respond(w, "Emergency contact updated", c)
}

func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	uid, _ := UserIDFromCtx(r.Context())
	id, valid := pathID(r, "id")
	if !valid {
		fail(w, http.StatusBadRequest, "Invalid contact id")
		return
	}
	if err := s.store.deleteContact(uid, id); err != nil {
		fail(w, http.StatusNotFound, "Emergency contact not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": map[string]string{"message": "Emergency contact deleted"},
	})
}
