package service

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/errs"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/model"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/transport"
)

// AuthService defines the mobile + OTP login flow.
type AuthService interface {
	// Login asks the server to send an OTP to mobile and returns the server message.
	Login(ctx context.Context, mobile string) (string, error)
	// VerifyOTP exchanges the OTP for a session and persists it.
	VerifyOTP(ctx context.Context, mobile, otp string) (model.Session, error)
	// Logout drops the session and every cache tied to it.
	Logout(ctx context.Context) error
}

type AuthServiceImpl struct {
	tr       transport.Transport
	sessions Sessions
	log      *zap.Logger
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(tr transport.Transport, sessions Sessions, log *zap.Logger) *AuthServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{tr: tr, sessions: sessions, log: log}
}

func validateMobile(mobile string) error {
	if !reMobile.MatchString(mobile) {
		return &errs.ValidationError{Field: "mobile", Message: "Enter a valid 10-digit mobile number"}
	}
	return nil
}

// Login requests an OTP for mobile.
func (s *AuthServiceImpl) Login(ctx context.Context, mobile string) (string, error) {
	if err := validateMobile(mobile); err != nil {
		return "", err
	}
	env, err := s.tr.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/rider/login-by-mobile",
		JSON:   map[string]string{"mobile": mobile},
	})
	if err != nil {
		return "", err
	}
	if err := rejected(env, "Could not send OTP"); err != nil {
		return "", err
	}
	return textOr(env, "OTP sent successfully"), nil
}

type remoteUser struct {
	ID       transport.Int64 `json:"id"`
	Mobile   string          `json:"mobile"`
	UserType string          `json:"userType"`
}

type authPayload struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
	User         *remoteUser `json:"user"`
}

type verifyResponse struct {
	authPayload
	Data *authPayload `json:"data"`
}

// VerifyOTP verifies the code and saves the returned session. The token and user are
// read from the top level of the body or from data.
func (s *AuthServiceImpl) VerifyOTP(ctx context.Context, mobile, otp string) (model.Session, error) {
	if err := validateMobile(mobile); err != nil {
		return model.Session{}, err
	}
	if !reOTP.MatchString(otp) {
		return model.Session{}, &errs.ValidationError{Field: "otp", Message: "Enter the OTP you received"}
	}
	env, err := s.tr.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/rider/verify-otp",
		JSON:   map[string]string{"mobile": mobile, "otp": otp},
	})
	if err != nil {
		return model.Session{}, err
	}
	if err := rejected(env, "Invalid OTP"); err != nil {
		return model.Session{}, err
	}

	var resp verifyResponse
	if err := env.Decode(&resp); err != nil {
		return model.Session{}, err
	}
	p := resp.authPayload
	if p.Token == "" && resp.Data != nil {
		p = *resp.Data
	}
	if p.Token == "" {
		return model.Session{}, &errs.DecodeError{Cause: errors.New("verify-otp response carries no token")}
	}

	sess := model.Session{
		Token:        p.Token,
		RefreshToken: p.RefreshToken,
		User:         model.User{Mobile: mobile},
	}
	if p.User != nil {
		sess.User = model.User{ID: int64(p.User.ID), Mobile: p.User.Mobile, UserType: p.User.UserType}
		if sess.User.Mobile == "" {
			sess.User.Mobile = mobile
		}
	}
	if err := s.sessions.SaveSession(ctx, sess); err != nil {
		return model.Session{}, err
	}
	s.log.Info("session started", zap.Int64("user_id", sess.User.ID))
	return sess, nil
}

// Logout clears the persisted session; calling it twice is harmless.
func (s *AuthServiceImpl) Logout(ctx context.Context) error {
	return s.sessions.ClearSession(ctx)
}
