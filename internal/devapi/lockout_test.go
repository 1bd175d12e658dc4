package devapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLockout_WindowAndBlock(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	l := newLockout(time.Minute, 3, 10*time.Minute, func() time.Time { return now })

	ok, _ := l.allow("m", "c")
	require.True(t, ok)

	l.failure("m", "c")
	now = now.Add(2 * time.Minute) // outside the window: counter restarts
	l.failure("m", "c")
	blocked, _ := l.failure("m", "c")
	require.False(t, blocked)

	blocked, d := l.failure("m", "c")
	require.True(t, blocked)
	assert.Equal(t, 10*time.Minute, d)

	ok, wait := l.allow("m", "c")
	assert.False(t, ok)
	assert.Equal(t, 10*time.Minute, wait)
	ok, _ = l.allow("m", "other")
	assert.True(t, ok, "other clients are unaffected")

	now = now.Add(11 * time.Minute)
	ok, _ = l.allow("m", "c")
	assert.True(t, ok)

	l.failure("m", "c")
	l.success("m", "c")
	assert.Empty(t, l.entries)
}

func TestVerifyOTP_LocksOutAfterFailures(t *testing.T) {
	t.Parallel()
	s := New(Options{SigningKey: "k", OTP: "4321", MaxOTPFailures: 2, Logger: zaptest.NewLogger(t)})
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)

	code, _ := call(t, ts, http.MethodPost, "/rider/login-by-mobile", "", map[string]string{"mobile": "9876543210"})
	require.Equal(t, http.StatusOK, code)

	for i := 0; i < 2; i++ {
		code, _ = call(t, ts, http.MethodPost, "/rider/verify-otp", "", map[string]string{"mobile": "9876543210", "otp": "0000"})
		require.Equal(t, http.StatusBadRequest, code)
	}
	code, body := call(t, ts, http.MethodPost, "/rider/verify-otp", "", map[string]string{"mobile": "9876543210", "otp": "4321"})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "Too many attempts, try again later", body["message"])

	// a different number is not blocked
	login(t, ts, "9123456780")
}

func TestHashClient(t *testing.T) {
	t.Parallel()
	a := httptest.NewRequest(http.MethodGet, "/", nil)
	a.RemoteAddr = "10.0.0.1:5000"
	b := httptest.NewRequest(http.MethodGet, "/", nil)
	b.RemoteAddr = "10.0.0.1:6000"
	c := httptest.NewRequest(http.MethodGet, "/", nil)
	c.RemoteAddr = "10.0.0.2:5000"

	assert.Equal(t, hashClient(a), hashClient(b))
	assert.NotEqual(t, hashClient(a), hashClient(c))
	assert.Len(t, hashClient(a), 16)
}
