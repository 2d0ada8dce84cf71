package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/clock"
	"github.com/user/blog-go/config"
	"github.com/user/blog-go/models"
	"github.com/user/blog-go/store/memory"
)

type sentMail struct {
	to, subject, body string
}

// recordingMailer captures messages and fails with err when it is set.
type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// lastResetToken pulls the raw token out of the most recent reset link.
func (m *recordingMailer) lastResetToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	body := m.sent[len(m.sent)-1].body
	const marker = "/reset-password/"
	i := strings.Index(body, marker)
	require.GreaterOrEqual(t, i, 0)
	rest := body[i+len(marker):]
	if j := strings.IndexAny(rest, " \n"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

type fixture struct {
	svc    *AuthService
	store  *memory.Store
	mailer *recordingMailer
	clock  *clock.StubClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	mailer := &recordingMailer{}
	clk := clock.NewStubClock()
	cfg := &config.AuthConfig{
		JWTSecret:             "test-secret",
		TokenDuration:         30 * 24 * time.Hour,
		PasswordResetDuration: 10 * time.Minute,
		BcryptCost:            bcrypt.MinCost,
	}
	return &fixture{
		svc:    NewAuthService(st, mailer, clk, cfg, "http://localhost:3000/"),
		store:  st,
		mailer: mailer,
		clock:  clk,
	}
}

func (f *fixture) register(t *testing.T, email, password string) *models.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterRequest{
		Username: gofakeit.Username(),
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return u
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.register(t, "ada@example.com", "password1")

	_, err := f.svc.Register(ctx, RegisterRequest{Username: "impostor", Email: "ADA@example.com ", Password: "password2"})
	require.True(t, apperror.Is(err, apperror.DuplicateEmailError))

	stored, err := f.store.FindUserByID(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, first.Username, stored.Username)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.HashedPassword), []byte("password1")))
}

func TestPasswordsAreHashed(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		password := gofakeit.Password(true, true, true, true, false, 12)
		u := f.register(t, gofakeit.Email(), password)

		require.NotEqual(t, password, u.HashedPassword)
		require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)))
		require.Error(t, bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password+"x")))
	}

	// Salted per user: same password, different hashes.
	a := f.register(t, "a@example.com", "samepassword")
	b := f.register(t, "b@example.com", "samepassword")
	require.NotEqual(t, a.HashedPassword, b.HashedPassword)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), RegisterRequest{Username: "x", Email: "x@example.com", Password: "12345"})
	require.True(t, apperror.IsValidationError(err))
}

func TestPasswordLengthIsCountedInBytes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	long := strings.Repeat("é", 40)
	require.Len(t, long, 80)

	_, err := f.svc.Register(ctx, RegisterRequest{Username: "x", Email: "x@example.com", Password: long})
	require.True(t, apperror.IsValidationError(err))

	_, err = f.svc.ResetPassword(ctx, "whatever", long)
	require.True(t, apperror.IsValidationError(err))

	atLimit := strings.Repeat("é", MaxPasswordBytes/2)
	f.register(t, "y@example.com", atLimit)
	session, err := f.svc.Login(ctx, LoginRequest{Email: "y@example.com", Password: atLimit})
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "grace@example.com", "correct-horse")

	_, wrongPassword := f.svc.Login(ctx, LoginRequest{Email: "grace@example.com", Password: "battery-staple"})
	_, unknownEmail := f.svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "battery-staple"})

	a, ok := apperror.FromError(wrongPassword)
	require.True(t, ok)
	b, ok := apperror.FromError(unknownEmail)
	require.True(t, ok)
	require.Equal(t, apperror.InvalidCredentialsError, a.Type)
	require.Equal(t, a.ToResponse(), b.ToResponse())
	require.Equal(t, a.StatusCode(), b.StatusCode())
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "linus@example.com", "kernel-hacker")

	session, err := f.svc.Login(context.Background(), LoginRequest{Email: "Linus@Example.com", Password: "kernel-hacker"})
	require.NoError(t, err)
	require.Equal(t, u.ID, session.User.ID)
	require.Equal(t, f.clock.Now().Add(30*24*time.Hour), session.ExpiresAt)

	userID, err := f.svc.VerifyToken(session.Token)
	require.NoError(t, err)
	require.Equal(t, u.ID, userID)
}

func TestVerifyTokenFailures(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "ken@example.com", "unix-forever")
	token, _, err := f.svc.IssueToken(u.ID)
	require.NoError(t, err)

	other := NewAuthService(f.store, f.mailer, f.clock, &config.AuthConfig{
		JWTSecret: "another-secret", TokenDuration: time.Hour, BcryptCost: bcrypt.MinCost,
	}, "")
	foreign, _, err := other.IssueToken(u.ID)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"missing":       "",
		"malformed":     "not.a.jwt",
		"bad signature": foreign,
		"tampered":      token[:len(token)-2] + "xx",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.VerifyToken(tok)
			require.True(t, apperror.IsUnauthorizedError(err), "got %v", err)
		})
	}

	t.Run("expired", func(t *testing.T) {
		f.clock.Advance(29 * 24 * time.Hour)
		_, err := f.svc.VerifyToken(token)
		require.NoError(t, err)

		f.clock.Advance(24*time.Hour + time.Second)
		_, err = f.svc.VerifyToken(token)
		require.True(t, apperror.IsUnauthorizedError(err))
	})
}

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "ghost@example.com"))
	require.Zero(t, f.mailer.count())
}

func TestRequestPasswordResetStoresOnlyHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "barbara@example.com", "liskov-subst")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "barbara@example.com"))
	require.Equal(t, 1, f.mailer.count())
	raw := f.mailer.lastResetToken(t)
	require.Len(t, raw, 2*resetTokenBytes)
	require.Contains(t, f.mailer.sent[0].body, "http://localhost:3000/reset-password/"+raw)

	stored, err := f.store.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetTokenHash)
	require.NotEqual(t, raw, *stored.ResetTokenHash)
	require.Equal(t, hashResetToken(raw), *stored.ResetTokenHash)
	require.Equal(t, f.clock.Now().Add(10*time.Minute), *stored.ResetTokenExpiresAt)
}

func TestRequestPasswordResetRollsBackOnMailFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "margaret@example.com", "apollo-guidance")
	f.mailer.err = errors.New("smtp: connection refused")

	err := f.svc.RequestPasswordReset(ctx, "margaret@example.com")
	require.True(t, apperror.Is(err, apperror.UpstreamFailureError))

	stored, err := f.store.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, stored.ResetTokenHash)
	require.Nil(t, stored.ResetTokenExpiresAt)

	// The account is still usable.
	_, err = f.svc.Login(ctx, LoginRequest{Email: "margaret@example.com", Password: "apollo-guidance"})
	require.NoError(t, err)
}

func TestResetTokenIsSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "dennis@example.com", "old-password")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, u.Email))
	raw := f.mailer.lastResetToken(t)

	session, err := f.svc.ResetPassword(ctx, raw, "new-password")
	require.NoError(t, err)
	require.Equal(t, u.ID, session.User.ID)
	require.NotEmpty(t, session.Token)

	stored, err := f.store.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, stored.ResetTokenHash)

	_, err = f.svc.ResetPassword(ctx, raw, "another-password")
	require.True(t, apperror.Is(err, apperror.InvalidOrExpiredTokenError))

	_, err = f.svc.Login(ctx, LoginRequest{Email: u.Email, Password: "old-password"})
	require.True(t, apperror.Is(err, apperror.InvalidCredentialsError))
	_, err = f.svc.Login(ctx, LoginRequest{Email: u.Email, Password: "new-password"})
	require.NoError(t, err)
}

func TestResetTokenExpiresAfterTenMinutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "frances@example.com", "old-password")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, u.Email))
	raw := f.mailer.lastResetToken(t)

	f.clock.Advance(10 * time.Minute)
	_, err := f.svc.ResetPassword(ctx, raw, "new-password")
	require.True(t, apperror.Is(err, apperror.InvalidOrExpiredTokenError))

	// A new request issues a new token which works inside the window.
	require.NoError(t, f.svc.RequestPasswordReset(ctx, u.Email))
	fresh := f.mailer.lastResetToken(t)
	require.NotEqual(t, raw, fresh)
	f.clock.Advance(9 * time.Minute)
	_, err = f.svc.ResetPassword(ctx, fresh, "new-password")
	require.NoError(t, err)
}

func TestResetPasswordValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "john@example.com", "old-password")
	require.NoError(t, f.svc.RequestPasswordReset(ctx, u.Email))
	raw := f.mailer.lastResetToken(t)

	_, err := f.svc.ResetPassword(ctx, raw, "short")
	require.True(t, apperror.IsValidationError(err))

	// The token survives a rejected attempt.
	_, err = f.svc.ResetPassword(ctx, raw, "long-enough")
	require.NoError(t, err)

	_, err = f.svc.ResetPassword(ctx, "deadbeef", "long-enough")
	require.True(t, apperror.Is(err, apperror.InvalidOrExpiredTokenError))
}
