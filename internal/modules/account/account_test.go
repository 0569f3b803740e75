package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ridesync/internal/backend"
	"ridesync/internal/modules/session"
	"ridesync/internal/modules/trip"
	"ridesync/internal/types"
)

type fakeAuth struct {
	result   backend.AuthResult
	err      error
	register backend.RegisterRequest
}

func (f *fakeAuth) Login(context.Context, string, string) (backend.AuthResult, error) {
	return f.result, f.err
}

func (f *fakeAuth) Register(_ context.Context, req backend.RegisterRequest) (backend.AuthResult, error) {
	f.register = req
	return f.result, f.err
}

func token(t *testing.T, exp time.Time) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func newService(api Backend, role types.Role) (*Service, *session.Repository) {
	repo := session.NewRepository(session.NewMemoryStore(), "test")
	return NewService(api, repo, role, nil), repo
}

func TestLoginPersistsCredentials(t *testing.T) {
	tok := token(t, time.Now().Add(time.Hour))
	api := &fakeAuth{result: backend.AuthResult{Token: tok, User: backend.User{ID: "u1", Name: "Amy", Role: types.RolePassenger}}}
	svc, _ := newService(api, types.RolePassenger)
	ctx := context.Background()

	u, err := svc.Login(ctx, LoginCommand{Email: " amy@example.com ", Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.ID != "u1" || u.Role != types.RolePassenger {
		t.Fatalf("unexpected user %+v", u)
	}
	got, err := svc.Token(ctx)
	if err != nil || got != tok {
		t.Fatalf("token = %q, %v", got, err)
	}
	if !svc.SessionValid(ctx) {
		t.Fatalf("expected valid session")
	}
}

func TestLoginValidation(t *testing.T) {
	svc, _ := newService(&fakeAuth{}, types.RolePassenger)
	if _, err := svc.Login(context.Background(), LoginCommand{Email: "", Password: "pw"}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestLoginWrongRole(t *testing.T) {
	api := &fakeAuth{result: backend.AuthResult{Token: "t", User: backend.User{ID: "u1", Role: types.RoleDriver}}}
	svc, _ := newService(api, types.RolePassenger)
	ctx := context.Background()
	if _, err := svc.Login(ctx, LoginCommand{Email: "a", Password: "b"}); !errors.Is(err, ErrWrongRole) {
		t.Fatalf("expected ErrWrongRole, got %v", err)
	}
	if _, err := svc.Token(ctx); !errors.Is(err, ErrSignedOut) {
		t.Fatalf("credentials must not be stored, got %v", err)
	}
}

func TestLoginBackendError(t *testing.T) {
	svc, _ := newService(&fakeAuth{err: backend.ErrUnauthorized}, types.RolePassenger)
	if _, err := svc.Login(context.Background(), LoginCommand{Email: "a", Password: "b"}); !errors.Is(err, backend.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRegisterSendsRole(t *testing.T) {
	api := &fakeAuth{result: backend.AuthResult{Token: "t", User: backend.User{ID: "d1"}}}
	svc, _ := newService(api, types.RoleDriver)
	_, err := svc.Register(context.Background(), RegisterCommand{
		Email: "d@example.com", Password: "pw", Name: "Dan", CountryCode: "+852", PhoneNumber: "91234567",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if api.register.Role != types.RoleDriver || api.register.CountryCode != "+852" {
		t.Fatalf("unexpected register request %+v", api.register)
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	api := &fakeAuth{result: backend.AuthResult{Token: "t", User: backend.User{ID: "u1"}}}
	svc, repo := newService(api, types.RolePassenger)
	ctx := context.Background()
	if _, err := svc.Login(ctx, LoginCommand{Email: "a", Password: "b"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := repo.SaveTrip(ctx, types.RolePassenger, trip.Trip{ID: "t1", Status: trip.StatusInProgress}); err != nil {
		t.Fatalf("save trip: %v", err)
	}
	if err := svc.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok, _ := repo.LoadTrip(ctx, types.RolePassenger); ok {
		t.Fatalf("trip record survived sign-out")
	}
	if _, err := svc.Current(ctx); !errors.Is(err, ErrSignedOut) {
		t.Fatalf("expected ErrSignedOut, got %v", err)
	}
}

func TestSessionValidExpiredToken(t *testing.T) {
	api := &fakeAuth{result: backend.AuthResult{Token: token(t, time.Now().Add(-time.Minute)), User: backend.User{ID: "u1"}}}
	svc, _ := newService(api, types.RolePassenger)
	ctx := context.Background()
	if _, err := svc.Login(ctx, LoginCommand{Email: "a", Password: "b"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if svc.SessionValid(ctx) {
		t.Fatalf("expired token must not be valid")
	}
}
