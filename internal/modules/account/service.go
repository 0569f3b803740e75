// README: Sign-in, sign-up and sign-out; persists credentials and serves the bearer token.
package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ridesync/internal/backend"
	"ridesync/internal/logger"
	"ridesync/internal/modules/session"
	"ridesync/internal/types"
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrWrongRole  = errors.New("account role does not match this client")
	ErrSignedOut  = errors.New("not signed in")
)

type Backend interface {
	Login(ctx context.Context, email, password string) (backend.AuthResult, error)
	Register(ctx context.Context, req backend.RegisterRequest) (backend.AuthResult, error)
}

type Service struct {
	api  Backend
	repo *session.Repository
	role types.Role
	log  *logrus.Entry
	now  func() time.Time
}

func NewService(api Backend, repo *session.Repository, role types.Role, log *logrus.Entry) *Service {
	return &Service{api: api, repo: repo, role: role, log: logger.OrDiscard(log), now: time.Now}
}

type LoginCommand struct {
	Email    string
	Password string
}

type RegisterCommand struct {
	Email       string
	Password    string
	Name        string
	CountryCode string
	PhoneNumber string
}

func (s *Service) Login(ctx context.Context, cmd LoginCommand) (session.User, error) {
	email := strings.TrimSpace(cmd.Email)
	if email == "" || cmd.Password == "" {
		return session.User{}, ErrBadRequest
	}
	res, err := s.api.Login(ctx, email, cmd.Password)
	if err != nil {
		return session.User{}, err
	}
	return s.store(ctx, res)
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (session.User, error) {
	if strings.TrimSpace(cmd.Email) == "" || cmd.Password == "" || strings.TrimSpace(cmd.Name) == "" {
		return session.User{}, ErrBadRequest
	}
	res, err := s.api.Register(ctx, backend.RegisterRequest{
		Email:       strings.TrimSpace(cmd.Email),
		Password:    cmd.Password,
		Name:        strings.TrimSpace(cmd.Name),
		Role:        s.role,
		CountryCode: cmd.CountryCode,
		PhoneNumber: cmd.PhoneNumber,
	})
	if err != nil {
		return session.User{}, err
	}
	return s.store(ctx, res)
}

func (s *Service) store(ctx context.Context, res backend.AuthResult) (session.User, error) {
	if res.User.Role != "" && res.User.Role != s.role {
		return session.User{}, ErrWrongRole
	}
	u := session.User{
		ID:       res.User.ID,
		Email:    res.User.Email,
		Name:     res.User.Name,
		Role:     s.role,
		Phone:    res.User.Phone,
		Currency: res.User.Currency,
	}
	if err := s.repo.SaveCredentials(ctx, session.Credentials{Token: res.Token, User: u}); err != nil {
		return session.User{}, err
	}
	s.log.WithField("user_id", u.ID).Info("signed in")
	return u, nil
}

// Logout clears credentials and every locally cached trip.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.repo.SignOut(ctx); err != nil {
		return err
	}
	s.log.Info("signed out")
	return nil
}

func (s *Service) Current(ctx context.Context) (session.User, error) {
	c, ok, err := s.repo.Credentials(ctx)
	if err != nil {
		return session.User{}, err
	}
	if !ok {
		return session.User{}, ErrSignedOut
	}
	return c.User, nil
}

// Token implements the bearer token source for the backend and realtime clients.
func (s *Service) Token(ctx context.Context) (string, error) {
	c, ok, err := s.repo.Credentials(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrSignedOut
	}
	return c.Token, nil
}

// SessionValid reports whether a non-expired token is stored.
func (s *Service) SessionValid(ctx context.Context) bool {
	tok, err := s.Token(ctx)
	if err != nil {
		return false
	}
	return backend.CheckToken(tok, s.now()) == nil
}
