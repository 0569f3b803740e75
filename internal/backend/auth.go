// README: Sign-in and sign-up endpoints; the only unauthenticated calls.
package backend

import (
	"context"
	"fmt"
	"net/http"

	"ridesync/internal/types"
)

type User struct {
	ID       types.ID
	Email    string
	Name     string
	Role     types.Role
	Phone    string
	Currency string
}

type AuthResult struct {
	Token string
	User  User
}

type RegisterRequest struct {
	Email       string
	Password    string
	Name        string
	Role        types.Role
	CountryCode string
	PhoneNumber string
}

type authResponse struct {
	Token string   `json:"token"`
	User  *userDTO `json:"user"`
}

func (r authResponse) result() (AuthResult, error) {
	if r.Token == "" || r.User == nil {
		return AuthResult{}, fmt.Errorf("%w: auth response without token or user", ErrMalformed)
	}
	id := r.User.ID
	if id == "" {
		id = r.User.MongoID
	}
	return AuthResult{
		Token: r.Token,
		User: User{
			ID:       types.ID(id),
			Email:    r.User.Email,
			Name:     r.User.Name,
			Role:     types.Role(r.User.Role),
			Phone:    r.User.Phone,
			Currency: r.User.Currency,
		},
	}, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", false, body, &resp); err != nil {
		return AuthResult{}, err
	}
	return resp.result()
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (AuthResult, error) {
	body := map[string]string{
		"email":    req.Email,
		"password": req.Password,
		"name":     req.Name,
		"role":     string(req.Role),
		"phone":    req.CountryCode + req.PhoneNumber,
	}
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", false, body, &resp); err != nil {
		return AuthResult{}, err
	}
	return resp.result()
}
