// README: Local Session Record and stored credentials.
package session

import (
	"time"

	"ridesync/internal/modules/trip"
	"ridesync/internal/types"
)

// Record is the device-local snapshot of the trip this role is part of.
// It is written and read as a whole.
type Record struct {
	Role     types.Role `json:"role"`
	Trip     trip.Trip  `json:"trip"`
	Progress int        `json:"progress"`
	SavedAt  time.Time  `json:"saved_at"`
}

type User struct {
	ID       types.ID   `json:"id"`
	Email    string     `json:"email"`
	Name     string     `json:"name"`
	Role     types.Role `json:"role"`
	Phone    string     `json:"phone"`
	Currency string     `json:"currency,omitempty"`
}

type Credentials struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
