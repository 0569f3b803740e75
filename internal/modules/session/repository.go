// README: Typed access to the session store: current trip per role, driver online flag, credentials.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ridesync/internal/modules/trip"
	"ridesync/internal/types"
)

type Repository struct {
	store Store
	ns    string
	now   func() time.Time
}

func NewRepository(store Store, namespace string) *Repository {
	if namespace == "" {
		namespace = "ridesync"
	}
	return &Repository{store: store, ns: namespace, now: time.Now}
}

func (r *Repository) tripKey(role types.Role) string {
	return r.ns + ":" + string(role) + ":current_trip"
}

func (r *Repository) onlineKey() string {
	return r.ns + ":driver:online"
}

func (r *Repository) credentialsKey() string {
	return r.ns + ":credentials"
}

// LoadTrip returns the persisted record for role. ok is false when none exists.
func (r *Repository) LoadTrip(ctx context.Context, role types.Role) (Record, bool, error) {
	var rec Record
	ok, err := r.getJSON(ctx, r.tripKey(role), &rec)
	if err != nil || !ok {
		return Record{}, false, err
	}
	if rec.Trip.ID == "" {
		return Record{}, false, fmt.Errorf("%w: missing trip id", ErrCorrupt)
	}
	return rec, true, nil
}

// SaveTrip replaces the whole record for role.
func (r *Repository) SaveTrip(ctx context.Context, role types.Role, t trip.Trip) error {
	if t.ID == "" {
		return errors.New("session: trip id required")
	}
	rec := Record{
		Role:     role,
		Trip:     t.Clone(),
		Progress: trip.Progress(t.Status),
		SavedAt:  r.now().UTC(),
	}
	return r.putJSON(ctx, r.tripKey(role), rec)
}

func (r *Repository) ClearTrip(ctx context.Context, role types.Role) error {
	return r.store.Delete(ctx, r.tripKey(role))
}

func (r *Repository) Online(ctx context.Context) (bool, error) {
	var online bool
	_, err := r.getJSON(ctx, r.onlineKey(), &online)
	return online, err
}

func (r *Repository) SetOnline(ctx context.Context, online bool) error {
	return r.putJSON(ctx, r.onlineKey(), online)
}

func (r *Repository) Credentials(ctx context.Context) (Credentials, bool, error) {
	var c Credentials
	ok, err := r.getJSON(ctx, r.credentialsKey(), &c)
	if err != nil || !ok || c.Token == "" {
		return Credentials{}, false, err
	}
	return c, true, nil
}

func (r *Repository) SaveCredentials(ctx context.Context, c Credentials) error {
	return r.putJSON(ctx, r.credentialsKey(), c)
}

// SignOut removes credentials, both roles' trip records and the online flag.
func (r *Repository) SignOut(ctx context.Context) error {
	keys := []string{
		r.credentialsKey(),
		r.tripKey(types.RolePassenger),
		r.tripKey(types.RoleDriver),
		r.onlineKey(),
	}
	var errs []error
	for _, k := range keys {
		if err := r.store.Delete(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Repository) getJSON(ctx context.Context, key string, v any) (bool, error) {
	b, err := r.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

func (r *Repository) putJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, key, b)
}
