// Package users reconciles the user directory between the credentials bucket and the
// local mirror, and authenticates sign-ins against it.
//
// User passwords are stored and compared as plain text. Only the administrator
// credential, which never enters the directory, is held as a bcrypt hash.
package users

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"researchhub/mirror"
	"researchhub/models"
	"researchhub/objstore"
	"researchhub/session"
)

const (
	usersPrefix      = "users/"
	defaultListLimit = 200
	defaultRole      = "student"
	adminRole        = "admin"
)

// UserKey is the credentials bucket object name for an email.
func UserKey(email string) string {
	return usersPrefix + email + ".json"
}

// Options configures a Directory.
type Options struct {
	AdminEmail        string
	AdminPasswordHash string // bcrypt
	ListLimit         int
	Now               func() time.Time
}

// Directory is the merged view of cloud and local users.
type Directory struct {
	bucket objstore.Bucket // nil means the mirror is the whole directory
	mirror mirror.Mirror
	opts   Options
	mu     sync.Mutex // Serializes read-modify-write of the directory
}

// New creates a directory. bucket may be nil.
func New(bucket objstore.Bucket, m mirror.Mirror, opts Options) *Directory {
	if opts.ListLimit <= 0 {
		opts.ListLimit = defaultListLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log.Warn().Msg("user passwords are stored and compared in plain text")
	return &Directory{bucket: bucket, mirror: m, opts: opts}
}

// SignupRequest is a registration form.
type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Role            string `json:"role"`
}

// Validate checks required fields and the password confirmation.
func (r SignupRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("%w: name is required", models.ErrValidation)
	case strings.TrimSpace(r.Email) == "" || !strings.Contains(r.Email, "@"):
		return fmt.Errorf("%w: a valid email is required", models.ErrValidation)
	case r.Password == "":
		return fmt.Errorf("%w: password is required", models.ErrValidation)
	case r.Password != r.ConfirmPassword:
		return fmt.Errorf("%w: passwords do not match", models.ErrValidation)
	}
	return nil
}

// List merges cloud users (first, authoritative) with local-only users, deduplicated by
// email, and writes the merged set back to the mirror.
func (d *Directory) List(ctx context.Context) []models.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.list(ctx)
}

// list must be called with mu held.
func (d *Directory) list(ctx context.Context) []models.User {
	local := d.localUsers(ctx)
	if d.bucket == nil {
		return local
	}

	merged := Merge(d.remoteUsers(ctx), local)
	d.saveLocal(ctx, merged)
	return merged
}

// Merge returns cloud followed by every local user whose email is not already present.
func Merge(cloud, local []models.User) []models.User {
	seen := make(map[string]struct{}, len(cloud)+len(local))
	merged := make([]models.User, 0, len(cloud)+len(local))
	for _, src := range [][]models.User{cloud, local} {
		for _, u := range src {
			if _, dup := seen[u.Email]; dup {
				continue
			}
			seen[u.Email] = struct{}{}
			merged = append(merged, u)
		}
	}
	return merged
}

// remoteUsers reads every record under users/. Any failure yields what could be read.
func (d *Directory) remoteUsers(ctx context.Context) []models.User {
	entries, err := d.bucket.List(ctx, usersPrefix, objstore.ListOptions{Limit: d.opts.ListLimit})
	if err != nil {
		log.Error().Err(err).Str("bucket", d.bucket.Name()).Msg("listing users failed")
		return nil
	}

	out := make([]models.User, 0, len(entries))
	for _, e := range entries {
		if !strings.HasSuffix(e.Name, ".json") {
			continue
		}
		data, err := d.bucket.Download(ctx, usersPrefix+e.Name)
		if err != nil {
			log.Warn().Err(err).Str("file", e.Name).Msg("skipping user record, download failed")
			continue
		}
		var u models.User
		if err := json.Unmarshal(data, &u); err != nil || u.Email == "" {
			log.Warn().Err(err).Str("file", e.Name).Msg("skipping unparsable user record")
			continue
		}
		out = append(out, u)
	}
	return out
}

func (d *Directory) localUsers(ctx context.Context) []models.User {
	var local []models.User
	if _, err := mirror.GetJSON(ctx, d.mirror, mirror.KeyUsers, &local); err != nil {
		log.Warn().Err(err).Msg("mirrored users unreadable, ignoring")
		return []models.User{}
	}
	if local == nil {
		local = []models.User{}
	}
	return local
}

func (d *Directory) saveLocal(ctx context.Context, list []models.User) {
	if err := mirror.SetJSON(ctx, d.mirror, mirror.KeyUsers, list); err != nil {
		log.Error().Err(err).Msg("failed to mirror users")
	}
}

// pushUser writes one record to the credentials bucket. Failures are logged.
func (d *Directory) pushUser(ctx context.Context, u models.User) {
	if d.bucket == nil {
		return
	}
	data, err := json.Marshal(u)
	if err != nil {
		log.Error().Err(err).Str("email", u.Email).Msg("failed to encode user record")
		return
	}
	if _, err := d.bucket.Upload(ctx, UserKey(u.Email), data, "application/json", true); err != nil {
		log.Error().Err(err).Str("email", u.Email).Msg("failed to save user record")
	}
}

// Signup registers a pending user. The cloud write and the local write are independent:
// either may fail without undoing the other.
func (d *Directory) Signup(ctx context.Context, req SignupRequest) (models.User, error) {
	if err := req.Validate(); err != nil {
		return models.User{}, err
	}
	email := strings.TrimSpace(req.Email)
	if strings.EqualFold(email, d.opts.AdminEmail) {
		return models.User{}, fmt.Errorf("%w: email is reserved", models.ErrValidation)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.list(ctx)
	taken := make(map[string]struct{}, len(list))
	for _, u := range list {
		if strings.EqualFold(u.Email, email) {
			return models.User{}, fmt.Errorf("%w: email '%s' is already registered", models.ErrValidation, email)
		}
		taken[u.ID] = struct{}{}
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = defaultRole
	}
	now := d.opts.Now().UTC()
	u := models.User{
		ID:        uniqueUserID(now, taken),
		Name:      strings.TrimSpace(req.Name),
		Email:     email,
		Password:  req.Password,
		Role:      role,
		Status:    models.UserPending,
		CreatedAt: now,
	}

	d.pushUser(ctx, u)
	d.saveLocal(ctx, append(d.localUsers(ctx), u))

	log.Info().Str("user_id", u.ID).Str("email", u.Email).Msg("user registered, pending approval")
	return u.Public(), nil
}

// Authenticate checks the administrator credential first, then the merged directory.
// On success the user is persisted as the current session user.
func (d *Directory) Authenticate(ctx context.Context, email, password string) (models.User, bool, error) {
	if email == d.opts.AdminEmail && d.opts.AdminPasswordHash != "" &&
		bcrypt.CompareHashAndPassword([]byte(d.opts.AdminPasswordHash), []byte(password)) == nil {
		admin := models.User{
			ID:     "admin",
			Name:   "Administrator",
			Email:  email,
			Role:   adminRole,
			Status: models.UserApproved,
		}
		d.persistSession(ctx, admin)
		log.Info().Str("email", email).Msg("administrator signed in")
		return admin, true, nil
	}

	d.mu.Lock()
	list := d.list(ctx)
	d.mu.Unlock()

	for _, u := range list {
		if u.Email != email || u.Password != password {
			continue
		}
		if u.Status != models.UserApproved {
			return models.User{}, false, models.ErrPendingApproval
		}
		d.persistSession(ctx, u)
		log.Info().Str("user_id", u.ID).Msg("user signed in")
		return u.Public(), false, nil
	}
	return models.User{}, false, models.ErrInvalidCredentials
}

// uniqueUserID returns user_<unixMillis>, stepping forward past IDs already taken.
func uniqueUserID(now time.Time, taken map[string]struct{}) string {
	for ms := now.UnixMilli(); ; ms++ {
		id := "user_" + strconv.FormatInt(ms, 10)
		if _, ok := taken[id]; !ok {
			return id
		}
	}
}

func (d *Directory) persistSession(ctx context.Context, u models.User) {
	if err := session.Persist(ctx, d.mirror, u); err != nil {
		log.Error().Err(err).Msg("failed to persist session")
	}
}

// Approve marks a user approved and writes that one record.
func (d *Directory) Approve(ctx context.Context, id string) (models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.list(ctx)
	for i := range list {
		if list[i].ID != id {
			continue
		}
		list[i].Status = models.UserApproved
		d.pushUser(ctx, list[i])
		d.saveLocal(ctx, list)
		log.Info().Str("user_id", id).Msg("user approved")
		return list[i].Public(), nil
	}
	return models.User{}, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
}

// Delete removes a user from the credentials bucket and the mirror.
func (d *Directory) Delete(ctx context.Context, id string) (models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.list(ctx)
	for i, u := range list {
		if u.ID != id {
			continue
		}
		if d.bucket != nil {
			if err := d.bucket.Remove(ctx, []string{UserKey(u.Email)}); err != nil {
				log.Error().Err(err).Str("user_id", id).Msg("failed to remove user record")
			}
		}
		remaining := append(list[:i:i], list[i+1:]...)
		d.saveLocal(ctx, remaining)
		log.Info().Str("user_id", id).Msg("user deleted")
		return u.Public(), nil
	}
	return models.User{}, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
}

// Counts returns the total and pending user counts for the admin dashboard.
func Counts(list []models.User) (total, pending int) {
	for _, u := range list {
		if u.Status == models.UserPending {
			pending++
		}
	}
	return len(list), pending
}
