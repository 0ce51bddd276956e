package users

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"researchhub/mirror"
	"researchhub/models"
	"researchhub/objstore"
	"researchhub/session"
)

const (
	testAdminEmail    = "admin@school.edu"
	testAdminPassword = "admin-secret"
)

var fixedNow = time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)

type fixture struct {
	dir    *Directory
	bucket *objstore.MemoryBucket
	mirror *mirror.FileMirror
}

func newFixture(t *testing.T, online bool) *fixture {
	t.Helper()
	m, err := mirror.NewFileMirror(filepath.Join(t.TempDir(), "mirror.json"), 0, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	f := &fixture{mirror: m}
	var bucket objstore.Bucket
	if online {
		f.bucket = objstore.NewMemoryBucket("user-credentials")
		bucket = f.bucket
	}
	f.dir = New(bucket, m, Options{
		AdminEmail:        testAdminEmail,
		AdminPasswordHash: string(hash),
		Now:               func() time.Time { return fixedNow },
	})
	return f
}

func (f *fixture) putCloud(t *testing.T, u models.User) {
	t.Helper()
	data, err := json.Marshal(u)
	require.NoError(t, err)
	_, err = f.bucket.Upload(context.Background(), UserKey(u.Email), data, "application/json", true)
	require.NoError(t, err)
}

func (f *fixture) setLocal(t *testing.T, list []models.User) {
	t.Helper()
	require.NoError(t, mirror.SetJSON(context.Background(), f.mirror, mirror.KeyUsers, list))
}

func (f *fixture) local(t *testing.T) []models.User {
	t.Helper()
	var list []models.User
	_, err := mirror.GetJSON(context.Background(), f.mirror, mirror.KeyUsers, &list)
	require.NoError(t, err)
	return list
}

func signup(name, email, password string) SignupRequest {
	return SignupRequest{Name: name, Email: email, Password: password, ConfirmPassword: password}
}

func statusByEmail(list []models.User) map[string]string {
	out := make(map[string]string, len(list))
	for _, u := range list {
		out[u.Email] = u.Status
	}
	return out
}

// Cloud records win over local ones with the same email.
func TestList_MergeDedup(t *testing.T) {
	f := newFixture(t, true)
	f.putCloud(t, models.User{ID: "u1", Email: "a@x", Status: models.UserApproved})
	f.setLocal(t, []models.User{
		{ID: "u1", Email: "a@x", Status: models.UserPending},
		{ID: "u2", Email: "b@x", Status: models.UserPending},
	})

	list := f.dir.List(t.Context())
	require.Len(t, list, 2)
	assert.Equal(t, map[string]string{"a@x": models.UserApproved, "b@x": models.UserPending}, statusByEmail(list))
	assert.Equal(t, "a@x", list[0].Email, "cloud users come first")

	assert.Equal(t, statusByEmail(list), statusByEmail(f.local(t)), "the merged set is mirrored")
}

func TestMerge(t *testing.T) {
	cloud := []models.User{{Email: "a@x", Name: "cloud"}}
	local := []models.User{{Email: "b@x"}, {Email: "a@x", Name: "local"}, {Email: "b@x"}}

	merged := Merge(cloud, local)
	require.Len(t, merged, 2)
	assert.Equal(t, "cloud", merged[0].Name)
	assert.Equal(t, "b@x", merged[1].Email)

	assert.Empty(t, Merge(nil, nil))
}

func TestList_SkipsBadRecordsAndNestedFolders(t *testing.T) {
	f := newFixture(t, true)
	ctx := t.Context()
	f.putCloud(t, models.User{ID: "u1", Email: "a@x"})
	for key, body := range map[string]string{
		"users/broken.json":      `{broken`,
		"users/noemail.json":     `{"id":"u9"}`,
		"users/readme.txt":       `text`,
		"users/archive/old.json": `{"id":"u8","email":"old@x"}`,
	} {
		_, err := f.bucket.Upload(ctx, key, []byte(body), "", true)
		require.NoError(t, err)
	}

	list := f.dir.List(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, "a@x", list[0].Email)
}

func TestList_ListingFailureFallsBackToLocal(t *testing.T) {
	f := newFixture(t, true)
	f.setLocal(t, []models.User{{ID: "u2", Email: "b@x"}})
	f.bucket.SetFault(objstore.OpList, errors.New("down"))

	list := f.dir.List(t.Context())
	require.Len(t, list, 1)
	assert.Equal(t, "b@x", list[0].Email)
}

func TestList_Offline(t *testing.T) {
	f := newFixture(t, false)
	assert.Empty(t, f.dir.List(t.Context()))

	f.setLocal(t, []models.User{{ID: "u2", Email: "b@x"}})
	assert.Len(t, f.dir.List(t.Context()), 1)
}

func TestSignupRequest_Validate(t *testing.T) {
	testCases := []struct {
		name string
		req  SignupRequest
	}{
		{"MissingName", signup("", "a@x", "pw")},
		{"MissingEmail", signup("A", "", "pw")},
		{"InvalidEmail", signup("A", "not-an-email", "pw")},
		{"MissingPassword", signup("A", "a@x", "")},
		{"Mismatch", SignupRequest{Name: "A", Email: "a@x", Password: "pw", ConfirmPassword: "other"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.req.Validate(), models.ErrValidation)
		})
	}
	assert.NoError(t, signup("A", "a@x", "pw").Validate())
}

func TestSignup(t *testing.T) {
	f := newFixture(t, true)
	ctx := t.Context()

	u, err := f.dir.Signup(ctx, signup(" Ana ", "ana@school.edu", "pw"))
	require.NoError(t, err)
	assert.Equal(t, "user_1748766600000", u.ID)
	assert.Equal(t, "Ana", u.Name)
	assert.Equal(t, models.UserPending, u.Status)
	assert.Equal(t, "student", u.Role)
	assert.Empty(t, u.Password, "the returned user never carries the password")

	// Both copies are written, and the stored copy keeps the password.
	data, err := f.bucket.Download(ctx, UserKey("ana@school.edu"))
	require.NoError(t, err)
	var stored models.User
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, "pw", stored.Password)
	assert.Len(t, f.local(t), 1)

	second, err := f.dir.Signup(ctx, signup("Ben", "ben@school.edu", "pw"))
	require.NoError(t, err)
	assert.Equal(t, "user_1748766600001", second.ID, "ids stay unique within one millisecond")

	_, err = f.dir.Signup(ctx, signup("Ana Again", "ANA@school.edu", "pw"))
	assert.ErrorIs(t, err, models.ErrValidation, "emails are unique regardless of case")

	_, err = f.dir.Signup(ctx, signup("Mallory", testAdminEmail, "pw"))
	assert.ErrorIs(t, err, models.ErrValidation, "the administrator email is reserved")
}

func TestSignup_CloudFailureStillSavesLocally(t *testing.T) {
	f := newFixture(t, true)
	f.bucket.SetFault(objstore.OpUpload, errors.New("quota"))

	_, err := f.dir.Signup(t.Context(), signup("Ana", "ana@x", "pw"))
	require.NoError(t, err)
	assert.Empty(t, f.bucket.Keys())
	assert.Len(t, f.local(t), 1)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t, true)
	ctx := t.Context()
	f.putCloud(t, models.User{ID: "u1", Name: "Ana", Email: "ana@x", Password: "pw", Status: models.UserApproved})
	f.putCloud(t, models.User{ID: "u2", Name: "Ben", Email: "ben@x", Password: "pw", Status: models.UserPending})

	u, admin, err := f.dir.Authenticate(ctx, "ana@x", "pw")
	require.NoError(t, err)
	assert.False(t, admin)
	assert.Equal(t, "u1", u.ID)
	assert.Empty(t, u.Password)

	persisted, ok := session.Restore(ctx, f.mirror)
	require.True(t, ok, "a successful sign-in is remembered")
	assert.Equal(t, "ana@x", persisted.Email)
	assert.Empty(t, persisted.Password)

	_, _, err = f.dir.Authenticate(ctx, "ben@x", "pw")
	assert.ErrorIs(t, err, models.ErrPendingApproval)

	_, _, err = f.dir.Authenticate(ctx, "ana@x", "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	_, _, err = f.dir.Authenticate(ctx, "nobody@x", "pw")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestAuthenticate_Administrator(t *testing.T) {
	f := newFixture(t, false)
	ctx := t.Context()

	u, admin, err := f.dir.Authenticate(ctx, testAdminEmail, testAdminPassword)
	require.NoError(t, err)
	assert.True(t, admin)
	assert.Equal(t, "admin", u.Role)
	assert.Equal(t, models.UserApproved, u.Status)
	assert.Empty(t, f.local(t), "the administrator never enters the directory")

	_, _, err = f.dir.Authenticate(ctx, testAdminEmail, "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestAuthenticate_LocalOnlyUser(t *testing.T) {
	f := newFixture(t, true)
	f.setLocal(t, []models.User{{ID: "u3", Email: "local@x", Password: "pw", Status: models.UserApproved}})

	u, _, err := f.dir.Authenticate(t.Context(), "local@x", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u3", u.ID)
}

func TestApprove(t *testing.T) {
	f := newFixture(t, true)
	ctx := t.Context()
	pending, err := f.dir.Signup(ctx, signup("Ana", "ana@x", "pw"))
	require.NoError(t, err)

	approved, err := f.dir.Approve(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserApproved, approved.Status)
	assert.Empty(t, approved.Password)

	data, err := f.bucket.Download(ctx, UserKey("ana@x"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"approved"`)
	assert.Equal(t, models.UserApproved, f.local(t)[0].Status)

	_, _, err = f.dir.Authenticate(ctx, "ana@x", "pw")
	assert.NoError(t, err)

	_, err = f.dir.Approve(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDelete(t *testing.T) {
	f := newFixture(t, true)
	ctx := t.Context()
	ana, err := f.dir.Signup(ctx, signup("Ana", "ana@x", "pw"))
	require.NoError(t, err)
	ben, err := f.dir.Signup(ctx, signup("Ben", "ben@x", "pw"))
	require.NoError(t, err)

	removed, err := f.dir.Delete(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@x", removed.Email)
	assert.Equal(t, []string{UserKey("ben@x")}, f.bucket.Keys())

	list := f.dir.List(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, ben.ID, list[0].ID)

	_, err = f.dir.Delete(ctx, ana.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCounts(t *testing.T) {
	total, pending := Counts([]models.User{
		{Status: models.UserPending},
		{Status: models.UserApproved},
		{Status: models.UserPending},
	})
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, pending)
}
