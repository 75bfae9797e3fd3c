package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/dbx"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/auth"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// memUsers is an in-memory users.Repository with optional injected errors.
type memUsers struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]models.User

	findErr   error
	createErr error
	updateErr error
	deleteErr error
	// confirmMiss makes FindByEmailAndHash report absent
	confirmMiss bool
	updates     int
}

func newMemUsers() *memUsers { return &memUsers{rows: map[int64]models.User{}} }

func (r *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, row := range r.rows {
		if row.Email == u.Email {
			return nil, common.ErrConflict
		}
	}
	r.nextID++
	c := *u
	c.ID = r.nextID
	c.CreatedAt, c.UpdatedAt = time.Now(), time.Now()
	r.rows[c.ID] = c
	out := c
	return &out, nil
}

func (r *memUsers) FindByID(_ context.Context, id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	row, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &row, nil
}

func (r *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, row := range r.rows {
		if row.Email == email {
			out := row
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) FindByEmailAndHash(_ context.Context, email, hash string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.confirmMiss {
		return nil, common.ErrorNotFound
	}
	for _, row := range r.rows {
		if row.Email == email && row.PasswordHash == hash {
			out := row
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) Update(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.rows[u.ID]; !ok {
		return common.ErrorNotFound
	}
	for id, row := range r.rows {
		if id != u.ID && row.Email == u.Email {
			return common.ErrConflict
		}
	}
	r.rows[u.ID] = *u
	return nil
}

func (r *memUsers) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.rows, id)
	return nil
}

func (r *memUsers) byEmail(email string) []models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, row := range r.rows {
		if row.Email == email {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// memSessions records DeleteByUser calls; other methods are unused here.
type memSessions struct {
	deletedFor []int64
	err        error
}

func (r *memSessions) Save(context.Context, *models.Session) error { return nil }
func (r *memSessions) Find(context.Context, uuid.UUID) (*models.Session, error) {
	return nil, common.ErrorNotFound
}
func (r *memSessions) Delete(context.Context, uuid.UUID) error { return nil }
func (r *memSessions) DeleteByUser(_ context.Context, userID int64) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.deletedFor = append(r.deletedFor, userID)
	return 1, nil
}
func (r *memSessions) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

// fakeManager hands out the same in-memory repos regardless of DBTX.
type fakeManager struct {
	users    *memUsers
	sessions *memSessions
}

func (m *fakeManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeManager) Users(dbx.DBTX) users.Repository       { return m.users }
func (m *fakeManager) Sessions(dbx.DBTX) sessions.Repository { return m.sessions }

// recorder counts AuthEvent calls.
type recorder struct {
	events map[string]int
}

func (r *recorder) AuthEvent(event, outcome string) {
	if r.events == nil {
		r.events = map[string]int{}
	}
	r.events[event+"/"+outcome]++
}

// stubHasher wraps the real hasher and can inject Hash failures.
type stubHasher struct {
	auth.PasswordHasher
	hashErr error
}

func (h *stubHasher) Hash(p string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return h.PasswordHasher.Hash(p)
}

type fixture struct {
	svc    *AccountService
	users  *memUsers
	sess   *memSessions
	hasher *stubHasher
	events *recorder
	mock   sqlmock.Sqlmock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		users:  newMemUsers(),
		sess:   &memSessions{},
		hasher: &stubHasher{PasswordHasher: auth.NewArgon2idHasher()},
		events: &recorder{},
		mock:   mock,
	}
	f.svc = NewAccountService(db, &fakeManager{users: f.users, sessions: f.sess}, f.hasher, logging.Discard(), f.events)
	return f
}

// seed stores a user with the given password hashed by the real hasher.
func (f *fixture) seed(t *testing.T, email, name, password string) *models.User {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	u, err := f.users.Create(context.Background(), &models.User{Email: email, Name: name, PasswordHash: hash})
	require.NoError(t, err)
	return u
}

var errDB = errors.New("db down")
