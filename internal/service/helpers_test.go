package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"hokenhub/internal/database"
	"hokenhub/internal/mailer"
	"hokenhub/internal/model"
	"hokenhub/internal/repository"
	"hokenhub/internal/storage"
	"hokenhub/internal/token"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

const (
	facilityA  = "Saint Agnes Medical Center"
	facilityB  = "Saint Alphonsus Health System"
	superAdmin = "admin@example.com"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.sent...)
}

type fakeImageStore struct {
	mu        sync.Mutex
	deleted   []string
	deleteErr error
}

func (s *fakeImageStore) Upload(_ context.Context, folder, filename, _ string, body io.Reader) (*storage.Image, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return nil, err
	}
	key := folder + "/" + filename
	return &storage.Image{URL: "https://cdn.test/" + key, PublicID: key}, nil
}

// imageKey is the public id an upload of name under facility would receive
func imageKey(facility, name string) string {
	return storage.FacilityFolder(facility) + "/" + name
}

func (s *fakeImageStore) Delete(_ context.Context, publicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, publicID)
	return s.deleteErr
}

type fakePublisher struct {
	mu     sync.Mutex
	events []PlanEvent
}

func (p *fakePublisher) PublishPlanEvent(e PlanEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

// fakeNotifier captures the async notifications of the auth flow
type fakeNotifier struct {
	NotificationService
	registered chan string
	resets     chan string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{registered: make(chan string, 8), resets: make(chan string, 8)}
}

func (n *fakeNotifier) NotifyRegistration(_ context.Context, u *model.User) error {
	n.registered <- u.Email
	return nil
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, _ string, link string) error {
	n.resets <- link
	return nil
}

type env struct {
	users      repository.UserRepository
	facilities repository.FacilityRepository
	plans      repository.PlanRepository
	audits     repository.AuditRepository
	tm         repository.TransactionManager
	tokens     *token.Service
}

func newEnv(t *testing.T, opts ...token.Option) *env {
	t.Helper()
	db, err := database.NewTestDB()
	require.NoError(t, err)

	e := &env{
		users:      repository.NewUserRepository(db),
		facilities: repository.NewFacilityRepository(db),
		plans:      repository.NewPlanRepository(db),
		audits:     repository.NewAuditRepository(db),
		tm:         repository.NewTransactionManager(db),
		tokens:     token.NewService("svc_test_access_secret_0123456789ab", "svc_test_refresh_secret_0123456789a", opts...),
	}
	for _, name := range []string{facilityA, facilityB} {
		require.NoError(t, e.facilities.Create(context.Background(), &model.Facility{Name: name}))
	}
	return e
}

// seedUser stores a user with password "secret123"
func (e *env) seedUser(t *testing.T, email, role string, approved bool, access ...string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &model.User{
		FirstName:         "Test",
		LastName:          "User",
		Email:             email,
		Password:          string(hash),
		PhoneNumber:       "555-0100",
		NPI:               "1234567890",
		Role:              role,
		RequestedFacility: facilityA,
		FacilityAccess:    datatypes.JSONSlice[string](append([]string{}, access...)),
	}
	u.SetApproved(approved)
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func callerOf(u *model.User, active string) Caller {
	return Caller{
		ID:             u.ID.String(),
		Email:          u.Email,
		Role:           u.Role,
		FacilityAccess: []string(u.FacilityAccess),
		ActiveFacility: active,
	}
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), err.Error())
}

func (e *env) auditActions(t *testing.T) []string {
	t.Helper()
	logs, _, err := e.audits.List(context.Background(), repository.AuditFilter{}, 1, 100)
	require.NoError(t, err)
	actions := make([]string, 0, len(logs))
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	return actions
}

var errMailDown = errors.New("smtp unavailable")
