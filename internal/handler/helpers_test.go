package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"hokenhub/internal/database"
	"hokenhub/internal/logger"
	"hokenhub/internal/mailer"
	"hokenhub/internal/middleware"
	"hokenhub/internal/model"
	"hokenhub/internal/repository"
	"hokenhub/internal/service"
	"hokenhub/internal/storage"
	"hokenhub/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

const (
	facilityA  = "Saint Agnes Medical Center"
	facilityB  = "Saint Alphonsus Health System"
	superAdmin = "admin@example.com"
	password   = "secret123"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (m *memoryMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *memoryMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type memoryImages struct {
	mu      sync.Mutex
	deleted []string
}

func (s *memoryImages) Upload(_ context.Context, folder, filename, _ string, body io.Reader) (*storage.Image, error) {
	_, _ = io.Copy(io.Discard, body)
	key := folder + "/" + filename
	return &storage.Image{URL: "https://cdn.test/" + key, PublicID: key}, nil
}

func (s *memoryImages) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	return nil
}

type app struct {
	router http.Handler
	users  repository.UserRepository
	plans  repository.PlanRepository
	tokens *token.Service
	mail   *memoryMailer
	images *memoryImages
}

func newApp(t *testing.T) *app {
	t.Helper()
	db, err := database.NewTestDB()
	require.NoError(t, err)

	log := logger.Discard()
	users := repository.NewUserRepository(db)
	facilities := repository.NewFacilityRepository(db)
	plans := repository.NewPlanRepository(db)
	audits := repository.NewAuditRepository(db)
	tm := repository.NewTransactionManager(db)
	tokens := token.NewService("http_test_access_secret_0123456789ab", "http_test_refresh_secret_0123456789a")
	mail := &memoryMailer{}
	images := &memoryImages{}

	for _, name := range []string{facilityA, facilityB} {
		require.NoError(t, facilities.Create(context.Background(), &model.Facility{Name: name}))
	}

	notifications := service.NewNotificationService(mail, users, plans, audits, superAdmin, log)
	svc := Services{
		Auth:          service.NewAuthService(users, facilities, tokens, notifications, "http://localhost:3000", log),
		Admin:         service.NewAdminService(tm, users, facilities, audits, superAdmin, log),
		Plans:         service.NewPlanService(tm, plans, audits, images, nil, log),
		Facilities:    service.NewFacilityService(tm, facilities, audits),
		Notifications: notifications,
		Audit:         service.NewAuditService(audits),
		Statistics:    service.NewStatisticsService(users, plans),
	}
	guard := middleware.NewAuthGuard(tokens, users, log)
	router := NewRouter(RouterConfig{CORSOrigins: []string{"http://localhost:3000"}}, svc, guard, log)

	return &app{router: router, users: users, plans: plans, tokens: tokens, mail: mail, images: images}
}

func (a *app) seed(t *testing.T, email, role string, approved bool, access ...string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
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
	require.NoError(t, a.users.Create(context.Background(), u))
	return u
}

// bearer mints an access token for u scoped to facility
func (a *app) bearer(t *testing.T, u *model.User, facility string) string {
	t.Helper()
	tok, err := a.tokens.IssueAccessToken(token.Subject{
		ID:             u.ID.String(),
		Email:          u.Email,
		Role:           u.Role,
		FacilityAccess: []string(u.FacilityAccess),
	}, facility)
	require.NoError(t, err)
	return tok
}

type call struct {
	method  string
	path    string
	body    interface{}
	token   string
	cookies []*http.Cookie
}

func (a *app) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data), string(env.Data))
	}
	return env
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
