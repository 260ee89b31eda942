package audit

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"adminpanel/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memorySink struct {
	mu      sync.Mutex
	records []*models.ActivityLog
}

func (s *memorySink) Activity(rec *models.ActivityLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

func (s *memorySink) all() []*models.ActivityLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.ActivityLog(nil), s.records...)
}

type fakeUser struct {
	Email string `json:"email"`
	First string `json:"first_name"`
}

type interceptorFixture struct {
	router  *gin.Engine
	sink    *memorySink
	metrics *Metrics
	users   map[string]*fakeUser
	panics  bool
}

func newInterceptorFixture(t *testing.T) *interceptorFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &interceptorFixture{
		sink:    &memorySink{},
		metrics: newTestMetrics(),
		users:   map[string]*fakeUser{"3": {Email: "a@x.com", First: "Ann"}},
	}

	targets := NewTargetRegistry()
	targets.Register(KindUser, "users", func(ctx context.Context, id string) (*Target, error) {
		if f.panics {
			panic("resolver exploded")
		}
		u, ok := f.users[id]
		if !ok {
			return nil, errors.New("not found")
		}
		fields, err := FieldsOf(u)
		if err != nil {
			return nil, err
		}
		return &Target{Summary: u.Email, Fields: fields}, nil
	})

	actor := func(c *gin.Context) *models.User {
		v, ok := c.Get("user")
		if !ok {
			return nil
		}
		return v.(*models.User)
	}
	interceptor := NewInterceptor(f.sink, targets, actor, zap.NewNop(), f.metrics)

	identify := func(c *gin.Context) {
		switch c.GetHeader("X-Test-User") {
		case "active":
			c.Set("user", &models.User{ID: 1, Username: "admin", IsActive: true})
		case "inactive":
			c.Set("user", &models.User{ID: 2, Username: "gone", IsActive: false})
		}
	}

	r := gin.New()
	r.Use(identify, interceptor.Handler())
	r.PATCH("/api/users/:id", func(c *gin.Context) {
		u, ok := f.users[c.Param("id")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		var in fakeUser
		require.NoError(t, c.ShouldBindJSON(&in))
		if in.Email != "" {
			u.Email = in.Email
		}
		c.JSON(http.StatusOK, u)
	})
	r.POST("/api/users", func(c *gin.Context) {
		f.users["9"] = &fakeUser{Email: "new@x.com"}
		c.JSON(http.StatusCreated, gin.H{"id": 9, "email": "new@x.com"})
	})
	r.DELETE("/api/users/:id", func(c *gin.Context) {
		delete(f.users, c.Param("id"))
		c.Status(http.StatusNoContent)
	})
	r.GET("/api/users/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, f.users[c.Param("id")])
	})
	r.GET("/api/activity-logs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"count": 0})
	})
	r.POST("/api/auth/login", func(c *gin.Context) {
		c.Set("user", &models.User{ID: 1, Username: "admin", IsActive: true})
		c.JSON(http.StatusOK, gin.H{"token": "t"})
	})
	r.GET("/api/boom", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})
	f.router = r
	return f
}

func (f *interceptorFixture) do(method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "interceptor-test")
	req.RemoteAddr = "192.0.2.10:4000"
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestInterceptorUpdateDiff(t *testing.T) {
	f := newInterceptorFixture(t)

	w := f.do(http.MethodPatch, "/api/users/3", "active", `{"email":"b@x.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"email":"b@x.com","first_name":"Ann"}`, w.Body.String())

	records := f.sink.all()
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, models.ActionUpdate, rec.Action)
	assert.Equal(t, uint(1), rec.UserID)
	require.NotNil(t, rec.TargetType)
	assert.Equal(t, "user", *rec.TargetType)
	assert.Equal(t, "3", *rec.TargetID)
	assert.Equal(t, "a@x.com", rec.TargetSummary)
	assert.Equal(t, map[string]models.FieldChange{"email": {Old: "a@x.com", New: "b@x.com"}}, rec.Changes)
	require.NotNil(t, rec.IPAddress)
	assert.Equal(t, "192.0.2.10", *rec.IPAddress)
	assert.Equal(t, "interceptor-test", rec.UserAgent)
}

func TestInterceptorDeleteKeepsPreDeleteTarget(t *testing.T) {
	f := newInterceptorFixture(t)

	w := f.do(http.MethodDelete, "/api/users/3", "active", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	records := f.sink.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.ActionDelete, records[0].Action)
	assert.Equal(t, "a@x.com", records[0].TargetSummary)
	assert.Equal(t, "3", *records[0].TargetID)
	assert.NotContains(t, f.users, "3")
}

func TestInterceptorCreateResolvesFromResponse(t *testing.T) {
	f := newInterceptorFixture(t)

	w := f.do(http.MethodPost, "/api/users", "active", `{"email":"new@x.com"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	records := f.sink.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.ActionCreate, records[0].Action)
	require.NotNil(t, records[0].TargetID)
	assert.Equal(t, "9", *records[0].TargetID)
	assert.Equal(t, "new@x.com", records[0].TargetSummary)
	assert.Empty(t, records[0].Changes)
}

func TestInterceptorSkips(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   string
	}{
		{"excluded listing", http.MethodGet, "/api/activity-logs", "active", ""},
		{"anonymous request", http.MethodGet, "/api/users/3", "", ""},
		{"inactive actor", http.MethodGet, "/api/users/3", "inactive", ""},
		{"failed response", http.MethodPatch, "/api/users/404", "active", `{"email":"x@x.com"}`},
		{"unclassified request", http.MethodGet, "/api/boom", "active", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInterceptorFixture(t)
			f.do(tt.method, tt.path, tt.user, tt.body)
			assert.Empty(t, f.sink.all())
		})
	}
}

func TestInterceptorLogin(t *testing.T) {
	f := newInterceptorFixture(t)

	w := f.do(http.MethodPost, "/api/auth/login", "", `{"username":"admin","password":"x"}`)
	require.Equal(t, http.StatusOK, w.Code)

	records := f.sink.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.ActionLogin, records[0].Action)
	assert.Nil(t, records[0].TargetType)
}

func TestInterceptorViewTargetsEntity(t *testing.T) {
	f := newInterceptorFixture(t)

	f.do(http.MethodGet, "/api/users/3", "active", "")
	records := f.sink.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.ActionView, records[0].Action)
	assert.Equal(t, strconv.Itoa(3), *records[0].TargetID)
}

func TestInterceptorSwallowsFailures(t *testing.T) {
	f := newInterceptorFixture(t)
	f.panics = true

	w := f.do(http.MethodPatch, "/api/users/3", "active", `{"email":"b@x.com"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "b@x.com", f.users["3"].Email)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.InterceptorErrors))

	// The request is still recorded, only without a target.
	records := f.sink.all()
	require.Len(t, records, 1)
	assert.Nil(t, records[0].TargetType)
}
