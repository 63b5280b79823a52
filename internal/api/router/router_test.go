package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/leadops-platform/internal/affiliates"
	"github.com/wolfman30/leadops-platform/internal/appointments"
	"github.com/wolfman30/leadops-platform/internal/assignment"
	"github.com/wolfman30/leadops-platform/internal/closers"
	httpmiddleware "github.com/wolfman30/leadops-platform/internal/http/middleware"
	"github.com/wolfman30/leadops-platform/internal/observability/metrics"
	"github.com/wolfman30/leadops-platform/internal/tasks"
	"github.com/wolfman30/leadops-platform/pkg/logging"
)

const testSecret = "router-test-secret"

type testServer struct {
	handler http.Handler
	admin   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := logging.Discard()
	reg := prometheus.NewRegistry()
	m := metrics.NewLeadOpsMetrics(reg)

	affiliateSvc := affiliates.NewService(affiliates.NewInMemoryRepository(), logger)
	apptSvc := appointments.NewService(appointments.NewInMemoryRepository(), logger).
		WithAffiliateRates(affiliateSvc).
		WithMetrics(m)
	affiliateSvc.WithAppointments(apptSvc)
	closerSvc := closers.NewService(closers.NewInMemoryRepository(), apptSvc, logger)
	assignSvc := assignment.NewService(apptSvc, closerSvc, logger).WithMetrics(m)

	h := New(&Config{
		Logger:         logger,
		Appointments:   appointments.NewHandler(apptSvc, logger),
		Assignment:     assignment.NewHandler(assignSvc, logger),
		Closers:        closers.NewHandler(closerSvc, logger),
		Affiliates:     affiliates.NewHandler(affiliateSvc, logger),
		Tasks:          tasks.NewHandler(tasks.NewInMemoryStore(), logger),
		AuthSecret:     testSecret,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return &testServer{handler: h, admin: token(t, httpmiddleware.RoleAdmin, "admin-1")}
}

func token(t *testing.T, role, subject string) string {
	t.Helper()
	claims := httpmiddleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, bearer, method, path, body string, out any) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (s *testServer) createCloser(t *testing.T, name string) string {
	t.Helper()
	var c closers.Closer
	body := `{"name":"` + name + `","email":"` + strings.ToLower(name) + `@example.com","isApproved":true}`
	require.Equal(t, http.StatusCreated, s.do(t, s.admin, http.MethodPost, "/api/admin/closers", body, &c))
	return c.ID
}

func (s *testServer) createAppointment(t *testing.T, name, extra string) string {
	t.Helper()
	var a appointments.Appointment
	body := `{"customerName":"` + name + `","customerEmail":"lead@example.com","scheduledAt":"2025-03-10T15:00:00Z"` + extra + `}`
	require.Equal(t, http.StatusCreated, s.do(t, s.admin, http.MethodPost, "/api/admin/appointments", body, &a))
	return a.ID
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	var resp map[string]string
	assert.Equal(t, http.StatusOK, srv.do(t, "", http.MethodGet, "/health", "", &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestHealthEndpointDegraded(t *testing.T) {
	h := New(&Config{HealthCheck: func(context.Context) error { return errors.New("db down") }})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db down")
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, srv.do(t, "", http.MethodGet, "/api/admin/appointments", "", nil))
	closerToken := token(t, httpmiddleware.RoleCloser, "c-1")
	assert.Equal(t, http.StatusUnauthorized, srv.do(t, closerToken, http.MethodGet, "/api/admin/closers", "", nil))
	assert.Equal(t, http.StatusUnauthorized, srv.do(t, srv.admin, http.MethodGet, "/api/closer/appointments", "", nil))
}

func TestAssignmentAndOutcomeFlow(t *testing.T) {
	srv := newTestServer(t)

	var aff affiliates.Affiliate
	require.Equal(t, http.StatusCreated, srv.do(t, srv.admin, http.MethodPost, "/api/admin/affiliates",
		`{"code":"SPRING","name":"Spring Partners","commissionRate":"0.1"}`, &aff))

	alice := srv.createCloser(t, "Alice")
	bob := srv.createCloser(t, "Bob")
	first := srv.createAppointment(t, "Sam Patel", `,"affiliateCode":"SPRING"`)
	srv.createAppointment(t, "Kim Lee", "")
	srv.createAppointment(t, "Quiz Taker", `,"type":"quiz_session"`)

	var auto struct {
		AssignedCount int `json:"assignedCount"`
	}
	require.Equal(t, http.StatusOK, srv.do(t, srv.admin, http.MethodPost, "/api/admin/auto-assign-appointments", "", &auto))
	assert.Equal(t, 2, auto.AssignedCount)

	aliceToken := token(t, httpmiddleware.RoleCloser, alice)
	var own struct {
		Appointments []appointments.Appointment `json:"appointments"`
	}
	require.Equal(t, http.StatusOK, srv.do(t, aliceToken, http.MethodGet, "/api/closer/appointments", "", &own))
	require.Len(t, own.Appointments, 1)
	assert.Equal(t, first, own.Appointments[0].ID)

	bobToken := token(t, httpmiddleware.RoleCloser, bob)
	assert.Equal(t, http.StatusNotFound, srv.do(t, bobToken, http.MethodPut, "/api/closer/appointments/"+first+"/outcome",
		`{"outcome":"converted","saleValue":1000}`, nil))

	var updated appointments.Appointment
	require.Equal(t, http.StatusOK, srv.do(t, aliceToken, http.MethodPut, "/api/closer/appointments/"+first+"/outcome",
		`{"outcome":"converted","saleValue":1000,"recordingLink":"https://recordings.example.com/1"}`, &updated))
	assert.Equal(t, appointments.StatusCompleted, updated.Status)
	require.True(t, updated.CommissionAmount.Valid)
	assert.Equal(t, "100.00", updated.CommissionAmount.Decimal.StringFixed(2))

	var stats appointments.CloserStats
	require.Equal(t, http.StatusOK, srv.do(t, aliceToken, http.MethodGet, "/api/closer/stats", "", &stats))
	assert.Equal(t, 1, stats.TotalCalls)
	assert.Equal(t, 1, stats.TotalConversions)
	assert.Equal(t, 1.0, stats.ConversionRate)

	var list struct {
		Closers []closers.WithStats `json:"closers"`
	}
	require.Equal(t, http.StatusOK, srv.do(t, srv.admin, http.MethodGet, "/api/admin/closers", "", &list))
	require.Len(t, list.Closers, 2)
	assert.Equal(t, "1000.00", list.Closers[0].TotalRevenue)

	var removed struct {
		Deleted         bool `json:"deleted"`
		UnassignedCount int  `json:"unassignedCount"`
	}
	require.Equal(t, http.StatusOK, srv.do(t, srv.admin, http.MethodDelete, "/api/admin/closers/"+bob, "", &removed))
	assert.True(t, removed.Deleted)
	assert.Equal(t, 1, removed.UnassignedCount)
}

func TestManualAssignAndDelete(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.createCloser(t, "Alice")
	id := srv.createAppointment(t, "Sam Patel", "")

	var assigned struct {
		Assigned bool `json:"assigned"`
	}
	require.Equal(t, http.StatusOK, srv.do(t, srv.admin, http.MethodPut, "/api/admin/appointments/"+id+"/assign",
		`{"closerId":"`+alice+`"}`, &assigned))
	assert.True(t, assigned.Assigned)

	assert.Equal(t, http.StatusNotFound, srv.do(t, srv.admin, http.MethodPut, "/api/admin/appointments/missing/assign",
		`{"closerId":"`+alice+`"}`, nil))

	var deleted map[string]bool
	assert.Equal(t, http.StatusOK, srv.do(t, srv.admin, http.MethodDelete, "/api/admin/appointments/"+id, "", &deleted))
	assert.True(t, deleted["deleted"])
	assert.Equal(t, http.StatusNotFound, srv.do(t, srv.admin, http.MethodDelete, "/api/admin/appointments/"+id, "", &deleted))
	assert.False(t, deleted["deleted"])
}

func TestMetricsEndpointExposesLeadOpsSeries(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.createCloser(t, "Alice")
	id := srv.createAppointment(t, "Sam Patel", "")
	require.Equal(t, http.StatusOK, srv.do(t, srv.admin, http.MethodPut, "/api/admin/appointments/"+id+"/assign",
		`{"closerId":"`+alice+`"}`, nil))

	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `leadops_assignment_appointments_assigned_total{source="manual"} 1`)
}

func TestRateLimiterAppliesToAPI(t *testing.T) {
	limiter := httpmiddleware.NewRateLimiter(0.001, 1)
	h := New(&Config{
		Logger:       logging.Discard(),
		Appointments: appointments.NewHandler(appointments.NewService(appointments.NewInMemoryRepository(), nil), nil),
		AuthSecret:   testSecret,
		RateLimiter:  limiter,
	})
	admin := token(t, httpmiddleware.RoleAdmin, "admin-1")

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/appointments", nil)
		req.Header.Set("Authorization", "Bearer "+admin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health is not rate limited")
}
