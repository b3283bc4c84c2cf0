package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"example.com/mergington/internal/auth"
	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/observability"
	"example.com/mergington/internal/persistence"
	"example.com/mergington/internal/persistence/memory"
	"example.com/mergington/web"
)

const adminID = "admin"

type testServer struct {
	t       *testing.T
	router  *mux.Router
	service *domain.Service
}

func newTestServer(t *testing.T, seed bool) *testServer {
	t.Helper()
	service := domain.NewService(memory.NewStore())
	if seed {
		_, err := persistence.Seed(context.Background(), service, persistence.SampleActivities, false)
		require.NoError(t, err)
	}

	router := mux.NewRouter()
	gate := auth.NewAdminGate([]string{adminID}, auth.Config{}, WriteAuthError)
	NewHandler(service).RegisterRoutes(router, gate.Wrap)
	return &testServer{t: t, router: router, service: service}
}

func (s *testServer) do(method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) admin(method, target string, body any) *httptest.ResponseRecorder {
	return s.do(method, target, body, map[string]string{auth.HeaderUserID: adminID})
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func requireDetail(t *testing.T, rr *httptest.ResponseRecorder, status int, detail string) {
	t.Helper()
	require.Equal(t, status, rr.Code, rr.Body.String())
	body := decode[map[string]string](t, rr)
	require.Equal(t, detail, body["detail"])
	require.NotEmpty(t, body["type"])
}

func TestListActivitiesKeepsInsertionOrder(t *testing.T) {
	s := newTestServer(t, true)

	rr := s.do(http.MethodGet, "/activities", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	body := rr.Body.String()
	prev := -1
	for _, sample := range persistence.SampleActivities {
		idx := strings.Index(body, `"`+sample.Name+`":`)
		require.Greater(t, idx, prev, sample.Name)
		prev = idx
	}

	activities := decode[map[string]ActivityDetails](t, rr)
	require.Len(t, activities, 9)
	chess := activities["Chess Club"]
	require.Equal(t, 12, chess.MaxParticipants)
	require.Equal(t, "Fridays, 3:30 PM - 5:00 PM", chess.Schedule)
	require.Equal(t, []string{"michael@mergington.edu", "daniel@mergington.edu"}, chess.Participants)
}

func TestListActivitiesEmpty(t *testing.T) {
	rr := newTestServer(t, false).do(http.MethodGet, "/activities", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{}`, rr.Body.String())
}

func TestLoginCreatesUserOnce(t *testing.T) {
	s := newTestServer(t, false)

	rr := s.do(http.MethodPost, "/users/login?email=newuser@mergington.edu", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[LoginResponse](t, rr)
	require.Equal(t, "newuser@mergington.edu", resp.User.Email)
	require.Equal(t, "Newuser", resp.User.Name)
	require.Equal(t, "User authenticated successfully", resp.Message)

	rr = s.do(http.MethodPost, "/users/login?email=newuser@mergington.edu", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	stats, err := s.service.ComputeStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalStudents)

	rr = s.do(http.MethodPost, "/users/login", nil, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSignUpAndUnregisterFlow(t *testing.T) {
	s := newTestServer(t, true)

	rr := s.do(http.MethodPost, "/activities/Chess%20Club/signup?email=test1@mergington.edu", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "Signed up test1@mergington.edu for Chess Club", decode[MessageResponse](t, rr).Message)

	rr = s.do(http.MethodPost, "/activities/Chess%20Club/signup?email=test1@mergington.edu", nil, nil)
	requireDetail(t, rr, http.StatusBadRequest, "Student is already signed up")

	rr = s.do(http.MethodGet, "/users/test1@mergington.edu/schedule", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	schedule := decode[ScheduleResponse](t, rr)
	require.Equal(t, "Test1", schedule.User.Name)
	require.Equal(t, []ScheduleEntry{{
		Name:        "Chess Club",
		Description: "Learn strategies and compete in chess tournaments",
		Schedule:    "Fridays, 3:30 PM - 5:00 PM",
	}}, schedule.Schedule)

	rr = s.do(http.MethodDelete, "/activities/Chess%20Club/unregister?email=test1@mergington.edu", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Unregistered test1@mergington.edu from Chess Club", decode[MessageResponse](t, rr).Message)

	rr = s.do(http.MethodGet, "/users/test1@mergington.edu/schedule", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, decode[ScheduleResponse](t, rr).Schedule)

	rr = s.do(http.MethodDelete, "/activities/Chess%20Club/unregister?email=test1@mergington.edu", nil, nil)
	requireDetail(t, rr, http.StatusBadRequest, "Student is not signed up for this activity")
}

func TestSignUpErrors(t *testing.T) {
	s := newTestServer(t, false)
	_, err := s.service.CreateActivity(context.Background(), domain.ActivityInput{Name: "Test Team", MaxParticipants: 1})
	require.NoError(t, err)

	requireDetail(t, s.do(http.MethodPost, "/activities/Nonexistent/signup?email=a@mergington.edu", nil, nil),
		http.StatusNotFound, "Activity not found")
	rr := s.do(http.MethodGet, "/users/a@mergington.edu/schedule", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, decode[ScheduleResponse](t, rr).Schedule)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/activities/Test%20Team/signup?email=a@mergington.edu", nil, nil).Code)
	requireDetail(t, s.do(http.MethodPost, "/activities/Test%20Team/signup?email=b@mergington.edu", nil, nil),
		http.StatusBadRequest, "Activity is full")

	requireDetail(t, s.do(http.MethodGet, "/users/ghost@mergington.edu/schedule", nil, nil),
		http.StatusNotFound, "User not found")
	requireDetail(t, s.do(http.MethodDelete, "/activities/Test%20Team/unregister?email=ghost@mergington.edu", nil, nil),
		http.StatusNotFound, "User not found")

	require.Equal(t, http.StatusMethodNotAllowed, s.do(http.MethodGet, "/activities/Test%20Team/signup", nil, nil).Code)
}

func TestSignUpRecordsOutcomeMetrics(t *testing.T) {
	s := newTestServer(t, false)
	full := observability.OperationCount("sign_up", "not_found")
	before := testutil.ToFloat64(full)

	s.do(http.MethodPost, "/activities/Nonexistent/signup?email=a@mergington.edu", nil, nil)

	require.Equal(t, before+1, testutil.ToFloat64(full))
}

func TestAdminRequiresCredentials(t *testing.T) {
	s := newTestServer(t, true)

	rr := s.do(http.MethodGet, "/admin/stats", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "unauthorized", decode[map[string]string](t, rr)["type"])

	rr = s.do(http.MethodGet, "/admin/stats", nil, map[string]string{auth.HeaderUserID: "student"})
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "forbidden", decode[map[string]string](t, rr)["type"])
}

func TestAdminReports(t *testing.T) {
	s := newTestServer(t, true)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/activities/Math%20Club/signup?email=michael@mergington.edu", nil, nil).Code)

	rr := s.admin(http.MethodGet, "/admin/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	stats := decode[StatsResponse](t, rr)
	require.Equal(t, 18, stats.TotalStudents)
	require.Equal(t, 9, stats.TotalActivities)
	require.Equal(t, 19, stats.TotalEnrollments)
	require.Equal(t, 156, stats.TotalCapacity)
	require.Equal(t, 19, stats.TotalEnrolled)
	require.InDelta(t, 12.18, stats.CapacityUtilization, 1e-9)

	rr = s.admin(http.MethodGet, "/admin/activities/popular", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	popular := decode[PopularActivitiesResponse](t, rr)
	require.Len(t, popular.Activities, 9)
	require.Equal(t, PopularActivityView{Name: "Math Club", Enrollment: 3, Capacity: 10, Utilization: 30, Schedule: "Tuesdays, 3:30 PM - 4:30 PM"}, popular.Activities[0])
	require.Equal(t, "Chess Club", popular.Activities[1].Name)

	rr = s.admin(http.MethodGet, "/admin/users", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	users := decode[UsersResponse](t, rr).Users
	require.Len(t, users, 18)
	require.Equal(t, "amelia@mergington.edu", users[0].Email)
	for _, u := range users {
		if u.Email == "michael@mergington.edu" {
			require.Equal(t, []string{"Chess Club", "Math Club"}, u.Activities)
			require.Equal(t, 2, u.ActivityCount)
		}
	}
}

func TestAdminActivityLifecycle(t *testing.T) {
	s := newTestServer(t, false)

	rr := s.admin(http.MethodPost, "/admin/activities", ActivityRequest{Name: "Robotics Club", Description: "Build robots", Schedule: "Thursdays, 4:00 PM", MaxParticipants: 2})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[ActivityMutationResponse](t, rr)
	require.Equal(t, "Robotics Club", created.Activity.Name)
	require.NotEmpty(t, created.Activity.ActivityID)
	require.Contains(t, created.Message, "Robotics Club")

	requireDetail(t, s.admin(http.MethodPost, "/admin/activities", ActivityRequest{Name: "Robotics Club", MaxParticipants: 5}),
		http.StatusBadRequest, "Activity already exists")

	rr = s.admin(http.MethodPost, "/admin/activities", ActivityRequest{Name: "Empty", MaxParticipants: 0})
	requireDetail(t, rr, http.StatusBadRequest, "max_participants must be > 0")
	require.Equal(t, "invalid", decode[map[string]string](t, rr)["type"])
	requireDetail(t, s.admin(http.MethodPost, "/admin/activities", ActivityRequest{Name: "  ", MaxParticipants: 3}),
		http.StatusBadRequest, "activity name is required")
	requireDetail(t, s.admin(http.MethodPut, "/admin/activities/Robotics%20Club", ActivityRequest{MaxParticipants: -1}),
		http.StatusBadRequest, "max_participants must be > 0")

	rr = s.do(http.MethodPost, "/admin/activities", nil, map[string]string{auth.HeaderUserID: adminID, "Content-Type": "application/json"})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/activities/Robotics%20Club/signup?email=a@mergington.edu", nil, nil).Code)

	rr = s.admin(http.MethodPut, "/admin/activities/Robotics%20Club", ActivityRequest{Description: "Compete", Schedule: "Fridays", MaxParticipants: 6})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[ActivityMutationResponse](t, rr)
	require.Equal(t, 6, updated.Activity.MaxParticipants)
	require.Equal(t, "Compete", updated.Activity.Description)

	requireDetail(t, s.admin(http.MethodPut, "/admin/activities/Nonexistent", ActivityRequest{MaxParticipants: 3}),
		http.StatusNotFound, "Activity not found")

	rr = s.admin(http.MethodDelete, "/admin/activities/Robotics%20Club", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	requireDetail(t, s.admin(http.MethodDelete, "/admin/activities/Robotics%20Club", nil), http.StatusNotFound, "Activity not found")

	rr = s.do(http.MethodGet, "/users/a@mergington.edu/schedule", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, decode[ScheduleResponse](t, rr).Schedule)
}

func TestStaticAndHealth(t *testing.T) {
	router := mux.NewRouter()
	NewHandler(domain.NewService(memory.NewStore())).RegisterRoutes(router, nil)
	RegisterStatic(router, web.Static())

	get := func(target string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		return rr
	}

	rr := get("/")
	require.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	require.Equal(t, "/static/index.html", rr.Header().Get("Location"))

	rr = get("/static/")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Mergington High School")
	require.Contains(t, rr.Body.String(), `src="app.js"`)

	rr = get("/static/admin.html")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `src="admin.js"`)

	rr = get("/static/admin.js")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "X-User-ID")

	rr = get("/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestStaticDirectoryOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Custom</h1>"), 0o600))

	router := mux.NewRouter()
	RegisterStatic(router, os.DirFS(dir))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Custom")
}
