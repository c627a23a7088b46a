package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-taskbuddy/internal/domain"
	"github.com/tbourn/go-taskbuddy/internal/services"
)

// ---------- fakes ----------

type fakeStats struct {
	summary *services.Summary
	err     error
	recomps int
}

func (f *fakeStats) Summary(context.Context) (*services.Summary, error) { return f.summary, f.err }

func (f *fakeStats) Recompute(context.Context) (*domain.AppStats, error) {
	f.recomps++
	if f.err != nil {
		return nil, f.err
	}
	return &f.summary.AppStats, nil
}

type fakeReports struct {
	err      error
	users    map[int64]services.Productivity
	lastUser int64
}

func (f *fakeReports) UserGrowth(context.Context) ([]services.DayCount, error) {
	return []services.DayCount{{Day: "2025-03-01", Count: 2, Cumulative: 2}}, f.err
}

func (f *fakeReports) TaskCompletion(context.Context) (*services.CompletionSplit, error) {
	return &services.CompletionSplit{Total: 3, Completed: 1, Pending: 2}, f.err
}

func (f *fakeReports) Activity(context.Context) ([]services.DayCount, error) {
	return []services.DayCount{{Day: "2025-03-01", Count: 1}}, f.err
}

func (f *fakeReports) Partnerships(context.Context) (*services.PartnershipSplit, error) {
	return &services.PartnershipSplit{Total: 5, WithPartner: 2, WithoutPartner: 3}, f.err
}

func (f *fakeReports) TaskTimeline(context.Context) ([]services.TimelinePoint, error) {
	return []services.TimelinePoint{{Day: "2025-03-01", Total: 3, Completed: 1}}, f.err
}

func (f *fakeReports) UserProductivity(_ context.Context, tgID int64) (*services.Productivity, error) {
	f.lastUser = tgID
	p, ok := f.users[tgID]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &p, nil
}

func (f *fakeReports) TopProductivity(context.Context) ([]services.Productivity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []services.Productivity{{Name: "Alice", Created: 3, Completed: 1, Score: 4}}, nil
}

type fakePush struct{ status services.PushStatus }

func (f fakePush) Status(context.Context) *services.PushStatus { return &f.status }

func newTestRouter(stats *fakeStats, reports *fakeReports, push fakePush) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(stats, reports, push)
	r := gin.New()
	r.GET("/stats", h.GetStats)
	r.POST("/stats/recompute", h.RecomputeStats)
	r.GET("/reports/user-growth", h.UserGrowth)
	r.GET("/reports/task-completion", h.TaskCompletion)
	r.GET("/reports/activity", h.Activity)
	r.GET("/reports/partnerships", h.Partnerships)
	r.GET("/reports/task-timeline", h.TaskTimeline)
	r.GET("/reports/productivity", h.Productivity)
	r.GET("/push/status", h.PushStatus)
	return r
}

func do(t *testing.T, r http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

// ---------- tests ----------

func TestGetStats_AndRecompute(t *testing.T) {
	stats := &fakeStats{summary: &services.Summary{
		AppStats:       domain.AppStats{TotalUsers: 5, ActiveUsers: 2, TotalTasks: 3, CompletedTasks: 1},
		CompletionRate: 100.0 / 3,
		PartnerRate:    40,
		PartneredUsers: 2,
		PendingTasks:   2,
	}}
	r := newTestRouter(stats, &fakeReports{}, fakePush{})

	w := do(t, r, http.MethodGet, "/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /stats = %d", w.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if got["total_users"] != float64(5) || got["partner_rate"] != float64(40) || got["pending_tasks"] != float64(2) {
		t.Fatalf("unexpected summary: %v", got)
	}
	if _, hasID := got["ID"]; hasID {
		t.Fatalf("row id must not be serialised: %v", got)
	}

	w = do(t, r, http.MethodPost, "/stats/recompute")
	if w.Code != http.StatusOK || stats.recomps != 1 {
		t.Fatalf("recompute = %d, calls=%d", w.Code, stats.recomps)
	}
}

func TestGetStats_Error500(t *testing.T) {
	r := newTestRouter(&fakeStats{err: errors.New("db down")}, &fakeReports{}, fakePush{})
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/stats"},
		{http.MethodPost, "/stats/recompute"},
	} {
		w := do(t, r, tc.method, tc.path)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("%s %s = %d; want 500", tc.method, tc.path, w.Code)
		}
		var resp ErrorResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Code != ErrCodeStatsFailed {
			t.Fatalf("code = %q", resp.Code)
		}
	}
}

func TestReports_Datasets(t *testing.T) {
	r := newTestRouter(&fakeStats{}, &fakeReports{}, fakePush{})

	cases := []struct {
		path string
		key  string
	}{
		{"/reports/user-growth", "days"},
		{"/reports/activity", "days"},
		{"/reports/task-timeline", "days"},
		{"/reports/task-completion", "pending"},
		{"/reports/partnerships", "with_partner"},
		{"/reports/productivity", "users"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			w := do(t, r, http.MethodGet, tc.path)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("json: %v", err)
			}
			if _, ok := body[tc.key]; !ok {
				t.Fatalf("missing %q in %v", tc.key, body)
			}
		})
	}
}

func TestReports_Error500(t *testing.T) {
	r := newTestRouter(&fakeStats{}, &fakeReports{err: errors.New("boom")}, fakePush{})
	for _, p := range []string{"/reports/user-growth", "/reports/partnerships", "/reports/productivity"} {
		w := do(t, r, http.MethodGet, p)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("%s = %d; want 500", p, w.Code)
		}
		var resp ErrorResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Code != ErrCodeReportFailed {
			t.Fatalf("%s code = %q", p, resp.Code)
		}
	}
}

func TestProductivity_SingleUser(t *testing.T) {
	reports := &fakeReports{users: map[int64]services.Productivity{
		1001: {Name: "Alice", Created: 2, Completed: 1, Score: 3},
	}}
	r := newTestRouter(&fakeStats{}, reports, fakePush{})

	w := do(t, r, http.MethodGet, "/reports/productivity?telegram_id=1001")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ProductivityResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(resp.Users) != 1 || resp.Users[0].Name != "Alice" || resp.Users[0].Score != 3 {
		t.Fatalf("unexpected users: %+v", resp.Users)
	}
	if reports.lastUser != 1001 {
		t.Fatalf("service got telegram id %d", reports.lastUser)
	}

	if w := do(t, r, http.MethodGet, "/reports/productivity?telegram_id=42"); w.Code != http.StatusNotFound {
		t.Fatalf("unknown user = %d; want 404", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/reports/productivity?telegram_id=abc"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id = %d; want 400", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/reports/productivity?telegram_id="); w.Code != http.StatusBadRequest {
		t.Fatalf("empty id = %d; want 400", w.Code)
	}
}

func TestPushStatus(t *testing.T) {
	push := fakePush{status: services.PushStatus{Configured: true, App: map[string]any{"name": "TaskBuddy"}}}
	r := newTestRouter(&fakeStats{}, &fakeReports{}, push)

	w := do(t, r, http.MethodGet, "/push/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got services.PushStatus
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !got.Configured || got.App["name"] != "TaskBuddy" {
		t.Fatalf("unexpected status: %+v", got)
	}
}
