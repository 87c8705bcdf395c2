package attendance

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gathering-portal/backend/internal/middleware"
	"github.com/gathering-portal/backend/internal/models"
)

type fakeFollowUps struct {
	listFn    func(ctx context.Context, category models.Category, limit int) ([]models.AttendanceFollowUp, error)
	resolveFn func(ctx context.Context, id, by uuid.UUID, at time.Time) (*models.AttendanceFollowUp, error)
}

func (f *fakeFollowUps) ListPendingFollowUps(ctx context.Context, category models.Category, limit int) ([]models.AttendanceFollowUp, error) {
	return f.listFn(ctx, category, limit)
}

func (f *fakeFollowUps) ResolveFollowUp(ctx context.Context, id, by uuid.UUID, at time.Time) (*models.AttendanceFollowUp, error) {
	return f.resolveFn(ctx, id, by, at)
}

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Reason     string          `json:"reason"`
	Pagination *struct {
		Page       int `json:"page"`
		PageSize   int `json:"pageSize"`
		Total      int `json:"total"`
		TotalPages int `json:"totalPages"`
	} `json:"pagination"`
}

func newTestRouter(f *fixture, fu FollowUpStore, userID uuid.UUID, roles []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(f.issuer, f.processor, NewQueryService(f.store, f.policy), fu, f.clock, nil)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != uuid.Nil {
			middleware.SetIdentity(c, userID, roles)
		}
		c.Next()
	})
	r.POST("/attendance/tokens", h.IssueToken)
	r.POST("/attendance/check-ins", h.CheckIn)
	r.GET("/attendance/records", h.ListRecords)
	r.GET("/attendance/follow-ups", h.ListFollowUps)
	r.POST("/attendance/follow-ups/:id/resolve", h.ResolveFollowUp)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s: %v", w.Body.String(), err)
		}
	}
	return w, env
}

func TestHandlerIssueToken(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		user   uuid.UUID
		roles  []string
		body   any
		status int
	}{
		{"presenter", uuid.New(), []string{"mc"}, IssueRequest{Category: "GENERAL"}, http.StatusCreated},
		{"unauthenticated", uuid.Nil, nil, IssueRequest{Category: "GENERAL"}, http.StatusUnauthorized},
		{"not presenter", uuid.New(), []string{"member"}, IssueRequest{Category: "GENERAL"}, http.StatusForbidden},
		{"unknown category", uuid.New(), []string{"admin"}, IssueRequest{Category: "PICNIC"}, http.StatusBadRequest},
		{"missing category", uuid.New(), []string{"admin"}, map[string]string{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(f, nil, tt.user, tt.roles)
			w, env := do(t, r, http.MethodPost, "/attendance/tokens", tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if tt.status == http.StatusCreated {
				var resp IssueResponse
				if err := json.Unmarshal(env.Data, &resp); err != nil {
					t.Fatal(err)
				}
				if resp.Token == "" || !resp.ExpiresAt.Equal(f.anchor.Add(time.Minute)) {
					t.Errorf("unexpected response %+v", resp)
				}
			}
		})
	}
}

func TestHandlerCheckInStatuses(t *testing.T) {
	f := newFixture(t)
	general := f.issue(t, "GENERAL")
	od := f.issue(t, "OD")
	subject := uuid.New()

	tests := []struct {
		name   string
		user   uuid.UUID
		roles  []string
		body   CheckInRequest
		status int
		reason string
	}{
		{"unauthenticated", uuid.Nil, nil, CheckInRequest{Token: general.Value}, http.StatusUnauthorized, ""},
		{"unknown token", subject, nil, CheckInRequest{Token: "nope"}, http.StatusBadRequest, ""},
		{"role gated", subject, []string{"member"}, CheckInRequest{Token: od.Value, Category: "OD"}, http.StatusForbidden, ReasonRequiresLeadership},
		{"first", subject, nil, CheckInRequest{Token: general.Value, Category: "GENERAL"}, http.StatusOK, ""},
		{"repeat", subject, nil, CheckInRequest{Token: general.Value, Category: "GENERAL"}, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(f, nil, tt.user, tt.roles)
			w, env := do(t, r, http.MethodPost, "/attendance/check-ins", tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if env.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", env.Reason, tt.reason)
			}
			if w.Code == http.StatusOK {
				var out Outcome
				if err := json.Unmarshal(env.Data, &out); err != nil {
					t.Fatal(err)
				}
				if out.AlreadyChecked != (tt.name == "repeat") {
					t.Errorf("alreadyChecked = %v", out.AlreadyChecked)
				}
				if out.Record == nil || out.Record.Status != models.StatusPresent {
					t.Errorf("unexpected record %+v", out.Record)
				}
			}
		})
	}

	f.clock.Advance(time.Minute)
	r := newTestRouter(f, nil, uuid.New(), nil)
	if w, _ := do(t, r, http.MethodPost, "/attendance/check-ins", CheckInRequest{Token: general.Value}); w.Code != http.StatusBadRequest {
		t.Errorf("expired token: status = %d, want 400", w.Code)
	}

	f.store.failInsert = errBoom
	fresh := f.issue(t, "GENERAL")
	if w, _ := do(t, r, http.MethodPost, "/attendance/check-ins", CheckInRequest{Token: fresh.Value}); w.Code != http.StatusInternalServerError {
		t.Errorf("storage failure: status = %d, want 500", w.Code)
	}
}

func TestHandlerListRecords(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		if _, err := f.processor.CheckIn(context.Background(), uuid.New(), nil, f.issue(t, "GENERAL").Value, ""); err != nil {
			t.Fatal(err)
		}
	}
	r := newTestRouter(f, nil, uuid.New(), []string{"auditor"})

	w, env := do(t, r, http.MethodGet, "/attendance/records?date=2024-03-03&category=GENERAL&page=1&pageSize=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	var rows []models.AttendanceRecordView
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || env.Pagination == nil || env.Pagination.Total != 3 || env.Pagination.TotalPages != 2 || env.Pagination.PageSize != 2 {
		t.Errorf("unexpected listing: %d rows, %+v", len(rows), env.Pagination)
	}

	for _, path := range []string{
		"/attendance/records?date=yesterday",
		"/attendance/records?category=PICNIC",
		"/attendance/records?page=two",
	} {
		if w, _ := do(t, r, http.MethodGet, path, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, w.Code)
		}
	}
}

func TestHandlerFollowUps(t *testing.T) {
	f := newFixture(t)
	auditor := uuid.New()
	id := uuid.New()
	var gotBy uuid.UUID
	fu := &fakeFollowUps{
		listFn: func(_ context.Context, category models.Category, limit int) ([]models.AttendanceFollowUp, error) {
			if category != models.CategoryOD || limit != 10 {
				t.Errorf("list called with %s/%d", category, limit)
			}
			return []models.AttendanceFollowUp{{ID: id, Category: models.CategoryOD}}, nil
		},
		resolveFn: func(_ context.Context, fid, by uuid.UUID, at time.Time) (*models.AttendanceFollowUp, error) {
			if fid != id {
				return nil, ErrNotFound
			}
			gotBy = by
			return &models.AttendanceFollowUp{ID: fid, ResolvedAt: &at, ResolvedBy: &by}, nil
		},
	}
	r := newTestRouter(f, fu, auditor, []string{"auditor"})

	if w, _ := do(t, r, http.MethodGet, "/attendance/follow-ups?category=od&limit=10", nil); w.Code != http.StatusOK {
		t.Errorf("list: status = %d", w.Code)
	}
	if w, _ := do(t, r, http.MethodPost, "/attendance/follow-ups/"+id.String()+"/resolve", nil); w.Code != http.StatusOK {
		t.Errorf("resolve: status = %d", w.Code)
	}
	if gotBy != auditor {
		t.Errorf("resolved by %s, want %s", gotBy, auditor)
	}
	if w, _ := do(t, r, http.MethodPost, "/attendance/follow-ups/"+uuid.NewString()+"/resolve", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown follow-up: status = %d, want 404", w.Code)
	}
	if w, _ := do(t, r, http.MethodPost, "/attendance/follow-ups/xyz/resolve", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", w.Code)
	}
}
