package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostmarket/paywebhook/internal/domain"
	"github.com/boostmarket/paywebhook/internal/service/webhook"
)

type fakeAdmin struct {
	events     []domain.WebhookEvent
	gotStatus  domain.WebhookEventStatus
	gotLimit   int
	requeued   []uuid.UUID
	requeueErr error
}

func (f *fakeAdmin) List(_ context.Context, status domain.WebhookEventStatus, limit int) ([]domain.WebhookEvent, error) {
	f.gotStatus, f.gotLimit = status, limit
	if !status.IsValid() {
		return nil, fmt.Errorf("List: %w", domain.ErrInvalidRequest)
	}
	return f.events, nil
}

func (f *fakeAdmin) Get(_ context.Context, id uuid.UUID) (*domain.WebhookEvent, error) {
	for _, e := range f.events {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeAdmin) Requeue(_ context.Context, id uuid.UUID) error {
	if f.requeueErr != nil {
		return f.requeueErr
	}
	f.requeued = append(f.requeued, id)
	return nil
}

func adminRouter(h *AdminHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/admin/webhooks", h.ListWebhookEvents)
	r.Post("/api/admin/webhooks/{id}/requeue", h.RequeueWebhookEvent)
	return r
}

func decodeAPIResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAdmin_ListWebhookEvents(t *testing.T) {
	msg := "amount mismatch"
	failed := domain.WebhookEvent{
		ID:           uuid.New(),
		Provider:     domain.ProviderMoMo,
		EventType:    domain.EventTypePaymentNotification,
		EventID:      "BK1:1:0",
		Payload:      []byte(`{"signature":"secret"}`),
		Status:       domain.WebhookEventStatusFailed,
		Attempts:     5,
		ErrorMessage: &msg,
	}

	tests := []struct {
		name       string
		query      string
		wantCode   int
		wantStatus domain.WebhookEventStatus
		wantLimit  int
	}{
		{name: "defaults", query: "", wantCode: http.StatusOK, wantStatus: domain.WebhookEventStatusFailed, wantLimit: 50},
		{name: "explicit status and limit", query: "?status=pending&limit=10", wantCode: http.StatusOK, wantStatus: domain.WebhookEventStatusPending, wantLimit: 10},
		{name: "limit too large", query: "?limit=501", wantCode: http.StatusBadRequest},
		{name: "limit not a number", query: "?limit=ten", wantCode: http.StatusBadRequest},
		{name: "unknown status", query: "?status=exploded", wantCode: http.StatusBadRequest, wantStatus: "exploded", wantLimit: 50},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			admin := &fakeAdmin{events: []domain.WebhookEvent{failed}}
			rec := httptest.NewRecorder()
			adminRouter(NewAdminHandler(admin)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/webhooks"+tc.query, nil))

			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, tc.wantStatus, admin.gotStatus)
			assert.Equal(t, tc.wantLimit, admin.gotLimit)
			if tc.wantCode == http.StatusOK {
				assert.Contains(t, rec.Body.String(), `"event_id":"BK1:1:0"`)
				assert.Contains(t, rec.Body.String(), `"error_message":"amount mismatch"`)
				assert.NotContains(t, rec.Body.String(), "secret")
			}
		})
	}
}

func TestAdmin_RequeueWebhookEvent(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name       string
		path       string
		requeueErr error
		wantCode   int
		wantErr    string
	}{
		{name: "requeued", path: id.String(), wantCode: http.StatusOK},
		{name: "bad id", path: "not-a-uuid", wantCode: http.StatusBadRequest, wantErr: "VALIDATION_FAILED"},
		{name: "not failed", path: id.String(), requeueErr: fmt.Errorf("Requeue: %w", domain.ErrNotFound), wantCode: http.StatusNotFound, wantErr: "RESOURCE_NOT_FOUND"},
		{name: "store down", path: id.String(), requeueErr: errors.New("connection reset"), wantCode: http.StatusInternalServerError, wantErr: "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			admin := &fakeAdmin{
				events:     []domain.WebhookEvent{{ID: id, Provider: domain.ProviderVNPay, Status: domain.WebhookEventStatusPending}},
				requeueErr: tc.requeueErr,
			}
			rec := httptest.NewRecorder()
			adminRouter(NewAdminHandler(admin)).ServeHTTP(rec,
				httptest.NewRequest(http.MethodPost, "/api/admin/webhooks/"+tc.path+"/requeue", nil))

			assert.Equal(t, tc.wantCode, rec.Code)
			resp := decodeAPIResponse(t, rec)
			if tc.wantErr != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tc.wantErr, resp.Error.Code)
				return
			}
			assert.True(t, resp.Success)
			assert.Equal(t, []uuid.UUID{id}, admin.requeued)
		})
	}
}

type fakeSweeper struct {
	result  webhook.SweepResult
	deleted int64
	err     error
}

func (f *fakeSweeper) ProcessPending(context.Context) (webhook.SweepResult, error) {
	return f.result, f.err
}

func (f *fakeSweeper) Cleanup(context.Context) (int64, error) {
	return f.deleted, f.err
}

func TestCron(t *testing.T) {
	t.Run("process pending reports counts", func(t *testing.T) {
		h := NewCronHandler(&fakeSweeper{result: webhook.SweepResult{Released: 1, Claimed: 3, Completed: 2, Failed: 1, Skipped: 4}})
		rec := httptest.NewRecorder()
		h.ProcessPending(rec, httptest.NewRequest(http.MethodPost, "/api/cron/webhooks/process", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true,"data":{"released":1,"claimed":3,"completed":2,"failed":1,"skipped":4},"error":null}`, rec.Body.String())
	})

	t.Run("cleanup reports deleted rows", func(t *testing.T) {
		h := NewCronHandler(&fakeSweeper{deleted: 42})
		rec := httptest.NewRecorder()
		h.Cleanup(rec, httptest.NewRequest(http.MethodPost, "/api/cron/webhooks/cleanup", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true,"data":{"deleted":42},"error":null}`, rec.Body.String())
	})

	t.Run("errors are internal", func(t *testing.T) {
		h := NewCronHandler(&fakeSweeper{err: errors.New("db gone")})
		rec := httptest.NewRecorder()
		h.ProcessPending(rec, httptest.NewRequest(http.MethodPost, "/api/cron/webhooks/process", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "db gone")
	})
}

func TestHealth(t *testing.T) {
	up := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("refused") })

	t.Run("liveness", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHealthHandler(nil).Liveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	})

	tests := []struct {
		name     string
		checks   map[string]Pinger
		wantCode int
		want     map[string]string
	}{
		{name: "all up", checks: map[string]Pinger{"database": up, "redis": up}, wantCode: http.StatusOK, want: map[string]string{"database": "ok", "redis": "ok"}},
		{name: "redis down", checks: map[string]Pinger{"database": up, "redis": down}, wantCode: http.StatusServiceUnavailable, want: map[string]string{"database": "ok", "redis": "down"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tc.checks).Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tc.wantCode, rec.Code)
			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.want, body.Checks)
		})
	}
}
