package httpadapter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labelinsight/label-insight/internal/core/domain"
)

type scanServiceFake struct {
	scan      *domain.Scan
	err       error
	lastImage string
	lastAsync bool
}

func (f *scanServiceFake) CreateScan(_ context.Context, imageBase64 string, async bool) (*domain.Scan, error) {
	f.lastImage = imageBase64
	f.lastAsync = async
	return f.scan, f.err
}

func (f *scanServiceFake) ProcessScanByID(context.Context, string) error { return f.err }

func (f *scanServiceFake) GetScan(context.Context, string) (*domain.Scan, error) {
	return f.scan, f.err
}

func (f *scanServiceFake) ListScans(context.Context, int) ([]domain.Scan, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.scan == nil {
		return []domain.Scan{}, nil
	}
	return []domain.Scan{*f.scan}, nil
}

type alertServiceFake struct {
	alerts []domain.Alert
}

func (f *alertServiceFake) GenerateAlerts(domain.HealthProfile, *domain.FinalAnalysis) []domain.Alert {
	return f.alerts
}

type directoryStub struct {
	candidate *domain.EnrichmentCandidate
	err       error
}

func (f *directoryStub) SearchTop(context.Context, string) (*domain.EnrichmentCandidate, error) {
	return f.candidate, f.err
}

func (f *directoryStub) FetchByBarcode(context.Context, string) (*domain.EnrichmentCandidate, error) {
	return f.candidate, f.err
}

func doneScan() *domain.Scan {
	return &domain.Scan{
		ID:         "s-1",
		Status:     domain.ScanStatusDone,
		ScoreValue: 62,
		ScoreGrade: "C",
		Analysis: &domain.FinalAnalysis{
			ProductName: "Oat Drink",
			Score:       domain.HealthScore{Value: 62, Grade: "C"},
		},
	}
}

func TestCreateScanSyncReturnsOK(t *testing.T) {
	svc := &scanServiceFake{scan: doneScan()}
	handler := NewRouter(svc, &alertServiceFake{}, &directoryStub{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/scans", strings.NewReader(`{"image_base64":"aW1n"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.lastAsync {
		t.Fatal("async must default to false")
	}
	var scan domain.Scan
	if err := json.Unmarshal(rec.Body.Bytes(), &scan); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if scan.ID != "s-1" || scan.ScoreValue != 62 {
		t.Fatalf("unexpected scan: %+v", scan)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("request id header must be set")
	}
}

func TestCreateScanAsyncReturnsAccepted(t *testing.T) {
	svc := &scanServiceFake{scan: &domain.Scan{ID: "s-2", Status: domain.ScanStatusQueued}}
	handler := NewRouter(svc, &alertServiceFake{}, &directoryStub{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/scans?async=true", strings.NewReader(`{"image_base64":"aW1n"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if !svc.lastAsync {
		t.Fatal("async flag must propagate")
	}
}

func TestCreateScanAcceptsMultipartUpload(t *testing.T) {
	svc := &scanServiceFake{scan: doneScan()}
	handler := NewRouter(svc, &alertServiceFake{}, &directoryStub{}).Handler()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("image", "label.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	raw := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	if _, err := part.Write(raw); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/scans", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.lastImage != base64.StdEncoding.EncodeToString(raw) {
		t.Fatalf("uploaded bytes must reach the service base64-encoded, got %q", svc.lastImage)
	}
}

func TestCreateScanAsyncAcceptsNumericFlag(t *testing.T) {
	svc := &scanServiceFake{scan: &domain.Scan{ID: "s-4", Status: domain.ScanStatusQueued}}
	handler := NewRouter(svc, &alertServiceFake{}, &directoryStub{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/scans?async=1", strings.NewReader(`{"image_base64":"aW1n"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if !svc.lastAsync {
		t.Fatal("async=1 must propagate")
	}
}

func TestCreateScanRequiresImage(t *testing.T) {
	handler := NewRouter(&scanServiceFake{}, &alertServiceFake{}, &directoryStub{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/scans", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"scan not found", domain.WrapError(domain.ErrScanNotFound, "get scan", errors.New("id=x")), http.StatusNotFound},
		{"engine unavailable", domain.WrapError(domain.ErrEngineUnavailable, "ocr", errors.New("down")), http.StatusUnprocessableEntity},
		{"model fatal", domain.WrapError(domain.ErrModelFatal, "nutrition", errors.New("bad request")), http.StatusBadGateway},
		{"parse failure", domain.WrapError(domain.ErrParseFailure, "nutrition", errors.New("not json")), http.StatusBadGateway},
		{"temporary", domain.WrapError(domain.ErrTemporary, "nats", errors.New("no servers")), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		handler := NewRouter(&scanServiceFake{err: tc.err}, &alertServiceFake{}, &directoryStub{}).Handler()
		req := httptest.NewRequest(http.MethodGet, "/v1/scans/s-1", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != tc.want {
			t.Fatalf("%s: status = %d, want %d", tc.name, rec.Code, tc.want)
		}
	}
}

func TestListScans(t *testing.T) {
	handler := NewRouter(&scanServiceFake{scan: doneScan()}, &alertServiceFake{}, &directoryStub{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/scans?limit=5", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Scans []domain.Scan `json:"scans"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Scans) != 1 {
		t.Fatalf("expected 1 scan, got %d", len(body.Scans))
	}
}

func TestListScansRejectsBadLimit(t *testing.T) {
	handler := NewRouter(&scanServiceFake{}, &alertServiceFake{}, &directoryStub{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/scans?limit=abc", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGenerateAlertsFromScan(t *testing.T) {
	alerts := []domain.Alert{{Level: domain.AlertLevelHigh, Message: "Contains NUTS", Type: "allergy"}}
	handler := NewRouter(&scanServiceFake{scan: doneScan()}, &alertServiceFake{alerts: alerts}, &directoryStub{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/alerts",
		strings.NewReader(`{"profile":{"age":30,"allergies":["nuts"]},"scan_id":"s-1"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Alerts []domain.Alert `json:"alerts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Alerts) != 1 || body.Alerts[0].Type != "allergy" {
		t.Fatalf("unexpected alerts: %+v", body.Alerts)
	}
}

func TestGenerateAlertsRejectsIncompleteScan(t *testing.T) {
	queued := &domain.Scan{ID: "s-3", Status: domain.ScanStatusQueued}
	handler := NewRouter(&scanServiceFake{scan: queued}, &alertServiceFake{}, &directoryStub{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/alerts",
		strings.NewReader(`{"profile":{"age":30},"scan_id":"s-3"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetProductByBarcode(t *testing.T) {
	candidate := &domain.EnrichmentCandidate{Barcode: "123", Name: "Rice Noodles"}
	handler := NewRouter(&scanServiceFake{}, &alertServiceFake{}, &directoryStub{candidate: candidate}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/products/123", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	handler = NewRouter(&scanServiceFake{}, &alertServiceFake{}, &directoryStub{}).Handler()
	req = httptest.NewRequest(http.MethodGet, "/v1/products/999", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
