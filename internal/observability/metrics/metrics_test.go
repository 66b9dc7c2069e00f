package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerForServesMultipleRegistries(t *testing.T) {
	worker := NewWorkerMetrics("worker")
	pipeline := NewHTTPServerMetrics("worker")

	worker.StartScan()
	worker.FinishScan("worker", 2*time.Second, nil)
	pipeline.RecordAnalysis("worker", "degraded", 0, true)
	pipeline.RecordOCREngine("worker", "primary", "served")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	HandlerFor(worker.Gatherer(), pipeline.Gatherer()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, family := range []string{
		"li_worker_scan_process_total",
		"li_pipeline_degraded_results_total",
		"li_ocr_engine_total",
	} {
		if !strings.Contains(body, family) {
			t.Fatalf("metric family %s missing from combined output", family)
		}
	}
}
