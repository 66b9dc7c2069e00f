package httpadapter

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/labelinsight/label-insight/internal/core/domain"
	"github.com/labelinsight/label-insight/internal/core/ports"
)

const maxRequestBody = 20 << 20

type Router struct {
	scans     ports.ScanService
	alerts    ports.AlertService
	directory ports.ProductDirectory
}

func NewRouter(scans ports.ScanService, alerts ports.AlertService, directory ports.ProductDirectory) *Router {
	return &Router{
		scans:     scans,
		alerts:    alerts,
		directory: directory,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/scans", rt.scansCollection)
	mux.HandleFunc("/v1/scans/", rt.getScanByID)
	mux.HandleFunc("/v1/alerts", rt.generateAlerts)
	mux.HandleFunc("/v1/products/", rt.getProductByBarcode)
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) scansCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.createScan(w, r)
	case http.MethodGet:
		rt.listScans(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) createScan(w http.ResponseWriter, r *http.Request) {
	imageBase64, err := readImagePayload(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	scan, err := rt.scans.CreateScan(r.Context(), imageBase64, async)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if async {
		status = http.StatusAccepted
	}
	writeJSON(w, status, scan)
}

// readImagePayload accepts either a JSON body with image_base64 or a
// multipart form with an image file, and always yields base64 text.
func readImagePayload(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if contentType == "multipart/form-data" {
		file, _, err := r.FormFile("image")
		if err != nil {
			return "", errors.New("multipart field 'image' is required")
		}
		defer file.Close()
		raw, err := io.ReadAll(file)
		if err != nil {
			return "", errors.New("failed to read uploaded image")
		}
		if len(raw) == 0 {
			return "", errors.New("uploaded image is empty")
		}
		return base64.StdEncoding.EncodeToString(raw), nil
	}

	var req struct {
		ImageBase64 string `json:"image_base64"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", errors.New("invalid json")
	}
	if strings.TrimSpace(req.ImageBase64) == "" {
		return "", errors.New("image_base64 is required")
	}
	return req.ImageBase64, nil
}

func (rt *Router) listScans(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	scans, err := rt.scans.ListScans(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": scans})
}

func (rt *Router) getScanByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/scans/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "scan id is required"})
		return
	}

	scan, err := rt.scans.GetScan(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

func (rt *Router) generateAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Profile  domain.HealthProfile  `json:"profile"`
		ScanID   string                `json:"scan_id"`
		Analysis *domain.FinalAnalysis `json:"analysis"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	analysis := req.Analysis
	if analysis == nil {
		if strings.TrimSpace(req.ScanID) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "scan_id or analysis is required"})
			return
		}
		scan, err := rt.scans.GetScan(r.Context(), req.ScanID)
		if err != nil {
			writeError(w, err)
			return
		}
		if scan.Analysis == nil {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "scan has no completed analysis"})
			return
		}
		analysis = scan.Analysis
	}

	alerts := rt.alerts.GenerateAlerts(req.Profile, analysis)
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (rt *Router) getProductByBarcode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	barcode := strings.TrimPrefix(r.URL.Path, "/v1/products/")
	if barcode == "" || strings.Contains(barcode, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "barcode is required"})
		return
	}

	product, err := rt.directory.FetchByBarcode(r.Context(), barcode)
	if err != nil {
		writeError(w, err)
		return
	}
	if product == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found: " + barcode})
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
