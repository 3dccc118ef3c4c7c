// backend/src/handlers/report_handler.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/username/bankimport/src/config"
	"github.com/username/bankimport/src/logger"
	"github.com/username/bankimport/src/models"
	"github.com/username/bankimport/src/services"
	"github.com/username/bankimport/src/utils"
)

type ReportHandler struct {
	importService services.ImportService
}

func NewReportHandler(service services.ImportService) *ReportHandler {
	return &ReportHandler{
		importService: service,
	}
}

type reportResponse struct {
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

func toReportResponse(id models.ReportID) reportResponse {
	return reportResponse{Name: id.Name, CreatedAt: id.CreatedAt.Format(time.RFC3339)}
}

// HandleUpload accepts one statement export and stores it for the next
// processing cycle. The file is stored verbatim; parsing happens later.
func (h *ReportHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		ctxLogger.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("failed to parse upload or file too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		ctxLogger.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "failed to retrieve file from request; ensure the 'file' field is used", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		ctxLogger.Warn("Uploaded file too large", "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("file too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	id, err := h.importService.SaveReport(fileHeader.Filename, file)
	if err != nil {
		ctxLogger.Warn("Rejected report upload", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusConflict)
		return
	}

	ctxLogger.Info("Report stored", "report", id.String())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toReportResponse(id))
}

// HandleListReports lists stored reports; ?unprocessed=true restricts the
// listing to reports still waiting for processing.
func (h *ReportHandler) HandleListReports(w http.ResponseWriter, r *http.Request) {
	unprocessedOnly := r.URL.Query().Get("unprocessed") == "true"

	ids, err := h.importService.ListReports(unprocessedOnly)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list reports", "error", err)
		utils.SendJSONError(w, "failed to list reports", http.StatusInternalServerError)
		return
	}

	response := make([]reportResponse, 0, len(ids))
	for _, id := range ids {
		response = append(response, toReportResponse(id))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleProcessReports runs one processing cycle over all unprocessed
// reports, the same entry point the background poll uses.
func (h *ReportHandler) HandleProcessReports(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())
	ctxLogger.Info("Processing cycle triggered over HTTP")

	if err := h.importService.ProcessNewReports(); err != nil {
		ctxLogger.Error("Processing cycle halted", "error", err)
		utils.SendJSONError(w, "processing halted: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "completed"})
}
