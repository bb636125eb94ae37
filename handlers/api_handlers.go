package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"student-predictor-go/features"
	"student-predictor-go/models"
	"student-predictor-go/predictor"
)

// ResultStore persists batch outputs and manual predictions. *db.RedisService
// implements it.
type ResultStore interface {
	SaveBatch(ctx context.Context, b models.BatchRecord) error
	GetBatch(ctx context.Context, batchID string) (*models.BatchRecord, error)
	ListBatches(ctx context.Context, limit int64) ([]models.BatchSummary, error)
	SavePrediction(ctx context.Context, p models.PredictionRecord) error
	RecentPredictions(ctx context.Context, n int64) ([]models.PredictionRecord, error)
}

// APIHandler holds the dependencies for API handlers
type APIHandler struct {
	Normalizer     *features.Normalizer
	Predictor      *predictor.Service
	Store          ResultStore // nil disables persistence
	Log            logrus.FieldLogger
	MaxUploadBytes int64
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(n *features.Normalizer, p *predictor.Service, store ResultStore, log logrus.FieldLogger) *APIHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &APIHandler{
		Normalizer:     n,
		Predictor:      p,
		Store:          store,
		Log:            log,
		MaxUploadBytes: 10 << 20,
	}
}

// --- Schema & Taxonomy Handlers ---

type schemaResponse struct {
	features.ModelSchema
	Bounds map[string]features.Bound `json:"bounds"`
}

// GetSchema handles GET /api/schema
func (h *APIHandler) GetSchema(c *gin.Context) {
	c.JSON(http.StatusOK, schemaResponse{ModelSchema: h.Predictor.Schema(), Bounds: features.Bounds})
}

// GetCourses handles GET /api/courses
func (h *APIHandler) GetCourses(c *gin.Context) {
	c.JSON(http.StatusOK, h.Normalizer.Taxonomy().Courses())
}

// GetSections handles GET /api/courses/:course/years/:year/sections
func (h *APIHandler) GetSections(c *gin.Context) {
	course := c.Param("course")
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Year must be a whole number"})
		return
	}
	sections, err := h.Normalizer.Taxonomy().Sections(course, year)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"course": course, "year": year, "sections": sections})
}

// --- Prediction Handlers ---

type manualResponse struct {
	ID      string                  `json:"id"`
	Result  models.PredictionResult `json:"result"`
	Message string                  `json:"message"`
	Details models.StudentDetails   `json:"details"`
}

// PredictManual handles POST /api/predict. With ?format=csv the details row is
// returned as a CSV download instead of JSON.
func (h *APIHandler) PredictManual(c *gin.Context) {
	var rec models.RawStudentRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	vec, err := h.Normalizer.NormalizeRecord(rec)
	if err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.Predictor.PredictOne(c.Request.Context(), vec)
	if err != nil {
		h.respondError(c, err)
		return
	}

	record := models.PredictionRecord{
		ID:        uuid.NewString(),
		Schema:    h.Predictor.Schema().String(),
		Details:   details(rec, res),
		Result:    res,
		CreatedAt: time.Now().UTC(),
	}
	if h.Store != nil {
		if err := h.Store.SavePrediction(c.Request.Context(), record); err != nil {
			// The prediction itself succeeded; losing the history entry is not fatal.
			h.Log.WithError(err).WithField("prediction_id", record.ID).Warn("Failed to store prediction")
		}
	}
	h.Log.WithFields(logrus.Fields{"prediction_id": record.ID, "score": res.Score, "verdict": res.Verdict}).Info("Manual prediction")

	if c.Query("format") == "csv" {
		out, err := features.EncodeCSV(detailsTable(record.Details))
		if err != nil {
			h.respondError(c, err)
			return
		}
		attachment(c, "prediction.csv", "text/csv; charset=utf-8", out)
		return
	}
	c.JSON(http.StatusOK, manualResponse{
		ID:      record.ID,
		Result:  res,
		Message: res.Verdict.Message(),
		Details: record.Details,
	})
}

type rowResult struct {
	Row     int            `json:"row"`
	Name    string         `json:"name,omitempty"`
	RollNo  string         `json:"roll_no,omitempty"`
	Score   float64        `json:"score"`
	Verdict models.Verdict `json:"verdict"`
}

type rowRejection struct {
	Row     int      `json:"row"`
	Reasons []string `json:"reasons"`
}

type batchResponse struct {
	models.BatchSummary
	DerivedCGPA bool           `json:"derivedCgpa"`
	Results     []rowResult    `json:"results"`
	Rejections  []rowRejection `json:"rejections"`
	Download    string         `json:"download,omitempty"`
}

// PredictBatch handles POST /api/predict/batch. The multipart "file" field must
// be a .csv or .xlsx table. With ?format=csv|xlsx the annotated table is returned
// directly; otherwise a JSON summary is returned and, if a store is configured,
// the table is kept for download.
func (h *APIHandler) PredictBatch(c *gin.Context) {
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	}
	file, header, err := c.Request.FormFile("file") // "file" is the name attribute in the form
	if err != nil {
		h.Log.WithError(err).Warn("Error getting form file")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error retrieving uploaded file: " + err.Error()})
		return
	}
	defer file.Close()

	log := h.Log.WithField("filename", header.Filename)
	log.Info("Received batch upload")

	table, err := features.ReadTable(header.Filename, file)
	if err != nil {
		h.respondError(c, err)
		return
	}
	batch, err := h.Normalizer.NormalizeTable(table)
	if err != nil {
		h.respondError(c, err)
		return
	}
	results, err := h.Predictor.PredictBatch(c.Request.Context(), batch.Table)
	if err != nil {
		h.respondError(c, err)
		return
	}

	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.Score
	}
	output := features.AttachPredictions(table, batch, scores)

	switch format := c.Query("format"); format {
	case "csv", "xlsx":
		h.writeTable(c, output, format)
		return
	}

	resp := batchResponse{
		BatchSummary: models.BatchSummary{
			ID:        uuid.NewString(),
			Filename:  header.Filename,
			Schema:    h.Predictor.Schema().String(),
			Total:     batch.Total(),
			Accepted:  len(batch.Accepted),
			Rejected:  len(batch.Rejected),
			CreatedAt: time.Now().UTC(),
		},
		DerivedCGPA: batch.DerivedCGPA,
		Results:     make([]rowResult, len(results)),
		Rejections:  make([]rowRejection, len(batch.Rejected)),
	}
	for k, r := range results {
		i := batch.Accepted[k]
		name, _ := table.Cell(i, features.FieldName)
		roll, _ := table.Cell(i, features.FieldRollNo)
		resp.Results[k] = rowResult{Row: i + 1, Name: name, RollNo: roll, Score: r.Score, Verdict: r.Verdict}
	}
	for k, re := range batch.Rejected {
		resp.Rejections[k] = rowRejection{Row: re.Row, Reasons: features.Details(re.Err)}
	}
	log = log.WithField("batch_id", resp.ID)

	if h.Store != nil {
		out, err := features.EncodeCSV(output)
		if err != nil {
			h.respondError(c, err)
			return
		}
		if err := h.Store.SaveBatch(c.Request.Context(), models.BatchRecord{BatchSummary: resp.BatchSummary, OutputCSV: out}); err != nil {
			log.WithError(err).Error("Failed to store batch")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store batch results"})
			return
		}
		resp.Download = "/api/batches/" + resp.ID + "/download"
	}
	log.WithField("summary", batch.String()).Info("Batch prediction complete")
	c.JSON(http.StatusOK, resp)
}

// --- Stored Result Handlers ---

// GetBatches handles GET /api/batches
func (h *APIHandler) GetBatches(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	batches, err := h.Store.ListBatches(c.Request.Context(), limit)
	if err != nil {
		h.Log.WithError(err).Error("Error in GetBatches handler")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve batches"})
		return
	}
	if batches == nil {
		// Return empty list instead of null for JSON consistency
		batches = []models.BatchSummary{}
	}
	c.JSON(http.StatusOK, batches)
}

// DownloadBatch handles GET /api/batches/:batchId/download
func (h *APIHandler) DownloadBatch(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	batchID := c.Param("batchId")
	b, err := h.Store.GetBatch(c.Request.Context(), batchID)
	if err != nil {
		h.Log.WithError(err).WithField("batch_id", batchID).Error("Error in DownloadBatch handler")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve batch"})
		return
	}
	if b == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Batch not found or expired"})
		return
	}

	format := c.DefaultQuery("format", "csv")
	switch format {
	case "csv":
		attachment(c, "predictions.csv", "text/csv; charset=utf-8", b.OutputCSV)
	case "xlsx":
		table, err := features.ReadCSV(bytes.NewReader(b.OutputCSV))
		if err != nil {
			h.respondError(c, err)
			return
		}
		h.writeTable(c, table, format)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unknown format %q, expected csv or xlsx", format)})
	}
}

// GetRecentPredictions handles GET /api/predictions/recent
func (h *APIHandler) GetRecentPredictions(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	n, _ := strconv.ParseInt(c.DefaultQuery("limit", "0"), 10, 64)
	preds, err := h.Store.RecentPredictions(c.Request.Context(), n)
	if err != nil {
		h.Log.WithError(err).Error("Error in GetRecentPredictions handler")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve predictions"})
		return
	}
	if preds == nil {
		preds = []models.PredictionRecord{}
	}
	c.JSON(http.StatusOK, preds)
}

// --- Ping Handler ---
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}

// --- Helpers ---

func (h *APIHandler) requireStore(c *gin.Context) bool {
	if h.Store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Result storage is not configured"})
		return false
	}
	return true
}

// respondError maps domain errors onto HTTP statuses. Validation failures carry
// one detail per offending field.
func (h *APIHandler) respondError(c *gin.Context, err error) {
	var (
		missing  *features.MissingColumnsError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &missing):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Missing required columns", "missing": missing.Missing})
	case errors.Is(err, features.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid input", "details": features.Details(err)})
	case errors.Is(err, features.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit)})
	case errors.Is(err, predictor.ErrModelUnavailable):
		h.Log.WithError(err).Error("Model unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Prediction model is unavailable"})
	case errors.Is(err, predictor.ErrInference):
		h.Log.WithError(err).Error("Inference failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Prediction failed: " + err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Request cancelled"})
	default:
		h.Log.WithError(err).Error("Request failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func (h *APIHandler) writeTable(c *gin.Context, t *features.Table, format string) {
	if format == "xlsx" {
		var buf bytes.Buffer
		if err := features.WriteXLSX(&buf, t); err != nil {
			h.respondError(c, err)
			return
		}
		attachment(c, "predictions.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
		return
	}
	out, err := features.EncodeCSV(t)
	if err != nil {
		h.respondError(c, err)
		return
	}
	attachment(c, "predictions.csv", "text/csv; charset=utf-8", out)
}

func attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}
