package handlers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"catalog-import-service/internal/importer"
	"catalog-import-service/internal/middleware"
	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const (
	DefaultMaxFileBytes = 20 << 20
	persistTimeout      = 5 * time.Second
)

// StoreProvider returns the entity store for a tenant
type StoreProvider func(tenantID string) importer.EntityStore

// RunObserver is notified once per finished run
type RunObserver interface {
	ObserveRun(summary importer.RunSummary)
}

// ImportOptions tune the import endpoints
type ImportOptions struct {
	MaxFileBytes int64
	DefaultTitle string
	RunTTL       time.Duration
}

type ImportHandler struct {
	stores   StoreProvider
	runStore repository.RunStore
	importer *importer.Importer
	observer RunObserver
	registry *runRegistry
	opts     ImportOptions
	baseCtx  context.Context
	inflight sync.WaitGroup
	logger   *logrus.Entry
}

// NewImportHandler builds the handler. baseCtx bounds async runs; cancelling
// it stops them between rows.
func NewImportHandler(baseCtx context.Context, stores StoreProvider, runStore repository.RunStore, imp *importer.Importer, opts ImportOptions, logger *logrus.Entry) *ImportHandler {
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = DefaultMaxFileBytes
	}
	if opts.RunTTL <= 0 {
		opts.RunTTL = repository.DefaultRunTTL
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ImportHandler{
		stores:   stores,
		runStore: runStore,
		importer: imp,
		registry: newRunRegistry(opts.RunTTL),
		opts:     opts,
		baseCtx:  baseCtx,
		logger:   logger.WithField("component", "import_handler"),
	}
}

func (h *ImportHandler) WithObserver(o RunObserver) *ImportHandler {
	h.observer = o
	return h
}

// Drain waits for background runs to record their summaries, or for ctx
func (h *ImportHandler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetImportTemplate returns the import template definition or file
// @Summary Get product import template
// @Description Returns the column definition as JSON, or a CSV/XLSX template file
// @Tags Import
// @Produce json
// @Param format query string false "json, csv or xlsx" default(json)
// @Success 200 {object} models.SuccessResponse
// @Router /products/import/template [get]
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	template := models.ProductImportTemplate()

	switch strings.ToLower(c.DefaultQuery("format", "json")) {
	case "csv":
		h.generateCSVTemplate(c, template)
	case "xlsx":
		h.generateXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, models.SuccessResponse{
			Success: true,
			Data:    template,
		})
	}
}

// generateCSVTemplate writes the header row only
func (h *ImportHandler) generateCSVTemplate(c *gin.Context, template models.ImportTemplate) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.csv")

	writer := csv.NewWriter(c.Writer)
	headers := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Label
	}
	if err := writer.Write(headers); err != nil {
		h.logger.WithError(err).Error("Failed to write CSV template")
		return
	}
	writer.Flush()
}

// generateXLSXTemplate writes a Products sheet and an Instructions sheet
func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, template models.ImportTemplate) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Products"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		h.internalError(c, err)
		return
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		headerText := col.Label
		style := headerStyle
		if col.Required {
			headerText = col.Label + " *"
			style = requiredStyle
		}
		_ = f.SetCellValue(sheetName, cell, headerText)
		_ = f.SetCellStyle(sheetName, cell, cell, style)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheetName, colName, colName, 20)
	}

	const instructions = "Instructions"
	if _, err := f.NewSheet(instructions); err != nil {
		h.internalError(c, err)
		return
	}
	lines := []string{
		"Product Import Instructions",
		"",
		"- Columns marked * are required. Header matching ignores case, spaces, '_' and '-'.",
		"- Categories and types are looked up by name and created when missing.",
		"- Rows with a blank Type are skipped.",
		"- A product with the same name, category, type and MRP is reported as a duplicate.",
		"- Images: comma-separated URLs. Failed images do not fail the row.",
	}
	for i, line := range lines {
		_ = f.SetCellValue(instructions, fmt.Sprintf("A%d", i+1), line)
	}

	headerRow := len(lines) + 2
	for i, title := range []string{"Column", "Description", "Required", "Type", "Example"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		_ = f.SetCellValue(instructions, cell, title)
	}
	for i, col := range template.Columns {
		row := headerRow + 1 + i
		required := "Optional"
		if col.Required {
			required = "Required"
		}
		_ = f.SetSheetRow(instructions, fmt.Sprintf("A%d", row), &[]interface{}{col.Label, col.Description, required, col.Type, col.Example})
	}
	_ = f.SetColWidth(instructions, "A", "A", 25)
	_ = f.SetColWidth(instructions, "B", "B", 70)
	_ = f.SetColWidth(instructions, "C", "D", 15)
	_ = f.SetColWidth(instructions, "E", "E", 40)

	if idx, err := f.GetSheetIndex(sheetName); err == nil {
		f.SetActiveSheet(idx)
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.xlsx")
	if err := f.Write(c.Writer); err != nil {
		h.logger.WithError(err).Error("Failed to write XLSX template")
	}
}

// ImportProducts imports products from a CSV, TSV or XLSX upload
// @Summary Import products
// @Description Runs a catalog import. Synchronous by default; async=true returns 202 with a run id.
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV, TSV or XLSX file"
// @Param async formData bool false "Run in the background"
// @Param dryRun formData bool false "Validate without writing"
// @Success 200 {object} models.SuccessResponse
// @Success 202 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Router /products/import [post]
func (h *ImportHandler) ImportProducts(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	if tenantID == "" {
		respondError(c, http.StatusUnauthorized, "TENANT_REQUIRED", "Tenant context is required")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxFileBytes+1<<20)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fileTooLarge(c)
			return
		}
		respondError(c, http.StatusBadRequest, "FILE_REQUIRED", "Please upload a CSV, TSV or Excel file")
		return
	}
	defer file.Close()

	if header.Size > h.opts.MaxFileBytes {
		h.fileTooLarge(c)
		return
	}

	format, ok := models.ImportFormatFromFilename(header.Filename)
	if !ok {
		respondError(c, http.StatusBadRequest, "INVALID_FORMAT", "Only CSV, TSV and XLSX files are supported")
		return
	}

	plan, err := h.importer.Prepare(file, format)
	if err != nil {
		h.prepareError(c, err)
		return
	}

	async := boolParam(c, "async")
	opts := importer.RunOptions{
		RunID:        uuid.NewString(),
		ActorID:      actorID(c),
		DryRun:       boolParam(c, "dryRun"),
		DefaultTitle: h.opts.DefaultTitle,
	}
	reporter := importer.NewReporter(opts.RunID, plan.Rows.Len(), opts.DryRun)
	store := h.stores(tenantID)

	logger := h.logger.WithFields(logrus.Fields{
		"runId":    opts.RunID,
		"tenantId": tenantID,
		"file":     header.Filename,
		"rows":     plan.Rows.Len(),
		"async":    async,
		"dryRun":   opts.DryRun,
	})
	logger.Info("Import started")

	if !async {
		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()
		h.registry.start(opts.RunID, tenantID, reporter, cancel)

		summary := h.importer.Execute(ctx, store, plan, reporter, opts)
		h.finish(tenantID, summary, logger)
		c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: summary})
		return
	}

	ctx, cancel := context.WithCancel(h.baseCtx)
	h.registry.start(opts.RunID, tenantID, reporter, cancel)
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		defer cancel()
		summary := h.importer.Execute(ctx, store, plan, reporter, opts)
		h.finish(tenantID, summary, logger)
	}()

	c.JSON(http.StatusAccepted, models.SuccessResponse{
		Success: true,
		Data: gin.H{
			"runId":  opts.RunID,
			"status": models.RunStatusProcessing,
		},
	})
}

// GetRun returns the progress or final summary of a run
// @Summary Get import run
// @Tags Import
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /products/import/runs/{id} [get]
func (h *ImportHandler) GetRun(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	runID := c.Param("id")

	if entry := h.registry.get(runID, tenantID); entry != nil {
		c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: entry.reporter.Summary()})
		return
	}

	summary, err := h.runStore.Get(c.Request.Context(), tenantID, runID)
	if errors.Is(err, repository.ErrRunNotFound) {
		respondError(c, http.StatusNotFound, "RUN_NOT_FOUND", "Import run not found")
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: summary})
}

// StopRun asks a running import to stop before its next row
// @Summary Stop import run
// @Tags Import
// @Produce json
// @Param id path string true "Run ID"
// @Success 202 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /products/import/runs/{id} [delete]
func (h *ImportHandler) StopRun(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	runID := c.Param("id")

	entry := h.registry.get(runID, tenantID)
	if entry == nil {
		respondError(c, http.StatusNotFound, "RUN_NOT_FOUND", "Import run not found or no longer active")
		return
	}

	summary := entry.reporter.Summary()
	if summary.Status != models.RunStatusProcessing {
		c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: summary})
		return
	}

	entry.cancel()
	h.logger.WithFields(logrus.Fields{"runId": runID, "tenantId": tenantID}).Info("Import stop requested")
	message := "Stop requested; the run halts before its next row"
	c.JSON(http.StatusAccepted, models.SuccessResponse{Success: true, Data: summary, Message: &message})
}

// finish persists and reports a completed or stopped run
func (h *ImportHandler) finish(tenantID string, summary importer.RunSummary, logger *logrus.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	// Once persisted the run is read back from the store; otherwise it stays
	// in the registry until it expires.
	switch err := h.runStore.Save(ctx, tenantID, summary); {
	case err == nil:
		h.registry.remove(summary.RunID)
	case errors.Is(err, repository.ErrRunStoreUnavailable):
		logger.Debug("Run store unavailable, keeping summary in memory")
	default:
		logger.WithError(err).Warn("Failed to persist import summary")
	}
	if h.observer != nil {
		h.observer.ObserveRun(summary)
	}

	logger.WithFields(logrus.Fields{
		"status":     summary.Status,
		"total":      summary.Total,
		"succeeded":  summary.Succeeded,
		"duplicates": summary.Duplicates,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
	}).Info("Import finished")
}

func (h *ImportHandler) prepareError(c *gin.Context, err error) {
	var validation *importer.ValidationError
	var parseErr *importer.ParseError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "MISSING_COLUMNS",
				Message: validation.Error(),
				Details: gin.H{"missing": validation.Missing},
			},
		})
	case errors.Is(err, importer.ErrNoDataRows):
		respondError(c, http.StatusBadRequest, "EMPTY_FILE", "The file contains no data rows")
	case errors.As(err, &parseErr):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "PARSE_ERROR",
				Message: parseErr.Error(),
				Details: gin.H{"line": parseErr.Line},
			},
		})
	default:
		respondError(c, http.StatusBadRequest, "PARSE_ERROR", err.Error())
	}
}

func (h *ImportHandler) fileTooLarge(c *gin.Context) {
	respondError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
		fmt.Sprintf("File exceeds the %d byte limit", h.opts.MaxFileBytes))
}

func (h *ImportHandler) internalError(c *gin.Context, err error) {
	h.logger.WithError(err).Error("Import request failed")
	respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
		},
	})
}

// boolParam reads a flag from the form body or the query string
func boolParam(c *gin.Context, key string) bool {
	value := c.PostForm(key)
	if value == "" {
		value = c.Query(key)
	}
	return strings.EqualFold(value, "true") || value == "1"
}

func actorID(c *gin.Context) string {
	if userID := gosharedmw.GetIstioUserID(c); userID != "" {
		return userID
	}
	return middleware.GetUserID(c)
}
