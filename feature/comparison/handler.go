package comparison

import (
	"errors"
	"strconv"

	"comparison-review/core/logger"
	"comparison-review/core/reconcile"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for comparison review.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the comparison routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/comparison")
	group.Get("/fields", h.HandleGetFields)

	group.Get("/sessions", h.HandleListSessions)
	group.Post("/sessions", h.HandleOpenSession)
	group.Get("/sessions/:id", h.HandleGetSession)
	group.Delete("/sessions/:id", h.HandleCloseSession)
	group.Post("/sessions/:id/save", h.HandleSave)
	group.Get("/sessions/:id/records", h.HandleListRecords)
	group.Get("/sessions/:id/records/:recordId", h.HandleGetRecord)
	group.Post("/sessions/:id/records/:recordId/fields/:field/:decision", h.HandleResolveField)
	group.Post("/sessions/:id/records/:recordId/:decision", h.HandleResolveRecord)

	group.Get("/reports", h.HandleListReports)
	group.Get("/reports/:reportId", h.HandleGetReport)
}

// HandleGetFields returns the discovered field names.
// @Summary List Comparison Fields
// @Description Lists the fields of the comparison table, derived from its *_Source columns.
// @Tags comparison
// @Produce json
// @Param refresh query boolean false "Bypass the schema cache"
// @Success 200 {object} map[string]interface{} "Table and fields"
// @Failure 500 {object} map[string]string "Schema unavailable"
// @Router /comparison/fields [get]
func (h *Handler) HandleGetFields(c *fiber.Ctx) error {
	fields, err := h.service.Fields(c.Context(), c.Query("refresh") == "true")
	if err != nil {
		return h.fail(c, "Field discovery failed", err)
	}
	return c.JSON(fiber.Map{
		"table":  h.service.Table(),
		"fields": fields,
	})
}

// HandleListSessions lists the open review sessions.
// @Summary List Review Sessions
// @Tags comparison
// @Produce json
// @Success 200 {array} SessionInfo "Open sessions"
// @Router /comparison/sessions [get]
func (h *Handler) HandleListSessions(c *fiber.Ctx) error {
	return c.JSON(h.service.Sessions())
}

// HandleOpenSession loads records into a new review session.
// @Summary Open Review Session
// @Description Loads the comparison records of one pipeline run (or all runs) for review.
// @Tags comparison
// @Produce json
// @Param run query integer false "Pipeline execution id"
// @Success 201 {object} SessionInfo "Session"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 429 {object} map[string]string "Session limit reached"
// @Failure 500 {object} map[string]string "Load failed"
// @Router /comparison/sessions [post]
func (h *Handler) HandleOpenSession(c *fiber.Ctx) error {
	runID, err := queryRunID(c)
	if err != nil {
		return badRequest(c, err)
	}

	sess, err := h.service.Open(c.Context(), runID)
	if err != nil {
		return h.fail(c, "Failed to open review session", err)
	}
	return c.Status(fiber.StatusCreated).JSON(sess.Info())
}

// HandleGetSession returns the summary of a session.
// @Summary Get Review Session
// @Tags comparison
// @Produce json
// @Param id path string true "Session id"
// @Success 200 {object} SessionInfo "Session"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /comparison/sessions/{id} [get]
func (h *Handler) HandleGetSession(c *fiber.Ctx) error {
	sess, err := h.service.Session(c.Params("id"))
	if err != nil {
		return h.fail(c, "Session lookup failed", err)
	}
	return c.JSON(sess.Info())
}

// HandleCloseSession discards a session.
// @Summary Close Review Session
// @Description Discards the session and any unsaved resolutions.
// @Tags comparison
// @Param id path string true "Session id"
// @Success 204 "Closed"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /comparison/sessions/{id} [delete]
func (h *Handler) HandleCloseSession(c *fiber.Ctx) error {
	if err := h.service.Close(c.Params("id")); err != nil {
		return h.fail(c, "Session close failed", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleListRecords returns the records of a session.
// @Summary List Session Records
// @Tags comparison
// @Produce json
// @Param id path string true "Session id"
// @Param differing query boolean false "Only records with differences"
// @Success 200 {array} reconcile.ComparisonRecord "Records"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /comparison/sessions/{id}/records [get]
func (h *Handler) HandleListRecords(c *fiber.Ctx) error {
	records, err := h.service.Records(c.Params("id"), c.Query("differing") == "true")
	if err != nil {
		return h.fail(c, "Record listing failed", err)
	}
	return c.JSON(records)
}

// HandleGetRecord returns one record of a session.
// @Summary Get Session Record
// @Tags comparison
// @Produce json
// @Param id path string true "Session id"
// @Param recordId path integer true "Record comparison id"
// @Success 200 {object} reconcile.ComparisonRecord "Record"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /comparison/sessions/{id}/records/{recordId} [get]
func (h *Handler) HandleGetRecord(c *fiber.Ctx) error {
	recordID, err := paramRecordID(c)
	if err != nil {
		return badRequest(c, err)
	}
	record, err := h.service.Record(c.Params("id"), recordID)
	if err != nil {
		return h.fail(c, "Record lookup failed", err)
	}
	return c.JSON(record)
}

// HandleResolveField accepts or rejects one field.
// @Summary Resolve Field
// @Description Accept takes the source value, reject keeps the destination value.
// @Tags comparison
// @Produce json
// @Param id path string true "Session id"
// @Param recordId path integer true "Record comparison id"
// @Param field path string true "Field name"
// @Param decision path string true "accept or reject"
// @Success 200 {object} reconcile.Change "Applied change"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 422 {object} map[string]string "Field has no difference"
// @Router /comparison/sessions/{id}/records/{recordId}/fields/{field}/{decision} [post]
func (h *Handler) HandleResolveField(c *fiber.Ctx) error {
	recordID, err := paramRecordID(c)
	if err != nil {
		return badRequest(c, err)
	}
	change, err := h.service.Resolve(c.Params("id"), recordID, c.Params("field"), reconcile.Decision(c.Params("decision")))
	if err != nil {
		return h.fail(c, "Resolution failed", err)
	}
	return c.JSON(change)
}

// HandleResolveRecord accepts or rejects every differing field of a record.
// @Summary Resolve Record
// @Tags comparison
// @Produce json
// @Param id path string true "Session id"
// @Param recordId path integer true "Record comparison id"
// @Param decision path string true "accept or reject"
// @Success 200 {array} reconcile.Change "Applied changes"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /comparison/sessions/{id}/records/{recordId}/{decision} [post]
func (h *Handler) HandleResolveRecord(c *fiber.Ctx) error {
	recordID, err := paramRecordID(c)
	if err != nil {
		return badRequest(c, err)
	}
	changes, err := h.service.ResolveRecord(c.Params("id"), recordID, reconcile.Decision(c.Params("decision")))
	if err != nil {
		return h.fail(c, "Resolution failed", err)
	}
	if changes == nil {
		changes = []reconcile.Change{}
	}
	return c.JSON(changes)
}

// HandleSave persists the resolutions of a session.
// @Summary Save Resolutions
// @Description Writes every differing field's selection in one transaction. Any failure rolls back the whole batch.
// @Tags comparison
// @Produce json
// @Param id path string true "Session id"
// @Success 200 {object} SaveOutcome "Save result"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 409 {object} map[string]string "Save already in progress"
// @Failure 500 {object} map[string]string "Rolled back"
// @Router /comparison/sessions/{id}/save [post]
func (h *Handler) HandleSave(c *fiber.Ctx) error {
	outcome, err := h.service.Save(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, "Save failed", err)
	}
	logger.WithRayID(h.service.logger, c).Info("Saved review session",
		zap.String("session", c.Params("id")),
		zap.Int("statements", outcome.Statements),
	)
	return c.JSON(outcome)
}

// HandleListReports lists the stored reports of a run.
// @Summary List Reports
// @Tags comparison
// @Produce json
// @Param run query integer false "Pipeline execution id"
// @Success 200 {object} map[string]interface{} "Report keys"
// @Failure 503 {object} map[string]string "Report storage not configured"
// @Router /comparison/reports [get]
func (h *Handler) HandleListReports(c *fiber.Ctx) error {
	runID, err := queryRunID(c)
	if err != nil {
		return badRequest(c, err)
	}
	keys, err := h.service.Reports(c.Context(), runID)
	if err != nil {
		return h.fail(c, "Report listing failed", err)
	}
	return c.JSON(fiber.Map{"reports": keys})
}

// HandleGetReport returns one stored report.
// @Summary Get Report
// @Tags comparison
// @Produce json
// @Param reportId path string true "Report id"
// @Param run query integer false "Pipeline execution id"
// @Success 200 {object} report.Report "Report"
// @Failure 503 {object} map[string]string "Report storage not configured"
// @Router /comparison/reports/{reportId} [get]
func (h *Handler) HandleGetReport(c *fiber.Ctx) error {
	runID, err := queryRunID(c)
	if err != nil {
		return badRequest(c, err)
	}
	rep, err := h.service.Report(c.Context(), runID, c.Params("reportId"))
	if err != nil {
		return h.fail(c, "Report fetch failed", err)
	}
	return c.JSON(rep)
}

// fail logs err and writes it with the status it maps to.
func (h *Handler) fail(c *fiber.Ctx, msg string, err error) error {
	status := statusOf(err)
	l := logger.WithRayID(h.service.logger, c)
	if status >= fiber.StatusInternalServerError {
		l.Error(msg, zap.Error(err))
	} else {
		l.Debug(msg, zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, reconcile.ErrRecordNotFound),
		errors.Is(err, reconcile.ErrFieldNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrSaveInProgress):
		return fiber.StatusConflict
	case errors.Is(err, reconcile.ErrNotEligible):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, reconcile.ErrUnknownDecision):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrSessionLimit):
		return fiber.StatusTooManyRequests
	case errors.Is(err, ErrReportsUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

func queryRunID(c *fiber.Ctx) (*int64, error) {
	raw := c.Query("run")
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errors.New("run must be an integer")
	}
	return &v, nil
}

func paramRecordID(c *fiber.Ctx) (int64, error) {
	v, err := strconv.ParseInt(c.Params("recordId"), 10, 64)
	if err != nil {
		return 0, errors.New("recordId must be an integer")
	}
	return v, nil
}
