package handlers

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/incidentdesk/incident-board/internal/dto"
	"github.com/incidentdesk/incident-board/internal/store"
)

type ReportHandler struct {
	store *store.ReportStore
}

func NewReportHandler(s *store.ReportStore) *ReportHandler {
	return &ReportHandler{store: s}
}

// List returns every open report with its comments. No pagination; the open
// set is the whole response.
func (h *ReportHandler) List(c *fiber.Ctx) error {
	reports, err := h.store.ListOpenReports()
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"reports": reports,
		"total":   len(reports),
	})
}

func (h *ReportHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Title) == "" ||
		strings.TrimSpace(req.Location) == "" ||
		strings.TrimSpace(req.Description) == "" ||
		req.Password == "" {
		return badRequest(c, "title, location, description and password are required")
	}

	report, err := h.store.CreateReport(store.CreateReportInput{
		Title:       req.Title,
		Location:    req.Location,
		Description: req.Description,
		Password:    req.Password,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

func (h *ReportHandler) Close(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid report ID")
	}

	var req dto.CloseReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.store.CloseReport(id, req.Password); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "Report successfully closed!"})
}

func (h *ReportHandler) AddComment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid report ID")
	}

	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Content) == "" {
		return badRequest(c, "content is required")
	}

	comment, err := h.store.CreateComment(id, req.Content)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// fail maps a store failure kind onto an HTTP status. Store failures stay
// opaque to clients; everything else carries the store's message verbatim.
func (h *ReportHandler) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "Internal server error"

	switch store.KindOf(err) {
	case store.KindNotFound:
		status = fiber.StatusNotFound
		message = err.Error()
	case store.KindUnauthorized:
		status = fiber.StatusUnauthorized
		message = err.Error()
	case store.KindInvalidState, store.KindConflict:
		status = fiber.StatusConflict
		message = err.Error()
	default:
		slog.Error("report store failure",
			"method", c.Method(),
			"path", c.Path(),
			"trace_id", requestID(c),
			"error", err.Error(),
		)
	}

	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: message,
	})
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}
