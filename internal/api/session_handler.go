package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"session-service/internal/model"
	"session-service/internal/repository"
	"session-service/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type SessionHandler struct {
	sessionService service.SessionService
	validate       *validator.Validate
}

func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		validate:       validator.New(),
	}
}

type CreateSessionRequest struct {
	Title           string    `json:"title" validate:"required,min=3,max=100"`
	Description     string    `json:"description,omitempty" validate:"max=500"`
	Capacity        int       `json:"capacity" validate:"required,min=1"`
	StartAt         time.Time `json:"start_at" validate:"required"`
	EndAt           time.Time `json:"end_at" validate:"required"`
	Location        string    `json:"location" validate:"required,max=255"`
	SessionType     string    `json:"session_type" validate:"required,max=100"`
	DifficultyLevel string    `json:"difficulty_level" validate:"required,max=50"`
}

func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	role := GetRoleFromClaims(c)
	if role != "coach" && role != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "Forbidden",
			"message": "Only coaches can create sessions",
		})
	}

	userID, err := GetUserIDFromClaims(c)

	if err != nil {
		slog.ErrorContext(c.UserContext(), "Error getting user ID from claims", slog.String("error", err.Error()))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user claims"})
	}

	var request CreateSessionRequest

	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	if err := h.validate.Struct(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input", "details": err.Error()})
	}

	session := &model.Session{
		Title:           request.Title,
		Description:     request.Description,
		CoachID:         userID,
		Capacity:        request.Capacity,
		StartAt:         request.StartAt,
		EndAt:           request.EndAt,
		Location:        request.Location,
		SessionType:     request.SessionType,
		DifficultyLevel: request.DifficultyLevel,
	}

	createdSession, err := h.sessionService.CreateSession(c.Context(), session)

	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCapacity), errors.Is(err, service.ErrInvalidSessionTime):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, context.DeadlineExceeded):
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "Request timed out"})
		default:
			slog.ErrorContext(c.UserContext(), "Error creating session", slog.String("error", err.Error()))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not create session"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(createdSession)
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session ID format"})
	}

	session, err := h.sessionService.GetSession(c.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
		case errors.Is(err, context.DeadlineExceeded):
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "Request timed out"})
		default:
			slog.ErrorContext(c.UserContext(), "Error getting session", slog.String("error", err.Error()))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch session"})
		}
	}

	return c.Status(fiber.StatusOK).JSON(session)
}

func (h *SessionHandler) UpdateSession(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session ID format"})
	}

	userID, err := GetUserIDFromClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user claims"})
	}
	role := GetRoleFromClaims(c)

	var update model.SessionUpdate
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	updatedSession, err := h.sessionService.UpdateSession(c.Context(), sessionID, userID, role, &update)

	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
		case errors.Is(err, service.ErrNotSessionOwner):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, service.ErrCapacityBelowReserved):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, service.ErrEmptyUpdate), errors.Is(err, service.ErrInvalidCapacity), errors.Is(err, service.ErrInvalidSessionTime):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, context.DeadlineExceeded):
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "Request timed out"})
		default:
			slog.ErrorContext(c.UserContext(), "Error updating session", slog.String("error", err.Error()))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not update session"})
		}
	}

	return c.Status(fiber.StatusOK).JSON(updatedSession)
}

func (h *SessionHandler) DeleteSession(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session ID format"})
	}

	userID, err := GetUserIDFromClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user claims"})
	}
	role := GetRoleFromClaims(c)

	err = h.sessionService.DeleteSession(c.Context(), sessionID, userID, role)

	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
		case errors.Is(err, service.ErrNotSessionOwner):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, context.DeadlineExceeded):
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "Request timed out"})
		default:
			slog.ErrorContext(c.UserContext(), "Error deleting session", slog.String("error", err.Error()))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not delete session"})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Session deleted"})
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	filter := repository.SessionFilter{
		SessionType: c.Query("session_type"),
		IncludePast: c.QueryBool("include_past", false),
		Page:        c.QueryInt("page", 1),
		Limit:       c.QueryInt("limit", 10),
	}

	if dateStr := c.Query("date"); dateStr != "" {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid date format, expected YYYY-MM-DD"})
		}
		filter.Date = &date
	}

	if coachIDStr := c.Query("coach_id"); coachIDStr != "" {
		coachID, err := uuid.Parse(coachIDStr)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid coach ID format"})
		}
		filter.CoachID = &coachID
	}

	result, err := h.sessionService.ListSessions(c.Context(), filter)
	if err != nil {
		slog.ErrorContext(c.UserContext(), "Error listing sessions", slog.String("error", err.Error()))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch sessions"})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}
