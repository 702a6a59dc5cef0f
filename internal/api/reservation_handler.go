package api

import (
	"context"
	"errors"
	"log/slog"

	"session-service/internal/model"
	"session-service/internal/repository"
	"session-service/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ReservationHandler struct {
	reservationService service.ReservationService
}

func NewReservationHandler(reservationService service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: reservationService}
}

func (h *ReservationHandler) CreateReservation(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session ID format"})
	}

	userID, err := GetUserIDFromClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user claims"})
	}

	reservation, err := h.reservationService.CreateReservation(c.Context(), sessionID, userID)

	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, service.ErrSessionUnavailable):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, service.ErrAlreadyReserved):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, service.ErrSessionFull):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, context.DeadlineExceeded):
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "Request timed out"})
		default:
			slog.ErrorContext(c.UserContext(), "Error creating reservation", slog.String("error", err.Error()))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not create reservation"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(reservation)
}

func (h *ReservationHandler) GetReservation(c *fiber.Ctx) error {
	reservationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reservation ID format"})
	}

	userID, err := GetUserIDFromClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user claims"})
	}
	role := GetRoleFromClaims(c)

	reservation, err := h.reservationService.GetReservation(c.Context(), reservationID, userID, role)

	if err != nil {
		switch {
		case errors.Is(err, service.ErrReservationNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, service.ErrNotReservationOwner):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
		default:
			slog.ErrorContext(c.UserContext(), "Error getting reservation", slog.String("error", err.Error()))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch reservation"})
		}
	}

	return c.Status(fiber.StatusOK).JSON(reservation)
}

func (h *ReservationHandler) CancelReservation(c *fiber.Ctx) error {
	reservationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reservation ID format"})
	}

	userID, err := GetUserIDFromClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user claims"})
	}
	role := GetRoleFromClaims(c)

	err = h.reservationService.CancelReservation(c.Context(), reservationID, userID, role)

	if err != nil {
		switch {
		case errors.Is(err, service.ErrReservationNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, service.ErrNotReservationOwner):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, service.ErrReservationNotActive):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, context.DeadlineExceeded):
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "Request timed out"})
		default:
			slog.ErrorContext(c.UserContext(), "Error cancelling reservation", slog.String("error", err.Error()))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not cancel reservation"})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Reservation cancelled"})
}

func (h *ReservationHandler) ListMyReservations(c *fiber.Ctx) error {
	userID, err := GetUserIDFromClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user claims"})
	}

	filter, err := parseReservationFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	result, err := h.reservationService.ListUserReservations(c.Context(), userID, filter)
	if err != nil {
		slog.ErrorContext(c.UserContext(), "Error listing user reservations", slog.String("error", err.Error()))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch reservations"})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *ReservationHandler) ListSessionReservations(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session ID format"})
	}

	userID, err := GetUserIDFromClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user claims"})
	}
	role := GetRoleFromClaims(c)

	filter, err := parseReservationFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	result, err := h.reservationService.ListSessionReservations(c.Context(), sessionID, userID, role, filter)

	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, service.ErrNotSessionOwner):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
		default:
			slog.ErrorContext(c.UserContext(), "Error listing session reservations", slog.String("error", err.Error()))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch reservations"})
		}
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// CancelAllUserReservations releases every upcoming reservation a user
// holds. Exposed on the internal surface for service-to-service calls,
// as a synchronous fallback to the billing event flow.
func (h *ReservationHandler) CancelAllUserReservations(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID format"})
	}

	released, err := h.reservationService.CancelAllForUser(c.Context(), userID)
	if err != nil {
		slog.ErrorContext(c.UserContext(), "Error cancelling user reservations", slog.String("error", err.Error()))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not cancel reservations"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"released": released})
}

func parseReservationFilter(c *fiber.Ctx) (repository.ReservationFilter, error) {
	filter := repository.ReservationFilter{
		IncludePast: c.QueryBool("include_past", false),
		Page:        c.QueryInt("page", 1),
		Limit:       c.QueryInt("limit", 10),
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := model.ReservationStatus(statusStr)
		if status != model.ReservationStatusConfirmed && status != model.ReservationStatusCancelled {
			return filter, errors.New("invalid status, expected confirmed or cancelled")
		}
		filter.Status = &status
	}

	return filter, nil
}
