package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/http/dto"
	"github.com/pushit/marketplace/internal/middleware"
	"github.com/pushit/marketplace/internal/models"
	"github.com/pushit/marketplace/internal/services"
	"go.uber.org/zap"
)

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

var errorStatus = []struct {
	err    error
	status int
}{
	{models.ErrInvalidAmount, fiber.StatusBadRequest},
	{models.ErrInvalidCredentials, fiber.StatusUnauthorized},
	{models.ErrInvalidSignature, fiber.StatusUnauthorized},
	{models.ErrForbidden, fiber.StatusForbidden},
	{models.ErrAccountPaused, fiber.StatusForbidden},
	{models.ErrNotFound, fiber.StatusNotFound},
	{models.ErrEmailTaken, fiber.StatusConflict},
	{models.ErrDuplicateEntry, fiber.StatusConflict},
	{models.ErrInvalidTransition, fiber.StatusConflict},
	{models.ErrAlreadyApplied, fiber.StatusConflict},
	{models.ErrAwaitingReview, fiber.StatusConflict},
	{models.ErrCampaignFull, fiber.StatusConflict},
	{models.ErrPaymentNotPending, fiber.StatusConflict},
	{models.ErrInsufficientFunds, fiber.StatusUnprocessableEntity},
	{models.ErrIneligible, fiber.StatusUnprocessableEntity},
	{models.ErrCurrencyUnsupported, fiber.StatusUnprocessableEntity},
	{models.ErrGatewayUnavailable, fiber.StatusBadGateway},
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return fiber.StatusBadRequest
	}
	for _, es := range errorStatus {
		if errors.Is(err, es.err) {
			return es.status
		}
	}
	return fiber.StatusInternalServerError
}

// respondError writes err as a dto.ErrorResponse. Unexpected errors are
// logged and hidden from the client.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	status := statusFor(err)
	resp := dto.ErrorResponse{Error: err.Error(), RequestID: middleware.GetRequestID(c)}

	var ie *services.IneligibleError
	if errors.As(err, &ie) {
		resp.Error = models.ErrIneligible.Error()
		resp.Reasons = ie.Reasons
	}
	if status == fiber.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("request_id", resp.RequestID),
			zap.Error(err),
		)
		resp.Error = "internal error"
	}
	return c.Status(status).JSON(resp)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg, RequestID: middleware.GetRequestID(c)})
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: data})
}

func created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: data})
}

func actorFrom(c *fiber.Ctx) services.Actor {
	return services.Actor{UserID: middleware.GetUserID(c), Role: middleware.GetRole(c)}
}

// bind parses the JSON body into req and runs its validate tags.
func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return models.NewValidationError("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return models.NewValidationError(strings.Join(msgs, "; "))
		}
		return models.NewValidationError(err.Error())
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min", "max", "len":
		return fmt.Sprintf("%s fails %s=%s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s is not a valid %s", field, fe.Tag())
	}
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, models.NewValidationError("invalid " + name)
	}
	return id, nil
}

func pagination(c *fiber.Ctx) (limit, offset int) {
	limit = defaultLimit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func queryPtr(c *fiber.Ctx, key string) *string {
	if v := c.Query(key); v != "" {
		return &v
	}
	return nil
}
