package httpapi

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"georisk/internal/analysis"
	"georisk/internal/chat"
	"georisk/internal/domain"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, analysisSvc *analysis.Service, chatSvc *chat.Service) {
	api := app.Group("/api")

	api.Post("/analyze", func(c *fiber.Ctx) error {
		var req analyzeRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		lat, lon, err := domain.ParseCoordinates(req.Location)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		record, err := analysisSvc.Analyze(c.Context(), lat, lon)
		if err != nil {
			return translateError(err, "analysis failed")
		}
		return c.JSON(record)
	})

	api.Get("/points", func(c *fiber.Ctx) error {
		points, err := analysisSvc.Points(c.Context())
		if err != nil {
			return translateError(err, "failed to list points")
		}
		return c.JSON(points)
	})

	api.Post("/chat", func(c *fiber.Ctx) error {
		var req chatRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		reply, sessionID, err := chatSvc.Chat(c.Context(), req.SessionID, req.Message)
		if err != nil {
			return translateError(err, "chat failed")
		}
		return c.JSON(fiber.Map{
			"reply":      reply,
			"session_id": sessionID,
		})
	})

	api.Post("/explain", func(c *fiber.Ctx) error {
		var req explainRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		explanation, err := chatSvc.Explain(c.Context(), req.ID)
		if err != nil {
			return translateError(err, "point not found")
		}
		return c.JSON(fiber.Map{"explanation": explanation})
	})

	api.Get("/chat/sessions/:id", func(c *fiber.Ctx) error {
		session, err := chatSvc.Transcript(c.Context(), c.Params("id"))
		if err != nil {
			return translateError(err, "session not found")
		}
		return c.JSON(session)
	})

	api.Delete("/chat/sessions/:id", func(c *fiber.Ctx) error {
		if err := chatSvc.Forget(c.Context(), c.Params("id")); err != nil {
			return translateError(err, "session not found")
		}
		return c.JSON(fiber.Map{"deleted": true})
	})
}

// analyzeRequest carries a coordinate pair as "lat,lon", matching the map
// frontend's click payload.
type analyzeRequest struct {
	Location string `json:"location" validate:"required"`
}

type chatRequest struct {
	Message   string `json:"message" validate:"required"`
	SessionID string `json:"session_id"`
}

type explainRequest struct {
	ID string `json:"id" validate:"required"`
}

// translateError maps domain sentinels onto HTTP statuses. The notFound
// text keeps 404 messages route-specific; everything else gets a stable
// phrasing so upstream details never leak to clients. Errors outside the
// taxonomy collapse to an opaque 500 for the same reason: raw transport
// errors can carry request URLs and credentials.
func translateError(err error, notFound string) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidCoordinates):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, notFound)
	case errors.Is(err, domain.ErrMalformedResponse):
		return fiber.NewError(fiber.StatusBadGateway, "analysis failed")
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return fiber.NewError(fiber.StatusBadGateway, "upstream service unavailable")
	case errors.Is(err, domain.ErrStorageUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, "storage unavailable")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}
}
