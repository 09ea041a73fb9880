package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// NewApp builds the fiber app with the centralized JSON error handler.
// The generous write timeout leaves room for slow model completions on
// the chat and analyze routes.
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               "georisk",
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})
}
