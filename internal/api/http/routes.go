package httpapi

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weight-tracker/internal/weight"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weight.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/weights", func(c *fiber.Ctx) error {
		view, err := service.View()
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(view)
	})

	v1.Post("/weights", func(c *fiber.Ctx) error {
		var req upsertRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "please enter both date and weight")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, describeValidation(err))
		}

		day, err := weight.ParseDay(req.Date)
		if err != nil {
			return toHTTPError(err)
		}

		view, err := service.Upsert(c.UserContext(), day, req.Weight)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(view)
	})

	v1.Get("/weights/window/latest", func(c *fiber.Ctx) error {
		window, ok, err := service.LatestWindow()
		if err != nil {
			return toHTTPError(err)
		}
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no weight data available")
		}
		return c.JSON(window)
	})

	v1.Get("/weights/export", func(c *fiber.Ctx) error {
		export, err := service.Export()
		if err != nil {
			return toHTTPError(err)
		}

		var buf bytes.Buffer
		if err := weight.EncodeExport(&buf, export); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to export data")
		}

		c.Attachment(weight.ExportFilename)
		c.Type("json")
		return c.Send(buf.Bytes())
	})

	v1.Get("/weights/export.csv", func(c *fiber.Ctx) error {
		samples, err := service.Samples()
		if err != nil {
			return toHTTPError(err)
		}

		var buf bytes.Buffer
		if err := weight.WriteCSV(&buf, samples); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to export data")
		}

		c.Attachment("weights.csv")
		c.Type("csv")
		return c.Send(buf.Bytes())
	})

	v1.Post("/weights/import", func(c *fiber.Ctx) error {
		export, err := weight.DecodeExport(bytes.NewReader(c.Body()))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		view, err := service.Import(export)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(view)
	})

	v1.Post("/weights/reload", func(c *fiber.Ctx) error {
		if err := service.Reload(c.UserContext()); err != nil {
			return toHTTPError(err)
		}
		view, err := service.View()
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(view)
	})
}

// upsertRequest is the body of POST /weights.
type upsertRequest struct {
	Date   string  `json:"date" validate:"required"`
	Weight float64 `json:"weight" validate:"required,gt=0,lte=500"`
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	switch verrs[0].Field() {
	case "Weight":
		return "please enter a valid weight (between 0 and 500 kg)"
	case "Date":
		return "please enter both date and weight"
	default:
		return fmt.Sprintf("invalid %s", verrs[0].Field())
	}
}

// toHTTPError maps domain errors onto HTTP status codes.
func toHTTPError(err error) error {
	var (
		ve *weight.ValidationError
		le *weight.LoadError
	)
	switch {
	case errors.As(err, &ve):
		return fiber.NewError(fiber.StatusBadRequest, ve.Error())
	case errors.As(err, &le):
		return fiber.NewError(fiber.StatusServiceUnavailable, le.Error())
	case errors.Is(err, weight.ErrNotLoaded):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, weight.ErrNoOverrides):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to process weight data")
	}
}
