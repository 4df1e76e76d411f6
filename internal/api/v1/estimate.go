package v1

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/platescale/platescale/internal/errors"
	"github.com/platescale/platescale/internal/pipeline"
)

// Form fields of POST /api/v1/estimate.
const (
	FormFieldFile          = "file"
	FormFieldPlateDiameter = "plate_diameter"
)

// EstimateResponse is the body of a successful estimate.
type EstimateResponse struct {
	Msg string `json:"msg"`
	*pipeline.Estimate
}

// PostEstimate handles POST /api/v1/estimate. The image is read into memory
// and never stored.
func (c *Controller) PostEstimate(ctx echo.Context) error {
	fh, err := ctx.FormFile(FormFieldFile)
	if err != nil {
		return c.HandleError(ctx, err, "File not received", http.StatusBadRequest)
	}
	if strings.TrimSpace(fh.Filename) == "" {
		return c.HandleError(ctx, nil, "Filename for uploaded image not present", http.StatusBadRequest)
	}

	f, err := fh.Open()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to open uploaded file", http.StatusBadRequest)
	}
	defer f.Close()

	image, err := io.ReadAll(f)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read uploaded file", http.StatusBadRequest)
	}
	if len(image) == 0 {
		return c.HandleError(ctx, nil, "Uploaded file is empty", http.StatusBadRequest)
	}
	if ct := http.DetectContentType(image); !strings.HasPrefix(ct, "image/") {
		return c.HandleError(ctx, errors.Newf("unsupported content type %s", ct).
			Component("api").
			Category(errors.CategoryValidation).
			Build(), "Uploaded file is not an image", http.StatusUnsupportedMediaType)
	}

	est, err := c.Estimator.Estimate(ctx.Request().Context(), image, ctx.FormValue(FormFieldPlateDiameter))
	if err != nil {
		return c.HandleError(ctx, err, "Unable to return calorie information", StatusForError(err))
	}

	return ctx.JSON(http.StatusOK, EstimateResponse{Msg: "success", Estimate: est})
}
