package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ReferenceEntry is one food of the reference table.
type ReferenceEntry struct {
	Label          string  `json:"label"`
	DepthCM        float64 `json:"depth_cm"`
	DensityGPerCM3 float64 `json:"density_g_per_cm3"`
}

// ReferenceResponse lists the reference table and its scene geometry.
type ReferenceResponse struct {
	ImageHeightCM    float64          `json:"image_height_cm"`
	ImageWidthCM     float64          `json:"image_width_cm"`
	AreaFillFraction float64          `json:"area_fill_fraction"`
	Foods            []ReferenceEntry `json:"foods"`
}

// GetReference handles GET /api/v1/reference.
func (c *Controller) GetReference(ctx echo.Context) error {
	g := c.Table.Geometry()
	resp := ReferenceResponse{
		ImageHeightCM:    g.ImageHeightCM,
		ImageWidthCM:     g.ImageWidthCM,
		AreaFillFraction: g.AreaFillFraction,
	}

	entries := c.Table.Entries()
	for _, label := range c.Table.Labels() {
		p := entries[label]
		resp.Foods = append(resp.Foods, ReferenceEntry{
			Label:          label,
			DepthCM:        p.DepthCM,
			DensityGPerCM3: p.DensityGPerCM3,
		})
	}
	return ctx.JSON(http.StatusOK, resp)
}
