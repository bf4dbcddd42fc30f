package server

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vanderheijden86/triagemap/pkg/charts"
	"github.com/vanderheijden86/triagemap/pkg/classify"
	"github.com/vanderheijden86/triagemap/pkg/model"
	"github.com/vanderheijden86/triagemap/pkg/store"
)

func registerExportRoutes(engine *gin.Engine, s *Server) {
	export := engine.Group("/api/export")
	{
		export.GET("/map", s.handleExportMap)
		export.GET("/histogram", s.handleExportHistogram)
		export.GET("/flow", s.handleExportFlow)
		export.GET("/radar", s.handleExportRadar)
	}
}

func exportFormat(c *gin.Context) charts.Format {
	if c.DefaultQuery("format", "svg") == "png" {
		return charts.FormatPNG
	}
	return charts.FormatSVG
}

func writeChart(c *gin.Context, format charts.Format, buf *bytes.Buffer, render func() error) {
	if err := render(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	contentType := "image/svg+xml"
	if format == charts.FormatPNG {
		contentType = "image/png"
	}
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (s *Server) handleExportMap(c *gin.Context) {
	format := exportFormat(c)
	var opts charts.TriangleMapOptions
	s.store.View(func(sess *store.Session) {
		opts = charts.TriangleMapOptions{
			Stage:  sess.Stage,
			Grid:   sess.Grid,
			Labels: store.ActiveLabels(sess),
		}
	})

	var buf bytes.Buffer
	writeChart(c, format, &buf, func() error {
		return charts.RenderTriangleMap(&buf, format, opts)
	})
}

func (s *Server) handleExportHistogram(c *gin.Context) {
	format := exportFormat(c)
	var opts charts.HistogramOptions
	s.store.View(func(sess *store.Session) {
		counts := make(map[model.Category]int)
		labels := store.ActiveLabels(sess)
		for _, rec := range labels {
			counts[rec.Category]++
		}
		counts[""] = len(sess.Features) - len(labels)
		opts = charts.HistogramOptions{Stage: sess.Stage, Counts: counts}
	})

	var buf bytes.Buffer
	writeChart(c, format, &buf, func() error {
		return charts.RenderHistogram(&buf, format, opts)
	})
}

func (s *Server) handleExportFlow(c *gin.Context) {
	format := exportFormat(c)
	var opts charts.FlowOptions
	s.store.View(func(sess *store.Session) {
		opts = charts.FlowOptions{Counts: store.StageFlow(sess)}
	})

	var buf bytes.Buffer
	writeChart(c, format, &buf, func() error {
		return charts.RenderFlow(&buf, format, opts)
	})
}

// handleExportRadar plots the mean classifier margin per category of the
// active stage.
func (s *Server) handleExportRadar(c *gin.Context) {
	format := exportFormat(c)
	var stage model.Stage
	s.store.View(func(sess *store.Session) { stage = sess.Stage })

	summaries, err := classify.Summarize(s.margins, stage)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	axes := make([]charts.RadarAxis, 0, len(summaries))
	var max float64
	for _, sum := range summaries {
		if sum.Max > max {
			max = sum.Max
		}
	}
	for _, sum := range summaries {
		axes = append(axes, charts.RadarAxis{
			Label: string(sum.Category),
			Value: sum.Mean,
			Max:   max,
		})
	}

	var buf bytes.Buffer
	writeChart(c, format, &buf, func() error {
		return charts.RenderRadar(&buf, format, charts.RadarOptions{
			Title: "Mean margin by category (" + string(stage) + " stage)",
			Axes:  axes,
		})
	})
}
