package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/vanderheijden86/triagemap/pkg/charts"
	"github.com/vanderheijden86/triagemap/pkg/classify"
	"github.com/vanderheijden86/triagemap/pkg/model"
	"github.com/vanderheijden86/triagemap/pkg/store"
)

// ExportRequest is one chart export as collected by the wizard or built
// directly from command-line flags.
type ExportRequest struct {
	Chart  string // "map", "histogram", "flow", "radar"
	Stage  model.Stage
	Format string // "svg" or "png"
	Path   string
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm creates a form with appropriate settings based on TTY detection.
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// RunExportWizard interactively collects an ExportRequest and writes the
// chart. Returns the resolved output path.
func RunExportWizard(st *store.Store, margins map[model.Stage][]model.Margin) (string, error) {
	var req ExportRequest
	st.View(func(sess *store.Session) { req.Stage = sess.Stage })
	req.Chart = "map"
	req.Format = "svg"

	stageOpts := make([]huh.Option[model.Stage], 0, len(model.AllStages))
	for _, s := range model.AllStages {
		stageOpts = append(stageOpts, huh.NewOption(string(s), s))
	}

	form := newForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Chart").
				Options(
					huh.NewOption("Decision map", "map"),
					huh.NewOption("Label histogram", "histogram"),
					huh.NewOption("Stage flow", "flow"),
					huh.NewOption("Margin radar", "radar"),
				).
				Value(&req.Chart),
			huh.NewSelect[model.Stage]().
				Title("Stage").
				Options(stageOpts...).
				Value(&req.Stage),
			huh.NewSelect[string]().
				Title("Format").
				Options(
					huh.NewOption("SVG", "svg"),
					huh.NewOption("PNG", "png"),
				).
				Value(&req.Format),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Output path").
				Description("Extension is added when missing").
				Value(&req.Path).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("path required")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	if err := Export(st, margins, &req); err != nil {
		return "", err
	}
	return req.Path, nil
}

// Export writes the requested chart to disk. The request's Path is updated
// with the resolved extension.
func Export(st *store.Store, margins map[model.Stage][]model.Margin, req *ExportRequest) error {
	// Resolve up front so the caller sees the final path.
	if _, err := charts.ResolveFormat(&req.Path, req.Format); err != nil {
		return err
	}

	switch req.Chart {
	case "map":
		var opts charts.TriangleMapOptions
		st.View(func(sess *store.Session) {
			opts = charts.TriangleMapOptions{
				Path:   req.Path,
				Format: req.Format,
				Stage:  sess.Stage,
				Grid:   sess.Grid,
				Labels: store.ActiveLabels(sess),
			}
		})
		return charts.SaveTriangleMap(opts)

	case "histogram":
		var opts charts.HistogramOptions
		st.View(func(sess *store.Session) {
			counts := make(map[model.Category]int)
			labels := store.ActiveLabels(sess)
			for _, rec := range labels {
				counts[rec.Category]++
			}
			counts[""] = len(sess.Features) - len(labels)
			opts = charts.HistogramOptions{
				Path:   req.Path,
				Format: req.Format,
				Stage:  sess.Stage,
				Counts: counts,
			}
		})
		return charts.SaveHistogram(opts)

	case "flow":
		var opts charts.FlowOptions
		st.View(func(sess *store.Session) {
			opts = charts.FlowOptions{
				Path:   req.Path,
				Format: req.Format,
				Counts: store.StageFlow(sess),
			}
		})
		return charts.SaveFlow(opts)

	case "radar":
		summaries, err := classify.Summarize(margins[req.Stage], req.Stage)
		if err != nil {
			return err
		}
		var maxVal float64
		for _, sum := range summaries {
			if sum.Max > maxVal {
				maxVal = sum.Max
			}
		}
		axes := make([]charts.RadarAxis, 0, len(summaries))
		for _, sum := range summaries {
			axes = append(axes, charts.RadarAxis{
				Label: string(sum.Category),
				Value: sum.Mean,
				Max:   maxVal,
			})
		}
		return charts.SaveRadar(charts.RadarOptions{
			Path:   req.Path,
			Format: req.Format,
			Title:  "Mean margin by category (" + string(req.Stage) + " stage)",
			Axes:   axes,
		})

	default:
		return fmt.Errorf("unknown chart %q", req.Chart)
	}
}
