package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/pprof"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/triagemap/internal/datasource"
	"github.com/vanderheijden86/triagemap/internal/server"
	"github.com/vanderheijden86/triagemap/pkg/config"
	"github.com/vanderheijden86/triagemap/pkg/debug"
	"github.com/vanderheijden86/triagemap/pkg/model"
	"github.com/vanderheijden86/triagemap/pkg/store"
	"github.com/vanderheijden86/triagemap/pkg/ui"
	"github.com/vanderheijden86/triagemap/pkg/version"
	"github.com/vanderheijden86/triagemap/pkg/watcher"
)

func main() {
	cpuProfile := flag.String("cpu-profile", "", "Write CPU profile to file")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	dataset := flag.String("dataset", "", "Named dataset from the config file")
	serve := flag.Bool("serve", false, "Run the HTTP API instead of the TUI")
	addr := flag.String("addr", "", "HTTP listen address (with --serve)")
	resume := flag.Bool("resume", false, "Resume the most recently saved session")
	noWatch := flag.Bool("no-watch", false, "Disable live reload of the projections file")
	robotGrid := flag.Bool("robot-grid", false, "Print the grid as JSON and exit")
	robotProgress := flag.Bool("robot-progress", false, "Print per-stage progress as JSON and exit")
	exportChart := flag.String("export", "", "Export a chart and exit: map, histogram, flow, or radar")
	exportOut := flag.String("export-out", "", "Output path for --export")
	exportFormat := flag.String("format", "", "Chart format: svg or png (default from extension)")
	exportWizard := flag.Bool("export-wizard", false, "Interactively configure a chart export and exit")
	flag.Parse()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	if *help {
		fmt.Println("Usage: tm [options] [data-root]")
		fmt.Println("\nA triage workbench for feature explanation labeling.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("tm %s\n", version.Version)
		os.Exit(0)
	}

	cfg, cfgErr := config.Load()
	if cfgErr != nil {
		// Non-fatal: continue with defaults.
		cfg = config.DefaultConfig()
	}

	root := flag.Arg(0)
	if *dataset != "" {
		ds := cfg.FindDataset(*dataset)
		if ds == nil {
			fmt.Fprintf(os.Stderr, "Unknown dataset %q; known: %s\n", *dataset, datasetNames(cfg))
			os.Exit(1)
		}
		root = ds.ResolvedPath()
	}
	if root == "" {
		root = "."
	}

	ctx := context.Background()
	data, err := datasource.Load(ctx, root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading data: %v\n", err)
		fmt.Fprintln(os.Stderr, "Expected a directory holding features.jsonl (plus optional projections.jsonl and margins.jsonl).")
		os.Exit(1)
	}
	debug.Log("main: loaded %s", data.Bundle)

	st := store.New(data.Features)
	if len(data.Points) > 0 {
		if _, err := st.Apply(store.SetPoints{Points: data.Points}); err != nil {
			fmt.Fprintf(os.Stderr, "Error building grid: %v\n", err)
			os.Exit(1)
		}
	}
	if cfg.Grid.Threshold > 0 {
		if _, err := st.Apply(store.SetThreshold{Threshold: cfg.Grid.Threshold}); err != nil {
			fmt.Fprintf(os.Stderr, "Error applying configured threshold: %v\n", err)
			os.Exit(1)
		}
	}
	if cfg.Stage != model.StageSplit {
		if _, err := st.Apply(store.SetStage{Stage: cfg.Stage}); err != nil {
			fmt.Fprintf(os.Stderr, "Error entering stage %s: %v\n", cfg.Stage, err)
			os.Exit(1)
		}
	}

	sessions, err := datasource.OpenSessionStore(data.Bundle.SessionDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: session persistence unavailable: %v\n", err)
		sessions = nil
	} else {
		defer sessions.Close()
	}

	if *resume {
		if err := resumeLatest(st, sessions); err != nil {
			fmt.Fprintf(os.Stderr, "Error resuming session: %v\n", err)
			os.Exit(1)
		}
	}

	marginsByStage := make(map[model.Stage][]model.Margin, len(model.AllStages))
	for _, stage := range model.AllStages {
		if ms := data.MarginsForStage(stage); len(ms) > 0 {
			marginsByStage[stage] = ms
		}
	}

	switch {
	case *robotGrid:
		exitIf(printRobotGrid(os.Stdout, st))
	case *robotProgress:
		exitIf(printRobotProgress(os.Stdout, st))
	case *exportChart != "":
		req := ui.ExportRequest{Chart: *exportChart, Format: *exportFormat, Path: *exportOut}
		st.View(func(sess *store.Session) { req.Stage = sess.Stage })
		if req.Path == "" {
			req.Path = "triage-" + req.Chart
		}
		exitIf(ui.Export(st, marginsByStage, &req))
		fmt.Println(req.Path)
	case *exportWizard:
		path, err := ui.RunExportWizard(st, marginsByStage)
		exitIf(err)
		fmt.Printf("Wrote %s\n", path)
	case *serve:
		listen := *addr
		if listen == "" {
			listen = cfg.Server.Addr
		}
		srv := server.New(st, server.Options{
			Addr:     listen,
			Sessions: sessions,
			Margins:  data.Margins,
		})
		fmt.Printf("tm %s serving on %s (%d features)\n", version.Version, listen, len(data.Features))
		exitIf(srv.Run())
	default:
		runTUI(st, data, sessions, marginsByStage, *noWatch)
	}
}

func exitIf(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func datasetNames(cfg config.Config) string {
	if len(cfg.Datasets) == 0 {
		return "(none configured)"
	}
	names := ""
	for i, ds := range cfg.Datasets {
		if i > 0 {
			names += ", "
		}
		names += ds.Name
	}
	return names
}

// resumeLatest restores the most recently saved session's ledgers and stage.
func resumeLatest(st *store.Store, sessions *datasource.SessionStore) error {
	if sessions == nil {
		return errors.New("session persistence unavailable")
	}
	saved, err := sessions.LoadLatest()
	if err != nil {
		return err
	}
	if saved == nil {
		return errors.New("no saved sessions")
	}
	for _, h := range saved.Ledgers {
		if err := st.AttachHistory(h); err != nil {
			return err
		}
	}
	if _, err := st.Apply(store.SetStage{Stage: saved.Stage}); err != nil {
		return err
	}
	debug.Log("main: resumed session %s at stage %s", saved.ID, saved.Stage)
	return nil
}

func printRobotGrid(w io.Writer, st *store.Store) error {
	var out struct {
		Threshold int                 `json:"threshold"`
		Leaves    []store.CellSummary `json:"leaves"`
		Warnings  int                 `json:"excluded_points"`
	}
	st.View(func(sess *store.Session) {
		if sess.Grid != nil {
			out.Threshold = sess.Grid.Threshold
			out.Warnings = len(sess.Grid.Warnings)
		}
		out.Leaves = store.CellSummaries(sess)
	})
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printRobotProgress(w io.Writer, st *store.Store) error {
	var progress []store.StageProgress
	st.View(func(sess *store.Session) {
		progress = store.Progress(sess)
	})
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(progress)
}

func runTUI(st *store.Store, data *datasource.Data, sessions *datasource.SessionStore, margins map[model.Stage][]model.Margin, noWatch bool) {
	var w *watcher.Watcher
	if !noWatch && data.Bundle.ProjectionsPath != "" {
		var err error
		w, err = watcher.New(data.Bundle.ProjectionsPath, watcher.WithOnChange(func() {
			reloaded, err := datasource.LoadBundle(context.Background(), data.Bundle)
			if err != nil {
				debug.Log("main: reload failed: %v", err)
				return
			}
			if _, err := st.Apply(store.SetPoints{Points: reloaded.Points}); err != nil {
				debug.Log("main: reload apply failed: %v", err)
			}
		}))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: live reload unavailable: %v\n", err)
		} else if err := w.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: live reload unavailable: %v\n", err)
		} else {
			defer w.Stop()
		}
	}

	var onSave func() error
	if sessions != nil {
		onSave = func() error {
			var saveErr error
			st.View(func(sess *store.Session) {
				saveErr = sessions.Save(datasource.SavedSession{
					ID:      sess.ID.String(),
					Stage:   sess.Stage,
					Ledgers: sess.Histories,
				})
			})
			return saveErr
		}
	}

	if err := ui.Run(st, ui.Options{Margins: margins, OnSave: onSave}); err != nil {
		fmt.Printf("Error running triagemap: %v\n", err)
		os.Exit(1)
	}
}
