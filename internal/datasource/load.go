package datasource

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/triagemap/pkg/debug"
	"github.com/vanderheijden86/triagemap/pkg/loader"
	"github.com/vanderheijden86/triagemap/pkg/metrics"
	"github.com/vanderheijden86/triagemap/pkg/model"
)

// Data is one fully loaded bundle.
type Data struct {
	Bundle   Bundle
	Features []model.Feature
	Points   []model.Point
	Margins  []model.Margin
}

// Load discovers bundles under root, selects the best, and loads it.
func Load(ctx context.Context, root string) (*Data, error) {
	bundles, err := DiscoverBundles(DiscoveryOptions{Root: root, Logger: func(msg string) {
		debug.Log("datasource: %s", msg)
	}})
	if err != nil {
		return nil, err
	}
	best, err := SelectBundle(bundles)
	if err != nil {
		return nil, err
	}
	return LoadBundle(ctx, best)
}

// LoadBundle reads the bundle's files concurrently. Features are required;
// projections and margins are optional and absent slices stay nil.
func LoadBundle(ctx context.Context, b Bundle) (*Data, error) {
	defer metrics.Timer(metrics.SessionLoad)()

	data := &Data{Bundle: b}
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		feats, err := loader.LoadFeatures(b.FeaturesPath)
		if err != nil {
			return fmt.Errorf("loading features: %w", err)
		}
		if len(feats) == 0 {
			return fmt.Errorf("bundle %s has no valid features", b.Dir)
		}
		data.Features = feats
		return nil
	})

	if b.ProjectionsPath != "" {
		g.Go(func() error {
			pts, err := loader.LoadPoints(b.ProjectionsPath)
			if err != nil {
				return fmt.Errorf("loading projections: %w", err)
			}
			data.Points = pts
			return nil
		})
	}

	if b.MarginsPath != "" {
		g.Go(func() error {
			margins, err := loader.LoadMargins(b.MarginsPath)
			if err != nil {
				return fmt.Errorf("loading margins: %w", err)
			}
			data.Margins = margins
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	data.dropUnknownPoints()
	debug.Log("datasource: loaded %d features, %d points, %d margins from %s",
		len(data.Features), len(data.Points), len(data.Margins), b.Dir)
	return data, nil
}

// dropUnknownPoints removes points and margins referencing feature IDs the
// bundle does not define. Projection exports can lag the feature list.
func (d *Data) dropUnknownPoints() {
	known := make(map[int]bool, len(d.Features))
	for _, f := range d.Features {
		known[f.ID] = true
	}

	pts := d.Points[:0]
	for _, p := range d.Points {
		if known[p.ID] {
			pts = append(pts, p)
		}
	}
	d.Points = pts

	margins := d.Margins[:0]
	for _, m := range d.Margins {
		if known[m.FeatureID] {
			margins = append(margins, m)
		}
	}
	d.Margins = margins
}

// MarginsForStage filters the bundle's margins to one stage.
func (d *Data) MarginsForStage(stage model.Stage) []model.Margin {
	var out []model.Margin
	for _, m := range d.Margins {
		if m.Stage == stage {
			out = append(out, m)
		}
	}
	return out
}
