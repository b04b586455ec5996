package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/choropleth"
	"github.com/sells-group/choropleth/internal/config"
	"github.com/sells-group/choropleth/internal/geostyle"
)

// styleOptions holds the style command inputs.
type styleOptions struct {
	Input    string
	Hideout  string
	Output   string
	Property string
	Workers  int
	Detail   float64

	DeltaCurrent string
	DeltaCompare string
	DeltaMode    string
}

var styleOpts styleOptions

var styleCmd = &cobra.Command{
	Use:   "style",
	Short: "Attach resolved styles to every feature of a GeoJSON file or shapefile",
	Example: `  choropleth style --input regions.geojson --hideout population.yaml --output styled.geojson
  choropleth style --input regions.shp --hideout change.yaml --delta-current pop2020 --delta-compare pop2010 --delta-mode percent --detail 0.25`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := mergeStyleOptions(cfg, styleOpts)
		if err != nil {
			return err
		}

		_, err = runStyle(cmd.Context(), opts, cmd.OutOrStdout())
		return err
	},
}

// mergeStyleOptions fills unset flags from config and validates the values
// the run will use.
func mergeStyleOptions(c *config.Config, opts styleOptions) (styleOptions, error) {
	merged := *c
	if opts.Property != "" {
		merged.Style.Property = opts.Property
	}
	if opts.Workers != 0 {
		merged.Style.Workers = opts.Workers
	}
	if err := merged.Validate("style"); err != nil {
		return opts, err
	}
	opts.Property = merged.Style.Property
	opts.Workers = merged.Style.Workers

	if opts.Detail < 0 || opts.Detail > 1 {
		return opts, eris.Errorf("style: detail must be between 0 and 1, got %g", opts.Detail)
	}
	if d := opts.delta(); d != nil {
		if err := d.Validate(); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// delta returns the configured delta step, or nil when none was requested.
func (o styleOptions) delta() *geostyle.Delta {
	if o.DeltaCurrent == "" && o.DeltaCompare == "" {
		return nil
	}
	return &geostyle.Delta{
		Current: o.DeltaCurrent,
		Compare: o.DeltaCompare,
		Mode:    geostyle.DeltaMode(o.DeltaMode),
	}
}

func runStyle(ctx context.Context, opts styleOptions, stdout io.Writer) (geostyle.Summary, error) {
	log := zap.L().With(zap.String("input", opts.Input), zap.String("hideout", opts.Hideout))

	h, err := choropleth.LoadHideout(opts.Hideout)
	if err != nil {
		return geostyle.Summary{}, err
	}
	if err := h.Validate(); err != nil {
		log.Warn("hideout has problems, styling anyway", zap.Error(err))
	}

	fc, err := geostyle.LoadSource(opts.Input)
	if err != nil {
		return geostyle.Summary{}, err
	}

	if removed := geostyle.Simplify(fc, opts.Detail); removed > 0 {
		log.Info("simplified geometry", zap.Float64("detail", opts.Detail), zap.Int("vertices_removed", removed))
	}
	if d := opts.delta(); d != nil {
		missing := d.Apply(fc)
		log.Info("derived delta",
			zap.String("current", d.Current),
			zap.String("compare", d.Compare),
			zap.Int("missing", missing),
		)
	}

	styler := geostyle.NewStyler(opts.Property, opts.Workers)
	sum, err := styler.Apply(ctx, fc, h)
	if err != nil {
		return geostyle.Summary{}, err
	}

	out := stdout
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return geostyle.Summary{}, eris.Wrapf(err, "style: create %s", opts.Output)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if err := geostyle.EncodeCollection(out, fc); err != nil {
		return geostyle.Summary{}, err
	}

	log.Info("styled features",
		zap.String("color_prop", h.ColorProp),
		zap.String("property", styler.Property()),
		zap.Int("features", sum.Features),
		zap.Int("no_data", sum.NoData),
		zap.String("output", opts.Output),
	)
	return sum, nil
}

func init() {
	styleCmd.Flags().StringVar(&styleOpts.Input, "input", "", "GeoJSON file or shapefile (.shp)")
	styleCmd.Flags().StringVar(&styleOpts.Hideout, "hideout", "", "hideout file (YAML or JSON)")
	styleCmd.Flags().StringVar(&styleOpts.Output, "output", "", "output GeoJSON file (default stdout)")
	styleCmd.Flags().StringVar(&styleOpts.Property, "property", "", "feature property receiving the style (default from config)")
	styleCmd.Flags().IntVar(&styleOpts.Workers, "workers", 0, "concurrent styling workers (default from config)")
	styleCmd.Flags().Float64Var(&styleOpts.Detail, "detail", 1, "polygon detail level in (0, 1]; lower keeps fewer vertices")
	styleCmd.Flags().StringVar(&styleOpts.DeltaCurrent, "delta-current", "", "property holding the current value for a derived delta")
	styleCmd.Flags().StringVar(&styleOpts.DeltaCompare, "delta-compare", "", "property holding the comparison value for a derived delta")
	styleCmd.Flags().StringVar(&styleOpts.DeltaMode, "delta-mode", "absolute", "delta mode: absolute or percent")
	_ = styleCmd.MarkFlagRequired("input")
	_ = styleCmd.MarkFlagRequired("hideout")
	rootCmd.AddCommand(styleCmd)
}
