package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/choropleth/internal/choropleth"
)

var (
	resolveHideout    string
	resolveProperties string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the style of a single feature",
	Example: `  choropleth resolve --hideout population.yaml --properties '{"population": 1250}'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runResolve(cmd.OutOrStdout(), resolveHideout, resolveProperties)
	},
}

func runResolve(out io.Writer, hideoutPath, propsJSON string) error {
	h, err := choropleth.LoadHideout(hideoutPath)
	if err != nil {
		return err
	}

	var props map[string]any
	if err := json.Unmarshal([]byte(propsJSON), &props); err != nil {
		return eris.Wrap(err, "resolve: parse properties")
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(choropleth.Resolve(props, h)); err != nil {
		return eris.Wrap(err, "resolve: write style")
	}
	return nil
}

func init() {
	resolveCmd.Flags().StringVar(&resolveHideout, "hideout", "", "hideout file (YAML or JSON)")
	resolveCmd.Flags().StringVar(&resolveProperties, "properties", "{}", "feature properties as a JSON object")
	_ = resolveCmd.MarkFlagRequired("hideout")
	rootCmd.AddCommand(resolveCmd)
}
