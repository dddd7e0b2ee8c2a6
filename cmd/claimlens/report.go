package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openmedicaid/claimlens/internal/models"
	"github.com/openmedicaid/claimlens/internal/outlier"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Compute the full report once and print it as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := computeReport(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), r)
		},
	}
}

func (c *cli) insightsCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Print the narrative insights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := models.InsightCategory(strings.ToLower(category))
			if cat != "" && !cat.Valid() {
				return fmt.Errorf("unknown insight category %q", category)
			}
			r, err := computeReport(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			list := r.Insights
			if cat != "" {
				list = r.TopInsights(cat, len(r.Insights))
			}
			if list == nil {
				list = []models.Insight{}
			}
			return writeJSON(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only print insights of this category (trend, efficiency, geographic, concentration, anomaly)")
	return cmd
}

func (c *cli) outliersCmd() *cobra.Command {
	var (
		population string
		curated    bool
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "outliers",
		Short: "Print the outliers of one population",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := computeReport(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			if _, ok := r.Outliers[population]; !ok {
				if _, ok := r.Curated[population]; !ok {
					return fmt.Errorf("unknown population %q (known: %s)", population, strings.Join(outlier.Populations, ", "))
				}
			}
			entries := r.Entries(population, curated)
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			return writeJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().StringVar(&population, "population", outlier.PopulationProviderSpending, "Population to print")
	cmd.Flags().BoolVar(&curated, "curated", false, "Print the curated catalog instead of computed outliers")
	cmd.Flags().IntVar(&limit, "limit", 0, "Print at most this many entries (0 for all)")
	return cmd
}

func (c *cli) federalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "federal",
		Short: "Print the federal matching (FMAP) analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := computeReport(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), r.Federal)
		},
	}
}
