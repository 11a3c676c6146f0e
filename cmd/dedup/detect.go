package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lessonbank/dedup/internal/database"
	"github.com/lessonbank/dedup/internal/duplicates"
	"github.com/lessonbank/dedup/internal/services"
)

// detectReport is the printed form of one detection run
type detectReport struct {
	GeneratedAt     time.Time     `json:"generated_at" yaml:"generated_at"`
	IncludeResolved bool          `json:"include_resolved" yaml:"include_resolved"`
	GroupCount      int           `json:"group_count" yaml:"group_count"`
	Groups          []reportGroup `json:"groups" yaml:"groups"`
}

type reportGroup struct {
	GroupID         string                     `json:"group_id" yaml:"group_id"`
	DetectionMethod duplicates.DetectionMethod `json:"detection_method" yaml:"detection_method"`
	Confidence      duplicates.Confidence      `json:"confidence" yaml:"confidence"`
	AvgSimilarity   *float64                   `json:"avg_similarity,omitempty" yaml:"avg_similarity,omitempty"`
	Members         []reportMember             `json:"members" yaml:"members"`
}

type reportMember struct {
	ID     string                `json:"id" yaml:"id"`
	Title  string                `json:"title" yaml:"title"`
	Status database.LessonStatus `json:"status" yaml:"status"`
}

func newDetectCmd() *cobra.Command {
	var (
		includeResolved bool
		format          string
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run duplicate detection once and print the groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "yaml" && format != "json" {
				return fmt.Errorf("unsupported format %q (want yaml or json)", format)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer database.Close()

			groups, err := a.duplicates.Refresh(cmd.Context(), includeResolved)
			if err != nil {
				return fmt.Errorf("detection failed: %w", err)
			}
			return writeReport(os.Stdout, buildReport(groups, includeResolved, time.Now()), format)
		},
	}

	cmd.Flags().BoolVar(&includeResolved, "include-resolved", false, "include dismissed groups and superseded lessons")
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format: yaml or json")
	return cmd
}

func buildReport(groups []services.ReviewGroup, includeResolved bool, now time.Time) detectReport {
	report := detectReport{
		GeneratedAt:     now.UTC(),
		IncludeResolved: includeResolved,
		GroupCount:      len(groups),
		Groups:          make([]reportGroup, 0, len(groups)),
	}
	for _, g := range groups {
		rg := reportGroup{
			GroupID:         g.GroupID,
			DetectionMethod: g.DetectionMethod,
			Confidence:      g.Confidence,
			AvgSimilarity:   g.AvgSimilarity,
			Members:         make([]reportMember, len(g.Members)),
		}
		for i, m := range g.Members {
			rg.Members[i] = reportMember{ID: m.ID, Title: m.Title, Status: m.Status}
		}
		report.Groups = append(report.Groups, rg)
	}
	return report
}

func writeReport(w io.Writer, report detectReport, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}
