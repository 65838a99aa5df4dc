package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"vessel-metrics-monitor/internal/analysis"
	"vessel-metrics-monitor/internal/api"
	"vessel-metrics-monitor/internal/config"
	"vessel-metrics-monitor/internal/db"
	"vessel-metrics-monitor/internal/detector"
	"vessel-metrics-monitor/internal/models"
	"vessel-metrics-monitor/internal/pipeline"
	"vessel-metrics-monitor/internal/stats"
	"vessel-metrics-monitor/internal/workerpool"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dbPath     string

	cfg      config.Config
	database *db.Database
	logger   = logrus.New()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vessel-monitor",
		Short: "Vessel Metrics Monitor - vessel telemetry ingestion and analysis",
		Long: `A CLI tool for ingesting vessel telemetry data, validating it,
deriving metrics, detecting statistical outliers, grouping problematic
waypoints, and comparing compliance between vessels.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")

	rootCmd.AddCommand(serverCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(detectCmd())
	rootCmd.AddCommand(statisticsCmd())
	rootCmd.AddCommand(complianceCmd())
	rootCmd.AddCommand(waypointsCmd())
	rootCmd.AddCommand(issuesCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initApp loads configuration and opens the database
func initApp() error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	database, err = db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	return nil
}

// newDetector wires a detector onto the shared worker pool
func newDetector(pool *workerpool.Pool) *detector.Detector {
	return detector.New(database, pool, cfg.Detector.PageSize, logger)
}

// serverCmd starts the REST API server
func serverCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initApp(); err != nil {
				return err
			}
			defer database.Close()

			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			pool := workerpool.New(cfg.Detector.Workers, logger)
			defer pool.Stop()

			waypoints := analysis.NewWaypointService(database, logger)
			compliance := analysis.NewComplianceService(database, pool, cfg.Compliance.Timeout, logger)
			server := api.NewServer(database, waypoints, compliance, newDetector(pool), logger)

			addr := fmt.Sprintf(":%d", cfg.Server.Port)
			fmt.Printf("Vessel Metrics Monitor API server\n")
			fmt.Printf("  Listening on http://localhost%s\n", addr)
			fmt.Printf("  Database: %s\n", cfg.Database.Path)

			return http.ListenAndServe(addr, server.Router())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Server port")
	return cmd
}

// ingestCmd ingests telemetry data from CSV files
func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Ingest vessel telemetry data from CSV files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initApp(); err != nil {
				return err
			}
			defer database.Close()

			p := pipeline.New(database, cfg.Ingest.BatchSize, logger)
			total := 0

			for _, file := range args {
				fmt.Printf("Processing %s...\n", file)
				start := time.Now()

				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", file, err)
				}

				sum, err := p.Run(cmd.Context(), f)
				f.Close()
				if err != nil {
					return fmt.Errorf("ingestion aborted for %s: %w", file, err)
				}

				elapsed := time.Since(start)
				fmt.Printf("  Ingested %d records (%d invalid, %d rows skipped) in %v (%.0f records/sec)\n",
					sum.Processed, sum.Invalid, sum.Skipped, elapsed,
					float64(sum.Processed)/elapsed.Seconds())
				total += sum.Processed
			}

			fmt.Printf("\nTotal: %d records ingested\n", total)
			return nil
		},
	}
	return cmd
}

// detectCmd runs outlier detection over stored records
func detectCmd() *cobra.Command {
	var vesselCode string

	cmd := &cobra.Command{
		Use:   "detect-outliers",
		Short: "Detect statistical outliers in stored VALID records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initApp(); err != nil {
				return err
			}
			defer database.Close()

			pool := workerpool.New(cfg.Detector.Workers, logger)
			defer pool.Stop()
			det := newDetector(pool)

			start := time.Now()
			if err := refreshMissingStatistics(cmd.Context(), vesselCode); err != nil {
				return err
			}

			var err error
			if vesselCode != "" {
				err = det.DetectVessel(cmd.Context(), vesselCode)
			} else {
				err = det.DetectAll(cmd.Context())
			}
			if err != nil {
				return err
			}

			fmt.Printf("Outlier detection completed in %v\n", time.Since(start))
			return nil
		},
	}

	cmd.Flags().StringVarP(&vesselCode, "vessel", "V", "", "Limit detection to one vessel")
	return cmd
}

// refreshMissingStatistics computes statistics for vessels that have none
// yet, so a first detection run does not silently skip them. An empty
// vesselCode covers every stored vessel.
func refreshMissingStatistics(ctx context.Context, vesselCode string) error {
	vessels := []string{vesselCode}
	if vesselCode == "" {
		var err error
		vessels, err = database.DistinctVesselCodes(ctx)
		if err != nil {
			return err
		}
	}

	agg := stats.New(database, database, logger)
	for _, vessel := range vessels {
		existing, err := database.FindStatistics(ctx, vessel)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := agg.RefreshVessel(ctx, vessel); err != nil {
			return err
		}
	}
	return nil
}

// statisticsCmd recomputes per-vessel statistics
func statisticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "statistics",
		Short: "Recompute per-vessel mean/stddev statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initApp(); err != nil {
				return err
			}
			defer database.Close()

			agg := stats.New(database, database, logger)
			start := time.Now()
			if err := agg.RefreshAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("Statistics refreshed in %v\n", time.Since(start))
			return nil
		},
	}
}

// complianceCmd compares two vessels' compliance
func complianceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compliance [vessel_code1] [vessel_code2]",
		Short: "Compare compliance between two vessels",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initApp(); err != nil {
				return err
			}
			defer database.Close()

			pool := workerpool.New(cfg.Detector.Workers, logger)
			defer pool.Stop()

			svc := analysis.NewComplianceService(database, pool, cfg.Compliance.Timeout, logger)
			comparison, err := svc.CompareCompliance(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Printf("Compliance comparison\n")
			fmt.Printf("  %-12s %.2f%%\n", comparison.VesselCode1, comparison.Compliance1)
			fmt.Printf("  %-12s %.2f%%\n", comparison.VesselCode2, comparison.Compliance2)
			fmt.Printf("  %s\n", comparison.Result)
			return nil
		},
	}
}

// waypointsCmd groups a vessel's problematic waypoints
func waypointsCmd() *cobra.Command {
	var problem string
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "waypoints [vessel_code]",
		Short: "Group a vessel's problematic waypoints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initApp(); err != nil {
				return err
			}
			defer database.Close()

			var kind *models.ProblemKind
			if problem != "" {
				parsed, err := models.ParseProblemKind(problem)
				if err != nil {
					return err
				}
				kind = &parsed
			}

			svc := analysis.NewWaypointService(database, logger)
			groups, err := svc.GroupProblematicWaypoints(cmd.Context(), args[0], kind)
			if err != nil {
				return err
			}

			if outputFormat == "json" {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(groups)
			}

			fmt.Printf("Found %d problematic waypoint groups for %s\n\n", len(groups), args[0])
			for i, g := range groups {
				fmt.Printf("Group %d: %d problems\n", i+1, g.ProblemCount)
				for _, wp := range g.Waypoints {
					ts := "-"
					if wp.Timestamp != nil {
						ts = wp.Timestamp.Format("2006-01-02 15:04:05")
					}
					fmt.Printf("  [%s] record %s\n", ts, wp.ID)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&problem, "problem", "", "Filter by problem kind (e.g. OUTLIER)")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	return cmd
}

// issuesCmd shows a vessel's validation issue frequencies
func issuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "issues [vessel_code]",
		Short: "Show validation issue counts for a vessel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initApp(); err != nil {
				return err
			}
			defer database.Close()

			exists, err := database.VesselExists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("vessel with code %s does not exist", args[0])
			}

			counts, err := database.IssueSummary(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("%-28s %s\n", "Problem kind", "Count")
			for _, c := range counts {
				fmt.Printf("%-28s %d\n", c.Kind, c.Count)
			}
			return nil
		},
	}
}

// statsCmd shows database statistics
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initApp(); err != nil {
				return err
			}
			defer database.Close()

			dbStats, err := database.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("error getting stats: %w", err)
			}

			fmt.Println("Vessel Metrics Monitor statistics")
			fmt.Println("=================================")
			fmt.Printf("  Total Vessels:   %v\n", dbStats["total_vessels"])
			fmt.Printf("  Total Records:   %v\n", dbStats["total_records"])
			fmt.Printf("  Invalid Records: %v\n", dbStats["invalid_records"])
			fmt.Printf("  Total Issues:    %v\n", dbStats["total_issues"])
			fmt.Printf("  Database:        %s\n", cfg.Database.Path)
			return nil
		},
	}
}
