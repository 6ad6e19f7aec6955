package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-ann/neighbors/dataset"
	"github.com/go-ann/neighbors/hypercube"
	"github.com/go-ann/neighbors/internal/annlog"
	"github.com/go-ann/neighbors/lsh"
	"github.com/go-ann/neighbors/vector"
)

var (
	inputPath   string
	inputFormat string
	sqliteTable string
	hasID       bool
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "annctl",
	Short: "CLI driver for the approximate-nearest-neighbor index library",
	Long:  `A command-line tool for building and querying LSH and hypercube nearest-neighbor indexes from a dataset file.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			annlog.SetLogger(annlog.NewStdLogger())
		}
	},
}

func loadPoints() ([]vector.Vector, error) {
	var records []dataset.Record
	var err error
	switch inputFormat {
	case "csv":
		records, err = dataset.LoadCSV(inputPath, hasID)
	case "json":
		records, err = dataset.LoadJSON(inputPath)
	case "sqlite":
		if sqliteTable == "" {
			return nil, fmt.Errorf("--table is required for sqlite input")
		}
		records, err = dataset.LoadSQLite(inputPath, sqliteTable)
	default:
		return nil, fmt.Errorf("unknown input format %q (want csv, json, or sqlite)", inputFormat)
	}
	if err != nil {
		return nil, err
	}
	return dataset.ToVectors(records)
}

func parseVector(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}

func metricFromFlag(s string) (lsh.Metric, hypercube.Metric, error) {
	switch s {
	case "l2":
		return lsh.MetricL2, hypercube.MetricL2, nil
	case "cosine":
		return lsh.MetricCosine, hypercube.MetricCosine, nil
	default:
		return 0, 0, fmt.Errorf("unknown metric %q (want l2 or cosine)", s)
	}
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Fit an index from a dataset and report its stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		metricFlag, _ := cmd.Flags().GetString("metric")
		l, _ := cmd.Flags().GetInt("L")
		k, _ := cmd.Flags().GetInt("k")
		w, _ := cmd.Flags().GetFloat64("w")
		c, _ := cmd.Flags().GetFloat64("c")
		m, _ := cmd.Flags().GetInt("m")
		probes, _ := cmd.Flags().GetInt("probes")
		seed, _ := cmd.Flags().GetInt64("seed")

		points, err := loadPoints()
		if err != nil {
			return err
		}
		lshMetric, cubeMetric, err := metricFromFlag(metricFlag)
		if err != nil {
			return err
		}

		switch kind {
		case "lsh":
			idx, err := lsh.New(lsh.Config{L: l, K: k, W: w, C: c, Metric: lshMetric, Seed: seed})
			if err != nil {
				return fmt.Errorf("failed to construct index: %w", err)
			}
			if err := idx.Fit(points); err != nil {
				return fmt.Errorf("failed to fit index: %w", err)
			}
			return idx.PrintStats(os.Stdout)
		case "hypercube":
			idx, err := hypercube.New(hypercube.Config{K: k, M: m, Probes: probes, W: w, Metric: cubeMetric, Seed: seed})
			if err != nil {
				return fmt.Errorf("failed to construct index: %w", err)
			}
			if err := idx.Fit(points); err != nil {
				return fmt.Errorf("failed to fit index: %w", err)
			}
			return idx.PrintStats(os.Stdout)
		default:
			return fmt.Errorf("unknown index kind %q (want lsh or hypercube)", kind)
		}
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Fit an index, then answer a single radius or k-nearest query against it",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		metricFlag, _ := cmd.Flags().GetString("metric")
		l, _ := cmd.Flags().GetInt("L")
		k, _ := cmd.Flags().GetInt("k")
		w, _ := cmd.Flags().GetFloat64("w")
		c, _ := cmd.Flags().GetFloat64("c")
		m, _ := cmd.Flags().GetInt("m")
		probes, _ := cmd.Flags().GetInt("probes")
		seed, _ := cmd.Flags().GetInt64("seed")
		vecStr, _ := cmd.Flags().GetString("vector")
		radius, _ := cmd.Flags().GetFloat64("radius")
		topK, _ := cmd.Flags().GetInt("top-k")
		outputJSON, _ := cmd.Flags().GetBool("json")

		if vecStr == "" {
			return fmt.Errorf("--vector is required")
		}
		components, err := parseVector(vecStr)
		if err != nil {
			return err
		}
		q, err := vector.New("query", components)
		if err != nil {
			return fmt.Errorf("invalid query vector: %w", err)
		}

		points, err := loadPoints()
		if err != nil {
			return err
		}
		lshMetric, cubeMetric, err := metricFromFlag(metricFlag)
		if err != nil {
			return err
		}

		type row struct {
			ID       string  `json:"id"`
			Distance float64 `json:"distance"`
		}
		var rows []row

		switch kind {
		case "lsh":
			idx, err := lsh.New(lsh.Config{L: l, K: k, W: w, C: c, Metric: lshMetric, Seed: seed})
			if err != nil {
				return fmt.Errorf("failed to construct index: %w", err)
			}
			if err := idx.Fit(points); err != nil {
				return fmt.Errorf("failed to fit index: %w", err)
			}
			var results []lsh.Result
			if topK > 0 {
				results, err = idx.KNearest(q, topK)
			} else {
				results, err = idx.RadiusNeighbors(q, radius)
			}
			if err != nil {
				return fmt.Errorf("query failed: %w", err)
			}
			for _, r := range results {
				rows = append(rows, row{ID: r.Point.ID(), Distance: r.Distance})
			}
		case "hypercube":
			idx, err := hypercube.New(hypercube.Config{K: k, M: m, Probes: probes, W: w, Metric: cubeMetric, Seed: seed})
			if err != nil {
				return fmt.Errorf("failed to construct index: %w", err)
			}
			if err := idx.Fit(points); err != nil {
				return fmt.Errorf("failed to fit index: %w", err)
			}
			if topK > 0 {
				best, err := idx.Nearest(q)
				if err != nil {
					return fmt.Errorf("query failed: %w", err)
				}
				rows = append(rows, row{ID: best.Point.ID(), Distance: best.Distance})
			} else {
				results, err := idx.RadiusNeighbors(q, radius)
				if err != nil {
					return fmt.Errorf("query failed: %w", err)
				}
				for _, r := range results {
					rows = append(rows, row{ID: r.Point.ID(), Distance: r.Distance})
				}
			}
		default:
			return fmt.Errorf("unknown index kind %q (want lsh or hypercube)", kind)
		}

		if outputJSON {
			data, err := json.MarshalIndent(rows, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		fmt.Printf("Found %d results:\n", len(rows))
		for i, r := range rows {
			fmt.Printf("%d. %s (distance: %.6f)\n", i+1, r.ID, r.Distance)
		}
		return nil
	},
}

// benchCmd fits several independent (L,k) LSH configurations concurrently
// and reports each one's stats. Every goroutine owns its own *lsh.Index
// and fits it on the full set of loaded points, which all goroutines only
// read; no index state is shared, matching spec §5's
// single-threaded-per-instance requirement while still exercising
// concurrent independent instances.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Fit several independent LSH configurations concurrently and report their stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		metricFlag, _ := cmd.Flags().GetString("metric")
		lValues, _ := cmd.Flags().GetIntSlice("L")
		kValues, _ := cmd.Flags().GetIntSlice("k")
		w, _ := cmd.Flags().GetFloat64("w")
		c, _ := cmd.Flags().GetFloat64("c")
		seed, _ := cmd.Flags().GetInt64("seed")

		if len(lValues) != len(kValues) {
			return fmt.Errorf("--L and --k must list the same number of values, one per configuration")
		}
		lshMetric, _, err := metricFromFlag(metricFlag)
		if err != nil {
			return err
		}
		points, err := loadPoints()
		if err != nil {
			return err
		}

		reports := make([]string, len(lValues))
		var g errgroup.Group
		for i := range lValues {
			i := i
			g.Go(func() error {
				idx, err := lsh.New(lsh.Config{L: lValues[i], K: kValues[i], W: w, C: c, Metric: lshMetric, Seed: seed + int64(i)})
				if err != nil {
					return fmt.Errorf("config %d: %w", i, err)
				}
				if err := idx.Fit(points); err != nil {
					return fmt.Errorf("config %d: %w", i, err)
				}
				var buf strings.Builder
				if err := idx.PrintStats(&buf); err != nil {
					return fmt.Errorf("config %d: %w", i, err)
				}
				reports[i] = buf.String()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for i, r := range reports {
			fmt.Printf("=== L=%d k=%d ===\n%s", lValues[i], kValues[i], r)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&inputPath, "input", "i", "", "dataset file path")
	rootCmd.PersistentFlags().StringVarP(&inputFormat, "format", "f", "csv", "dataset format: csv, json, or sqlite")
	rootCmd.PersistentFlags().StringVar(&sqliteTable, "table", "", "table name when --format=sqlite")
	rootCmd.PersistentFlags().BoolVar(&hasID, "has-id", true, "csv rows carry a leading id column")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable progress logging")
	rootCmd.MarkPersistentFlagRequired("input")

	for _, c := range []*cobra.Command{buildCmd, queryCmd} {
		c.Flags().String("kind", "lsh", "index kind: lsh or hypercube")
		c.Flags().String("metric", "l2", "distance metric: l2 or cosine")
		c.Flags().Int("k", 4, "amplification factor k")
		c.Flags().Float64("w", 4.0, "L2 quantization window (ignored for cosine)")
		c.Flags().Int64("seed", 1, "RNG seed")
	}
	buildCmd.Flags().Int("L", 8, "number of LSH tables")
	buildCmd.Flags().Float64("c", 0.5, "LSH bucket-density coefficient")
	buildCmd.Flags().Int("m", 100, "hypercube inspection cap")
	buildCmd.Flags().Int("probes", 4, "hypercube probe budget")

	queryCmd.Flags().Int("L", 8, "number of LSH tables")
	queryCmd.Flags().Float64("c", 0.5, "LSH bucket-density coefficient")
	queryCmd.Flags().Int("m", 100, "hypercube inspection cap")
	queryCmd.Flags().Int("probes", 4, "hypercube probe budget")
	queryCmd.Flags().String("vector", "", "query vector (comma-separated)")
	queryCmd.Flags().Float64("radius", 1.0, "radius for radius_neighbors (ignored if --top-k > 0)")
	queryCmd.Flags().Int("top-k", 0, "if > 0, run k_nearest (lsh) or nearest, a single result (hypercube), instead of radius_neighbors")
	queryCmd.Flags().Bool("json", false, "output as JSON")
	queryCmd.MarkFlagRequired("vector")

	benchCmd.Flags().String("metric", "l2", "distance metric: l2 or cosine")
	benchCmd.Flags().IntSlice("L", []int{4, 8, 16}, "table counts, one per configuration")
	benchCmd.Flags().IntSlice("k", []int{4, 4, 4}, "amplification factors, one per configuration")
	benchCmd.Flags().Float64("w", 4.0, "L2 quantization window")
	benchCmd.Flags().Float64("c", 0.5, "LSH bucket-density coefficient")
	benchCmd.Flags().Int64("seed", 1, "base RNG seed")

	rootCmd.AddCommand(buildCmd, queryCmd, benchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
