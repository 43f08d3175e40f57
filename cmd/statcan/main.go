// statcan — CLI for Statistics Canada full-table downloads.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/spf13/cobra"

	"github.com/ocandata/statcango/api"
	"github.com/ocandata/statcango/internal/config"
	"github.com/ocandata/statcango/internal/daily"
	"github.com/ocandata/statcango/internal/lookup"
	"github.com/ocandata/statcango/internal/repo"
	"github.com/ocandata/statcango/internal/statcan"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "statcan",
	Short: "statcan — Statistics Canada full-table downloads, reshaped",
	Long: `statcan fetches Statistics Canada full-table CSV bundles, parses
their metadata, and reshapes long-format observations into wide tables
pivoted on the dataset's primary dimension.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("cache-dir", "", "download cache directory override")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(dimensionsCmd)
	rootCmd.AddCommand(dataCmd)
	rootCmd.AddCommand(releasesCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// pidRE matches a bare product id argument.
var pidRE = regexp.MustCompile(`^\d+$`)

// datasetURL expands a bare product id against the configured base URL;
// full URLs pass through unchanged.
func datasetURL(arg string) string {
	if pidRE.MatchString(arg) {
		return cfg.ZipURL(arg)
	}
	return arg
}

// openDataset builds a Dataset wired to the on-disk repo.
func openDataset(cmd *cobra.Command, arg string) (*statcan.Dataset, error) {
	dir := cfg.Cache.Dir
	if override, _ := cmd.Flags().GetString("cache-dir"); override != "" {
		dir = override
	}
	r, err := repo.New(dir,
		repo.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.HTTP.TimeoutSec) * time.Second}),
		repo.WithRateLimit(cfg.HTTP.RatePerSec, time.Second),
	)
	if err != nil {
		return nil, err
	}
	return statcan.NewDataset(datasetURL(arg), statcan.WithFetcher(r))
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("statcan %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Info Command ---

var infoCmd = &cobra.Command{
	Use:   "info [url|pid]",
	Short: "Show dataset metadata summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := openDataset(cmd, args[0])
		if err != nil {
			return err
		}
		meta, err := ds.GetMetadata(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Dataset %s\n", ds.URLInfo().ResourceID)
		fmt.Printf("  Title:             %s\n", meta.CubeInfo.Cell(0, "Value"))
		fmt.Printf("  Survey:            %s\n", meta.Name())
		if meta.Subject.Len() > 0 {
			fmt.Printf("  Subject:           %s\n", meta.Subject.Rows[0][1])
		}
		fmt.Printf("  Primary dimension: %s\n", meta.PivotColumn())
		fmt.Printf("  Dimensions:        %d\n", meta.Dimensions.Len())
		fmt.Printf("  Members:           %d\n", meta.DimensionDetails.Len())
		fmt.Printf("  Notes:             %d\n", meta.Note.Len())
		return nil
	},
}

// --- Dimensions Command ---

var dimensionsCmd = &cobra.Command{
	Use:   "dimensions [url|pid]",
	Short: "List a dataset's dimensions as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := openDataset(cmd, args[0])
		if err != nil {
			return err
		}
		dims, err := ds.Dimensions(cmd.Context())
		if err != nil {
			return err
		}
		return dims.WriteCSV(os.Stdout)
	},
}

// --- Data Command ---

var dataCmd = &cobra.Command{
	Use:   "data [url|pid]",
	Short: "Download a dataset and print it as CSV",
	Long: `Download a dataset and print it as CSV, reshaped to wide format
pivoted on the primary dimension unless --long is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := openDataset(cmd, args[0])
		if err != nil {
			return err
		}

		opts := statcan.DefaultDataOptions()
		if long, _ := cmd.Flags().GetBool("long"); long {
			opts.Wide = false
		}
		if keep, _ := cmd.Flags().GetBool("keep-controls"); keep {
			opts.DropControlCols = false
		}
		opts.IndexCol, _ = cmd.Flags().GetString("index-col")

		data, err := ds.GetData(cmd.Context(), opts)
		if err != nil {
			return err
		}

		out := os.Stdout
		if path, _ := cmd.Flags().GetString("output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return data.WriteCSV(out)
	},
}

func init() {
	dataCmd.Flags().Bool("long", false, "keep the long (one row per observation) format")
	dataCmd.Flags().Bool("keep-controls", false, "keep control columns (VECTOR, COORDINATE, ...)")
	dataCmd.Flags().String("index-col", "", "column to use as the row index")
	dataCmd.Flags().StringP("output", "o", "", "write CSV to a file instead of stdout")
}

// --- Releases Command ---

var releasesCmd = &cobra.Command{
	Use:   "releases",
	Short: "List recent releases from The Daily",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		releases, err := daily.NewClient().Releases(cmd.Context(), limit)
		if err != nil {
			return err
		}
		for _, r := range releases {
			fmt.Printf("%s  %s\n    %s\n", r.Published.Format("2006-01-02"), r.Title, r.Link)
		}
		return nil
	},
}

func init() {
	releasesCmd.Flags().Int("limit", 25, "maximum number of releases to show")
}

// --- Resolve Command ---

var resolveCmd = &cobra.Command{
	Use:   "resolve [pid]",
	Short: "Resolve a product id to its full-table zip URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := lookup.NewClient().ResolveZipURL(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(url)
		return nil
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := api.NewServer(cfg)
		if err != nil {
			return err
		}
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("Starting statcan API server on %s\n", addr)
		return srv.ListenAndServe(addr)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and cache status",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.Cache.Dir
		if dir == "" {
			dir = repo.AtUserHome()
		}
		fmt.Println("statcan — status")
		fmt.Printf("  Version:    %s (%s)\n", version, commit)
		fmt.Printf("  Base URL:   %s\n", cfg.Statcan.BaseURL)
		fmt.Printf("  Language:   %s\n", cfg.Statcan.Language)
		fmt.Printf("  Cache dir:  %s\n", dir)
		fmt.Printf("  API server: %s:%d\n", cfg.API.Host, cfg.API.Port)

		entries, err := os.ReadDir(dir)
		if err == nil {
			var n int
			for _, e := range entries {
				if !e.IsDir() {
					n++
				}
			}
			fmt.Printf("  Cached files: %d\n", n)
		}
		return nil
	},
}
