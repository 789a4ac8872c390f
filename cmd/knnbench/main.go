// Command knnbench generates a synthetic point cloud, builds an Index
// over it with the requested search type, runs a batch of random
// queries against it and reports timing and leaf-inspection counts.
//
// It exists to exercise every SearchType end to end (the linear-vs-tree
// heap crossover is a caller decision, not something the library
// enforces, so this binary is the place that actually makes it) and to
// give the metrics.PrometheusRecorder seam a real producer.
package main

import (
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/spatialgo/knnidx"
	"github.com/spatialgo/knnidx/metrics"
)

func main() {
	app := &cli.App{
		Name:        "knnbench",
		Usage:       "benchmark and sanity-check a knnidx Index against a synthetic point cloud",
		Description: "Generates a random point cloud, builds an Index, runs a query batch, and logs timing and statistics.",
		Flags: []cli.Flag{
			flagDim,
			flagPoints,
			flagQueries,
			flagK,
			flagBucketSize,
			flagSearchType,
			flagSeed,
			flagMetricsAddr,
			flagVerbose,
		},
		Action: run,
	}
	sort.Sort(cli.FlagsByName(app.Flags))

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	flagDim = &cli.IntFlag{
		Name:  "dim",
		Value: 3,
		Usage: "dimensionality of the synthetic cloud",
	}
	flagPoints = &cli.IntFlag{
		Name:  "points",
		Value: 100000,
		Usage: "number of reference points in the cloud",
	}
	flagQueries = &cli.IntFlag{
		Name:  "queries",
		Value: 1000,
		Usage: "number of query columns to run",
	}
	flagK = &cli.IntFlag{
		Name:  "k",
		Value: 10,
		Usage: "number of neighbours to request per query",
	}
	flagBucketSize = &cli.IntFlag{
		Name:  "bucket-size",
		Value: 0,
		Usage: "kd-tree leaf bucket size, 0 uses the library default",
	}
	flagSearchType = &cli.StringFlag{
		Name:  "search-type",
		Value: "kdtree-linear",
		Usage: "one of: bruteforce, kdtree-linear, kdtree-tree",
	}
	flagSeed = &cli.Int64Flag{
		Name:  "seed",
		Value: 1,
		Usage: "random seed for the synthetic cloud and queries",
	}
	flagMetricsAddr = &cli.StringFlag{
		Name:  "metrics-addr",
		Value: "",
		Usage: "if set, serve Prometheus metrics on this address (e.g. :9090) and wire a PrometheusRecorder",
	}
	flagVerbose = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "enable debug-level logging",
	}
)

func parseSearchType(s string) (knnidx.SearchType, error) {
	switch s {
	case "bruteforce":
		return knnidx.BruteForce, nil
	case "kdtree-linear":
		return knnidx.KDTreeLinearHeap, nil
	case "kdtree-tree":
		return knnidx.KDTreeTreeHeap, nil
	default:
		return 0, fmt.Errorf("unknown --search-type %q, want one of: bruteforce, kdtree-linear, kdtree-tree", s)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zap.NewProductionEncoderConfig().EncodeTime
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func run(c *cli.Context) error {
	logger, err := newLogger(c.Bool(flagVerbose.Name))
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	searchType, err := parseSearchType(c.String(flagSearchType.Name))
	if err != nil {
		return err
	}

	dim := c.Int(flagDim.Name)
	numPoints := c.Int(flagPoints.Name)
	numQueries := c.Int(flagQueries.Name)
	k := c.Int(flagK.Name)
	seed := c.Int64(flagSeed.Name)

	logger.Info("generating synthetic cloud",
		zap.Int("dim", dim),
		zap.Int("points", numPoints),
		zap.String("search_type", c.String(flagSearchType.Name)),
	)

	rng := rand.New(rand.NewSource(seed))
	cloudData := randomColumns(rng, dim, numPoints)
	cloud := knnidx.NewMatrix(cloudData, dim, numPoints)

	var recorder metrics.Recorder
	if addr := c.String(flagMetricsAddr.Name); addr != "" {
		reg := prometheus.NewRegistry()
		promRecorder := metrics.NewPrometheusRecorder(reg)
		recorder = promRecorder
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		logger.Info("serving prometheus metrics", zap.String("addr", addr))
	}

	params := knnidx.Parameters{}
	if bs := c.Int(flagBucketSize.Name); bs > 0 {
		params["bucketSize"] = bs
	}

	buildStart := time.Now()
	idx, err := knnidx.Create(cloud, dim, searchType, 0, params, knnidx.L2Squared)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	idx = idx.WithRecorder(recorder)
	logger.Info("index built", zap.Duration("elapsed", time.Since(buildStart)))

	queryData := randomColumns(rng, dim, numQueries)
	query := knnidx.NewMatrix(queryData, dim, numQueries)

	indices := make([][]uint32, numQueries)
	dists2 := make([][]float64, numQueries)
	for i := range indices {
		indices[i] = make([]uint32, k)
		dists2[i] = make([]float64, k)
	}

	searchStart := time.Now()
	inspected, err := idx.Knn(query, indices, dists2, k, 0, knnidx.SortResults|knnidx.CollectStatistics, math.Inf(1))
	if err != nil {
		return fmt.Errorf("running batch: %w", err)
	}
	elapsed := time.Since(searchStart)

	logger.Info("batch complete",
		zap.Duration("elapsed", elapsed),
		zap.Int("queries", numQueries),
		zap.Uint64("leaf_points_inspected", inspected),
		zap.Float64("queries_per_sec", float64(numQueries)/elapsed.Seconds()),
	)

	return nil
}

func randomColumns(rng *rand.Rand, dim, cols int) []float64 {
	data := make([]float64, dim*cols)
	for i := range data {
		data[i] = rng.Float64()
	}
	return data
}
