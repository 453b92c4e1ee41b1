// Package main provides the skyline CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/orneryd/skyline/pkg/config"
	"github.com/orneryd/skyline/pkg/logging"
	"github.com/orneryd/skyline/pkg/metrics"
	"github.com/orneryd/skyline/pkg/skyline"
	"github.com/orneryd/skyline/pkg/spill"
	"github.com/orneryd/skyline/pkg/storage"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // Set via ldflags: -X main.buildTime=$(date +%Y%m%d-%H%M%S)
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "skyline",
		Short: "skyline - multi-criteria route skyline queries over property graphs",
		Long: `skyline finds every route between two nodes that no other route beats on
all cost criteria at once (length, cost, time, ...).

It stores graphs in BadgerDB, bounds search memory with an eviction policy
and pages evicted label lists to an in-memory, BadgerDB or SQLite tier.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	rootCmd.PersistentFlags().String("config", getEnvStr("SKYLINE_CONFIG", ""), "Config file (default: search standard locations)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text, json")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "skyline v%s (%s) built %s\n", version, commit, buildTime)
		},
	})

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Load a graph from CSV or YAML into a BadgerDB data directory",
		RunE:  a.runLoad,
	}
	loadCmd.Flags().String("nodes", "", "Node CSV file (columns: id, labels, properties...)")
	loadCmd.Flags().String("edges", "", "Edge CSV file (columns: id, start, end, type, properties...)")
	loadCmd.Flags().String("yaml", "", "YAML graph file")
	loadCmd.Flags().String("data-dir", "", "Graph data directory (default: graph.data_dir)")
	loadCmd.MarkFlagsRequiredTogether("nodes", "edges")
	loadCmd.MarkFlagsMutuallyExclusive("yaml", "nodes")
	rootCmd.AddCommand(loadCmd)

	routeCmd := &cobra.Command{
		Use:   "route",
		Short: "Compute the route skyline between two nodes",
		RunE:  a.runRoute,
	}
	addGraphFlags(routeCmd)
	addSearchFlags(routeCmd)
	routeCmd.Flags().String("from", "", "Start node id")
	routeCmd.Flags().String("to", "", "Destination node id")
	routeCmd.Flags().StringSlice("criteria", nil, "Cost criteria, in order (default: search.criteria)")
	routeCmd.Flags().StringArray("constraint", nil, "Resource cap as key=limit (repeatable)")
	routeCmd.Flags().StringSlice("type", nil, "Allowed edge types (default: all)")
	_ = routeCmd.MarkFlagRequired("from")
	_ = routeCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(routeCmd)

	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Answer a file of route skyline queries concurrently",
		RunE:  a.runBatch,
	}
	addGraphFlags(batchCmd)
	addSearchFlags(batchCmd)
	batchCmd.Flags().String("queries", "", "YAML file with a top-level queries list")
	batchCmd.Flags().Int("parallel", 0, "Concurrent searches (default: batch.parallelism)")
	batchCmd.Flags().String("metrics-addr", "", "Serve Prometheus /metrics on this address while the batch runs")
	_ = batchCmd.MarkFlagRequired("queries")
	rootCmd.AddCommand(batchCmd)

	return rootCmd
}

func addGraphFlags(cmd *cobra.Command) {
	cmd.Flags().String("data-dir", "", "Graph data directory (default: graph.data_dir)")
	cmd.Flags().String("yaml", "", "Load the graph from a YAML file into memory instead")
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().String("policy", "", "Eviction policy: fifo, lru, mru, lfu, lfuda")
	cmd.Flags().Int("max-labels", 0, "In-memory label budget (0 = unlimited)")
	cmd.Flags().String("memory-limit", "", "Label budget as memory size (e.g. 64MB)")
	cmd.Flags().String("spill-backend", "", "Spill tier: memory, badger, sqlite")
	cmd.Flags().String("spill-dir", "", "Spill directory (badger) or database file (sqlite)")
}

// setup loads the configuration, applies flag overrides and builds the
// logger.
func (a *app) setup(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format, _ = flags.GetString("log-format")
	}
	if flags.Lookup("data-dir") != nil && flags.Changed("data-dir") {
		cfg.Graph.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Lookup("policy") != nil {
		if err := applySearchFlags(cmd, cfg); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	logger.Debug("configuration loaded", "path", path, "config", cfg.String())
	return nil
}

func applySearchFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("policy") {
		p, _ := flags.GetString("policy")
		cfg.Cache.Policy = strings.ToLower(p)
	}
	if flags.Changed("max-labels") {
		cfg.Cache.MaxLabels, _ = flags.GetInt("max-labels")
		cfg.Cache.MemoryLimit = 0
	}
	if flags.Changed("memory-limit") {
		s, _ := flags.GetString("memory-limit")
		limit, err := config.ParseMemorySize(s)
		if err != nil {
			return fmt.Errorf("--memory-limit: %w", err)
		}
		cfg.Cache.MaxLabels = 0
		cfg.Cache.MemoryLimit = limit
	}
	if flags.Changed("spill-backend") {
		b, _ := flags.GetString("spill-backend")
		cfg.Spill.Backend = strings.ToLower(b)
	}
	if flags.Changed("spill-dir") {
		cfg.Spill.Dir, _ = flags.GetString("spill-dir")
	}
	if flags.Lookup("parallel") != nil && flags.Changed("parallel") {
		cfg.Batch.Parallelism, _ = flags.GetInt("parallel")
	}
	if flags.Lookup("metrics-addr") != nil && flags.Changed("metrics-addr") {
		cfg.Metrics.Address, _ = flags.GetString("metrics-addr")
	}
	return nil
}

func (a *app) runLoad(cmd *cobra.Command, args []string) error {
	nodesPath, _ := cmd.Flags().GetString("nodes")
	edgesPath, _ := cmd.Flags().GetString("edges")
	yamlPath, _ := cmd.Flags().GetString("yaml")
	if a.cfg.Graph.DataDir == "" {
		return fmt.Errorf("load needs --data-dir or graph.data_dir")
	}
	if yamlPath == "" && nodesPath == "" {
		return fmt.Errorf("load needs --yaml or --nodes with --edges")
	}

	engine, err := storage.NewBadgerEngineWithOptions(storage.BadgerOptions{DataDir: a.cfg.Graph.DataDir})
	if err != nil {
		return err
	}
	defer engine.Close()

	began := time.Now()
	var stats storage.LoadStats
	if yamlPath != "" {
		stats, err = storage.LoadYAMLFile(engine, yamlPath)
	} else {
		stats, err = loadCSVFiles(engine, nodesPath, edgesPath)
	}
	if err != nil {
		return err
	}

	nodes, _ := engine.NodeCount()
	edges, _ := engine.EdgeCount()
	a.logger.Info("graph loaded", "data_dir", a.cfg.Graph.DataDir, "nodes", stats.Nodes, "edges", stats.Edges, "elapsed", time.Since(began))
	fmt.Fprintf(cmd.OutOrStdout(), "loaded %d nodes, %d edges (graph now has %d nodes, %d edges)\n", stats.Nodes, stats.Edges, nodes, edges)
	return nil
}

func loadCSVFiles(engine storage.Engine, nodesPath, edgesPath string) (storage.LoadStats, error) {
	nodes, err := os.Open(nodesPath)
	if err != nil {
		return storage.LoadStats{}, fmt.Errorf("failed to open node file: %w", err)
	}
	defer nodes.Close()
	edges, err := os.Open(edgesPath)
	if err != nil {
		return storage.LoadStats{}, fmt.Errorf("failed to open edge file: %w", err)
	}
	defer edges.Close()
	return storage.LoadCSV(engine, nodes, edges)
}

// openGraph returns the graph named by --yaml or the configured data
// directory.
func (a *app) openGraph(cmd *cobra.Command) (storage.Engine, error) {
	yamlPath, _ := cmd.Flags().GetString("yaml")
	if yamlPath != "" {
		engine := storage.NewMemoryEngine()
		stats, err := storage.LoadYAMLFile(engine, yamlPath)
		if err != nil {
			engine.Close()
			return nil, err
		}
		a.logger.Debug("graph loaded into memory", "file", yamlPath, "nodes", stats.Nodes, "edges", stats.Edges)
		return engine, nil
	}
	if a.cfg.Graph.DataDir == "" {
		return nil, fmt.Errorf("no graph: pass --yaml or --data-dir")
	}
	return storage.NewBadgerEngineWithOptions(storage.BadgerOptions{DataDir: a.cfg.Graph.DataDir})
}

// plannerOptions turns the configuration into planner options.
func (a *app) plannerOptions(recorder *metrics.Recorder) []skyline.Option {
	backend, dir := a.cfg.Spill.Backend, a.cfg.Spill.Dir
	return []skyline.Option{
		skyline.WithPolicy(a.cfg.Cache.Policy),
		skyline.WithMaxLabels(a.cfg.LabelBudget()),
		skyline.WithTier(func() (spill.Tier, error) { return spill.Open(backend, dir) }),
		skyline.WithLogger(a.logger),
		skyline.WithMetrics(recorder),
	}
}

func (a *app) runRoute(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	criteria, _ := cmd.Flags().GetStringSlice("criteria")
	pairs, _ := cmd.Flags().GetStringArray("constraint")
	types, _ := cmd.Flags().GetStringSlice("type")

	q := skyline.Query{
		Start:       storage.NodeID(from),
		Destination: storage.NodeID(to),
		Criteria:    criteria,
		Constraints: a.cfg.Search.Constraints,
		Types:       types,
	}
	if len(pairs) > 0 {
		constraints, err := config.ParseConstraints(pairs)
		if err != nil {
			return err
		}
		q.Constraints = constraints
	}
	a.withSearchDefaults(&q)

	graph, err := a.openGraph(cmd)
	if err != nil {
		return err
	}
	defer graph.Close()

	res, err := skyline.FindRoutes(cmd.Context(), graph, q, a.plannerOptions(nil)...)
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), q, res)
	return nil
}

// withSearchDefaults fills the parts of q the caller left out from the
// search section.
func (a *app) withSearchDefaults(q *skyline.Query) {
	if len(q.Criteria) == 0 {
		q.Criteria = a.cfg.Search.Criteria
	}
	if q.Constraints == nil {
		q.Constraints = a.cfg.Search.Constraints
	}
	if len(q.Types) == 0 {
		q.Types = a.cfg.Search.Types
	}
}

// queryFile is the layout of a batch query file.
type queryFile struct {
	Queries []skyline.Query `yaml:"queries"`
}

func readQueries(path string) ([]skyline.Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query file: %w", err)
	}
	var file queryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse query file: %w", err)
	}
	if len(file.Queries) == 0 {
		return nil, fmt.Errorf("query file %s has no queries", path)
	}
	return file.Queries, nil
}

func (a *app) runBatch(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("queries")
	queries, err := readQueries(path)
	if err != nil {
		return err
	}
	for i := range queries {
		a.withSearchDefaults(&queries[i])
	}

	graph, err := a.openGraph(cmd)
	if err != nil {
		return err
	}
	defer graph.Close()

	recorder := metrics.NewRecorder()
	if addr := a.cfg.Metrics.Address; addr != "" {
		_, stop, err := serveMetrics(addr, recorder, a.logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	began := time.Now()
	results, err := skyline.Batch(cmd.Context(), graph, queries, a.cfg.Batch.Parallelism, a.plannerOptions(recorder)...)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, r := range results {
		printResult(out, r.Query, r.Result)
	}
	a.logger.Info("batch finished", "queries", len(results), "elapsed", time.Since(began))
	return nil
}

// serveMetrics exposes recorder on addr until the returned stop is called.
// It returns the address actually bound.
func serveMetrics(addr string, recorder *metrics.Recorder, logger *slog.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "address", ln.Addr().String())

	return ln.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func printResult(w io.Writer, q skyline.Query, res *skyline.Result) {
	name := q.ID
	if name == "" {
		name = fmt.Sprintf("%s -> %s", q.Start, q.Destination)
	}
	fmt.Fprintf(w, "%s: %d route(s)\n", name, len(res.Routes))
	for _, r := range res.Routes {
		fmt.Fprintf(w, "  %s\n", r)
	}
	st := res.Stats
	fmt.Fprintf(w, "  expanded=%d generated=%d spills=%d faults=%d hit_ratio=%.2f\n",
		st.Expanded, st.Generated, st.Store.Spills, st.Store.Faults, st.Store.HitRatio)
}

func getEnvStr(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
