package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/opscart/k8s-replica-scaler/pkg/cluster"
	"github.com/opscart/k8s-replica-scaler/pkg/collector"
	"github.com/opscart/k8s-replica-scaler/pkg/config"
	"github.com/opscart/k8s-replica-scaler/pkg/datasource"
	"github.com/opscart/k8s-replica-scaler/pkg/driver"
	"github.com/opscart/k8s-replica-scaler/pkg/logging"
	"github.com/opscart/k8s-replica-scaler/pkg/models"
	"github.com/opscart/k8s-replica-scaler/pkg/policy"
	"github.com/opscart/k8s-replica-scaler/pkg/release"
	"github.com/opscart/k8s-replica-scaler/pkg/reporter"
	"github.com/opscart/k8s-replica-scaler/pkg/scaler"
	"github.com/opscart/k8s-replica-scaler/pkg/storage"
	"github.com/spf13/cobra"
)

var (
	// Scale flags
	namespace      string
	loglevel       string
	timeoutSeconds int64
	releaseLabel   string
	scaleIn        bool
	scaleOut       bool
	replicas       int32
	noReleaseCheck bool
	namespaceWide  bool
	outputFormat   string
	showUsage      bool
	saveResults    bool
	clusterID      string
	reportCSV      string

	// Global config
	cfg   *config.Config
	store storage.Store

	// History command vars
	historyLimit int
)

func main() {
	cfg = config.NewConfig()

	var rootCmd = &cobra.Command{
		Use:   "replica-scale",
		Short: "Scale Kubernetes deployments with autoscaler-aware guardrails",
		Long: `Reconcile deployment replica counts in a namespace against the minimum
replicas declared by each release's HorizontalPodAutoscaler. A scale-out never
lowers a replica count and a scale-in never raises one. Without --scale or
--scale-in a dry-run prints the computed targets.`,
		Args: cobra.ArbitraryArgs,
		Run:  runScale,
	}

	rootCmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Namespace to run against")
	rootCmd.Flags().StringVar(&loglevel, "loglevel", "info", "Log level to output: debug, info, warning, error")
	rootCmd.Flags().Int64Var(&timeoutSeconds, "timeout", 60, "Timeout in seconds for Kubernetes API calls")
	rootCmd.Flags().StringVar(&releaseLabel, "release-label", "release", "Deployment label that maps to the release name")
	rootCmd.Flags().BoolVar(&scaleIn, "scale-in", false, "Scale deployments in. Cannot be used with --scale")
	rootCmd.Flags().BoolVar(&scaleOut, "scale", false, "Scale deployments out. Cannot be used with --scale-in")
	rootCmd.Flags().Int32Var(&replicas, "replicas", 1, "Number of replicas to scale to. Does not overwrite the autoscaler floor unless set explicitly")
	rootCmd.Flags().BoolVar(&noReleaseCheck, "no-release-check", false, "Skip checking releases for autoscaler replica counts. Requires --replicas")
	rootCmd.Flags().BoolVar(&namespaceWide, "namespace-wide", false, "Scale all deployments within the namespace. Overridden by deployments passed in as arguments")
	rootCmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json")
	rootCmd.Flags().BoolVar(&showUsage, "show-usage", false, "Annotate the plan with live CPU/memory usage")
	rootCmd.Flags().BoolVar(&saveResults, "save", false, "Save run history to the database")
	rootCmd.Flags().StringVar(&clusterID, "cluster-id", "default", "Cluster identifier for saved runs")
	rootCmd.Flags().StringVar(&reportCSV, "report-csv", "", "Write the outcome report as CSV to this file")

	historyCmd := &cobra.Command{
		Use:   "history <namespace>",
		Short: "View past scaling runs",
		Args:  cobra.ExactArgs(1),
		Run:   runHistory,
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of runs to show")

	auditCmd := &cobra.Command{
		Use:   "audit <run-id>",
		Short: "View per-deployment outcomes of a run",
		Args:  cobra.ExactArgs(1),
		Run:   runAudit,
	}

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(auditCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fatalConfig(err error) {
	logging.Error("Config", err, "invalid configuration, exiting")
	os.Exit(1)
}

func runScale(cmd *cobra.Command, args []string) {
	level, err := logging.ParseLevel(loglevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logging.InitForCLI(level, os.Stderr)

	cfg.Namespace = namespace
	cfg.Deployments = args
	cfg.NamespaceWide = namespaceWide
	cfg.ScaleIn = scaleIn
	cfg.ScaleOut = scaleOut
	cfg.ReleaseCheck = !noReleaseCheck
	cfg.ReleaseLabel = releaseLabel
	cfg.TimeoutSeconds = timeoutSeconds
	cfg.LogLevel = loglevel
	cfg.Output = outputFormat
	cfg.ShowUsage = showUsage
	cfg.SaveResults = saveResults
	cfg.ClusterID = clusterID
	cfg.ReportCSV = reportCSV
	if cmd.Flags().Changed("replicas") {
		cfg.DefaultReplicas = replicas
		cfg.UserOverrode = true
	}

	// Every configuration error is fatal before any cluster call.
	if err := cfg.Validate(); err != nil {
		fatalConfig(err)
	}

	if len(args) > 0 {
		logging.Info("Main", "only looking for these deployments: %v", args)
	}

	client, err := cluster.New(cfg.Namespace, cfg.TimeoutSeconds)
	if err != nil {
		logging.Error("Main", err, "failed to initialize cluster client")
		os.Exit(1)
	}

	var inspector release.Inspector
	if cfg.ReleaseCheck {
		inspector = release.NewHelmInspector(client.Clientset(), cfg.Namespace)
	}

	rep := reporter.New(os.Stdout, cfg.ShowUsage)
	d := driver.New(
		collector.New(client, inspector, cfg),
		policy.New(cfg),
		scaler.New(client),
		&promptConfirmer{reporter: rep, in: os.Stdin, annotate: annotateUsage},
		cfg,
	)

	ctx := context.Background()
	report, err := d.Run(ctx)
	if err != nil {
		logging.Error("Main", err, "reconciliation failed")
		os.Exit(1)
	}

	if report.Direction == models.DirectionNone {
		annotateUsage(ctx, report)
	}

	switch cfg.Output {
	case "json":
		if err := rep.RenderJSON(report); err != nil {
			logging.Error("Main", err, "failed to render report")
			os.Exit(1)
		}
	default:
		if report.Direction == models.DirectionNone {
			logging.Info("Main", "current replica data for namespace %s:", cfg.Namespace)
			rep.RenderPlan(report)
		} else {
			rep.RenderOutcome(report)
		}
	}

	if cfg.ReportCSV != "" {
		if err := writeCSVReport(report, cfg.ReportCSV); err != nil {
			logging.Error("Main", err, "failed to write CSV report")
		}
	}

	if cfg.SaveResults && report.Direction != models.DirectionNone && !report.Aborted {
		if cfg.StorageEnabled {
			saveRunHistory(ctx, report)
		} else {
			logging.Warn("Storage", "storage disabled via STORAGE_ENABLED, not saving run history")
		}
	}

	if report.Failed() {
		os.Exit(1)
	}
}

// promptConfirmer shows the computed plan and gates the apply step on an
// explicit yes.
type promptConfirmer struct {
	reporter *reporter.Reporter
	in       io.Reader
	annotate func(ctx context.Context, report *models.Report)
}

func (p *promptConfirmer) Confirm(report *models.Report) (bool, error) {
	if p.annotate != nil {
		p.annotate(context.Background(), report)
	}
	p.reporter.RenderPlan(report)
	fmt.Printf("\nContinue with scaling? [y/N] ")

	reader := bufio.NewReader(p.in)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false, nil
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}

// annotateUsage decorates the report with live usage numbers when requested.
// Prometheus is preferred when configured and reachable, with metrics-server
// as the fallback.
func annotateUsage(ctx context.Context, report *models.Report) {
	if !cfg.ShowUsage {
		return
	}

	if cfg.PrometheusURL != "" {
		promDS, err := datasource.NewPrometheusSource(cfg.PrometheusURL)
		if err == nil && promDS.IsAvailable(ctx) {
			logging.Info("Main", "using Prometheus at %s for usage annotation", cfg.PrometheusURL)
			datasource.Annotate(ctx, promDS, report.Signals)
			return
		}
		logging.Warn("Main", "Prometheus not reachable, falling back to metrics-server")
	}

	metricsClient, err := cluster.NewMetricsClient()
	if err != nil {
		logging.Warn("Main", "usage annotation unavailable: %v", err)
		return
	}
	datasource.Annotate(ctx, datasource.NewMetricsServerSource(metricsClient), report.Signals)
}

func initStorage() error {
	var err error
	store, err = storage.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	return nil
}

// saveRunHistory records the run and its outcomes. Failures are warnings;
// history must never abort scaling.
func saveRunHistory(ctx context.Context, report *models.Report) {
	if err := initStorage(); err != nil {
		logging.Warn("Storage", "not saving run history: %v", err)
		return
	}
	defer store.Close()

	run := &models.ScaleRun{
		ClusterID: cfg.ClusterID,
		Namespace: report.Namespace,
		Direction: report.Direction,
		CreatedBy: os.Getenv("USER"),
	}
	if err := store.SaveRun(ctx, run); err != nil {
		logging.Warn("Storage", "failed to save run: %v", err)
		return
	}

	for _, sig := range report.Signals {
		outcome := &models.ScaleOutcome{
			RunID:            run.ID,
			Deployment:       sig.Name,
			PreviousReplicas: sig.CurrentReplicas,
			TargetReplicas:   sig.Target(),
			Outcome:          sig.Outcome,
			Reason:           sig.Reason,
		}
		if err := store.SaveOutcome(ctx, outcome); err != nil {
			logging.Warn("Storage", "failed to save outcome for %s: %v", sig.Name, err)
		}
	}
	logging.Info("Storage", "saved run %s with %d outcomes", run.ID, len(report.Signals))
}

func writeCSVReport(report *models.Report, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	if err := reporter.GenerateCSV(report, file); err != nil {
		return fmt.Errorf("failed to write CSV report: %w", err)
	}
	logging.Info("Main", "CSV report written to %s", path)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) {
	logging.InitForCLI(logging.LevelInfo, os.Stderr)
	historyNamespace := args[0]

	if err := initStorage(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	runs, err := store.ListRuns(ctx, historyNamespace, historyLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(runs) == 0 {
		fmt.Printf("No scaling runs found for namespace: %s\n", historyNamespace)
		return
	}

	fmt.Printf("Recent scaling runs for namespace '%s':\n\n", historyNamespace)
	for i, run := range runs {
		fmt.Printf("%d. %s (ID: %s)\n", i+1, run.Direction, run.ID)
		fmt.Printf("   Cluster: %s\n", run.ClusterID)
		if run.CreatedBy != "" {
			fmt.Printf("   By: %s\n", run.CreatedBy)
		}
		fmt.Printf("   Created: %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

func runAudit(cmd *cobra.Command, args []string) {
	logging.InitForCLI(logging.LevelInfo, os.Stderr)
	runID := args[0]

	if err := initStorage(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	outcomes, err := store.GetOutcomes(ctx, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(outcomes) == 0 {
		fmt.Println("No outcomes found for this run")
		return
	}

	fmt.Printf("Outcomes for run %s:\n\n", runID)
	for i, o := range outcomes {
		fmt.Printf("%d. %s: %d -> %d (%s)\n", i+1, o.Deployment, o.PreviousReplicas, o.TargetReplicas, o.Outcome)
		if o.Reason != "" {
			fmt.Printf("   Reason: %s\n", o.Reason)
		}
		fmt.Printf("   Executed: %s\n", o.ExecutedAt.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}
