// discoveryd runs the lineage discovery pipeline: a pool of queue workers
// driving the job/plan/catalog state machines, or a one-shot CLI command
// against the same store for submission, approval, and inspection.
// This binary is the worker side a real API server would enqueue jobs
// into; the HTTP surface itself lives elsewhere (see DESIGN.md).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/lineagekit/discovery/pkg/audit"
	"github.com/lineagekit/discovery/pkg/catalog"
	"github.com/lineagekit/discovery/pkg/fetch"
	"github.com/lineagekit/discovery/pkg/llmaction"
	"github.com/lineagekit/discovery/pkg/metrics"
	"github.com/lineagekit/discovery/pkg/orchestrator"
	"github.com/lineagekit/discovery/pkg/plan"
	"github.com/lineagekit/discovery/pkg/prompt"
	"github.com/lineagekit/discovery/pkg/promptconfig"
	"github.com/lineagekit/discovery/pkg/queue"
	"github.com/lineagekit/discovery/pkg/store"
	"github.com/lineagekit/discovery/pkg/tracing"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./config"),
		"Path to the action-routing configuration directory (active.yml, routings/, providers/)")
	promptDir := flag.String("prompt-dir",
		getEnv("PROMPT_DIR", "./prompts"),
		"Path to the filesystem prompt fallback directory")
	workDir := flag.String("work-dir",
		getEnv("DISCOVERY_WORK_DIR", "./work"),
		"Path under which fetched artifacts are localized")
	metricsAddr := flag.String("metrics-addr",
		getEnv("DISCOVERY_METRICS_ADDR", ":9090"),
		"Address the worker pool's /metrics endpoint listens on (worker command only)")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v; continuing with existing environment", envPath, err)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbCfg, err := store.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("database configuration: %v", err)
	}
	st, err := store.NewStore(ctx, dbCfg)
	if err != nil {
		log.Fatalf("connect to store: %v", err)
	}
	defer st.Close()

	switch args[0] {
	case "worker":
		runWorker(ctx, st, *configDir, *promptDir, *workDir, *metricsAddr)
	case "submit":
		runSubmit(ctx, st, args[1:])
	case "approve":
		runApprove(ctx, st, args[1:])
	case "cancel":
		runCancel(ctx, st, args[1:])
	case "job":
		runShowJob(ctx, st, args[1:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `discoveryd: lineage discovery pipeline

Usage:
  discoveryd [flags] worker                    run the queue worker pool
  discoveryd [flags] submit <name> <path>      submit a new discovery job
  discoveryd [flags] approve <plan_id>         approve a pending plan
  discoveryd [flags] cancel <solution_id>      cancel the active job
  discoveryd [flags] job <job_id>              print a job's current state

Flags:`)
	flag.PrintDefaults()
}

// runWorker wires every collaborator into an orchestrator.Executor and
// hands it to a queue.WorkerPool: build the graph once, run it forever.
func runWorker(ctx context.Context, st *store.Store, configDir, promptDir, workDir, metricsAddr string) {
	fetcher, err := fetch.New(workDir)
	if err != nil {
		log.Fatalf("construct artifact fetcher: %v", err)
	}

	routing, err := promptconfig.Load(configDir)
	if err != nil {
		log.Fatalf("load action routing config from %s: %v", configDir, err)
	}
	go func() {
		if err := promptconfig.Watch(ctx, configDir, routing); err != nil && ctx.Err() == nil {
			slog.Warn("routing config watcher stopped", "error", err)
		}
	}()

	composer := prompt.New(st, promptDir)

	var limiter *rate.Limiter
	if rps := getEnv("DISCOVERY_LLM_RATE_LIMIT", ""); rps != "" {
		var r float64
		if _, err := fmt.Sscanf(rps, "%f", &r); err == nil && r > 0 {
			limiter = rate.NewLimiter(rate.Limit(r), 1)
		}
	}
	runner := llmaction.NewRunner(routing, composer, llmaction.DisabledClient{}, limiter)

	planner := plan.New(st)
	syncer := catalog.New(st)
	auditLogger := audit.New(st)

	tracer, err := tracing.New(ctx, tracing.Config{
		ServiceName: "discovery-worker",
		Enabled:     getEnv("DISCOVERY_TRACING_ENABLED", "false") == "true",
	})
	if err != nil {
		log.Fatalf("construct tracer: %v", err)
	}

	executor := orchestrator.New(st, fetcher, planner, syncer, runner, auditLogger, tracer)
	executor.ReportsRoot = getEnv("DISCOVERY_ARTIFACTS_ROOT", filepath.Join(workDir, "artifacts"))

	podID := getEnv("HOSTNAME", "discoveryd")
	qcfg := queue.DefaultConfig()
	pool := queue.NewWorkerPool(podID, st, qcfg, executor)

	if err := pool.Start(ctx); err != nil {
		log.Fatalf("start worker pool: %v", err)
	}
	slog.Info("discoveryd worker pool running", "pod_id", podID, "workers", qcfg.WorkerCount)

	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(pool))
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server stopped", "error", err)
		}
	}()
	slog.Info("metrics endpoint listening", "addr", metricsAddr)

	<-ctx.Done()
	slog.Info("shutdown signal received, draining in-flight jobs")
	_ = metricsSrv.Close()
	pool.Stop()
	if err := tracer.Shutdown(context.Background()); err != nil {
		slog.Warn("tracer shutdown failed", "error", err)
	}
}

func runSubmit(ctx context.Context, st *store.Store, args []string) {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	requiresApproval := fs.Bool("requires-approval", true, "require human plan approval before execution")
	_ = fs.Parse(args)
	rest := fs.Args()
	if len(rest) != 2 {
		fmt.Fprintln(os.Stderr, "usage: discoveryd submit [-requires-approval=bool] <solution-name> <storage-path>")
		os.Exit(2)
	}

	svc := orchestrator.NewService(st)
	jobID, err := svc.Submit(ctx, rest[0], rest[1], *requiresApproval)
	if err != nil {
		log.Fatalf("submit: %v", err)
	}
	fmt.Println(jobID)
}

func runApprove(ctx context.Context, st *store.Store, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: discoveryd approve <plan-id>")
		os.Exit(2)
	}
	svc := orchestrator.NewService(st)
	jobID, err := svc.Approve(ctx, args[0])
	if err != nil {
		log.Fatalf("approve: %v", err)
	}
	fmt.Println(jobID)
}

func runCancel(ctx context.Context, st *store.Store, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: discoveryd cancel <solution-id>")
		os.Exit(2)
	}
	svc := orchestrator.NewService(st)
	if err := svc.Cancel(ctx, args[0]); err != nil {
		log.Fatalf("cancel: %v", err)
	}
	fmt.Println("ok")
}

func runShowJob(ctx context.Context, st *store.Store, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: discoveryd job <job-id>")
		os.Exit(2)
	}
	svc := orchestrator.NewService(st)
	job, err := svc.GetJob(ctx, args[0])
	if err != nil {
		log.Fatalf("get job: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(job)
}
