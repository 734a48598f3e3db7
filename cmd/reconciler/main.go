package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/davidleathers/call-reconciliation/internal/domain/values"
	"github.com/davidleathers/call-reconciliation/internal/infrastructure/cache"
	"github.com/davidleathers/call-reconciliation/internal/infrastructure/config"
	"github.com/davidleathers/call-reconciliation/internal/infrastructure/database"
	"github.com/davidleathers/call-reconciliation/internal/infrastructure/leadsource"
	"github.com/davidleathers/call-reconciliation/internal/infrastructure/repository"
	"github.com/davidleathers/call-reconciliation/internal/infrastructure/routingapi"
	"github.com/davidleathers/call-reconciliation/internal/infrastructure/telemetry"
	"github.com/davidleathers/call-reconciliation/internal/service/correction"
	"github.com/davidleathers/call-reconciliation/internal/service/legs"
	"github.com/davidleathers/call-reconciliation/internal/service/reconciliation"
)

const dateLayout = "2006-01-02"

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		fromFlag   = flag.String("from", "", "Range start date (YYYY-MM-DD, inclusive)")
		toFlag     = flag.String("to", "", "Range end date (YYYY-MM-DD, exclusive)")
		dryRun     = flag.Bool("dry-run", false, "Compute corrections without applying them")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	from, to, err := resolveRange(*fromFlag, *toFlag, cfg.Reconcile.LookbackDays)
	if err != nil {
		logger.Fatal("invalid date range", zap.Error(err))
	}

	ctx := context.Background()

	pool, err := database.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	store := repository.NewBatchStore(repository.NewStore(pool, logger))
	routingClient := routingapi.NewClient(cfg.RoutingAPI, logger)
	leadClient := leadsource.NewClient(cfg.LeadSource, logger)

	var fetcher legs.LegFetcher = routingClient
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		fetcher = cache.NewCachedLegFetcher(routingClient, rdb, cfg.Redis.LegTTL, logger)
	}

	resolver := legs.NewResolver(fetcher, legs.DefaultPolicy(), logger)
	applier := correction.NewApplier(routingClient, logger)

	opts, err := runOptions(cfg.Reconcile, *dryRun)
	if err != nil {
		logger.Fatal("invalid reconcile settings", zap.Error(err))
	}

	svc := reconciliation.NewService(store, leadClient, routingClient, resolver, applier, opts, logger)

	result, err := svc.Run(ctx, from, to)
	if err != nil {
		logger.Fatal("reconciliation run failed", zap.Error(err))
	}

	printSummary(result, from, to)
	if len(result.Failures) > 0 {
		os.Exit(1)
	}
}

// resolveRange defaults to the trailing lookback window ending now.
func resolveRange(fromFlag, toFlag string, lookbackDays int) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	if toFlag != "" {
		parsed, err := time.Parse(dateLayout, toFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing -to: %w", err)
		}
		to = parsed
	}

	from := to.AddDate(0, 0, -lookbackDays)
	if fromFlag != "" {
		parsed, err := time.Parse(dateLayout, fromFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing -from: %w", err)
		}
		from = parsed
	}

	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("range start %s is not before end %s",
			from.Format(dateLayout), to.Format(dateLayout))
	}
	return from, to, nil
}

func runOptions(cfg config.ReconcileConfig, dryRun bool) (reconciliation.Options, error) {
	opts := reconciliation.DefaultOptions()
	if cfg.WindowMinutes > 0 {
		opts.Matching.WindowMinutes = cfg.WindowMinutes
	}
	if cfg.PayoutTolerance != "" {
		tolerance, err := values.NewMoneyFromString(cfg.PayoutTolerance)
		if err != nil {
			return opts, fmt.Errorf("parsing payout tolerance: %w", err)
		}
		opts.Matching.PayoutTolerance = tolerance
	}
	if cfg.CorrectionDelay > 0 {
		opts.CorrectionDelay = cfg.CorrectionDelay
	}
	opts.DryRun = dryRun || cfg.DryRun
	return opts, nil
}

func printSummary(result *reconciliation.RunResult, from, to time.Time) {
	fmt.Printf("Reconciliation %s to %s", from.Format(dateLayout), to.Format(dateLayout))
	if result.DryRun {
		fmt.Print(" (dry run)")
	}
	fmt.Println()
	fmt.Printf("  processed:           %d\n", result.Processed)
	fmt.Printf("  matched:             %d\n", result.Matched)
	fmt.Printf("  corrected:           %d\n", result.Corrected)
	fmt.Printf("  unmatched:           %d\n", result.Unmatched)
	fmt.Printf("  already linked:      %d\n", result.AlreadyLinked)
	fmt.Printf("  skipped corrections: %d\n", result.SkippedCorrections)
	fmt.Printf("  parse failures:      %d\n", result.ParseFailures)
	fmt.Printf("  failures:            %d\n", len(result.Failures))
	for _, f := range result.Failures {
		fmt.Printf("    %s: %s\n", f.ID, f.Error)
	}
}
