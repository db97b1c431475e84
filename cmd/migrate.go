package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/restaurant-crm/internal/app"
	"github.com/jmehdipour/restaurant-crm/internal/logger"
	"github.com/jmehdipour/restaurant-crm/internal/metrics"
	"github.com/jmehdipour/restaurant-crm/internal/migration"
	"github.com/jmehdipour/restaurant-crm/internal/model"
)

var (
	migrateApply       bool
	migrateConcurrency int
	migratePushGateway string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move legacy form and nested documents into the tenant-scoped layout",
	Long: `Scans the legacy layouts, classifies every document, writes it to its
tenant's collection and verifies per-tenant counts. Without --apply the run
only plans. Exits non-zero when the current layout holds fewer documents than
the legacy data maps to.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		concurrency := cfg.Migration.Concurrency
		if migrateConcurrency > 0 {
			concurrency = migrateConcurrency
		}
		auditor := migration.NewAuditor(a.Store, a.Tenants, a.Entities, migration.Options{
			Legacy:             a.Legacy(),
			TenantFields:       cfg.Migration.TenantFields,
			Concurrency:        concurrency,
			DryRun:             !migrateApply,
			DefaultCountryCode: cfg.Phone.DefaultCountryCode,
			Archive:            a.Archive,
		})

		rep, runErr := auditor.Run(ctx)
		if rep != nil {
			printReport(cmd.OutOrStdout(), rep)
		}
		pushMetrics(rep)

		if errors.Is(runErr, migration.ErrRegression) {
			return runErr
		}
		if runErr != nil {
			return fmt.Errorf("migration: %w", runErr)
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateApply, "apply", false, "write to the current layout (default is a dry run)")
	migrateCmd.Flags().IntVar(&migrateConcurrency, "concurrency", 0, "tenants migrated in parallel (default from config)")
	migrateCmd.Flags().StringVar(&migratePushGateway, "push-gateway", "", "Prometheus Pushgateway URL for run metrics")
}

func printReport(out io.Writer, rep *migration.Report) {
	mode := "apply"
	if rep.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintf(out, ">> run %s (%s): %d legacy documents\n\n", rep.RunID, mode, rep.Scanned)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OUTCOME\tKIND\tTENANT\tSOURCE\tTARGET\tDETAIL")
	for _, it := range rep.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			it.Outcome, dash(string(it.Kind)), dash(it.TenantID), it.SourcePath, dash(it.TargetPath), it.Detail)
	}
	_ = tw.Flush()

	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TENANT\tKIND\tLEGACY\tMIGRATED\tCOLLECTION\t")
	for _, c := range rep.Counts {
		flag := ""
		if c.Regression() && !rep.DryRun {
			flag = "REGRESSION"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", c.TenantID, c.Kind, c.Legacy, c.Current, c.Total, flag)
	}
	_ = tw.Flush()

	tally := rep.Tally()
	fmt.Fprintf(out, "\ncreated=%d updated=%d unchanged=%d planned=%d quarantined=%d orphan=%d failed=%d\n",
		tally[model.OutcomeCreated], tally[model.OutcomeUpdated], tally[model.OutcomeUnchanged],
		tally[model.OutcomePlanned], tally[model.OutcomeQuarantined], tally[model.OutcomeOrphan],
		tally[model.OutcomeFailed])

	warnings := rep.Warnings
	if n := tally[model.OutcomeFailed]; n > 0 {
		warnings = append(warnings, fmt.Sprintf("%d documents failed and were skipped", n))
	}
	for _, w := range warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func pushMetrics(rep *migration.Report) {
	if migratePushGateway == "" {
		return
	}
	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	p := push.New(migratePushGateway, "crm_migration").Gatherer(reg)
	if rep != nil {
		p = p.Grouping("run", rep.RunID)
	}
	if err := p.Push(); err != nil {
		logger.Log.Warn("push migration metrics", zap.String("gateway", migratePushGateway), zap.Error(err))
	}
}
