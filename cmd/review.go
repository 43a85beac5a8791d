package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"comparison-review/core/config"
	"comparison-review/core/database"
	"comparison-review/core/logger"
	"comparison-review/core/reconcile"
	"comparison-review/core/report"
	"comparison-review/core/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// Flags shared by the review commands
	reviewRun       int64
	reviewRecord    int64
	reviewField     string
	reviewAccept    bool
	reviewReject    bool
	reviewDiffering bool
	reviewJSON      bool
	reviewRefresh   bool
	yesConfirm      bool
)

// reviewCmd is the parent command for all review operations.
var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review and resolve comparison differences",
	Long: `Inspect the comparison table written by the upstream pipeline and resolve
differing fields by accepting the source value or keeping the destination value.`,
}

var reviewFieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the fields of the comparison table",
	RunE:  runReviewFields,
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List comparison records and their field states",
	RunE:  runReviewList,
}

var reviewSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count pending, accepted and rejected fields",
	RunE:  runReviewSummary,
}

var reviewResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Accept or reject differing fields and save the result",
	Long: `Resolve differing fields and write the selections back in one transaction.

Without --record every record of the run is resolved; without --field every
differing field of the selected records is resolved.

Examples:
  # Accept the source Email of record 42
  review resolve --record 42 --field Email --accept

  # Keep every destination value of run 7 without prompting
  review resolve --run 7 --reject --yes`,
	RunE: runReviewResolve,
}

var reviewReportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List published review reports",
	RunE:  runReviewReports,
}

func init() {
	reviewCmd.PersistentFlags().Int64Var(&reviewRun, "run", 0, "Pipeline execution id (0 = all runs)")

	reviewFieldsCmd.Flags().BoolVar(&reviewRefresh, "refresh", false, "Ignore the schema cache")

	reviewListCmd.Flags().BoolVar(&reviewDiffering, "differing", false, "Only records with differences")
	reviewListCmd.Flags().BoolVar(&reviewJSON, "json", false, "Print records as JSON to stdout")

	reviewResolveCmd.Flags().Int64Var(&reviewRecord, "record", 0, "Record comparison id (0 = all records)")
	reviewResolveCmd.Flags().StringVar(&reviewField, "field", "", "Field name (empty = all differing fields)")
	reviewResolveCmd.Flags().BoolVar(&reviewAccept, "accept", false, "Take the source value")
	reviewResolveCmd.Flags().BoolVar(&reviewReject, "reject", false, "Keep the destination value")
	reviewResolveCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm the save (non-interactive)")
	reviewResolveCmd.MarkFlagsMutuallyExclusive("accept", "reject")
	reviewResolveCmd.MarkFlagsOneRequired("accept", "reject")

	reviewCmd.AddCommand(reviewFieldsCmd, reviewListCmd, reviewSummaryCmd, reviewResolveCmd, reviewReportsCmd)
	RootCmd.AddCommand(reviewCmd)
}

// reviewEnv holds what every review command needs.
type reviewEnv struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	schema *reconcile.Discoverer
	loader *reconcile.Loader
	writer *reconcile.Writer
}

func setupReview() (*reviewEnv, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	schema := reconcile.NewDiscoverer(db, cfg.Comparison, l)
	return &reviewEnv{
		cfg:    cfg,
		logger: l,
		db:     db,
		schema: schema,
		loader: reconcile.NewLoader(db, schema, cfg.Comparison, l),
		writer: reconcile.NewWriter(db, cfg.Comparison, l),
	}, nil
}

func runFilter() *int64 {
	if reviewRun == 0 {
		return nil
	}
	run := reviewRun
	return &run
}

func runReviewFields(cmd *cobra.Command, args []string) error {
	env, err := setupReview()
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	if reviewRefresh {
		env.schema.Invalidate()
	}
	fields, err := env.schema.Discover(cmd.Context())
	if err != nil {
		return err
	}

	env.logger.Info("Comparison fields",
		zap.String("table", env.cfg.Comparison.Table),
		zap.Strings("fields", fields),
	)
	return nil
}

func runReviewList(cmd *cobra.Command, args []string) error {
	env, err := setupReview()
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	records, err := env.loader.Load(cmd.Context(), runFilter())
	if err != nil {
		return err
	}

	if reviewDiffering {
		filtered := records[:0]
		for _, r := range records {
			if len(r.Fields.Differing()) > 0 {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	if reviewJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	for _, r := range records {
		for _, f := range r.Fields.Differing() {
			env.logger.Info("Difference",
				zap.Int64("record_id", r.RecordComparisonID),
				zap.String("subscriber", r.SubscriberIdentifier),
				zap.String("field", f.Name()),
				zap.String("source", f.SourceValue()),
				zap.String("dest", f.DestValue()),
				zap.Stringer("state", f.State()),
			)
		}
	}
	printReviewSummary(env.logger, reconcile.Summarize(records))
	return nil
}

func runReviewSummary(cmd *cobra.Command, args []string) error {
	env, err := setupReview()
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	records, err := env.loader.Load(cmd.Context(), runFilter())
	if err != nil {
		return err
	}
	printReviewSummary(env.logger, reconcile.Summarize(records))
	return nil
}

func runReviewResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	env, err := setupReview()
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	decision := reconcile.DecisionAccept
	if reviewReject {
		decision = reconcile.DecisionReject
	}

	records, err := env.loader.Load(ctx, runFilter())
	if err != nil {
		return err
	}
	engine := reconcile.NewEngine(records)

	changes, err := applyDecision(engine, records, decision)
	if err != nil {
		return err
	}
	if changes == 0 {
		env.logger.Info("No differing fields matched. Nothing to save.")
		return nil
	}

	env.logger.Info("Resolutions applied in memory",
		zap.String("decision", string(decision)),
		zap.Int("fields", changes),
	)
	printReviewSummary(env.logger, engine.Summary())

	if !confirmDestructiveAction() {
		env.logger.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	snapshot := engine.Snapshot()
	result, err := env.writer.Save(ctx, snapshot)
	if err != nil {
		return err
	}
	env.logger.Info("Saved resolutions",
		zap.Int("statements", result.Statements),
		zap.Int("fields", result.Fields),
	)

	if env.cfg.Report.Publish {
		publisher, err := newPublisher(ctx, env)
		if err != nil {
			env.logger.Warn("Report storage unavailable", zap.Error(err))
			return nil
		}
		if _, err := publisher.Publish(ctx, report.Build(env.cfg.Comparison.Table, runFilter(), snapshot, result)); err != nil {
			env.logger.Warn("Failed to publish review report", zap.Error(err))
		}
	}
	return nil
}

// applyDecision resolves the fields selected by --record and --field and
// returns how many were changed.
func applyDecision(engine *reconcile.Engine, records []*reconcile.ComparisonRecord, d reconcile.Decision) (int, error) {
	targets := make([]int64, 0, len(records))
	if reviewRecord != 0 {
		targets = append(targets, reviewRecord)
	} else {
		for _, r := range records {
			targets = append(targets, r.RecordComparisonID)
		}
	}

	changed := 0
	for _, id := range targets {
		if reviewField == "" {
			changes, err := engine.ResolveRecord(id, d)
			if err != nil {
				return 0, err
			}
			changed += len(changes)
			continue
		}

		_, err := engine.Resolve(id, reviewField, d)
		switch {
		case err == nil:
			changed++
		case reviewRecord == 0 && errors.Is(err, reconcile.ErrNotEligible):
			// Bulk runs skip records where the field does not differ.
		default:
			return 0, err
		}
	}
	return changed, nil
}

func runReviewReports(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer l.Sync()

	publisher, err := newPublisher(ctx, &reviewEnv{cfg: cfg, logger: l})
	if err != nil {
		return err
	}
	keys, err := publisher.List(ctx, runFilter())
	if err != nil {
		return err
	}
	for _, key := range keys {
		l.Info("Report", zap.String("key", key))
	}
	l.Info("Reports listed", zap.Int("count", len(keys)))
	return nil
}

func newPublisher(ctx context.Context, env *reviewEnv) (*report.Publisher, error) {
	client, err := storage.NewClient(env.cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to storage: %w", err)
	}
	if err := storage.EnsureBucket(ctx, client, env.cfg.Storage.Bucket, env.cfg.Storage.Region); err != nil {
		return nil, err
	}
	return report.NewPublisher(client, env.cfg.Storage.Bucket, env.cfg.Report, env.logger), nil
}

// printReviewSummary prints the resolution counts using logger.
func printReviewSummary(l *zap.Logger, s reconcile.Summary) {
	l.Info("Review summary",
		zap.Int("records", s.Records),
		zap.Int("records_with_differences", s.RecordsWithDifferences),
		zap.Int("differing_fields", s.DifferingFields),
		zap.Int("pending", s.Pending),
		zap.Int("accepted", s.Accepted),
		zap.Int("rejected", s.Rejected),
	)
}

// confirmDestructiveAction prompts the user for confirmation or uses --yes flag.
func confirmDestructiveAction() bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\n⚠️  Type 'yes' to write the resolutions: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(response)
	return response == "yes"
}
