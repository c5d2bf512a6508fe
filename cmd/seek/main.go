package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dcavise/SEEK-sub000/internal/config"
	"github.com/Dcavise/SEEK-sub000/internal/importer"
	"github.com/Dcavise/SEEK-sub000/internal/matcher"
	"github.com/Dcavise/SEEK-sub000/internal/review"
	"github.com/Dcavise/SEEK-sub000/internal/store"
)

var dbConn *store.Connection

func main() {
	config.LoadEnv()

	rootCmd := &cobra.Command{
		Use:   "seek",
		Short: "SEEK property record matching engine",
		Long:  `Reconciles disclosure-derived property records against the canonical parcel registry`,
	}

	rootCmd.AddCommand(createPingCmd())
	rootCmd.AddCommand(createImportCmd())
	rootCmd.AddCommand(createMatchCmd())
	rootCmd.AddCommand(createSpatialCmd())
	rootCmd.AddCommand(createReviewCmd())
	rootCmd.AddCommand(createStatsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// requireDB opens the database connection on first use
func requireDB() *store.Connection {
	if dbConn != nil {
		return dbConn
	}
	conn, err := store.NewConnection()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := store.EnsureSchema(context.Background(), conn.DB); err != nil {
		log.Fatalf("Failed to provision schema: %v", err)
	}
	dbConn = conn
	return dbConn
}

func createPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test database connectivity",
		Run: func(cmd *cobra.Command, args []string) {
			conn := requireDB()
			defer conn.Close()

			loader := store.NewSnapshotLoader(conn.DB)
			count, err := loader.CountParcels(context.Background())
			if err != nil {
				log.Fatalf("Error counting parcels: %v", err)
			}
			fmt.Println("Database connection successful!")
			fmt.Printf("Parcels loaded: %d\n", count)
		},
	}
}

func createImportCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import [disclosure.csv]",
		Short: "Parse a disclosure file and stage its records",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			records, stats, err := importer.ParseDisclosureFile(args[0])
			if err != nil {
				log.Fatalf("Failed to parse %s: %v", args[0], err)
			}
			fmt.Printf("Parsed %d of %d rows (%d skipped)\n", stats.Parsed, stats.Rows, stats.Skipped)

			withCoords := 0
			for _, rec := range records {
				if rec.Latitude != nil && rec.Longitude != nil {
					withCoords++
				}
			}
			fmt.Printf("Records with coordinates: %d\n", withCoords)

			if dryRun {
				return
			}

			conn := requireDB()
			defer conn.Close()

			staged, err := store.NewPersister(conn.DB).StageSourceRecords(context.Background(), records)
			if err != nil {
				log.Fatalf("Failed to stage records: %v", err)
			}
			fmt.Printf("Staged %d new records (%d already present)\n", staged, len(records)-staged)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and report without writing to the database")
	return cmd
}

func newResolver() *matcher.Resolver {
	return &matcher.Resolver{
		StructuralMinSimilarity: config.StructuralMinSimilarity(),
		SpatialMaxMeters:        config.SpatialMaxMeters(),
	}
}

func runMatchBatch(disclosurePath, city string, spatial, debugFlag bool) {
	conn := requireDB()
	defer conn.Close()

	ctx := context.Background()

	sources, parseStats, err := importer.ParseDisclosureFile(disclosurePath)
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", disclosurePath, err)
	}
	fmt.Printf("Parsed %d source records (%d rows skipped)\n", parseStats.Parsed, parseStats.Skipped)

	loader := store.NewSnapshotLoader(conn.DB)
	canonical, err := loader.LoadCanonical(ctx, city)
	if err != nil {
		log.Fatalf("Failed to load canonical snapshot: %v", err)
	}
	fmt.Printf("Loaded %d canonical parcels", len(canonical))
	if city != "" {
		fmt.Printf(" for %s", city)
	}
	fmt.Println()

	results, stats, err := newResolver().RunBatch(ctx, sources, canonical, matcher.BatchOptions{
		Workers: config.MatchWorkers(),
		Spatial: spatial,
		Debug:   debugFlag,
	})
	if err != nil {
		log.Fatalf("Batch run failed: %v", err)
	}

	printStats(stats)

	persister := store.NewPersister(conn.DB)
	if err := persister.SaveRun(ctx, stats, results); err != nil {
		log.Fatalf("Failed to save run: %v", err)
	}

	registry := review.NewRegistry()
	ids := registry.CreateFromResults(results)
	for _, id := range ids {
		d, _ := registry.Get(id)
		if err := persister.SaveDecision(ctx, d); err != nil {
			log.Printf("Warning: failed to save decision %s: %v", id, err)
		}
	}
	fmt.Printf("Created %d pending review decisions\n", len(ids))
}

func createMatchCmd() *cobra.Command {
	var city string
	var debugFlag bool

	cmd := &cobra.Command{
		Use:   "match [disclosure.csv]",
		Short: "Run the textual matching pipeline over a disclosure file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runMatchBatch(args[0], city, false, debugFlag)
		},
	}
	cmd.Flags().StringVar(&city, "city", "", "Restrict the canonical snapshot to one city")
	cmd.Flags().BoolVar(&debugFlag, "debug", false, "Enable debug output")
	return cmd
}

func createSpatialCmd() *cobra.Command {
	var city string
	var debugFlag bool

	cmd := &cobra.Command{
		Use:   "spatial [disclosure.csv]",
		Short: "Run the spatial proximity matcher over a disclosure file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runMatchBatch(args[0], city, true, debugFlag)
		},
	}
	cmd.Flags().StringVar(&city, "city", "", "Restrict the canonical snapshot to one city")
	cmd.Flags().BoolVar(&debugFlag, "debug", false, "Enable debug output")
	return cmd
}

func printStats(stats *matcher.BatchRunStats) {
	fmt.Printf("Run %s complete in %v\n", stats.RunID, stats.Duration)
	fmt.Printf("  Total:            %d\n", stats.Total)
	matchRate := 0.0
	if stats.Total > 0 {
		matchRate = float64(stats.Matched) / float64(stats.Total) * 100
	}
	fmt.Printf("  Matched:          %d (%.1f%%)\n", stats.Matched, matchRate)
	fmt.Printf("  Unmatched:        %d\n", stats.Unmatched)
	for _, tier := range []matcher.Tier{matcher.TierIdentifier, matcher.TierAddress, matcher.TierStructural, matcher.TierSpatial, matcher.TierNone} {
		if count := stats.TierCounts[tier]; count > 0 {
			fmt.Printf("    %-18s %d\n", string(tier)+":", count)
		}
	}
	fmt.Printf("  Avg confidence:   %.1f\n", stats.AverageConfidence)
	fmt.Printf("  Needs review:     %d\n", stats.ManualReviewCount)
	if stats.DuplicateAddresses > 0 {
		fmt.Printf("  Duplicate canonical addresses: %d\n", stats.DuplicateAddresses)
	}
}

func createReviewCmd() *cobra.Command {
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Manage review decisions",
	}

	reviewCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending review decisions",
		Run: func(cmd *cobra.Command, args []string) {
			conn := requireDB()
			defer conn.Close()

			decisions, err := store.NewPersister(conn.DB).LoadPendingDecisions(context.Background())
			if err != nil {
				log.Fatalf("Failed to load decisions: %v", err)
			}
			if len(decisions) == 0 {
				fmt.Println("No pending decisions")
				return
			}
			for _, d := range decisions {
				fmt.Printf("%s  %-14s -> %-12s %-20s %.1f\n", d.ID, d.SourceIdentifier, d.MatchedAccount, d.Tier, d.Confidence)
			}
		},
	})

	var actor string
	makeTransitionCmd := func(use, short string, target review.Status) *cobra.Command {
		c := &cobra.Command{
			Use:   use + " [decision-id...]",
			Short: short,
			Args:  cobra.MinimumNArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				transitionDecisions(args, target, actor)
			},
		}
		c.Flags().StringVar(&actor, "actor", "cli", "Actor recorded on the transition")
		return c
	}

	reviewCmd.AddCommand(makeTransitionCmd("approve", "Approve pending decisions", review.StatusApproved))
	reviewCmd.AddCommand(makeTransitionCmd("reject", "Reject decisions", review.StatusRejected))
	reviewCmd.AddCommand(createApplyCmd())
	reviewCmd.AddCommand(createRollbackCmd())

	return reviewCmd
}

// transitionDecisions runs a bulk transition over database-backed decisions.
// Each failure is reported against its own identifier.
func transitionDecisions(ids []string, target review.Status, actor string) {
	conn := requireDB()
	defer conn.Close()

	ctx := context.Background()
	persister := store.NewPersister(conn.DB)

	// load the named decisions directly so approved ones stay reachable
	registry := review.NewRegistry()
	for _, id := range ids {
		d, err := persister.LoadDecision(ctx, id)
		if err != nil {
			var notFound *review.ErrNotFound
			if errors.As(err, &notFound) {
				continue // BulkTransition reports the missing ID
			}
			log.Fatalf("Failed to load decision %s: %v", id, err)
		}
		registry.Add(d)
	}

	result := registry.BulkTransition(ids, target, actor)
	for _, d := range result.Transitioned {
		if err := persister.SaveDecision(ctx, d); err != nil {
			log.Printf("Warning: failed to persist %s: %v", d.ID, err)
			continue
		}
		fmt.Printf("%s -> %s\n", d.ID, d.Status)
	}
	for id, err := range result.Failures {
		fmt.Printf("%s FAILED: %v\n", id, err)
	}
}

func createApplyCmd() *cobra.Command {
	var actor string
	var sets []string

	cmd := &cobra.Command{
		Use:   "apply [decision-id]",
		Short: "Apply an approved decision's field updates to the parcel",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			conn := requireDB()
			defer conn.Close()

			ctx := context.Background()
			persister := store.NewPersister(conn.DB)

			d, err := persister.LoadDecision(ctx, args[0])
			if err != nil {
				log.Fatalf("Failed to load decision: %v", err)
			}
			registry := review.NewRegistry()
			registry.Add(d)

			// the disclosure's own updates drive the apply; --set overrides
			updates := make(map[string]string)
			for field, value := range d.FieldUpdates {
				updates[field] = value
			}
			for _, set := range sets {
				parts := strings.SplitN(set, "=", 2)
				if len(parts) != 2 {
					log.Fatalf("Invalid --set %q, expected field=value", set)
				}
				updates[parts[0]] = parts[1]
			}
			if len(updates) == 0 {
				log.Fatalf("Decision %s carries no field updates and none were given with --set", d.ID)
			}

			// approve then apply so the caller sees one step
			if d.Status == review.StatusPending {
				if _, err := registry.Transition(d.ID, review.StatusApproved, actor, nil); err != nil {
					log.Fatalf("Approve failed: %v", err)
				}
			}

			changes, err := persister.ApplyFieldUpdates(ctx, d.MatchedAccount, updates)
			if err != nil {
				log.Fatalf("Field update failed: %v", err)
			}

			d, err = registry.Transition(d.ID, review.StatusApplied, actor, changes)
			if err != nil {
				log.Fatalf("Apply transition failed: %v", err)
			}
			if err := persister.SaveDecision(ctx, d); err != nil {
				log.Fatalf("Failed to persist decision: %v", err)
			}

			fmt.Printf("Applied %d field changes to parcel %s\n", len(changes), d.MatchedAccount)
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "cli", "Actor recorded on the transition")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Field update to apply, field=value (repeatable)")
	return cmd
}

func createRollbackCmd() *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "rollback [decision-id]",
		Short: "Restore the parcel values an applied decision overwrote",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			conn := requireDB()
			defer conn.Close()

			ctx := context.Background()
			persister := store.NewPersister(conn.DB)

			d, err := persister.LoadDecision(ctx, args[0])
			if err != nil {
				log.Fatalf("Failed to load decision: %v", err)
			}
			if d.Status != review.StatusApplied {
				log.Fatalf("Decision %s is %s, only applied decisions can be rolled back", d.ID, d.Status)
			}

			restored, err := persister.RollbackFieldUpdates(ctx, d.MatchedAccount, d.FieldChanges)
			if err != nil {
				log.Fatalf("Rollback failed: %v", err)
			}

			registry := review.NewRegistry()
			registry.Add(d)
			d, err = registry.Transition(d.ID, review.StatusRolledBack, actor, restored)
			if err != nil {
				log.Fatalf("Rollback transition failed: %v", err)
			}
			if err := persister.SaveDecision(ctx, d); err != nil {
				log.Fatalf("Failed to persist decision: %v", err)
			}

			fmt.Printf("Rolled back %d field changes on parcel %s\n", len(restored), d.MatchedAccount)
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "cli", "Actor recorded on the transition")
	return cmd
}

func createStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show recent batch run statistics",
		Run: func(cmd *cobra.Command, args []string) {
			conn := requireDB()
			defer conn.Close()

			rows, err := conn.DB.Query(`
				SELECT run_id, total, matched, unmatched, manual_review, avg_confidence, created_at
				FROM match_runs
				ORDER BY created_at DESC
				LIMIT 10
			`)
			if err != nil {
				log.Fatalf("Failed to query runs: %v", err)
			}
			defer rows.Close()

			found := false
			for rows.Next() {
				var runID string
				var createdAt time.Time
				var total, matched, unmatched, needsReview int
				var avg float64
				if err := rows.Scan(&runID, &total, &matched, &unmatched, &needsReview, &avg, &createdAt); err != nil {
					continue
				}
				found = true
				fmt.Printf("%s  total=%d matched=%d unmatched=%d review=%d avg=%.1f  %s\n",
					runID, total, matched, unmatched, needsReview, avg, createdAt.Format(time.RFC3339))
			}
			if !found {
				fmt.Println("No runs recorded")
			}
		},
	}
}
