package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"disk-cleaner/internal/database"
	"disk-cleaner/internal/disk"
	"disk-cleaner/internal/exitcodes"
)

type historyOptions struct {
	dbPath      string
	recent      int
	stats       bool
	runs        int
	action      string
	pathPattern string
	largest     int
	days        int
	prune       int
	vacuum      bool
	info        bool
	jsonOutput  bool
}

func newHistoryCmd(stdout io.Writer) *cobra.Command {
	opts := historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the removal history database",
		Example: `  disk-cleaner history --recent 10          # 10 most recent records
  disk-cleaner history --stats --days 7     # statistics for the last week
  disk-cleaner history --runs 5             # last 5 runs
  disk-cleaner history --action REMOVE      # only real removals
  disk-cleaner history --path '/tmp/%'      # records under /tmp
  disk-cleaner history --largest 10         # 10 largest removals
  disk-cleaner history --prune 90 --vacuum  # drop records older than 90 days and compact
  disk-cleaner history --info               # database size and record counts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts, stdout)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.dbPath, "db", defaultHistoryPath(), "Path to the history database")
	f.IntVar(&opts.recent, "recent", 0, "Show the N most recent records")
	f.BoolVar(&opts.stats, "stats", false, "Show removal statistics")
	f.IntVar(&opts.runs, "runs", 0, "Show the N most recent runs")
	f.StringVar(&opts.action, "action", "", "Filter by action (REMOVE, DRY_RUN, SKIP, ERROR)")
	f.StringVar(&opts.pathPattern, "path", "", "Filter by path pattern (SQL LIKE syntax)")
	f.IntVar(&opts.largest, "largest", 0, "Show the N largest removals")
	f.IntVar(&opts.days, "days", 30, "Number of days for statistics")
	f.IntVar(&opts.prune, "prune", 0, "Delete records older than DAYS days")
	f.BoolVar(&opts.vacuum, "vacuum", false, "Compact the database file")
	f.BoolVar(&opts.info, "info", false, "Show database size and record counts")
	f.BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func runHistory(cmd *cobra.Command, opts historyOptions, w io.Writer) error {
	if opts.days <= 0 {
		return exitWith(exitcodes.InvalidUsage, errors.New("--days must be positive"))
	}
	if opts.prune < 0 {
		return exitWith(exitcodes.InvalidUsage, errors.New("--prune must not be negative"))
	}

	db, err := database.NewRemovalDB(opts.dbPath)
	if err != nil {
		return exitWith(exitcodes.Failure, fmt.Errorf("open history %s: %w", opts.dbPath, err))
	}
	defer db.Close()

	if opts.prune > 0 || opts.vacuum || opts.info {
		return runMaintenance(db, opts, w)
	}

	switch {
	case opts.stats:
		stats, err := db.GetRemovalStats(opts.days)
		if err != nil {
			return exitWith(exitcodes.Failure, fmt.Errorf("get statistics: %w", err))
		}
		if opts.jsonOutput {
			return writeJSON(w, stats)
		}
		printStats(w, stats, opts.days)
		return nil
	case opts.runs > 0:
		runs, err := db.GetRecentRuns(opts.runs)
		if err != nil {
			return exitWith(exitcodes.Failure, fmt.Errorf("get recent runs: %w", err))
		}
		if opts.jsonOutput {
			return writeJSON(w, runs)
		}
		printRuns(w, runs)
		return nil
	}

	var (
		records []database.RemovalRecord
		heading string
	)
	switch {
	case opts.recent > 0:
		records, err = db.GetRecentRemovals(opts.recent)
	case opts.action != "":
		records, err = db.GetRemovalsByAction(opts.action)
		heading = fmt.Sprintf("Records with action: %s", opts.action)
	case opts.pathPattern != "":
		records, err = db.GetRemovalsByPath(opts.pathPattern)
		heading = fmt.Sprintf("Records matching path pattern: %s", opts.pathPattern)
	case opts.largest > 0:
		records, err = db.GetLargestRemovals(opts.largest)
		heading = fmt.Sprintf("Largest %d removals:", opts.largest)
	default:
		_ = cmd.Usage()
		return exitWith(exitcodes.InvalidUsage, nil)
	}
	if err != nil {
		return exitWith(exitcodes.Failure, fmt.Errorf("query history: %w", err))
	}

	if opts.jsonOutput {
		return writeJSON(w, records)
	}
	if heading != "" {
		fmt.Fprintf(w, "%s\n\n", heading)
	}
	printRecords(w, records)
	return nil
}

// runMaintenance prunes, then vacuums, then reports, in that order
func runMaintenance(db *database.RemovalDB, opts historyOptions, w io.Writer) error {
	result := map[string]interface{}{}

	if opts.prune > 0 {
		n, err := db.DeleteOldRecords(opts.prune)
		if err != nil {
			return exitWith(exitcodes.Failure, fmt.Errorf("prune history: %w", err))
		}
		result["pruned"] = n
		if !opts.jsonOutput {
			fmt.Fprintf(w, "Pruned %d records older than %d days\n", n, opts.prune)
		}
	}

	if opts.vacuum {
		if err := db.Vacuum(); err != nil {
			return exitWith(exitcodes.Failure, fmt.Errorf("vacuum history: %w", err))
		}
		result["vacuumed"] = true
		if !opts.jsonOutput {
			fmt.Fprintln(w, "Database vacuumed")
		}
	}

	if opts.info {
		info, err := db.GetDatabaseStats()
		if err != nil {
			return exitWith(exitcodes.Failure, fmt.Errorf("database info: %w", err))
		}
		result["info"] = info
		if !opts.jsonOutput {
			printInfo(w, opts.dbPath, info)
		}
	}

	if opts.jsonOutput {
		return writeJSON(w, result)
	}
	return nil
}

func printInfo(w io.Writer, path string, info map[string]interface{}) {
	fmt.Fprintf(w, "Database:         %s\n", path)
	fmt.Fprintf(w, "Records:          %v\n", info["total_records"])
	fmt.Fprintf(w, "Runs:             %v\n", info["total_runs"])
	if size, ok := info["database_size_bytes"].(int64); ok {
		fmt.Fprintf(w, "Size:             %s\n", disk.HumanReadable(uint64(size)))
	}
	for _, row := range [][2]string{{"oldest_record", "Oldest record:"}, {"newest_record", "Newest record:"}} {
		if t, ok := info[row[0]].(time.Time); ok {
			fmt.Fprintf(w, "%-17s %s\n", row[1], t.Local().Format("2006-01-02 15:04:05"))
		}
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStats(w io.Writer, stats *database.RemovalStats, days int) {
	fmt.Fprintf(w, "Removal Statistics (Last %d days)\n", days)
	fmt.Fprintf(w, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Fprintf(w, "Runs:             %d\n", stats.Runs)
	fmt.Fprintf(w, "Total Removed:    %d\n", stats.TotalRemoved)
	fmt.Fprintf(w, "Total Previewed:  %d\n", stats.TotalPreviewed)
	fmt.Fprintf(w, "Total Skipped:    %d\n", stats.TotalSkipped)
	fmt.Fprintf(w, "Total Errors:     %d\n", stats.TotalErrors)
	fmt.Fprintf(w, "Space Freed:      %s\n", disk.HumanReadable(uint64(stats.TotalSpaceFreed)))

	printCounts(w, "By Action:", stats.ByAction)
	printCounts(w, "By Reason:", stats.ByReason)
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "\n%s\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-15s %d\n", k, counts[k])
	}
}

func printRuns(w io.Writer, runs []database.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tStarted\tMode\tStatus\tTargets\tCleaned\tSkipped\tFreed")
	_, _ = fmt.Fprintln(tw, "--\t-------\t----\t------\t-------\t-------\t-------\t-----")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Mode, r.Status,
			r.Targets, r.Cleaned, r.Skipped, disk.HumanReadable(uint64(r.FreedBytes)))
	}
	_ = tw.Flush()
}

func printRecords(w io.Writer, records []database.RemovalRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTimestamp\tAction\tType\tReason\tSize\tPath")
	_, _ = fmt.Fprintln(tw, "--\t---------\t------\t----\t------\t----\t----")
	for _, r := range records {
		reason := r.Reason
		if reason == "" {
			reason = "-"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.Action, r.ObjectType,
			reason, disk.HumanReadable(uint64(r.Size)), r.Path)
	}
	_ = tw.Flush()
}
