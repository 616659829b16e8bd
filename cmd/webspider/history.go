package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/webspider/internal/config"
	"github.com/nao1215/webspider/internal/database"
	"github.com/nao1215/webspider/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [scan-id]",
		Short: "Show saved scans",
		Long: `History lists the scans saved by 'webspider crawl', or prints one of them.

Examples:
  # List saved scans
  webspider history

  # Print scan 3 again
  webspider history 3

  # Print only the broken links of scan 3
  webspider history --broken 3

  # Find discovered URLs containing "login" across all scans
  webspider history --find login

  # Delete scan 3
  webspider history --delete 3`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the scan database")
	cmd.Flags().BoolP("json", "j", false,
		"Print the scan as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Print the scan as Markdown (mutually exclusive with --json)")
	cmd.Flags().BoolP("broken", "b", false,
		"Print only the broken links of the scan")
	cmd.Flags().String("find", "",
		"List discovered URLs containing this text across all scans")
	cmd.Flags().Bool("delete", false,
		"Delete the scan")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	jsonOut, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOut, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOut && markdownOut {
		return config.ErrConflictingReportFormats
	}
	brokenOnly, err := flags.GetBool("broken")
	if err != nil {
		return err
	}
	find, err := flags.GetString("find")
	if err != nil {
		return err
	}
	del, err := flags.GetBool("delete")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	var scanID int64
	if len(args) == 1 {
		scanID, err = strconv.ParseInt(args[0], 10, 64)
		if err != nil || scanID <= 0 {
			return fmt.Errorf("invalid scan id %q: must be a positive integer", args[0])
		}
	}
	if (brokenOnly || del) && scanID == 0 {
		return errors.New("a scan id is required (run 'webspider history' to list scans)")
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if errors.Is(err, database.ErrDatabaseNotFound) {
		fmt.Fprintln(cmd.OutOrStdout(), "No scans saved yet. Run 'webspider crawl <url>' first.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	switch {
	case find != "":
		return findRequests(ctx, db, find, out)
	case del:
		if err := db.DeleteScan(ctx, scanID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted scan %d\n", scanID)
		return nil
	case brokenOnly:
		return printBrokenLinks(ctx, db, scanID, out)
	case scanID != 0:
		cfg := &config.Config{JSONReport: jsonOut, MarkdownReport: markdownOut, Verbose: getVerboseFlag(cmd)}
		scanReport, err := db.GetScanReport(ctx, scanID)
		if err != nil {
			return err
		}
		_, err = newReportWriter(cfg, out).Write(scanReport)
		return err
	default:
		return listScans(ctx, db, out)
	}
}

func listScans(ctx context.Context, db *database.CrawlDB, out io.Writer) error {
	scans, err := db.ListScans(ctx)
	if err != nil {
		return err
	}
	if len(scans) == 0 {
		fmt.Fprintln(out, "No scans saved yet. Run 'webspider crawl <url>' first.")
		return nil
	}

	fmt.Fprintf(out, "Saved scans (%d):\n\n", len(scans))
	fmt.Fprintf(out, "  %-6s  %-20s  %-8s  %-6s  %s\n", "ID", "Date", "Requests", "Broken", "Targets")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 70))
	for _, s := range scans {
		targets := strings.Join(s.Targets, ", ")
		if s.Cancelled {
			targets += " (partial)"
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-8d  %-6d  %s\n",
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.Requests,
			s.BrokenLinks,
			targets,
		)
	}
	fmt.Fprintln(out, "\nUse 'webspider history <id>' to print a scan.")
	return nil
}

func printBrokenLinks(ctx context.Context, db *database.CrawlDB, scanID int64, out io.Writer) error {
	if _, err := db.GetScanReport(ctx, scanID); err != nil {
		return err
	}
	links, err := db.GetBrokenLinks(ctx, scanID)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		fmt.Fprintf(out, "Scan %d found no broken links.\n", scanID)
		return nil
	}
	for _, link := range links {
		fmt.Fprintln(out, report.BrokenLinkLine(link))
	}
	return nil
}

func findRequests(ctx context.Context, db *database.CrawlDB, substr string, out io.Writer) error {
	urls, err := db.FindRequestsByURL(ctx, substr)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		fmt.Fprintf(out, "No discovered URL contains %q.\n", substr)
		return nil
	}
	for _, u := range urls {
		fmt.Fprintln(out, u)
	}
	return nil
}
