package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/webspider/internal/config"
	"github.com/nao1215/webspider/internal/crawler"
	"github.com/nao1215/webspider/internal/database"
	"github.com/nao1215/webspider/internal/discovery"
	"github.com/nao1215/webspider/internal/httpclient"
	"github.com/nao1215/webspider/internal/log"
	"github.com/nao1215/webspider/internal/model"
	"github.com/nao1215/webspider/internal/notfound"
	"github.com/nao1215/webspider/internal/report"
	"github.com/nao1215/webspider/internal/workerpool"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>...",
		Short: "Crawl a web application and report its fuzzable requests",
		Long: `Crawl starts from the given URLs and follows every in-domain link.

Each reference found in a page is checked against the scope patterns,
limited to a few URLs per shape (for example ?id=1 and ?id=2 count as the
same shape), fetched and classified. Forms become POST or query-string
requests with their fields filled. Links whose targets turn out to be 404
pages are collected in the broken-link report.

Examples:
  # Crawl a site
  webspider crawl http://testphp.example/

  # Stay below /app/ and never touch logout links
  webspider crawl --only-forward --ignore-regex 'logout' http://example.com/app/

  # Crawl through a SOCKS5 proxy at 2 requests per second
  webspider crawl --proxy 127.0.0.1:9050 --rate 2 http://example.com/

  # Write a Markdown report and skip the scan database
  webspider crawl --markdown -o report.md --no-db http://example.com/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Scope
	cmd.Flags().String("ignore-regex", "",
		"Never request URLs matching this regular expression")
	cmd.Flags().String("follow-regex", config.DefaultFollowRegex,
		"Only request URLs matching this regular expression")
	cmd.Flags().Bool("only-forward", false,
		"Only request URLs below the directory of a target")

	// Crawl limits
	cmd.Flags().IntP("concurrency", "c", config.DefaultConcurrency,
		"Number of concurrent requests")
	cmd.Flags().IntP("max-depth", "d", config.DefaultMaxDepth,
		"Number of link levels followed from the targets")
	cmd.Flags().IntP("max-requests", "n", config.DefaultMaxRequests,
		"Maximum number of fuzzable requests to collect")
	cmd.Flags().Int("max-variants", config.DefaultMaxVariants,
		"Maximum URLs verified per URL shape")

	// HTTP
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Float64("rate", 0,
		"Maximum requests per second (0 = unlimited)")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:9050)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header")
	cmd.Flags().String("cookie", "",
		"Cookie header sent with every request")
	cmd.Flags().StringArrayP("header", "H", nil,
		"Extra header as \"Name: value\" (repeatable)")
	cmd.Flags().Bool("insecure", false,
		"Skip TLS certificate verification")

	// Configuration file
	cmd.Flags().String("config", "",
		"Configuration file path (default: .webspider in current or home directory)")

	// Report
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-db", false,
		"Do not save the scan to the database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the scan database")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// buildConfig creates a Config from flags and the configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()
	var err error

	if cfg.IgnoreRegex, err = flags.GetString("ignore-regex"); err != nil {
		return nil, err
	}
	if cfg.FollowRegex, err = flags.GetString("follow-regex"); err != nil {
		return nil, err
	}
	if cfg.OnlyForward, err = flags.GetBool("only-forward"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.MaxDepth, err = flags.GetInt("max-depth"); err != nil {
		return nil, err
	}
	if cfg.MaxRequests, err = flags.GetInt("max-requests"); err != nil {
		return nil, err
	}
	if cfg.MaxVariants, err = flags.GetInt("max-variants"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Rate, err = flags.GetFloat64("rate"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.Cookie, err = flags.GetString("cookie"); err != nil {
		return nil, err
	}
	if cfg.InsecureSkipVerify, err = flags.GetBool("insecure"); err != nil {
		return nil, err
	}

	headers, err := flags.GetStringArray("header")
	if err != nil {
		return nil, err
	}
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", h)
		}
		cfg.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Targets = args

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if err := applyConfigFile(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyConfigFile merges the settings of the first target's host from the
// configuration file. A missing file is only an error when its path was
// given explicitly.
func applyConfigFile(cfg *config.Config) error {
	path := config.FindConfigFile(cfg.ConfigFilePath)
	if path == "" {
		if cfg.ConfigFilePath != "" {
			return fmt.Errorf("%s: %w", cfg.ConfigFilePath, config.ErrConfigNotFound)
		}
		return nil
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}

	targets, err := config.ParseTargets(cfg.Targets)
	if err != nil {
		// Validate reports bad targets.
		return nil
	}
	cfg.ApplySiteConfig(file.GetSiteConfig(targets.TargetDomain()))
	return nil
}

// runCrawl wires the crawl components, runs the crawl and emits the report.
// On interruption the partial report is still saved and written.
func runCrawl(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, logger *slog.Logger) error {
	targets, err := config.ParseTargets(cfg.Targets)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	clientOpts := []httpclient.Option{
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithUserAgent(cfg.UserAgent),
		httpclient.WithMaxBodySize(cfg.MaxBodySize),
		httpclient.WithHeaders(cfg.Headers),
		httpclient.WithCookie(cfg.Cookie),
		httpclient.WithRate(cfg.Rate),
		httpclient.WithInsecureSkipVerify(cfg.InsecureSkipVerify),
		httpclient.WithLogger(logger),
	}
	if cfg.ProxyAddress != "" {
		clientOpts = append(clientOpts, httpclient.WithSOCKS5(cfg.ProxyAddress))
	}
	client, err := httpclient.New(clientOpts...)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	var db *database.CrawlDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
	}

	pool := workerpool.New(cfg.Concurrency)
	spider, err := crawler.NewSpider(targets, client, pool,
		crawler.WithScope(crawler.ScopeOptions{
			IgnoreRegex: cfg.IgnoreRegex,
			FollowRegex: cfg.FollowRegex,
			OnlyForward: cfg.OnlyForward,
		}),
		crawler.WithMaxVariants(cfg.MaxVariants),
		crawler.WithNotFoundClassifier(notfound.New(client, notfound.WithLogger(logger))),
		crawler.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	driver := discovery.New(spider,
		discovery.WithConcurrency(cfg.Concurrency),
		discovery.WithMaxDepth(cfg.MaxDepth),
		discovery.WithMaxRequests(cfg.MaxRequests),
		discovery.WithLogger(logger),
		discovery.WithLevelHook(func(depth, size int) {
			fmt.Fprintf(stderr, "depth %d: crawling %d request(s)\n", depth, size)
		}),
	)

	seeds := make([]*model.FuzzableRequest, 0)
	for _, root := range targets.TargetRoots() {
		seeds = append(seeds, model.NewQueryStringRequest(root))
	}

	fmt.Fprintf(stderr, "Crawling %s...\n", strings.Join(targets.Strings(), ", "))
	scanReport, runErr := driver.Run(ctx, seeds)
	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return fmt.Errorf("crawl failed: %w", runErr)
	}
	fmt.Fprintf(stderr, "Crawl finished in %s: %d request(s), %d broken link(s)\n\n",
		scanReport.Duration().Round(time.Millisecond), len(scanReport.Requests), len(scanReport.BrokenLinks))

	// Save with a fresh context so an interrupted crawl is still recorded.
	if err := saveScanReport(context.WithoutCancel(ctx), db, scanReport, logger); err != nil {
		logger.Error("failed to save scan report", "error", err)
	}

	if err := outputReport(cfg, scanReport, stdout); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if runErr != nil {
		return fmt.Errorf("crawl interrupted, report is partial: %w", runErr)
	}
	return nil
}

// saveScanReport stores the report. A nil db is a no-op.
func saveScanReport(ctx context.Context, db *database.CrawlDB, scanReport *model.ScanReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}
	id, err := db.SaveScanReport(ctx, scanReport)
	if err != nil {
		return err
	}
	logger.Info("scan report saved to database", "scan_id", id, "path", db.Path())
	return nil
}

// outputReport writes the report in the configured format to the report
// file, or to stdout when none is set.
func outputReport(cfg *config.Config, scanReport *model.ScanReport, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports can contain session-bound URLs, keep them owner-only.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	_, err := newReportWriter(cfg, output).Write(scanReport)
	return err
}

func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	case cfg.ReportFile != "":
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose), report.WithColor(false))
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}
