package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "webspider"

	// DefaultConcurrency is the size of the verification worker pool and the
	// number of concurrent Crawl calls per level.
	DefaultConcurrency = 20

	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxDepth is how many link levels are followed from the targets.
	DefaultMaxDepth = 10

	// DefaultMaxRequests caps the number of fuzzable requests a scan collects.
	DefaultMaxRequests = 1000

	// DefaultMaxVariants is how many URLs sharing one shape are verified.
	DefaultMaxVariants = 5

	// DefaultFollowRegex accepts every URL.
	DefaultFollowRegex = ".*"

	// DefaultUserAgent identifies webspider in HTTP requests.
	DefaultUserAgent = "webspider/1.0 (+https://github.com/nao1215/webspider)"

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB
)

// Config holds all configuration options for webspider.
// It is populated from CLI flags and the optional configuration file, then
// passed down explicitly.
type Config struct {
	// Targets are the URLs the crawl starts from.
	Targets []string

	// IgnoreRegex rejects every URL it matches. Empty means ignore nothing.
	IgnoreRegex string

	// FollowRegex admits only URLs it matches.
	FollowRegex string

	// OnlyForward restricts verification to URLs below a target's directory.
	OnlyForward bool

	// Concurrency bounds the verification pool and concurrent Crawl calls.
	Concurrency int

	// MaxDepth is the number of levels followed from the targets.
	// Zero crawls only the targets themselves.
	MaxDepth int

	// MaxRequests caps the number of discovered requests.
	MaxRequests int

	// MaxVariants caps the verified URLs per canonical shape.
	MaxVariants int

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// Rate limits requests per second. Zero means unlimited.
	Rate float64

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// Headers are extra headers sent with every request.
	Headers map[string]string

	// Cookie is sent with every request when set.
	Cookie string

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is an explicit configuration file path.
	ConfigFilePath string

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path. Empty writes to stdout.
	ReportFile string

	// DBDir is the directory holding the scan database.
	DBDir string

	// SaveToDB stores the scan report in the database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		FollowRegex: DefaultFollowRegex,
		Concurrency: DefaultConcurrency,
		MaxDepth:    DefaultMaxDepth,
		MaxRequests: DefaultMaxRequests,
		MaxVariants: DefaultMaxVariants,
		Timeout:     DefaultTimeout,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		Headers:     make(map[string]string),
		DBDir:       XDGDataDir(),
		SaveToDB:    true,
	}
}

// XDGDataDir returns the XDG data directory for webspider.
// On Linux: ~/.local/share/webspider
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for webspider.
// On Linux: ~/.config/webspider
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found. Regular expressions are checked by the spider itself.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if _, err := ParseTargets(c.Targets); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.MaxRequests <= 0 {
		return ErrInvalidMaxRequests
	}
	if c.MaxVariants <= 0 {
		return ErrInvalidMaxVariants
	}
	if c.Rate < 0 {
		return ErrInvalidRate
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// ApplySiteConfig fills settings still at their defaults from a site
// configuration. Values already set by flags win; headers are merged with
// flag headers taking precedence.
func (c *Config) ApplySiteConfig(sc SiteConfig) {
	if c.IgnoreRegex == "" {
		c.IgnoreRegex = sc.IgnoreRegex
	}
	if c.FollowRegex == DefaultFollowRegex && sc.FollowRegex != "" {
		c.FollowRegex = sc.FollowRegex
	}
	if !c.OnlyForward {
		c.OnlyForward = sc.OnlyForward
	}
	if c.MaxDepth == DefaultMaxDepth && sc.Depth > 0 {
		c.MaxDepth = sc.Depth
	}
	if c.Cookie == "" {
		c.Cookie = sc.Cookie
	}
	if len(sc.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		for k, v := range sc.Headers {
			if _, ok := c.Headers[k]; !ok {
				c.Headers[k] = v
			}
		}
	}
}
