package update

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/logging"
)

const (
	ChannelRelease = "release"
	ChannelNightly = "nightly"

	// NoArch is the package key used when no platform-specific build matches.
	NoArch = "noarch"
)

var (
	ErrNotConfigured = errors.New("update base url not configured")
	ErrRateLimited   = errors.New("update check rate limited")
	ErrNoPackage     = errors.New("no package for this platform")
)

// Info is the update index published for a channel and build type.
type Info struct {
	Version     string            `json:"version"`
	VersionName string            `json:"versionName"`
	VersionCode int               `json:"versionCode"`
	Date        string            `json:"date"`
	ChangeLog   string            `json:"changeLog,omitempty"`
	Type        string            `json:"type"`
	Packages    map[string]string `json:"apks,omitempty"`
}

// Release is a newer version resolved to download locations.
type Release struct {
	Info         Info   `json:"info"`
	DownloadURL  string `json:"downloadUrl"`
	ChangeLogURL string `json:"changeLogUrl,omitempty"`
}

// Config configures a Checker.
type Config struct {
	BaseURL     string
	Branch      string
	Channel     string
	BuildType   string
	VersionCode int
	// Platforms lists package keys in preference order.
	Platforms   []string
	Timeout     time.Duration
	Retries     int
	RetryWait   time.Duration
	MinInterval time.Duration
}

// Checker fetches the update index and compares it with the running build.
type Checker struct {
	cfg     Config
	client  *resty.Client
	limiter *rate.Limiter
	log     *logging.Logger
}

// NewChecker creates a checker. Connection errors and 5xx responses are
// retried up to cfg.Retries times by the retryablehttp transport.
func NewChecker(cfg Config, log *logging.Logger) *Checker {
	if cfg.Channel == "" {
		cfg.Channel = ChannelRelease
	}
	if cfg.BuildType == "" {
		cfg.BuildType = "release"
	}
	if len(cfg.Platforms) == 0 {
		cfg.Platforms = []string{runtime.GOOS + "-" + runtime.GOARCH}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = time.Second
	}
	if log == nil {
		log = logging.NewNop()
	}

	// retries happen in the transport only
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = cfg.RetryWait
	retryClient.RetryWaitMax = 4 * cfg.RetryWait
	retryClient.Logger = nil
	// hand back the last response so callers see its status
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := resty.New().
		SetTransport(&retryablehttp.RoundTripper{Client: retryClient}).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "nativebridge-shell/1.0")

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	return &Checker{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		log:     log.Named("update"),
	}
}

// Root is the channel's base location.
func (c *Checker) Root() string {
	root := strings.TrimRight(c.cfg.BaseURL, "/")
	if c.cfg.Branch != "" {
		root += "/" + c.cfg.Branch
	}
	if c.cfg.Channel == ChannelNightly {
		root += "/nightly"
	}
	return root
}

// IndexURL is where the latest index for the build type lives.
func (c *Checker) IndexURL() string {
	return fmt.Sprintf("%s/latest-%s.json", c.Root(), c.cfg.BuildType)
}

// Latest fetches the published index.
func (c *Checker) Latest(ctx context.Context) (*Info, error) {
	if c.cfg.BaseURL == "" {
		return nil, ErrNotConfigured
	}

	resp, err := c.client.R().SetContext(ctx).Get(c.IndexURL())
	if err != nil {
		return nil, fmt.Errorf("fetch update index: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch update index: status %d", resp.StatusCode())
	}

	var info Info
	if err := sonic.Unmarshal(resp.Body(), &info); err != nil {
		return nil, fmt.Errorf("decode update index: %w", err)
	}
	return &info, nil
}

// Check returns the newer release, or nil when the running build is current.
func (c *Checker) Check(ctx context.Context) (*Release, error) {
	if !c.limiter.Allow() {
		return nil, ErrRateLimited
	}

	info, err := c.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if info.VersionCode <= c.cfg.VersionCode {
		c.log.Info("already up to date", zap.Int("version_code", c.cfg.VersionCode))
		return nil, nil
	}
	c.log.Info("new version available", zap.String("version", info.VersionName))

	name, ok := c.resolvePackage(info)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPackage, strings.Join(c.cfg.Platforms, ","))
	}

	base := fmt.Sprintf("%s/%s/%s", c.Root(), info.Version, c.cfg.BuildType)
	rel := &Release{Info: *info, DownloadURL: base + "/" + name}
	if info.ChangeLog != "" {
		rel.ChangeLogURL = base + "/" + info.ChangeLog
	}
	return rel, nil
}

// resolvePackage picks the first platform the index has a package for,
// falling back to the platform-independent one.
func (c *Checker) resolvePackage(info *Info) (string, bool) {
	for _, p := range c.cfg.Platforms {
		if name, ok := info.Packages[p]; ok {
			return name, true
		}
	}
	name, ok := info.Packages[NoArch]
	return name, ok
}
