package crawler

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds the run-scoped settings the Engine needs. It is decoupled from
// Viper; internal/config projects the loaded configuration onto it.
type Config struct {
	RunID string
	// EntryURL is the listing page the crawl starts from.
	EntryURL string
	// BaseURL prefixes every relative portal path.
	BaseURL string
	// AjaxURL receives the worksheet POST.
	AjaxURL string
	// RowCountOverride, when set, replaces the row count displayed on the worksheet.
	RowCountOverride *int
	// Concurrency bounds the number of detail pages resolved at once.
	Concurrency int
	// DetailTimeout bounds one record's detail fetch, retries included.
	DetailTimeout time.Duration
	// FeedObject is the object name the JSON feed is written to inside the
	// feed BlobStore; empty disables the feed.
	FeedObject string
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	urls := []struct {
		name string
		raw  string
	}{
		{"entry url", c.EntryURL},
		{"base url", c.BaseURL},
		{"ajax url", c.AjaxURL},
	}
	for _, u := range urls {
		parsed, err := url.Parse(u.raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s %q must be an absolute URL", u.name, u.raw)
		}
	}
	if c.RowCountOverride != nil && *c.RowCountOverride < 0 {
		return fmt.Errorf("row count override must be >= 0")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be > 0")
	}
	if c.DetailTimeout <= 0 {
		return fmt.Errorf("detail timeout must be > 0")
	}
	return nil
}
