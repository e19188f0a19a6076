package config

import (
	"maps"
	"net/url"
	"time"
)

// SiteConfig holds request settings for one site.
type SiteConfig struct {
	// Cookie is an HTTP cookie sent with every request to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers included in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// UserAgent overrides the global User-Agent for this site.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Delay overrides the global crawl delay for this site, e.g. "500ms".
	// If zero, the global CrawlDelay is used.
	Delay time.Duration `yaml:"delay,omitempty"`
}

// File represents the structure of the .imagefinder configuration file.
type File struct {
	// Sites maps a seed URL or a bare host name to its configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to all sites unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a seed URL, merged over the defaults.
// An entry keyed by the exact seed wins over one keyed by the seed's host.
func (cf *File) GetSiteConfig(seed string) SiteConfig {
	result := cf.Defaults
	if cf.Defaults.Headers != nil {
		result.Headers = maps.Clone(cf.Defaults.Headers)
	}

	siteConfig, ok := cf.Sites[seed]
	if !ok {
		if u, err := url.Parse(seed); err == nil && u.Host != "" {
			siteConfig, ok = cf.Sites[u.Host]
		}
	}
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.UserAgent != "" {
		result.UserAgent = siteConfig.UserAgent
	}
	if siteConfig.Delay != 0 {
		result.Delay = siteConfig.Delay
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}

	return result
}
