package config

import "strings"

// SiteConfig holds crawl settings for a single host.
type SiteConfig struct {
	// Cookie is sent with every request to this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent to this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global maximum depth when non-zero.
	Depth int `yaml:"depth,omitempty"`

	// IgnoreRegex rejects matching URLs.
	IgnoreRegex string `yaml:"ignoreRegex,omitempty"`

	// FollowRegex admits only matching URLs.
	FollowRegex string `yaml:"followRegex,omitempty"`

	// OnlyForward restricts the crawl to URLs below the target directory.
	OnlyForward bool `yaml:"onlyForward,omitempty"`
}

// File represents the structure of the .webspider configuration file.
type File struct {
	// Sites maps host names (without scheme or port) to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every host unless a site entry overrides them.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host merged over the defaults.
// Host lookup is case-insensitive.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if cf.Defaults.Headers != nil {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	siteConfig, ok := cf.Sites[host]
	if !ok {
		for name, sc := range cf.Sites {
			if strings.EqualFold(name, host) {
				siteConfig, ok = sc, true
				break
			}
		}
	}
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.Depth != 0 {
		result.Depth = siteConfig.Depth
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}
	if siteConfig.IgnoreRegex != "" {
		result.IgnoreRegex = siteConfig.IgnoreRegex
	}
	if siteConfig.FollowRegex != "" {
		result.FollowRegex = siteConfig.FollowRegex
	}
	if siteConfig.OnlyForward {
		result.OnlyForward = true
	}

	return result
}
