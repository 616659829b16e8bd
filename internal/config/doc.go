// Package config provides configuration structures and utilities for webspider.
// It defines the crawl settings, the scope of a scan, the optional YAML
// configuration file and report preferences.
package config
