// Package config provides configuration structures and utilities for imagefinder.
// It defines crawl tuning (workers, rate limiting, timeouts), HTTP request
// settings, per-site overrides loaded from a YAML file, and report output
// preferences.
package config
