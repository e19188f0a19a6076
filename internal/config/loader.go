package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is the per-directory configuration file name.
	DefaultConfigFile = ".imagefinder"

	// xdgConfigFile is the configuration file name inside XDGConfigDir.
	xdgConfigFile = "config.yaml"
)

// LoadConfigFile reads per-site request settings from the YAML file at path
// and validates every entry.
// A missing file yields ErrConfigNotFound. A file that cannot be decoded
// yields ErrInvalidConfigFile, and invalid entries are reported through
// the sentinels returned by File.Validate. All errors name the file.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cf := &File{}
	if err := yaml.Unmarshal(data, cf); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfigFile, path, err)
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}

	if err := cf.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cf, nil
}

// Validate checks the defaults and every site entry and returns all
// problems joined together, or nil.
// Site keys must be an http(s) seed URL or a bare host name, and delays
// must not be negative.
func (cf *File) Validate() error {
	var errs []error
	if err := cf.Defaults.validate("defaults"); err != nil {
		errs = append(errs, err)
	}

	keys := make([]string, 0, len(cf.Sites))
	for key := range cf.Sites {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		if !validSiteKey(key) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidSiteKey, key))
			continue
		}
		if err := cf.Sites[key].validate("sites." + key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (sc SiteConfig) validate(where string) error {
	if sc.Delay < 0 {
		return fmt.Errorf("%w: %s.delay is %v", ErrInvalidSiteDelay, where, sc.Delay)
	}
	for name := range sc.Headers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: %s has an empty header name", ErrInvalidSiteHeader, where)
		}
	}
	return nil
}

// validSiteKey reports whether key can match a seed in GetSiteConfig:
// either an absolute http(s) URL or a host with an optional port.
func validSiteKey(key string) bool {
	if strings.Contains(key, "://") {
		u, err := url.Parse(key)
		return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	}
	u, err := url.Parse("http://" + key)
	return err == nil && u.Host != "" && u.Host == key
}

// FindConfigFile returns the configuration file to load, or "" if none exists.
// An explicit configPath is used as is. Otherwise the lookup order is
// .imagefinder in the current directory, .imagefinder in the home
// directory, then config.yaml in XDGConfigDir.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if fileExists(configPath) {
			return configPath
		}
		return ""
	}

	for _, candidate := range configCandidates() {
		if fileExists(candidate) {
			return candidate
		}
	}
	return ""
}

func configCandidates() []string {
	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	return append(candidates, filepath.Join(XDGConfigDir(), xdgConfigFile))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
