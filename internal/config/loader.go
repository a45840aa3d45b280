package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"lingbot/pkg/logx"
)

// Loader parses the config file without holding any mutable scheduler state.
// A failed Parse leaves whatever the caller currently uses untouched; the
// reload handler relies on that.
type Loader struct {
	path string
	log  logx.Logger
}

func NewLoader(path string) *Loader {
	return &Loader{path: path, log: logx.Nop()}
}

func (l *Loader) SetLogger(log logx.Logger) { l.log = log }

func (l *Loader) Path() string { return l.path }

// Parse reads, decodes and validates the config file.
// Profiles with solver.runs < 1 are dropped with a warning (nothing to do
// for them, same as not configuring the profile at all).
func (l *Loader) Parse() (*Config, error) {
	b, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	jb, err := toJSON(l.path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}

	for name, p := range cfg.Profiles {
		if p.Solver.Runs < 1 {
			l.log.Warn("skipping profile: no runs configured", logx.String("profile", name))
			delete(cfg.Profiles, name)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
