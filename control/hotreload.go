package control

import (
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ReloadSource decodes a configuration file on disk into the shape
// SetConfig expects (a flat map), so correlatectl's SIGHUP handler and
// ConfigStore can share one decoding path. Adapted from the teacher's
// package-level hotreload.go, which fired bare func() hooks with no
// notion of where the new config came from; here the hook always reloads
// from the same file the process started with; good enough for a CLI
// demo harness, and it lets mapstructure earn a home decoding the
// loaded YAML into typed correlator config when the caller asks for it.
type ReloadSource struct {
	Path string
}

// Load reads and YAML-decodes the file at s.Path into a flat map.
func (s ReloadSource) Load() (map[string]any, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode maps a flat config snapshot onto a typed destination struct
// using mapstructure, the same decoding library the rest of the corpus
// uses for config binding.
func Decode(snapshot map[string]any, dst any) error {
	return mapstructure.Decode(snapshot, dst)
}

// WireHotReload loads src once into store, then registers a hook that
// logs a structured line to log on every later SetConfig call (which
// correlatectl makes after re-reading the file on SIGHUP). The hook does
// not re-read the file itself, and a reload that fails to load never
// reaches SetConfig, so it is not logged here.
func WireHotReload(store *ConfigStore, src ReloadSource, log *logrus.Logger) error {
	cfg, err := src.Load()
	if err != nil {
		return err
	}
	store.SetConfig(cfg)
	store.OnReload(func(_ map[string]any) {
		log.WithField("path", src.Path).Info("correlator config reloaded")
	})
	return nil
}
