package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up when --config is not given. A missing
// default file is not an error; defaults apply.
const DefaultConfigFile = "data/config.yaml"

// ErrUnsupportedFormat is returned for config files that are not YAML.
var ErrUnsupportedFormat = errors.New("unsupported config format (only YAML supported)")

// Load overlays the YAML file at path onto cfg. Keys missing from the file
// keep their current values, so calling Load on [DefaultConfig] gives the
// original tool's merge-with-defaults behavior. Unknown keys are rejected.
//
// When required is false a missing file is silently ignored.
func Load(path string, cfg *Config, required bool) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			cfg.ConfigFile = path
			return nil
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config %s contains multiple documents or trailing content", path)
	}

	cfg.ConfigFile = path
	return nil
}
