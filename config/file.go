package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// LoadFile decodes the TOML file at path over cfg. A missing file leaves cfg
// untouched. Unknown keys are an error so typos do not go unnoticed.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("unable to read config file %s: %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("%w: %s:%d:%d: %v", ErrInvalid, path, row, col, derr)
		}
		return fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	return nil
}

const fileHeader = `# Puzzle jackpot configuration
#
# network is liquid, liquidtestnet or elementsregtest. node.url defaults to
# http://127.0.0.1:<network rpc port>. Durations use Go syntax ("30s").
`

// WriteFile writes cfg as TOML to path. The file can hold the node password,
// so it is only readable by the owner.
func WriteFile(path string, cfg *Config) (err error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("unable to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	if _, err := f.WriteString(fileHeader + "\n"); err != nil {
		return fmt.Errorf("unable to write header to %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("unable to write config to %s: %w", path, err)
	}
	return nil
}

// WriteDefaultConfig writes the defaults for network to path.
func WriteDefaultConfig(path, network string) error {
	return WriteFile(path, Default(network))
}
