package config

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// registry is the process-wide mutable configuration. Batches never read it
// directly: Snapshot copies it under the lock and the copy stays immutable
// for the batch lifetime, so a Set racing a running batch cannot change
// in-flight behavior.
var registry = struct {
	mu  sync.RWMutex
	cfg Config
}{cfg: Default()}

// Snapshot returns an immutable copy of the current configuration.
func Snapshot() Config {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	c := registry.cfg
	c.AbiReader.UniqueKey = append([]string(nil), registry.cfg.AbiReader.UniqueKey...)
	return c
}

// Load replaces the registry wholesale, e.g. from a parsed TOML file.
func Load(c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.cfg = c
	return nil
}

// Reset restores the defaults. Intended for tests.
func Reset() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.cfg = Default()
}

// Set updates a single option by its dotted name, the same names the TOML
// file uses ("decoder.max_chunk_size", "decoder.schema.alias_topic0", ...).
func Set(key string, value interface{}) error {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	c := registry.cfg
	c.AbiReader.UniqueKey = append([]string(nil), registry.cfg.AbiReader.UniqueKey...)
	if err := apply(&c, key, value); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	registry.cfg = c
	return nil
}

func apply(c *Config, key string, value interface{}) error {
	var err error
	switch key {
	case "main.raw_logs_folder":
		c.Main.RawLogsFolder, err = cast.ToStringE(value)
	case "main.abi_df_path":
		c.Main.AbiDfPath, err = cast.ToStringE(value)
	case "main.abi_folder_path":
		c.Main.AbiFolderPath, err = cast.ToStringE(value)
	case "decoder.algorithm":
		c.Decoder.Algorithm, err = cast.ToStringE(value)
	case "decoder.max_chunk_size":
		c.Decoder.MaxChunkSize, err = cast.ToIntE(value)
	case "decoder.max_log_data_size":
		c.Decoder.MaxLogDataSize, err = cast.ToIntE(value)
	case "decoder.output_hex_string_encoding":
		c.Decoder.OutputHexStringEncoding, err = cast.ToStringE(value)
	case "decoder.schema.alias_address":
		c.Decoder.Schema.AliasAddress, err = cast.ToStringE(value)
	case "decoder.schema.alias_topic0":
		c.Decoder.Schema.AliasTopic0, err = cast.ToStringE(value)
	case "decoder.schema.alias_topic1":
		c.Decoder.Schema.AliasTopic1, err = cast.ToStringE(value)
	case "decoder.schema.alias_topic2":
		c.Decoder.Schema.AliasTopic2, err = cast.ToStringE(value)
	case "decoder.schema.alias_topic3":
		c.Decoder.Schema.AliasTopic3, err = cast.ToStringE(value)
	case "decoder.schema.alias_data":
		c.Decoder.Schema.AliasData, err = cast.ToStringE(value)
	case "abi_reader.unique_key":
		c.AbiReader.UniqueKey, err = cast.ToStringSliceE(value)
	case "abi_reader.output_hex_string_encoding":
		c.AbiReader.OutputHexStringEncoding, err = cast.ToStringE(value)
	default:
		return errors.Errorf("unknown config option %q", key)
	}
	return errors.Wrapf(err, "invalid value for %q", key)
}
