package config

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Matching algorithm choices for the decoder.
const (
	AlgorithmTopic0Address = "topic0_address"
	AlgorithmTopic0        = "topic0"
)

// Hex string casing for materialized columns.
const (
	HexLowercase = "lowercase"
	HexUppercase = "uppercase"
)

// MainConfig holds default filesystem locations.
type MainConfig struct {
	RawLogsFolder string `mapstructure:"raw_logs_folder"`
	AbiDfPath     string `mapstructure:"abi_df_path"`
	AbiFolderPath string `mapstructure:"abi_folder_path"`
}

// SchemaConfig maps the required raw-log columns to their names in the
// input table. All other input columns pass through untouched.
type SchemaConfig struct {
	AliasAddress string `mapstructure:"alias_address"`
	AliasTopic0  string `mapstructure:"alias_topic0"`
	AliasTopic1  string `mapstructure:"alias_topic1"`
	AliasTopic2  string `mapstructure:"alias_topic2"`
	AliasTopic3  string `mapstructure:"alias_topic3"`
	AliasData    string `mapstructure:"alias_data"`
}

// DecoderConfig holds the batch-decoding tunables.
type DecoderConfig struct {
	Algorithm               string       `mapstructure:"algorithm"`
	MaxChunkSize            int          `mapstructure:"max_chunk_size"`
	OutputHexStringEncoding string       `mapstructure:"output_hex_string_encoding"`
	MaxLogDataSize          int          `mapstructure:"max_log_data_size"`
	Schema                  SchemaConfig `mapstructure:"schema"`
}

// AbiReaderConfig holds the signature-index tunables.
type AbiReaderConfig struct {
	UniqueKey               []string `mapstructure:"unique_key"`
	OutputHexStringEncoding string   `mapstructure:"output_hex_string_encoding"`
}

// Config is the full process configuration. A batch never reads the live
// registry; it runs against a Snapshot taken at entry.
type Config struct {
	Main      MainConfig      `mapstructure:"main"`
	Decoder   DecoderConfig   `mapstructure:"decoder"`
	AbiReader AbiReaderConfig `mapstructure:"abi_reader"`
}

// Default returns the configuration used when no TOML file and no Set calls
// override it.
func Default() Config {
	return Config{
		Main: MainConfig{
			RawLogsFolder: "data/logs",
			AbiDfPath:     "ABIs/ethereum__events__abis.parquet",
			AbiFolderPath: "ABIs/abi_database",
		},
		Decoder: DecoderConfig{
			Algorithm:               AlgorithmTopic0,
			MaxChunkSize:            200_000,
			OutputHexStringEncoding: HexLowercase,
			MaxLogDataSize:          1 << 20,
			Schema: SchemaConfig{
				AliasAddress: "address",
				AliasTopic0:  "topic0",
				AliasTopic1:  "topic1",
				AliasTopic2:  "topic2",
				AliasTopic3:  "topic3",
				AliasData:    "data",
			},
		},
		AbiReader: AbiReaderConfig{
			UniqueKey:               []string{"address", "hash", "full_signature"},
			OutputHexStringEncoding: HexLowercase,
		},
	}
}

// FromTomlBytes parses a TOML document into a Config, starting from the
// defaults so partial files work.
func FromTomlBytes(data []byte) (Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse TOML config")
	}
	c := Default()
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks value-level constraints.
func (c *Config) Validate() error {
	switch c.Decoder.Algorithm {
	case AlgorithmTopic0, AlgorithmTopic0Address:
	default:
		return errors.Errorf("unknown decoder.algorithm %q", c.Decoder.Algorithm)
	}
	if c.Decoder.MaxChunkSize <= 0 {
		return errors.Errorf("decoder.max_chunk_size must be positive, got %d", c.Decoder.MaxChunkSize)
	}
	if c.Decoder.MaxLogDataSize <= 0 {
		return errors.Errorf("decoder.max_log_data_size must be positive, got %d", c.Decoder.MaxLogDataSize)
	}
	if err := validateHexEncoding("decoder", c.Decoder.OutputHexStringEncoding); err != nil {
		return err
	}
	if err := validateHexEncoding("abi_reader", c.AbiReader.OutputHexStringEncoding); err != nil {
		return err
	}
	if len(c.AbiReader.UniqueKey) == 0 {
		return errors.New("abi_reader.unique_key must not be empty")
	}
	for _, part := range c.AbiReader.UniqueKey {
		switch part {
		case "address", "hash", "full_signature":
		default:
			return errors.Errorf("unknown abi_reader.unique_key part %q", part)
		}
	}
	return nil
}

func validateHexEncoding(section, value string) error {
	switch value {
	case HexLowercase, HexUppercase:
		return nil
	default:
		return errors.Errorf("unknown %s.output_hex_string_encoding %q", section, value)
	}
}

// UpperHex reports whether decoded hex strings should be uppercased.
func (d *DecoderConfig) UpperHex() bool {
	return d.OutputHexStringEncoding == HexUppercase
}
