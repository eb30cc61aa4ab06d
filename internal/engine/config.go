package engine

import (
	"encoding/json"
	"os"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/marlin-quant/dipsim/internal/strategy"
	"github.com/marlin-quant/dipsim/pkg/errors"
)

// Config is the full configuration for one simulation run. It can be built
// from CLI flags, loaded from a YAML file, or both (flags override the file).
type Config struct {
	DataRoot string `yaml:"data_root" json:"data_root" jsonschema:"title=Data Root,description=Directory containing the {pair}_{timeframe}.csv data files" validate:"required"`
	Pair     string `yaml:"pair" json:"pair" jsonschema:"title=Pair,description=Asset pair to simulate" validate:"required"`
	// Timeframe is the requested bucket size in minutes.
	Timeframe int `yaml:"timeframe" json:"timeframe" jsonschema:"title=Timeframe,description=Bucket size in minutes,enum=1,enum=5,enum=15,enum=30,enum=60,enum=240,enum=720,enum=1440" validate:"oneof=1 5 15 30 60 240 720 1440"`

	StartingCash float64 `yaml:"starting_cash" json:"starting_cash" jsonschema:"title=Starting Cash,description=Initial quote-currency balance,minimum=0" validate:"gte=0"`
	// LowWindow is the look-back window size in calendar days (or rows for
	// the index-low variant).
	LowWindow        int     `yaml:"low_window" json:"low_window" jsonschema:"title=Low Window,description=Look-back window size,enum=5,enum=10,enum=15,enum=30,enum=60,enum=120,enum=240" validate:"oneof=5 10 15 30 60 120 240"`
	TargetPercent    float64 `yaml:"target_percent" json:"target_percent" jsonschema:"title=Target Percent,description=Desired gain that opens the sell search" validate:"gt=0"`
	TolerancePercent float64 `yaml:"tolerance_percent" json:"tolerance_percent" jsonschema:"title=Tolerance Percent,description=Band widening applied around the target,minimum=0" validate:"gte=0"`

	Strategy strategy.Variant `yaml:"strategy" json:"strategy" jsonschema:"title=Strategy,description=Strategy variant to run" validate:"oneof=calendar-low index-low"`

	UseFee     bool    `yaml:"use_fee" json:"use_fee" jsonschema:"title=Use Fee,description=Apply the proportional fee schedule to every fill"`
	FeePercent float64 `yaml:"fee_percent" json:"fee_percent" jsonschema:"title=Fee Percent,description=Proportional fee in percent of notional,minimum=0" validate:"gte=0"`

	// OutputLogPath, when set, receives the trade log as CSV.
	OutputLogPath string `yaml:"output_log_path" json:"output_log_path" jsonschema:"title=Output Log Path,description=Optional CSV file receiving the trade log"`
	// ResultsDir, when set, receives the summary stats YAML.
	ResultsDir string `yaml:"results_dir" json:"results_dir" jsonschema:"title=Results Directory,description=Optional directory receiving the run summary"`

	// EngineVersion pins the config file to a compatible build. Empty skips
	// the check.
	EngineVersion string `yaml:"engine_version" json:"engine_version" jsonschema:"title=Engine Version,description=Optional version pin checked against the running build"`

	StartTime optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional inclusive start of the simulated period"`
	EndTime   optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional inclusive end of the simulated period"`
}

// DefaultConfig returns a Config with the documented flag defaults filled in.
func DefaultConfig() Config {
	return Config{
		Timeframe:        30,
		TolerancePercent: 0.5,
		Strategy:         strategy.VariantCalendarLow,
		FeePercent:       0.2,
		StartTime:        optional.None[time.Time](),
		EndTime:          optional.None[time.Time](),
	}
}

// UnmarshalYAML implements custom unmarshaling for Config. Fields absent from
// the document keep their current values, and the optional time bounds accept
// plain RFC 3339 timestamps.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type rawConfig struct {
		DataRoot         string           `yaml:"data_root"`
		Pair             string           `yaml:"pair"`
		Timeframe        int              `yaml:"timeframe"`
		StartingCash     float64          `yaml:"starting_cash"`
		LowWindow        int              `yaml:"low_window"`
		TargetPercent    float64          `yaml:"target_percent"`
		TolerancePercent float64          `yaml:"tolerance_percent"`
		Strategy         strategy.Variant `yaml:"strategy"`
		UseFee           bool             `yaml:"use_fee"`
		FeePercent       float64          `yaml:"fee_percent"`
		OutputLogPath    string           `yaml:"output_log_path"`
		ResultsDir       string           `yaml:"results_dir"`
		EngineVersion    string           `yaml:"engine_version"`
		StartTime        *time.Time       `yaml:"start_time"`
		EndTime          *time.Time       `yaml:"end_time"`
	}

	raw := rawConfig{
		DataRoot:         c.DataRoot,
		Pair:             c.Pair,
		Timeframe:        c.Timeframe,
		StartingCash:     c.StartingCash,
		LowWindow:        c.LowWindow,
		TargetPercent:    c.TargetPercent,
		TolerancePercent: c.TolerancePercent,
		Strategy:         c.Strategy,
		UseFee:           c.UseFee,
		FeePercent:       c.FeePercent,
		OutputLogPath:    c.OutputLogPath,
		ResultsDir:       c.ResultsDir,
		EngineVersion:    c.EngineVersion,
	}

	if err := unmarshal(&raw); err != nil {
		return err
	}

	c.DataRoot = raw.DataRoot
	c.Pair = raw.Pair
	c.Timeframe = raw.Timeframe
	c.StartingCash = raw.StartingCash
	c.LowWindow = raw.LowWindow
	c.TargetPercent = raw.TargetPercent
	c.TolerancePercent = raw.TolerancePercent
	c.Strategy = raw.Strategy
	c.UseFee = raw.UseFee
	c.FeePercent = raw.FeePercent
	c.OutputLogPath = raw.OutputLogPath
	c.ResultsDir = raw.ResultsDir
	c.EngineVersion = raw.EngineVersion

	if raw.StartTime != nil {
		c.StartTime = optional.Some(*raw.StartTime)
	}

	if raw.EndTime != nil {
		c.EndTime = optional.Some(*raw.EndTime)
	}

	return nil
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to parse config file %s", path)
	}

	return config, nil
}

// Validate checks the configuration against its constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	return nil
}

// GenerateSchema generates a JSON schema for the Config.
func (c *Config) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}

			if t == reflect.TypeOf(strategy.Variant("")) {
				variants := make([]any, len(strategy.AllVariants))
				for i, v := range strategy.AllVariants {
					variants[i] = string(v)
				}

				return &jsonschema.Schema{
					Type: "string",
					Enum: variants,
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "dipsim-config"
	schema.Description = "Configuration schema for a dipsim simulation run"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON generates an indented JSON schema string for the Config.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schemaBytes, err := json.MarshalIndent(c.GenerateSchema(), "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
