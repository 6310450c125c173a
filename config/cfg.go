package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	// MarginsConfig sets default page margins. All is applied to every side
	// first, individual sides override it. Values are absolute lengths with
	// units, for example "2.5cm" or "36pt".
	MarginsConfig struct {
		All    string `yaml:"all,omitempty"`
		Top    string `yaml:"top,omitempty"`
		Bottom string `yaml:"bottom,omitempty"`
		Left   string `yaml:"left,omitempty"`
		Right  string `yaml:"right,omitempty"`
	}

	DocumentConfig struct {
		Paper        string        `yaml:"paper" validate:"required"`
		Margins      MarginsConfig `yaml:"margins"`
		Flipped      bool          `yaml:"flipped"`
		Columns      int           `yaml:"columns" validate:"min=1,max=4"`
		AutoFlow     bool          `yaml:"auto_flow"`
		CharsPerPage int           `yaml:"chars_per_page" validate:"min=200,max=20000"`
	}

	OutputConfig struct {
		Format        string `yaml:"format" validate:"required,oneof=text xml bundle"`
		NameTemplate  string `yaml:"name_template,omitempty"`
		Transliterate bool   `yaml:"file_name_transliterate"`
		FixZip        bool   `yaml:"fix_zip"`
		Preview       bool   `yaml:"preview"`
	}

	AssetsConfig struct {
		MinJPEGQuality int  `yaml:"min_jpeg_quality" validate:"min=1,max=100"`
		MaxRasterDim   int  `yaml:"max_raster_dimension" validate:"min=16"`
		UsePlaceholder bool `yaml:"use_placeholder"`
	}

	CacheConfig struct {
		Enable bool   `yaml:"enable"`
		Path   string `yaml:"path" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required,filepath"`
		// Entries older than this are pruned when the cache opens. Zero
		// keeps everything.
		MaxAgeDays int `yaml:"max_age_days" validate:"min=0"`
	}

	ServerConfig struct {
		Address         string       `yaml:"address" validate:"required,hostname_port"`
		TimeoutSec      int          `yaml:"timeout_sec" validate:"min=1,max=600"`
		MaxRequestBytes int64        `yaml:"max_request_bytes" validate:"min=1024"`
		Token           SecretString `yaml:"token,omitempty"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Document  DocumentConfig `yaml:"document"`
		Output    OutputConfig   `yaml:"output"`
		Assets    AssetsConfig   `yaml:"assets"`
		Cache     CacheConfig    `yaml:"cache"`
		Server    ServerConfig   `yaml:"server"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match the yaml field name above, getting it from the
	// struct tag would cost a round of reflection
	OutputNameTemplateFieldName TemplateFieldName = "name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, fmt.Errorf("failed to sanitize configuration: %w", err)
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("failed to validate configuration: %w", err)
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
