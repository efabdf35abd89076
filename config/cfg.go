package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/google/uuid"
	"github.com/rupor-github/gencfg"
	"golang.org/x/text/language"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	NotionConfig struct {
		// token and database_id presence is checked when sync actually runs,
		// commands not talking to the API work without them
		Token      SecretString `yaml:"token"`
		DatabaseID string       `yaml:"database_id"`
		APIVersion string       `yaml:"api_version" validate:"required"`
		Timeout    int          `yaml:"timeout" validate:"min=1,max=600"`
		RateLimit  float64      `yaml:"rate_limit" validate:"gt=0"`
		MaxRetries int          `yaml:"max_retries" validate:"min=0,max=10"`
	}

	CoverConfig struct {
		Generate              bool            `yaml:"generate"`
		Resize                ImageResizeMode `yaml:"resize" validate:"oneof=0 1 2"`
		Width                 int             `yaml:"width" validate:"min=120"`
		Height                int             `yaml:"height" validate:"min=120"`
		RemovePNGTransparency bool            `yaml:"remove_png_transparency"`
		JPEGQuality           int             `yaml:"jpeg_quality_level" validate:"min=40,max=100"`
	}

	SiteConfig struct {
		OutputDir        string      `yaml:"output_dir" sanitize:"path_clean" validate:"required"`
		BaseURL          string      `yaml:"base_url" validate:"required,url"`
		Title            string      `yaml:"title" validate:"required"`
		Subtitle         string      `yaml:"subtitle"`
		Author           string      `yaml:"author"`
		Language         string      `yaml:"language" validate:"required,bcp47_language_tag"`
		PagesDir         string      `yaml:"pages_dir" sanitize:"path_clean"`
		StylesheetPath   string      `yaml:"stylesheet_path" sanitize:"assure_file_access"`
		ExcerptSentences int         `yaml:"excerpt_sentences" validate:"min=0,max=10"`
		Cover            CoverConfig `yaml:"cover"`
	}

	GitConfig struct {
		Enable          bool   `yaml:"enable"`
		Remote          string `yaml:"remote" validate:"required_unless=Enable false"`
		Branch          string `yaml:"branch" validate:"required_unless=Enable false"`
		MessageTemplate string `yaml:"message_template"`
	}

	ServeConfig struct {
		Address string `yaml:"address" validate:"required,hostname_port"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Notion    NotionConfig   `yaml:"notion"`
		Site      SiteConfig     `yaml:"site"`
		Git       GitConfig      `yaml:"git"`
		Serve     ServeConfig    `yaml:"serve"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above, alternative is to use struct
	// field name and reflection which I want to avoid for now
	GitMessageTemplateFieldName TemplateFieldName = "message_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(GitMessageTemplateFieldName)),
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
			return nil, fmt.Errorf("configuration sanitation failed: %w", err)
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration tamplate to provide
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

// NormalizedDatabaseID brings database identifier info canonical UUID form.
// Notion tooling shows IDs both with and without dashes, API accepts the
// canonical form.
func (conf *NotionConfig) NormalizedDatabaseID() (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(conf.DatabaseID))
	if err != nil {
		return "", fmt.Errorf("bad database id '%s': %w", conf.DatabaseID, err)
	}
	return id.String(), nil
}

// LanguageTag parses configured site language.
func (conf *SiteConfig) LanguageTag() language.Tag {
	tag, err := language.Parse(conf.Language)
	if err != nil {
		return language.English
	}
	return tag
}

// AbsoluteURL joins base site URL with a relative reference.
func (conf *SiteConfig) AbsoluteURL(rel string) string {
	base := strings.TrimRight(conf.BaseURL, "/")
	if len(rel) == 0 {
		return base + "/"
	}
	return base + "/" + strings.TrimLeft(path.Clean(rel), "/")
}
