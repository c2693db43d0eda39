package signing

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/magiconair/properties"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/ikcoding/roastplus-signing/internal/resolver"
)

// Format selects how a Config is serialised.
type Format string

const (
	FormatProperties Format = "properties"
	FormatYAML       Format = "yaml"
	FormatJSON       Format = "json"
)

// ErrUnknownFormat is returned by ParseFormat and Write for unsupported formats.
var ErrUnknownFormat = errors.New("unknown output format")

const redacted = "********"

// Config is the release signing configuration handed to the packaging step.
type Config struct {
	StoreFile     string `json:"storeFile" yaml:"storeFile"`
	StorePassword string `json:"storePassword" yaml:"storePassword"`
	KeyAlias      string `json:"keyAlias" yaml:"keyAlias"`
	KeyPassword   string `json:"keyPassword" yaml:"keyPassword"`
	Source        string `json:"source" yaml:"source"`
}

// FromResult builds a Config from a successful resolution.
func FromResult(storeFile, alias string, result resolver.Result) Config {
	return Config{
		StoreFile:     storeFile,
		StorePassword: result.Candidate.StorePassword,
		KeyAlias:      alias,
		KeyPassword:   result.Candidate.KeyPassword,
		Source:        result.Candidate.Source,
	}
}

// Redacted returns a copy with both passwords masked.
func (c Config) Redacted() Config {
	c.StorePassword = redacted
	c.KeyPassword = redacted
	return c
}

func (c Config) String() string {
	return fmt.Sprintf("storeFile=%s keyAlias=%s source=%s", c.StoreFile, c.KeyAlias, c.Source)
}

// ParseFormat validates a user supplied format name.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatProperties, FormatYAML, FormatJSON:
		return f, nil
	case "":
		return FormatProperties, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
	}
}

// Write serialises c to w. The properties form uses the key.properties keys
// Gradle reads; the source is only included as a comment.
func Write(w io.Writer, c Config, format Format) error {
	switch format {
	case FormatProperties:
		p := properties.NewProperties()
		p.DisableExpansion = true
		for _, kv := range [][2]string{
			{"storeFile", c.StoreFile},
			{"storePassword", c.StorePassword},
			{"keyAlias", c.KeyAlias},
			{"keyPassword", c.KeyPassword},
		} {
			if _, _, err := p.Set(kv[0], kv[1]); err != nil {
				return fmt.Errorf("set %s: %w", kv[0], err)
			}
		}
		if c.Source != "" {
			p.SetComments("storeFile", []string{"resolved from " + c.Source})
		}
		if _, err := p.WriteComment(w, "# ", properties.UTF8); err != nil {
			return fmt.Errorf("write properties: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("write YAML: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteFile writes c to path readable only by the owner.
func WriteFile(fs afero.Fs, path string, c Config, format Format) error {
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, c, format); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
