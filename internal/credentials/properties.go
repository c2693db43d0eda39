package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magiconair/properties"
	"github.com/spf13/afero"
)

// Recognised key.properties keys.
const (
	StorePasswordKey = "storePassword"
	KeyPasswordKey   = "keyPassword"
	StoreFileKey     = "storeFile"
	KeyAliasKey      = "keyAlias"
)

// SigningProperties is the content of a key.properties file. Empty fields
// were absent from the file.
type SigningProperties struct {
	Path          string
	StorePassword string
	KeyPassword   string
	StoreFile     string
	KeyAlias      string
}

// Found reports whether a properties file was read.
func (p SigningProperties) Found() bool {
	return p.Path != ""
}

// StorePath returns storeFile resolved against baseDir, the directory Gradle's
// file() would use (the app module). It returns "" when storeFile is unset.
func (p SigningProperties) StorePath(baseDir string) string {
	if p.StoreFile == "" || filepath.IsAbs(p.StoreFile) {
		return p.StoreFile
	}
	return filepath.Join(baseDir, p.StoreFile)
}

// LoadProperties reads a Java properties file. A missing file yields empty
// SigningProperties; a malformed one is an error. storeFile is kept as
// written; see StorePath.
func LoadProperties(fs afero.Fs, path string) (SigningProperties, error) {
	if strings.TrimSpace(path) == "" {
		return SigningProperties{}, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return SigningProperties{}, nil
		}
		return SigningProperties{}, fmt.Errorf("read %s: %w", path, err)
	}

	loader := properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	props, err := loader.LoadBytes(data)
	if err != nil {
		return SigningProperties{}, fmt.Errorf("parse %s: %w", path, err)
	}

	out := SigningProperties{
		Path:          path,
		StorePassword: lookup(props, StorePasswordKey),
		KeyPassword:   lookup(props, KeyPasswordKey),
		StoreFile:     lookup(props, StoreFileKey),
		KeyAlias:      lookup(props, KeyAliasKey),
	}
	return out, nil
}

func lookup(props *properties.Properties, key string) string {
	value, _ := props.Get(key)
	return strings.TrimSpace(value)
}
