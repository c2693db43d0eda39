package credentials

import (
	"strings"

	"github.com/ikcoding/roastplus-signing/internal/envfile"
)

// Source names, in priority order.
const (
	PropertiesSourceName  = "properties file"
	EnvFileSourceName     = "app_config.env"
	EnvironmentSourceName = "environment"
)

// Variable names shared by the side-channel file and the process environment.
const (
	StorePasswordVar = "KEYSTORE_PASSWORD"
	KeyPasswordVar   = "KEY_PASSWORD"
)

// Candidate is a credential pair proposed by one source.
type Candidate struct {
	StorePassword string
	KeyPassword   string
	Source        string
}

// String never includes the passwords.
func (c Candidate) String() string {
	return "candidate from " + c.Source
}

// Source is a named provider of a store/key password pair.
type Source struct {
	Name   string
	Lookup func() (storePassword, keyPassword string)
}

// Collect queries each source in order and returns the complete pairs.
// A pair is complete when both values are non-empty after trimming.
func Collect(sources []Source) []Candidate {
	candidates := make([]Candidate, 0, len(sources))
	for _, src := range sources {
		if src.Lookup == nil {
			continue
		}
		store, key := src.Lookup()
		store, key = strings.TrimSpace(store), strings.TrimSpace(key)
		if store == "" || key == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			StorePassword: store,
			KeyPassword:   key,
			Source:        src.Name,
		})
	}
	return candidates
}

// FromProperties exposes the passwords of a key.properties file.
func FromProperties(props SigningProperties) Source {
	return Source{
		Name: PropertiesSourceName,
		Lookup: func() (string, string) {
			return props.StorePassword, props.KeyPassword
		},
	}
}

// FromEnvFile exposes the passwords of the side-channel file.
func FromEnvFile(values envfile.Values) Source {
	return Source{
		Name: EnvFileSourceName,
		Lookup: func() (string, string) {
			store, _ := values.Get(StorePasswordVar)
			key, _ := values.Get(KeyPasswordVar)
			return store, key
		},
	}
}

// FromEnvironment exposes KEYSTORE_PASSWORD and KEY_PASSWORD read through getenv.
func FromEnvironment(getenv func(string) string) Source {
	return Source{
		Name: EnvironmentSourceName,
		Lookup: func() (string, string) {
			if getenv == nil {
				return "", ""
			}
			return getenv(StorePasswordVar), getenv(KeyPasswordVar)
		},
	}
}

// DefaultSources returns the three sources in priority order.
func DefaultSources(props SigningProperties, values envfile.Values, getenv func(string) string) []Source {
	return []Source{
		FromProperties(props),
		FromEnvFile(values),
		FromEnvironment(getenv),
	}
}
