package resolver

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ikcoding/roastplus-signing/internal/credentials"
	"github.com/ikcoding/roastplus-signing/internal/envfile"
	"github.com/ikcoding/roastplus-signing/internal/keystore"
	"github.com/ikcoding/roastplus-signing/internal/keystore/keystoretest"
)

const (
	keystorePath = "android/app/roastplus-new-key.keystore"
	alias        = "roastplus-key-alias"
)

func newFSWithKeystore(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, keystorePath, []byte("placeholder"), 0o600); err != nil {
		t.Fatalf("write keystore: %v", err)
	}
	return fs
}

func staticSource(name, store, key string, calls *[]string) credentials.Source {
	return credentials.Source{
		Name: name,
		Lookup: func() (string, string) {
			if calls != nil {
				*calls = append(*calls, name)
			}
			return store, key
		},
	}
}

func acceptOnly(valid string, attempts *[]string) VerifyFunc {
	return func(_, _ string, c credentials.Candidate) (keystore.Report, error) {
		*attempts = append(*attempts, c.Source)
		if c.StorePassword == valid {
			return keystore.Report{Format: keystore.FormatJKS, AliasVerified: true}, nil
		}
		return keystore.Report{}, errors.New("keystore password was incorrect")
	}
}

func TestResolveTriesSourcesInPriorityOrder(t *testing.T) {
	var lookups, attempts []string
	sources := []credentials.Source{
		staticSource(credentials.PropertiesSourceName, "a", "a", &lookups),
		staticSource(credentials.EnvFileSourceName, "b", "b", &lookups),
		staticSource(credentials.EnvironmentSourceName, "c", "c", &lookups),
	}

	r := New(newFSWithKeystore(t), sources, zaptest.NewLogger(t), WithVerifier(acceptOnly("c", &attempts)))
	result, err := r.Resolve(keystorePath, alias)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	want := []string{credentials.PropertiesSourceName, credentials.EnvFileSourceName, credentials.EnvironmentSourceName}
	if strings.Join(attempts, ",") != strings.Join(want, ",") {
		t.Fatalf("expected attempts %v, got %v", want, attempts)
	}
	if strings.Join(lookups, ",") != strings.Join(want, ",") {
		t.Fatalf("expected lookups %v, got %v", want, lookups)
	}
	if result.Candidate.Source != credentials.EnvironmentSourceName {
		t.Fatalf("expected environment source, got %s", result.Candidate.Source)
	}
	if len(result.Diagnostics) != 2 {
		t.Fatalf("expected 2 diagnostics, got %v", result.Diagnostics)
	}
}

func TestResolveStopsAtFirstSuccess(t *testing.T) {
	var attempts []string
	sources := []credentials.Source{
		staticSource(credentials.PropertiesSourceName, "ok", "ok", nil),
		staticSource(credentials.EnvironmentSourceName, "ok", "ok", nil),
	}

	r := New(newFSWithKeystore(t), sources, zaptest.NewLogger(t), WithVerifier(acceptOnly("ok", &attempts)))
	result, err := r.Resolve(keystorePath, alias)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("expected a single attempt, got %v", attempts)
	}
	if result.Candidate.Source != credentials.PropertiesSourceName {
		t.Fatalf("expected properties source, got %s", result.Candidate.Source)
	}
	if result.Diagnostics != nil {
		t.Fatalf("expected no diagnostics, got %v", result.Diagnostics)
	}
}

func TestResolveSingleCompleteSource(t *testing.T) {
	for _, name := range []string{
		credentials.PropertiesSourceName,
		credentials.EnvFileSourceName,
		credentials.EnvironmentSourceName,
	} {
		name := name
		t.Run(name, func(t *testing.T) {
			var attempts []string
			sources := []credentials.Source{
				staticSource(credentials.PropertiesSourceName, "", "", nil),
				staticSource(credentials.EnvFileSourceName, "only-store", "", nil),
				staticSource(credentials.EnvironmentSourceName, "", "only-key", nil),
			}
			for i := range sources {
				if sources[i].Name == name {
					sources[i] = staticSource(name, "valid", "valid", nil)
				}
			}

			r := New(newFSWithKeystore(t), sources, zaptest.NewLogger(t), WithVerifier(acceptOnly("valid", &attempts)))
			result, err := r.Resolve(keystorePath, alias)
			if err != nil {
				t.Fatalf("Resolve returned error: %v", err)
			}
			if result.Candidate.Source != name {
				t.Fatalf("expected source %s, got %s", name, result.Candidate.Source)
			}
			if len(attempts) != 1 {
				t.Fatalf("expected one attempt, got %v", attempts)
			}
		})
	}
}

func TestResolveFallsThroughToEnvironmentAgainstRealKeystore(t *testing.T) {
	fs := afero.NewMemMapFs()
	keystoretest.WriteJKS(t, fs, keystorePath, alias, "store-secret", "key-secret")

	props := credentials.SigningProperties{StorePassword: "stale-store", KeyPassword: "stale-key"}
	env := map[string]string{
		credentials.StorePasswordVar: "store-secret",
		credentials.KeyPasswordVar:   "key-secret",
	}
	sources := credentials.DefaultSources(props, envfile.Values{}, func(k string) string { return env[k] })

	core, logs := observer.New(zapcore.InfoLevel)
	r := New(fs, sources, zap.New(core))

	result, err := r.Resolve(keystorePath, alias)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if result.Candidate.Source != credentials.EnvironmentSourceName {
		t.Fatalf("expected environment source, got %s", result.Candidate.Source)
	}
	if len(result.Diagnostics) != 1 || !strings.HasPrefix(result.Diagnostics[0], credentials.PropertiesSourceName+":") {
		t.Fatalf("expected one properties diagnostic, got %v", result.Diagnostics)
	}
	if result.Report.Format != keystore.FormatJKS || !result.Report.AliasVerified {
		t.Fatalf("unexpected report: %+v", result.Report)
	}

	if n := logs.FilterMessage("signing credentials rejected").Len(); n != 1 {
		t.Fatalf("expected one rejection log line, got %d", n)
	}
	used := logs.FilterMessage("using signing credentials").All()
	if len(used) != 1 {
		t.Fatalf("expected one success log line, got %d", len(used))
	}
	if got := used[0].ContextMap()["source"]; got != credentials.EnvironmentSourceName {
		t.Fatalf("expected success log to name environment, got %v", got)
	}
	for _, entry := range logs.All() {
		for _, v := range entry.ContextMap() {
			if s, ok := v.(string); ok && strings.Contains(s, "secret") {
				t.Fatalf("log entry leaked a password: %v", entry.ContextMap())
			}
		}
	}
}

func TestResolveMissingKeystore(t *testing.T) {
	var lookups, attempts []string
	sources := []credentials.Source{
		staticSource(credentials.PropertiesSourceName, "a", "a", &lookups),
	}

	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll(keystorePath, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	r := New(fs, sources, zaptest.NewLogger(t), WithVerifier(acceptOnly("a", &attempts)))
	for _, path := range []string{"missing.keystore", keystorePath} {
		_, err := r.Resolve(path, alias)
		if !errors.Is(err, ErrKeystoreNotFound) {
			t.Fatalf("expected ErrKeystoreNotFound for %s, got %v", path, err)
		}
	}
	if len(lookups) != 0 || len(attempts) != 0 {
		t.Fatalf("expected no sources evaluated, got lookups %v attempts %v", lookups, attempts)
	}
}

func TestResolveCredentialsNotFound(t *testing.T) {
	var attempts []string
	props := credentials.SigningProperties{StorePassword: "store"}
	values := envfile.FromMap(map[string]string{credentials.StorePasswordVar: "store"})
	env := map[string]string{credentials.StorePasswordVar: "store"}
	sources := credentials.DefaultSources(props, values, func(k string) string { return env[k] })

	r := New(newFSWithKeystore(t), sources, zaptest.NewLogger(t), WithVerifier(acceptOnly("store", &attempts)))
	_, err := r.Resolve(keystorePath, alias)
	if !errors.Is(err, ErrCredentialsNotFound) {
		t.Fatalf("expected ErrCredentialsNotFound, got %v", err)
	}
	if len(attempts) != 0 {
		t.Fatalf("expected zero attempts, got %v", attempts)
	}
}

func TestResolveAllCandidatesRejected(t *testing.T) {
	var attempts []string
	sources := []credentials.Source{
		staticSource(credentials.PropertiesSourceName, "a", "a", nil),
		staticSource(credentials.EnvFileSourceName, "b", "b", nil),
		staticSource(credentials.EnvironmentSourceName, "c", "c", nil),
	}

	r := New(newFSWithKeystore(t), sources, zaptest.NewLogger(t), WithVerifier(acceptOnly("nothing", &attempts)))
	_, err := r.Resolve(keystorePath, alias)
	if !errors.Is(err, ErrCredentialsRejected) {
		t.Fatalf("expected ErrCredentialsRejected, got %v", err)
	}

	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected *RejectedError, got %T", err)
	}
	if len(rejected.Attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(rejected.Attempts))
	}

	lines := strings.Split(err.Error(), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus one line per source, got %q", err.Error())
	}
	for i, name := range []string{credentials.PropertiesSourceName, credentials.EnvFileSourceName, credentials.EnvironmentSourceName} {
		if !strings.Contains(lines[i+1], name+": keystore password was incorrect") {
			t.Fatalf("line %d does not describe %s: %q", i+1, name, lines[i+1])
		}
	}
}

func TestNewDefaultsToNopLogger(t *testing.T) {
	r := New(afero.NewMemMapFs(), nil, nil)
	if r.logger == nil {
		t.Fatalf("expected a logger")
	}
	if _, err := r.Resolve("missing", alias); !errors.Is(err, ErrKeystoreNotFound) {
		t.Fatalf("expected ErrKeystoreNotFound, got %v", err)
	}
}
