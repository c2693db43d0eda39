package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/ikcoding/roastplus-signing/internal/keystore/keystoretest"
)

func setupProject(t *testing.T) (dir, keystorePath string) {
	t.Helper()

	for _, key := range []string{
		"KEYSTORE_PASSWORD", "KEY_PASSWORD", "GOOGLE_SIGN_IN_CLIENT_ID", "ADMOB_ANDROID_APP_ID",
		"SIGNING_STORE_FILE", "SIGNING_KEY_ALIAS", "SIGNING_PROPERTIES_FILE", "SIGNING_ENV_FILES", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	dir = t.TempDir()
	keystorePath = filepath.Join(dir, "release.keystore")
	keystoretest.WriteJKS(t, afero.NewOsFs(), keystorePath, "roastplus-key-alias", "store-secret", "key-secret")
	return dir, keystorePath
}

func baseArgs(dir, keystorePath string) []string {
	return []string{
		"--store-file", keystorePath,
		"--properties", filepath.Join(dir, "key.properties"),
		"--env-file", filepath.Join(dir, "app_config.env"),
		"--log-level", "error",
	}
}

func TestRunResolveWritesFile(t *testing.T) {
	dir, keystorePath := setupProject(t)
	t.Setenv("KEYSTORE_PASSWORD", "store-secret")
	t.Setenv("KEY_PASSWORD", "key-secret")

	output := filepath.Join(dir, "signing.properties")
	args := append(baseArgs(dir, keystorePath), "resolve", "--output", output)

	var stdout, stderr bytes.Buffer
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run returned error: %v (stderr: %s)", err, stderr.String())
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	for _, want := range []string{"storePassword = store-secret", "keyPassword = key-secret", "keyAlias = roastplus-key-alias"} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("expected %q in output:\n%s", want, data)
		}
	}
	if stdout.Len() != 0 {
		t.Fatalf("expected nothing on stdout, got %q", stdout.String())
	}
}

func TestRunResolveRedactsStdout(t *testing.T) {
	dir, keystorePath := setupProject(t)
	if err := os.WriteFile(filepath.Join(dir, "app_config.env"), []byte("KEYSTORE_PASSWORD=store-secret\nKEY_PASSWORD=key-secret\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	var stdout, stderr bytes.Buffer
	args := append(baseArgs(dir, keystorePath), "resolve", "--format", "json")
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if strings.Contains(stdout.String(), "secret") {
		t.Fatalf("stdout leaked a password: %s", stdout.String())
	}
	if !strings.Contains(stdout.String(), `"source": "app_config.env"`) {
		t.Fatalf("expected source in output: %s", stdout.String())
	}

	stdout.Reset()
	args = append(baseArgs(dir, keystorePath), "resolve", "--format", "yaml", "--reveal")
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if !strings.Contains(stdout.String(), "keyPassword: key-secret") {
		t.Fatalf("expected revealed password: %s", stdout.String())
	}
}

func TestRunResolveFailsWithoutCredentials(t *testing.T) {
	dir, keystorePath := setupProject(t)
	t.Setenv("KEYSTORE_PASSWORD", "store-secret")

	var stdout, stderr bytes.Buffer
	err := run(append(baseArgs(dir, keystorePath), "resolve"), &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "credentials not found") {
		t.Fatalf("expected credentials not found error, got %v", err)
	}
}

func TestRunPlaceholders(t *testing.T) {
	dir, keystorePath := setupProject(t)
	t.Setenv("ADMOB_ANDROID_APP_ID", "ca-app-pub-123~456")

	var stdout, stderr bytes.Buffer
	args := append(baseArgs(dir, keystorePath), "placeholders", "--build-type", "debug")
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	out := stdout.String()
	for _, want := range []string{"admobAppId = ca-app-pub-123~456", "usesCleartextTraffic = true", "networkSecurityConfig = @xml/network_security_config"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRunRejectsUnknownBuildType(t *testing.T) {
	dir, keystorePath := setupProject(t)

	var stdout, stderr bytes.Buffer
	args := append(baseArgs(dir, keystorePath), "placeholders", "--build-type", "profile")
	if err := run(args, &stdout, &stderr); err == nil {
		t.Fatalf("expected error for unknown build type")
	}
}
