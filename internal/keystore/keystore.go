package keystore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	jks "github.com/pavlo-v-chernykh/keystore-go/v4"
	"github.com/spf13/afero"
	"golang.org/x/crypto/pkcs12"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// Format identifies the container type of a keystore file.
type Format string

const (
	FormatJKS    Format = "JKS"
	FormatJCEKS  Format = "JCEKS"
	FormatPKCS12 Format = "PKCS12"
)

const (
	jksMagic    uint32 = 0xFEEDFEED
	jceksMagic  uint32 = 0xCECECECE
	derSequence byte   = 0x30
)

var (
	// ErrUnsupportedFormat is returned for files that are neither JKS nor PKCS#12.
	ErrUnsupportedFormat = errors.New("unsupported keystore format")
	// ErrAliasNotFound is returned when the keystore holds no entry for the alias.
	ErrAliasNotFound = errors.New("key alias not found")
	// ErrNotPrivateKey is returned when the alias names something other than a private key.
	ErrNotPrivateKey = errors.New("key alias does not hold a private key")
	// ErrKeyPasswordMismatch is returned for PKCS#12 stores given a key password
	// different from the store password.
	ErrKeyPasswordMismatch = errors.New("PKCS12 keystores require the key password to match the store password")
)

// Report describes a successful verification.
type Report struct {
	Format Format
	// AliasVerified is false only for PKCS#12 stores whose keys carry no
	// friendlyName, where no alias can be proven.
	AliasVerified bool
}

// Verify opens the keystore at path with storePassword and recovers the
// private key stored under alias with keyPassword. The file is closed before
// Verify returns.
func Verify(fs afero.Fs, path, alias, storePassword, keyPassword string) (Report, error) {
	f, err := fs.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("open keystore: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Report{}, fmt.Errorf("read keystore: %w", err)
	}

	format, err := DetectFormat(data)
	if err != nil {
		return Report{}, err
	}

	switch format {
	case FormatJKS:
		return verifyJKS(data, alias, storePassword, keyPassword)
	case FormatPKCS12:
		return verifyPKCS12(data, alias, storePassword, keyPassword)
	default:
		return Report{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// DetectFormat inspects the leading bytes of a keystore file.
func DetectFormat(data []byte) (Format, error) {
	if len(data) >= 4 {
		switch binary.BigEndian.Uint32(data[:4]) {
		case jksMagic:
			return FormatJKS, nil
		case jceksMagic:
			return FormatJCEKS, nil
		}
	}
	if len(data) > 0 && data[0] == derSequence {
		return FormatPKCS12, nil
	}
	return "", ErrUnsupportedFormat
}

func verifyJKS(data []byte, alias, storePassword, keyPassword string) (Report, error) {
	ks := jks.New()
	if err := ks.Load(bytes.NewReader(data), []byte(storePassword)); err != nil {
		return Report{}, fmt.Errorf("load JKS keystore: %w", err)
	}

	if _, err := ks.GetPrivateKeyEntry(alias, []byte(keyPassword)); err != nil {
		switch {
		case errors.Is(err, jks.ErrEntryNotFound):
			return Report{}, fmt.Errorf("%w: %q", ErrAliasNotFound, alias)
		case errors.Is(err, jks.ErrWrongEntryType):
			return Report{}, fmt.Errorf("%w: %q", ErrNotPrivateKey, alias)
		default:
			return Report{}, fmt.Errorf("recover key %q: %w", alias, err)
		}
	}

	return Report{Format: FormatJKS, AliasVerified: true}, nil
}

func verifyPKCS12(data []byte, alias, storePassword, keyPassword string) (Report, error) {
	if keyPassword != storePassword {
		return Report{}, ErrKeyPasswordMismatch
	}

	blocks, err := pkcs12.ToPEM(data, storePassword)
	if err != nil {
		var notImplemented pkcs12.NotImplementedError
		if errors.As(err, &notImplemented) {
			return verifyPKCS12Chain(data, alias, storePassword)
		}
		return Report{}, fmt.Errorf("decode PKCS12 keystore: %w", err)
	}

	keys := 0
	var names []string
	for _, block := range blocks {
		if block.Type != "PRIVATE KEY" {
			continue
		}
		keys++
		if name, ok := block.Headers["friendlyName"]; ok {
			names = append(names, name)
		}
	}
	if keys == 0 {
		return Report{}, fmt.Errorf("%w: %q", ErrNotPrivateKey, alias)
	}
	return matchAlias(alias, names)
}

// verifyPKCS12Chain handles PBES2-protected stores that x/crypto cannot
// decrypt. go-pkcs12 proves the password; aliases are read from the key bag
// attributes.
func verifyPKCS12Chain(data []byte, alias, password string) (Report, error) {
	key, _, _, err := gopkcs12.DecodeChain(data, password)
	if err != nil {
		return Report{}, fmt.Errorf("decode PKCS12 keystore: %w", err)
	}
	if key == nil {
		return Report{}, fmt.Errorf("%w: %q", ErrNotPrivateKey, alias)
	}

	names, err := keyBagNames(data)
	if err != nil {
		return Report{}, fmt.Errorf("read PKCS12 key aliases: %w", err)
	}
	return matchAlias(alias, names)
}

// matchAlias compares alias case-insensitively with the key names. A store
// without any names cannot prove the alias and is accepted unverified.
func matchAlias(alias string, names []string) (Report, error) {
	if len(names) == 0 {
		return Report{Format: FormatPKCS12}, nil
	}
	for _, name := range names {
		if strings.EqualFold(name, alias) {
			return Report{Format: FormatPKCS12, AliasVerified: true}, nil
		}
	}
	return Report{}, fmt.Errorf("%w: %q (keystore holds %s)", ErrAliasNotFound, alias, strings.Join(names, ", "))
}
