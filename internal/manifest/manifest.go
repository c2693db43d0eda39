package manifest

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ikcoding/roastplus-signing/internal/envfile"
)

// BuildType is an Android build type.
type BuildType string

const (
	Release BuildType = "release"
	Debug   BuildType = "debug"
)

// Placeholder keys understood by AndroidManifest.xml.
const (
	NetworkSecurityConfigKey = "networkSecurityConfig"
	GoogleSignInClientIDKey  = "googleSignInClientId"
	AdMobAppIDKey            = "admobAppId"
	UsesCleartextTrafficKey  = "usesCleartextTraffic"
)

// Environment variables consulted for placeholder values.
const (
	GoogleSignInClientIDVar = "GOOGLE_SIGN_IN_CLIENT_ID"
	AdMobAppIDVar           = "ADMOB_ANDROID_APP_ID"
)

const (
	networkSecurityConfig       = "@xml/network_security_config"
	defaultGoogleSignInClientID = "330871937318-ua3q3aikt2vkd6p30288mm1d62df53pl.apps.googleusercontent.com"
	// AdMob's published sample app ID.
	defaultAdMobAppID = "ca-app-pub-3940256099942544~3347511713"
)

// ErrUnknownBuildType is returned for build types other than release and debug.
var ErrUnknownBuildType = errors.New("unknown build type")

// ParseBuildType validates a build type name.
func ParseBuildType(raw string) (BuildType, error) {
	switch bt := BuildType(strings.ToLower(strings.TrimSpace(raw))); bt {
	case Release, Debug:
		return bt, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBuildType, raw)
	}
}

// Placeholders maps placeholder keys to their values.
type Placeholders map[string]string

// Keys returns the placeholder keys in sorted order.
func (p Placeholders) Keys() []string {
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Resolve computes the manifest placeholders for a build type. The client ID
// comes from the environment, then the side-channel file, then the default;
// the AdMob app ID from the environment or the default.
func Resolve(buildType BuildType, getenv func(string) string, values envfile.Values) (Placeholders, error) {
	if buildType != Release && buildType != Debug {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBuildType, buildType)
	}
	if getenv == nil {
		getenv = func(string) string { return "" }
	}

	clientID := strings.TrimSpace(getenv(GoogleSignInClientIDVar))
	if clientID == "" {
		clientID, _ = values.Get(GoogleSignInClientIDVar)
	}
	if clientID == "" {
		clientID = defaultGoogleSignInClientID
	}

	adMobID := strings.TrimSpace(getenv(AdMobAppIDVar))
	if adMobID == "" {
		adMobID = defaultAdMobAppID
	}

	return Placeholders{
		NetworkSecurityConfigKey: networkSecurityConfig,
		GoogleSignInClientIDKey:  clientID,
		AdMobAppIDKey:            adMobID,
		UsesCleartextTrafficKey:  strconv.FormatBool(buildType == Debug),
	}, nil
}
