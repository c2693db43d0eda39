// Package resolver picks the release signing credentials: candidates from
// the credential sources are tried in priority order and the first one that
// actually opens the keystore wins.
package resolver
