// Package credentials defines the ordered sources of release signing
// passwords: the key.properties file, the app_config.env side-channel file and
// the process environment. Sources are plain lookup functions evaluated in
// priority order by Collect.
package credentials
