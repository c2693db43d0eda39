// Package envfile reads the app_config.env side-channel file that carries
// signing passwords and client identifiers outside of version control. The
// file is read once at startup and passed around as an immutable Values.
package envfile
