package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ikcoding/roastplus-signing/internal/credentials"
	"github.com/ikcoding/roastplus-signing/internal/keystore"
)

var (
	// ErrKeystoreNotFound is returned when the keystore file does not exist.
	ErrKeystoreNotFound = errors.New("keystore file not found")
	// ErrCredentialsNotFound is returned when no source yields a complete pair.
	ErrCredentialsNotFound = errors.New("signing credentials not found")
	// ErrCredentialsRejected is returned when every candidate fails validation.
	ErrCredentialsRejected = errors.New("no signing credentials could open the keystore")
)

// VerifyFunc proves a candidate against the keystore at path.
type VerifyFunc func(path, alias string, candidate credentials.Candidate) (keystore.Report, error)

// Result is the outcome of a successful resolution.
type Result struct {
	Candidate credentials.Candidate
	Report    keystore.Report
	// Diagnostics holds one message per candidate rejected before the winner.
	Diagnostics []string
}

// RejectedError lists every attempted source and why it failed.
type RejectedError struct {
	Path     string
	Attempts []error
}

func (e *RejectedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s:", ErrCredentialsRejected.Error(), e.Path)
	for _, attempt := range e.Attempts {
		b.WriteString("\n  - ")
		b.WriteString(attempt.Error())
	}
	return b.String()
}

func (e *RejectedError) Unwrap() error {
	return ErrCredentialsRejected
}

// Resolver selects the first candidate, in source order, that opens the
// keystore and recovers the alias's key.
type Resolver struct {
	fs      afero.Fs
	sources []credentials.Source
	verify  VerifyFunc
	logger  *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithVerifier replaces keystore verification, primarily for tests.
func WithVerifier(verify VerifyFunc) Option {
	return func(r *Resolver) {
		r.verify = verify
	}
}

// New builds a Resolver over sources, evaluated in the given order.
func New(fs afero.Fs, sources []credentials.Source, logger *zap.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		fs:      fs,
		sources: sources,
		logger:  logger,
	}
	r.verify = func(path, alias string, c credentials.Candidate) (keystore.Report, error) {
		return keystore.Verify(r.fs, path, alias, c.StorePassword, c.KeyPassword)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the first candidate that passes validation. Any
// verification error rejects the candidate permanently.
func (r *Resolver) Resolve(path, alias string) (Result, error) {
	info, err := r.fs.Stat(path)
	if err != nil || info.IsDir() {
		return Result{}, fmt.Errorf("%w: %s", ErrKeystoreNotFound, path)
	}

	candidates := credentials.Collect(r.sources)
	if len(candidates) == 0 {
		return Result{}, fmt.Errorf("%w: set %s and %s in key.properties, app_config.env or the environment",
			ErrCredentialsNotFound, credentials.StorePasswordVar, credentials.KeyPasswordVar)
	}

	var failures error
	for _, candidate := range candidates {
		report, err := r.verify(path, alias, candidate)
		if err == nil {
			r.logger.Info("using signing credentials",
				zap.String("source", candidate.Source),
				zap.String("keystore", path),
				zap.String("alias", alias),
				zap.String("format", string(report.Format)),
				zap.Bool("alias_verified", report.AliasVerified),
			)
			return Result{
				Candidate:   candidate,
				Report:      report,
				Diagnostics: diagnostics(failures),
			}, nil
		}

		r.logger.Warn("signing credentials rejected",
			zap.String("source", candidate.Source),
			zap.String("keystore", path),
			zap.Error(err),
		)
		failures = multierr.Append(failures, fmt.Errorf("%s: %w", candidate.Source, err))
	}

	return Result{}, &RejectedError{Path: path, Attempts: multierr.Errors(failures)}
}

func diagnostics(failures error) []string {
	errs := multierr.Errors(failures)
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
