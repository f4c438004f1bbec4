package tlsconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Reason classifies why a context build failed.
type Reason string

// Failure classes.
const (
	ReasonPermission Reason = "permission"
	ReasonMissing    Reason = "missing"
	ReasonInternal   Reason = "internal"
	ReasonMalformed  Reason = "malformed"
	ReasonUnknown    Reason = "unknown"
)

// Remediation sentences, one per failure class. These are the
// operator-facing half of a Diagnostic.
const (
	suggestPermission = "Check that the permissions allow reading this file."
	suggestMissing    = "Check that the path is correct and the file exists."
	suggestInternal   = "Previous error (see logs), or other system error."
	suggestMalformed  = "Check that the file contains a certificate/key in PEM format."
	suggestUnknown    = "Check that the file exists and the permissions are correct."
)

// Diagnostic explains a context construction failure in terms an
// operator can act on: which file, why it failed, and what to check.
// It implements error.
type Diagnostic struct {
	// Host is the identity the context was being built for.
	Host string

	// File names what was being loaded ("certificate", "key",
	// "cafile", "dhparam"), or is empty when the failure is not bound
	// to a file.
	File string

	// Path is the configured path of the failing file.
	Path string

	// Reason classifies the failure.
	Reason Reason

	// Message is the failure detail.
	Message string

	// Suggestion is the remediation sentence.
	Suggestion string

	// Err is the underlying error, if any.
	Err error
}

// Error renders the operator-facing message.
func (d *Diagnostic) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "error initialising encryption for %s: %s", d.Host, d.Message)
	if d.Suggestion != "" {
		fmt.Fprintf(&b, " (%s)", d.Suggestion)
	}
	return b.String()
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (d *Diagnostic) Unwrap() error {
	return d.Err
}

// FileError attributes a raw failure to a specific configured file.
// The provider wraps read and parse errors in it so Translate can say
// which path the operator should look at.
type FileError struct {
	// Kind is "certificate", "key", "cafile", or "dhparam".
	Kind string

	// Path is the file that failed.
	Path string

	// Err is the raw error.
	Err error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("failed to load %s from %s: %v", e.Kind, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// ErrEncryptedKey indicates a passphrase-protected key with no usable
// password configured.
var ErrEncryptedKey = errors.New("encrypted key requires a configured password")

// Translate turns a raw build error into a Diagnostic for the host.
// Structured causes are classified with errors.Is first; string
// patterns are the fallback for errors that cross a library boundary
// as text.
func Translate(host string, err error) *Diagnostic {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d
	}

	var fe *FileError
	if errors.As(err, &fe) {
		diag := &Diagnostic{
			Host:    host,
			File:    fe.Kind,
			Path:    fe.Path,
			Message: fmt.Sprintf("failed to load %s from %s", fe.Kind, fe.Path),
			Err:     err,
		}
		diag.Reason, diag.Suggestion = classify(fe.Err)
		return diag
	}

	return &Diagnostic{
		Host:       host,
		Reason:     ReasonUnknown,
		Message:    err.Error(),
		Suggestion: "",
		Err:        err,
	}
}

// classify maps a raw cause to a failure class and its remediation.
func classify(err error) (Reason, string) {
	switch {
	case errors.Is(err, os.ErrPermission):
		return ReasonPermission, suggestPermission
	case errors.Is(err, os.ErrNotExist):
		return ReasonMissing, suggestMissing
	case errors.Is(err, ErrEncryptedKey):
		return ReasonMalformed, "Check that the configured password for the key is correct."
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied"):
		return ReasonPermission, suggestPermission
	case strings.Contains(msg, "no such file"):
		return ReasonMissing, suggestMissing
	case strings.Contains(msg, "system lib"):
		return ReasonInternal, suggestInternal
	case strings.Contains(msg, "pem"),
		strings.Contains(msg, "private key"),
		strings.Contains(msg, "asn1"),
		strings.Contains(msg, "x509"),
		strings.Contains(msg, "malformed"):
		return ReasonMalformed, suggestMalformed
	default:
		return ReasonUnknown, suggestUnknown
	}
}
