package tlsconfig

import (
	"encoding/pem"
	"errors"
	"os"
)

// DHParams holds Diffie-Hellman parameters read at build time.
// crypto/tls chooses its own key exchange groups, so the parameters
// are validated and preserved for callers that hand the context to a
// stack honoring custom parameters.
type DHParams struct {
	pem []byte
}

// Supplier returns a function yielding a private copy of the PEM data.
func (d *DHParams) Supplier() func() []byte {
	return func() []byte {
		out := make([]byte, len(d.pem))
		copy(out, d.pem)
		return out
	}
}

// loadDHParams reads and PEM-validates a DH parameter file. The read
// happens eagerly, at build time, so a broken path fails the build
// rather than the first handshake.
func loadDHParams(path string) (*DHParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Kind: "dhparam", Path: path, Err: err}
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, &FileError{Kind: "dhparam", Path: path, Err: errors.New("no PEM data found")}
	}
	if block.Type != "DH PARAMETERS" && block.Type != "X9.42 DH PARAMETERS" {
		return nil, &FileError{Kind: "dhparam", Path: path, Err: errors.New("PEM block is not DH parameters")}
	}

	return &DHParams{pem: data}, nil
}
