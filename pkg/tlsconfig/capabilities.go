package tlsconfig

// Capabilities describes what the underlying TLS stack supports
// controlling. It is computed once when a provider is created, and the
// default option layer consults these fields instead of probing the
// runtime at every build.
type Capabilities struct {
	// CipherSelection reports whether an explicit cipher preference is
	// honored. crypto/tls honors CipherSuites for TLS 1.2 and below.
	CipherSelection bool

	// SessionTickets reports whether session ticket issuance can be
	// disabled.
	SessionTickets bool

	// Renegotiation reports whether the renegotiation policy can be
	// set.
	Renegotiation bool

	// Compression reports whether TLS compression can be disabled.
	// crypto/tls never compresses, so there is nothing to turn off.
	Compression bool

	// ServerCipherOrder reports whether the server-side cipher
	// preference order can be forced. The Go runtime chooses the order
	// itself.
	ServerCipherOrder bool
}

// standardCapabilities returns the capabilities of crypto/tls.
func standardCapabilities() Capabilities {
	return Capabilities{
		CipherSelection:   true,
		SessionTickets:    true,
		Renegotiation:     true,
		Compression:       false,
		ServerCipherOrder: false,
	}
}
