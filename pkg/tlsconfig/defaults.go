package tlsconfig

// DefaultCAPath is where the built-in defaults expect system CA
// certificates. Only consulted when peer verification is enabled.
const DefaultCAPath = "/etc/ssl/certs"

// DefaultVerifyDepth caps certificate chain length during peer
// verification.
const DefaultVerifyDepth = 9

// defaultCipherList is the built-in cipher preference: ephemeral ECDH
// key exchange only, AEAD suites first. PSK, SRP, 3DES, and
// unauthenticated suites never appear.
var defaultCipherList = []string{
	"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256",
	"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256",
	"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384",
	"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384",
	"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256",
	"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256",
	"TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA",
	"TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA",
	"TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA",
	"TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA",
}

// defaultsLayer builds the first layer of every context: broad
// compatibility with conservative security, compatibility options
// gated on what the provider can actually control.
func defaultsLayer(caps Capabilities) Layer {
	layer := Layer{
		"protocol": "tlsv1+",
		"verify":   "none",
		"capath":   DefaultCAPath,
		"depth":    DefaultVerifyDepth,
	}

	if caps.CipherSelection {
		ciphers := make([]string, len(defaultCipherList))
		copy(ciphers, defaultCipherList)
		layer["ciphers"] = ciphers
	}

	options := map[string]any{}
	if caps.Renegotiation {
		options["no_renegotiation"] = true
	}
	if caps.Compression {
		options["no_compression"] = true
	}
	if caps.ServerCipherOrder {
		options["cipher_server_preference"] = true
	}
	if len(options) > 0 {
		layer["options"] = options
	}

	return layer
}
