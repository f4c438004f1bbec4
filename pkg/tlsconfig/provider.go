package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Provider allocates TLS contexts from resolved configuration. The
// standard provider targets crypto/tls; tests and embedders can
// substitute their own.
type Provider interface {
	// Capabilities reports what the provider supports controlling.
	Capabilities() Capabilities

	// NewContext allocates a TLS config from the resolved options.
	NewContext(resolved *ResolvedConfig) (*tls.Config, error)

	// ApplyCipherList applies the resolved cipher preference to an
	// allocated config. Failure means the context must be discarded.
	ApplyCipherList(cfg *tls.Config, resolved *ResolvedConfig) error
}

// StandardProvider builds crypto/tls configurations.
type StandardProvider struct {
	logger *slog.Logger
	caps   Capabilities
}

// NewStandardProvider creates the crypto/tls-backed provider.
func NewStandardProvider(logger *slog.Logger) *StandardProvider {
	if logger == nil {
		logger = slog.Default().With("component", "tlsconfig")
	}
	return &StandardProvider{
		logger: logger,
		caps:   standardCapabilities(),
	}
}

// Capabilities reports what crypto/tls supports controlling.
func (p *StandardProvider) Capabilities() Capabilities {
	return p.caps
}

// cipherByName maps IANA cipher suite names to their IDs, covering
// both the supported and the deprecated lists.
var cipherByName = func() map[string]uint16 {
	m := make(map[string]uint16)
	for _, cs := range tls.CipherSuites() {
		m[cs.Name] = cs.ID
	}
	for _, cs := range tls.InsecureCipherSuites() {
		m[cs.Name] = cs.ID
	}
	return m
}()

// NewContext builds a *tls.Config from the resolved options: protocol
// bounds, verification policy, CA pool, chain depth limit,
// compatibility options, and the credential pair.
func (p *StandardProvider) NewContext(rc *ResolvedConfig) (*tls.Config, error) {
	cfg := &tls.Config{}

	minVersion, maxVersion, err := protocolVersions(rc)
	if err != nil {
		return nil, err
	}
	cfg.MinVersion = minVersion
	cfg.MaxVersion = maxVersion

	verify := rc.VerifyFlags()

	if rc.Mode == ModeServer {
		cfg.ClientAuth = clientAuthPolicy(verify)
	} else {
		cfg.InsecureSkipVerify = !verify["peer"]
		if host := rc.Host; host != "" && !strings.Contains(host, " ") {
			cfg.ServerName = host
		}
	}

	if verify["peer"] {
		pool, err := p.buildPool(rc)
		if err != nil {
			return nil, err
		}
		if rc.Mode == ModeServer {
			cfg.ClientCAs = pool
		} else {
			// nil leaves the system roots in effect
			cfg.RootCAs = pool
		}

		if depth, ok := rc.Int("depth"); ok && depth > 0 {
			cfg.VerifyPeerCertificate = chainDepthLimit(depth)
		}
	}

	p.applyOptions(cfg, rc)

	cert, err := p.loadCredentials(rc)
	if err != nil {
		return nil, err
	}
	if cert != nil {
		cfg.Certificates = []tls.Certificate{*cert}
	}

	return cfg, nil
}

// ApplyCipherList applies the resolved cipher preference after the
// context exists. Unknown names are ignored; a list that leaves no
// known cipher is an error and the context must be discarded.
func (p *StandardProvider) ApplyCipherList(cfg *tls.Config, rc *ResolvedConfig) error {
	names := rc.StringList("ciphers")
	if len(names) == 0 || !p.caps.CipherSelection {
		return nil
	}

	ids := make([]uint16, 0, len(names))
	for _, name := range names {
		id, ok := cipherByName[name]
		if !ok {
			p.logger.Debug("ignoring unknown cipher", "cipher", name)
			continue
		}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return fmt.Errorf("cipher list %q contains no supported ciphers", strings.Join(names, ":"))
	}

	cfg.CipherSuites = ids
	return nil
}

// protocolVersions maps the "protocol" option to version bounds. A
// trailing "+" means that version or newer; without it the context is
// pinned to exactly that version. "sslv23" is the legacy spelling of
// "negotiate anything supported".
func protocolVersions(rc *ResolvedConfig) (uint16, uint16, error) {
	value, ok := rc.String("protocol")
	if !ok || value == "" {
		return tls.VersionTLS10, 0, nil
	}

	name, orNewer := strings.CutSuffix(strings.ToLower(value), "+")

	var version uint16
	switch name {
	case "sslv23":
		return tls.VersionTLS10, 0, nil
	case "tlsv1":
		version = tls.VersionTLS10
	case "tlsv1_1":
		version = tls.VersionTLS11
	case "tlsv1_2":
		version = tls.VersionTLS12
	case "tlsv1_3":
		version = tls.VersionTLS13
	case "sslv2", "sslv3":
		return 0, 0, fmt.Errorf("protocol %q is not supported", value)
	default:
		return 0, 0, fmt.Errorf("unknown protocol %q", value)
	}

	if orNewer {
		return version, 0, nil
	}
	return version, version, nil
}

// clientAuthPolicy maps verify flags to the server-side client
// certificate policy.
func clientAuthPolicy(verify map[string]bool) tls.ClientAuthType {
	if !verify["peer"] {
		return tls.NoClientCert
	}
	if verify["fail_if_no_peer_cert"] {
		return tls.RequireAndVerifyClientCert
	}
	return tls.VerifyClientCertIfGiven
}

// chainDepthLimit enforces a maximum verified chain length: the leaf
// plus at most depth issuers.
func chainDepthLimit(depth int) func([][]byte, [][]*x509.Certificate) error {
	return func(_ [][]byte, chains [][]*x509.Certificate) error {
		if len(chains) == 0 {
			return nil
		}
		for _, chain := range chains {
			if len(chain) <= depth+1 {
				return nil
			}
		}
		return fmt.Errorf("certificate chain exceeds verification depth %d", depth)
	}
}

// applyOptions maps the "options" group onto the config, honoring only
// what the capabilities say is controllable.
func (p *StandardProvider) applyOptions(cfg *tls.Config, rc *ResolvedConfig) {
	for name, value := range rc.Group("options") {
		if !truthy(value) {
			continue
		}
		switch name {
		case "no_ticket":
			if p.caps.SessionTickets {
				cfg.SessionTicketsDisabled = true
			}
		case "no_renegotiation":
			if p.caps.Renegotiation {
				cfg.Renegotiation = tls.RenegotiateNever
			}
		default:
			// carried in the resolved config, nothing to apply
		}
	}
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true" || val == "yes" || val == "1"
	default:
		return false
	}
}

// buildPool assembles the CA pool from cafile and capath. A broken
// cafile is an error; a missing capath is skipped, since the default
// system path need not exist on every machine. Returns nil when
// nothing was loaded, leaving system roots in effect for clients.
func (p *StandardProvider) buildPool(rc *ResolvedConfig) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	loaded := false

	if cafile, ok := rc.String("cafile"); ok && cafile != "" {
		data, err := os.ReadFile(cafile)
		if err != nil {
			return nil, &FileError{Kind: "cafile", Path: cafile, Err: err}
		}
		if !pool.AppendCertsFromPEM(data) {
			return nil, &FileError{Kind: "cafile", Path: cafile, Err: errors.New("no certificates found in PEM data")}
		}
		loaded = true
	}

	if capath, ok := rc.String("capath"); ok && capath != "" {
		entries, err := os.ReadDir(capath)
		if err != nil {
			p.logger.Debug("CA path not readable, skipping", "capath", capath, "error", err)
		} else {
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				switch strings.ToLower(filepath.Ext(entry.Name())) {
				case ".pem", ".crt", ".cer":
				default:
					continue
				}
				data, err := os.ReadFile(filepath.Join(capath, entry.Name()))
				if err != nil {
					p.logger.Debug("skipping unreadable CA file",
						"path", filepath.Join(capath, entry.Name()),
						"error", err,
					)
					continue
				}
				if pool.AppendCertsFromPEM(data) {
					loaded = true
				}
			}
		}
	}

	if !loaded {
		return nil, nil
	}
	return pool, nil
}

// loadCredentials loads the certificate and key pair named by the
// resolved config. Returns nil when no usable pair is configured;
// the builder decides whether that is fatal for the mode.
func (p *StandardProvider) loadCredentials(rc *ResolvedConfig) (*tls.Certificate, error) {
	certPath, ok := rc.String("certificate")
	if !ok || certPath == "" {
		return nil, nil
	}
	keyPath, ok := rc.String("key")
	if !ok || keyPath == "" {
		return nil, nil
	}

	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, &FileError{Kind: "certificate", Path: certPath, Err: err}
	}

	keyPEM := certPEM
	if keyPath != certPath {
		keyPEM, err = os.ReadFile(keyPath)
		if err != nil {
			return nil, &FileError{Kind: "key", Path: keyPath, Err: err}
		}
	}

	keyPEM, err = p.decryptIfNeeded(rc, keyPEM)
	if err != nil {
		return nil, &FileError{Kind: "key", Path: keyPath, Err: err}
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		kind, path := "certificate", certPath
		if strings.Contains(err.Error(), "key") {
			kind, path = "key", keyPath
		}
		return nil, &FileError{Kind: kind, Path: path, Err: err}
	}
	return &cert, nil
}

// decryptIfNeeded handles passphrase-protected keys. Legacy encrypted
// PEM decrypts with the configured password; an empty password fails
// cleanly instead of blocking on a prompt that does not exist.
func (p *StandardProvider) decryptIfNeeded(rc *ResolvedConfig, keyPEM []byte) ([]byte, error) {
	keyBlock := findKeyBlock(keyPEM)
	if keyBlock == nil {
		return keyPEM, nil
	}

	if keyBlock.Type == "ENCRYPTED PRIVATE KEY" {
		return nil, errors.New("encrypted PKCS#8 private keys are not supported, provide an unencrypted key")
	}

	//nolint:staticcheck // legacy encrypted PEM is the format the password path exists for
	if !x509.IsEncryptedPEMBlock(keyBlock) {
		return keyPEM, nil
	}

	password := rc.Password()
	if password == "" {
		return nil, ErrEncryptedKey
	}

	//nolint:staticcheck // see above
	der, err := x509.DecryptPEMBlock(keyBlock, []byte(password))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: keyBlock.Type, Bytes: der}), nil
}

// findKeyBlock locates the first private key block in the PEM data,
// skipping certificates in combined bundles.
func findKeyBlock(data []byte) *pem.Block {
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil
		}
		if strings.Contains(block.Type, "PRIVATE KEY") {
			return block
		}
	}
}
