package certid

import (
	"crypto/x509"
	"encoding/asn1"
	"sort"
	"strings"
)

// Wildcard is the scope meaning "valid for any service".
const Wildcard = "*"

var (
	oidSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}
	oidSRVName        = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 8, 7}
)

// ScopeSet is the set of service scopes an identity covers. A scope is either
// a literal service name (e.g. "xmpp-server") or the Wildcard.
type ScopeSet map[string]bool

// Has reports whether the set covers service, either literally or via the
// wildcard scope.
func (s ScopeSet) Has(service string) bool {
	return s[service] || s[Wildcard]
}

// List returns the scopes in sorted order.
func (s ScopeSet) List() []string {
	scopes := make([]string, 0, len(s))
	for scope := range s {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	return scopes
}

// Identities maps each name the certificate attests to the service scopes it
// covers. DNS SANs cover any service, SRVName SANs ("_service.host") cover
// the named service only, and the subject Common Name is the fallback when no
// usable SAN exists.
func Identities(cert *x509.Certificate) map[string]ScopeSet {
	identities := make(map[string]ScopeSet)
	add := func(name, scope string) {
		name = strings.ToLower(strings.TrimSuffix(name, "."))
		if name == "" {
			return
		}
		if identities[name] == nil {
			identities[name] = make(ScopeSet)
		}
		identities[name][scope] = true
	}

	for _, name := range cert.DNSNames {
		add(name, Wildcard)
	}
	for _, srv := range SRVNames(cert) {
		rest, ok := strings.CutPrefix(srv, "_")
		if !ok {
			continue
		}
		service, host, ok := strings.Cut(rest, ".")
		if !ok || service == "" {
			continue
		}
		add(host, strings.ToLower(service))
	}

	if len(identities) == 0 && cert.Subject.CommonName != "" {
		add(cert.Subject.CommonName, Wildcard)
	}

	return identities
}

// SRVNames extracts id-on-dnsSRV otherName SANs, e.g. "_xmpp-server.example.com".
// The standard parser ignores otherName entries, so the SAN extension is
// walked directly.
func SRVNames(cert *x509.Certificate) []string {
	var names []string
	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(oidSubjectAltName) {
			continue
		}
		names = append(names, srvNamesFromSAN(ext.Value)...)
	}
	return names
}

func srvNamesFromSAN(value []byte) []string {
	var seq asn1.RawValue
	if _, err := asn1.Unmarshal(value, &seq); err != nil {
		return nil
	}
	if !seq.IsCompound || seq.Tag != asn1.TagSequence || seq.Class != asn1.ClassUniversal {
		return nil
	}

	var names []string
	rest := seq.Bytes
	for len(rest) > 0 {
		var generalName asn1.RawValue
		var err error
		rest, err = asn1.Unmarshal(rest, &generalName)
		if err != nil {
			return names
		}
		// otherName is GeneralName CHOICE [0].
		if generalName.Class != asn1.ClassContextSpecific || generalName.Tag != 0 || !generalName.IsCompound {
			continue
		}
		if name, ok := parseSRVOtherName(generalName.Bytes); ok {
			names = append(names, name)
		}
	}
	return names
}

// parseSRVOtherName decodes OtherName{type-id, [0] EXPLICIT value} and returns
// the IA5String value when type-id is id-on-dnsSRV.
func parseSRVOtherName(der []byte) (string, bool) {
	var oid asn1.ObjectIdentifier
	rest, err := asn1.Unmarshal(der, &oid)
	if err != nil || !oid.Equal(oidSRVName) {
		return "", false
	}

	var wrapper asn1.RawValue
	if _, err := asn1.Unmarshal(rest, &wrapper); err != nil {
		return "", false
	}
	if wrapper.Class != asn1.ClassContextSpecific || wrapper.Tag != 0 {
		return "", false
	}

	var value asn1.RawValue
	if _, err := asn1.Unmarshal(wrapper.Bytes, &value); err != nil {
		return "", false
	}
	if value.Tag != asn1.TagIA5String {
		return "", false
	}
	return string(value.Bytes), true
}
