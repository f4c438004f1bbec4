/*
Package certid inspects X.509 certificates: which identities they attest,
which services those identities cover, and whether the certificate is
currently usable.

# Identity extraction

Identities maps every name a certificate is valid for to the set of service
scopes it covers. DNS SANs cover any service ("*"), SRVName SANs cover one
named service, and the subject Common Name is used only when no usable SAN
is present:

	cert, err := certid.ParseCertificatePEM(pemBytes)
	if err != nil {
		log.Fatal(err)
	}
	for identity, scopes := range certid.Identities(cert) {
		fmt.Println(identity, scopes.List())
	}

# Validity

	if !certid.ValidAt(cert, time.Now()) {
		// expired or not yet valid
	}

	days, warning := certid.CheckExpiry(cert)
	if warning != "" {
		slog.Warn(warning, "days_left", days)
	}
*/
package certid
