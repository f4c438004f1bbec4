/*
Package tlsconfig builds TLS contexts from layered configuration.

# Overview

A context is assembled by merging option layers: built-in defaults,
credentials discovered for the identity, a mode fixup, the global tls
configuration section, and finally any caller overrides. Later layers
overwrite earlier ones key by key; nested groups merge recursively.
Caller overrides apply in reverse order, so the earliest-listed
override wins.

	builder := tlsconfig.NewBuilder(cfg, resolver)
	ctx, resolved, err := builder.BuildContext("example.com", tlsconfig.ModeServer)
	if err != nil {
		var diag *tlsconfig.Diagnostic
		if errors.As(err, &diag) {
			log.Error(diag.Message, "suggestion", diag.Suggestion)
		}
	}

The identity is a hostname, or "<service> port <port>" for service
contexts such as "https port 443".

# Providers

Context allocation is delegated to a Provider. The standard provider
targets crypto/tls and reports its Capabilities once at startup;
default compatibility options are gated on those capabilities rather
than probed at runtime. Cipher preferences are applied to the
allocated config in a second step, and a preference that leaves no
usable cipher discards the context.

# Diagnostics

Build failures surface as *Diagnostic: which file was at fault
(certificate or key, with the configured path), why, and a remediation
sentence. Translate classifies structured causes with errors.Is before
falling back to string patterns, since file errors cross the provider
boundary in both forms.
*/
package tlsconfig
