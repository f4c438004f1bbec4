// Package health runs readiness probes for the status server.
//
// A Checker holds named probe functions against the engine's
// dependencies. The status server registers what matters for serving
// certificates (the certificate root being present, the inventory
// database answering) and exposes the aggregate through
// ReadinessHandler:
//
//	checker := health.New(0)
//	checker.RegisterCheck("certificate_root", func(ctx context.Context) error {
//	    info, err := os.Stat(root)
//	    if err != nil {
//	        return err
//	    }
//	    if !info.IsDir() {
//	        return fmt.Errorf("%s is not a directory", root)
//	    }
//	    return nil
//	})
//	mux.HandleFunc("/readyz", checker.ReadinessHandler())
//
// Probes run concurrently under a per-probe timeout. One failing probe
// degrades the whole answer to 503, so orchestrators stop routing
// traffic while the certificate tree or the observation history is
// unavailable; the process itself stays up.
package health
