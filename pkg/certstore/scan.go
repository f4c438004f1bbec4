package certstore

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mercator-hq/callisto/pkg/certid"
)

// isCandidate reports whether a file name looks like a certificate the
// walk should try to parse. Keys, chains under other names, and
// unrelated files are ignored here; the resolver derives key paths
// separately.
func isCandidate(name string) bool {
	return strings.HasSuffix(name, ".crt") || name == "fullchain.pem"
}

// scan walks the store root and returns entries for every certificate
// file within the depth limit. A missing root yields an empty index;
// unreadable subtrees and malformed files are skipped, never fatal.
func (s *Store) scan() (entries []Entry, skipped int) {
	if s.depth <= 0 {
		return nil, 0
	}

	root, err := filepath.Abs(s.root)
	if err != nil {
		s.logger.Debug("certificate root not resolvable", "root", s.root, "error", err)
		return nil, 0
	}

	info, err := os.Stat(root)
	if err != nil {
		s.logger.Debug("certificate root not readable", "root", root, "error", err)
		return nil, 0
	}
	if !info.IsDir() {
		s.logger.Debug("certificate root is not a directory", "root", root)
		return nil, 0
	}

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			s.logger.Debug("skipping unreadable path", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		name := d.Name()
		if path != root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && levelOf(root, path) >= s.depth {
				return fs.SkipDir
			}
			return nil
		}

		if !isCandidate(name) {
			return nil
		}

		entry, reason := s.loadEntry(path)
		if reason != "" {
			skipped++
			if s.metrics != nil {
				s.metrics.RecordSkippedFile(reason)
			}
			return nil
		}
		entries = append(entries, *entry)
		return nil
	})

	return entries, skipped
}

// levelOf counts path components below root. A file directly in root
// is at level 1.
func levelOf(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// loadEntry parses one candidate file. A non-empty reason means the
// file was excluded ("unreadable", "not_pem", "parse_error", "expired",
// "not_yet_valid", "no_identities").
func (s *Store) loadEntry(path string) (*Entry, string) {
	headed, err := hasCertificateHeader(path)
	if err != nil {
		s.logger.Debug("skipping unreadable candidate", "path", path, "error", err)
		return nil, "unreadable"
	}
	if !headed {
		s.logger.Debug("skipping file without certificate header", "path", path)
		return nil, "not_pem"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Debug("skipping unreadable candidate", "path", path, "error", err)
		return nil, "unreadable"
	}

	cert, err := certid.ParseCertificatePEM(data)
	if err != nil {
		s.logger.Debug("skipping unparseable certificate", "path", path, "error", err)
		return nil, "parse_error"
	}

	now := time.Now()
	if now.After(cert.NotAfter) {
		s.logger.Debug("skipping expired certificate",
			"path", path,
			"not_after", cert.NotAfter,
		)
		return nil, "expired"
	}
	if now.Before(cert.NotBefore) {
		s.logger.Debug("skipping certificate not yet valid",
			"path", path,
			"not_before", cert.NotBefore,
		)
		return nil, "not_yet_valid"
	}

	if _, warning := certid.CheckExpiry(cert); warning != "" {
		s.logger.Warn("certificate approaching expiry",
			"path", path,
			"not_after", cert.NotAfter,
		)
	}

	identities := certid.Identities(cert)
	if len(identities) == 0 {
		s.logger.Debug("skipping certificate with no usable identities", "path", path)
		return nil, "no_identities"
	}

	return &Entry{
		Path:       path,
		Identities: identities,
		NotBefore:  cert.NotBefore,
		NotAfter:   cert.NotAfter,
	}, ""
}

// hasCertificateHeader checks that the first line of the file is
// exactly the PEM certificate header. Key files and other PEM types
// fail this check cheaply, without reading the whole file.
func hasCertificateHeader(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	line, err := bufio.NewReader(io.LimitReader(f, 128)).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return strings.TrimRight(line, "\r\n") == certid.PEMHeader, nil
}
