// Package blobmap reconciles locally buffered file uploads against the
// server's renamed filenames after a write succeeds (SPEC_FULL.md section
// 4.7, "server-vs-local filename mapping"), adapted from the teacher's
// upload-session bookkeeping shape (internal/driveops/session_store.go):
// pending local state matched against an authoritative server response.
package blobmap

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Buffered is one locally held upload awaiting reconciliation: the field it
// belongs to, the filename the caller originally supplied, and its bytes.
type Buffered struct {
	Field    string
	Filename string
	Bytes    []byte
}

// Mapped is one successfully reconciled upload: the buffered bytes plus the
// server filename they should be re-cached under.
type Mapped struct {
	Buffered
	ServerFilename string
}

// Remap matches each Buffered upload against the server-returned record's
// file field values and returns the filename each upload should be
// re-cached under. A buffered upload with no match (the server rejected
// or renamed it unrecognizably) is omitted from the result.
//
// Matching rule (SPEC_FULL.md section 4.7): prefer an exact filename match;
// otherwise the server renames to "<stem>_<nonce>.<ext>", so fall back to
// any server filename prefixed by "<stem>_".
func Remap(buffered []Buffered, serverRecord map[string]any) []Mapped {
	out := make([]Mapped, 0, len(buffered))

	for _, b := range buffered {
		serverNames := serverFilenames(serverRecord[b.Field])

		if match, ok := exactOrPrefixMatch(b.Filename, serverNames); ok {
			out = append(out, Mapped{Buffered: b, ServerFilename: match})
		}
	}

	return out
}

func serverFilenames(v any) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}

		return []string{val}
	case []any:
		out := make([]string, 0, len(val))

		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}

// exactOrPrefixMatch compares filenames under Unicode NFC normalization
// (the teacher's scanner.go applies the same norm.NFC.String pass before
// comparing filenames across filesystems/transports that may deliver
// equivalent names under different normalization forms) so a server that
// round-trips a decomposed-form filename still matches its precomposed
// local original.
func exactOrPrefixMatch(original string, candidates []string) (string, bool) {
	normOriginal := norm.NFC.String(original)

	for _, c := range candidates {
		if norm.NFC.String(c) == normOriginal {
			return c, true
		}
	}

	stem := norm.NFC.String(stemOf(original))

	for _, c := range candidates {
		if strings.HasPrefix(norm.NFC.String(c), stem+"_") {
			return c, true
		}
	}

	return "", false
}

// stemOf returns the filename without its final extension, e.g.
// "photo.jpg" -> "photo". A name with no dot (or a leading-dot dotfile) is
// returned unchanged.
func stemOf(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx <= 0 {
		return filename
	}

	return filename[:idx]
}
