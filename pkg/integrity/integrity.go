// Package integrity verifies downloaded artifacts against the build metadata
// digest of a "packageManager" field, e.g. "sha512.<hex>" or "sha256-<base64>".
package integrity

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"regexp"
	"strings"
)

var metaPattern = regexp.MustCompile(`(?i)^(sha\d+)[.-](.+)$`)

var algorithms = map[string]func() hash.Hash{
	"sha224": sha256.New224,
	"sha256": sha256.New,
	"sha384": sha512.New384,
	"sha512": sha512.New,
}

// Digest is a parsed build metadata digest.
type Digest struct {
	Algorithm string // lowercase, e.g. "sha512"
	Sum       []byte
}

// Parse extracts a digest from build metadata. ok is false when the value
// is not a recognized "<algorithm>.<digest>" form.
func Parse(buildMeta string) (d Digest, ok bool) {
	m := metaPattern.FindStringSubmatch(strings.TrimSpace(buildMeta))
	if m == nil {
		return Digest{}, false
	}
	alg := strings.ToLower(m[1])
	if _, known := algorithms[alg]; !known {
		return Digest{}, false
	}
	sum, err := decode(m[2])
	if err != nil {
		return Digest{}, false
	}
	return Digest{Algorithm: alg, Sum: sum}, true
}

// decode treats the digest as base64 when it contains characters that
// cannot appear in hex output, and as hex otherwise. Base64 digests that
// happen to avoid "/" and "+" still decode through the fallback.
func decode(s string) ([]byte, error) {
	if strings.ContainsAny(s, "/+=") {
		return base64.StdEncoding.DecodeString(s)
	}
	if b, err := hex.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

// Verify reports whether the file at path matches buildMeta. Unrecognized
// build metadata has nothing to verify and yields true.
func Verify(path, buildMeta string) (bool, error) {
	d, ok := Parse(buildMeta)
	if !ok {
		return true, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	return d.Check(f)
}

// Check hashes r and compares the result with d.
func (d Digest) Check(r io.Reader) (bool, error) {
	h := algorithms[d.Algorithm]()
	if _, err := io.Copy(h, r); err != nil {
		return false, err
	}
	return bytes.Equal(h.Sum(nil), d.Sum), nil
}
