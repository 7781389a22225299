package distcache

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/pmux/pkg/errors"
)

// maxEntrySize bounds a single extracted file.
const maxEntrySize = 512 << 20

// ExtractTarball unpacks the gzipped npm tarball at src into dest. The
// archive's top-level directory (conventionally "package/") is stripped.
// Entries escaping dest are rejected.
func ExtractTarball(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	return Extract(f, dest)
}

// Extract is [ExtractTarball] for a stream.
func Extract(r io.Reader, dest string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return errors.Wrap(errors.ErrCodeExtractionFailed, err, "open gzip stream")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(errors.ErrCodeExtractionFailed, err, "read archive")
		}

		rel, ok := stripTopLevel(hdr.Name)
		if !ok {
			continue
		}
		if err := errors.ValidatePath(rel); err != nil {
			return errors.Wrap(errors.ErrCodeExtractionFailed, err, "unsafe archive entry %q", hdr.Name)
		}
		target := filepath.Join(dest, filepath.FromSlash(rel))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr); err != nil {
				return errors.Wrap(errors.ErrCodeExtractionFailed, err, "extract %s", rel)
			}
		default:
			// Links and devices are never needed by a CLI distribution.
		}
	}
}

func stripTopLevel(name string) (string, bool) {
	name = strings.TrimPrefix(name, "./")
	_, rest, ok := strings.Cut(name, "/")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}

func writeFile(target string, r io.Reader, hdr *tar.Header) error {
	if hdr.Size > maxEntrySize {
		return errors.New(errors.ErrCodeExtractionFailed, "entry too large (%d bytes)", hdr.Size)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	// npm tarballs often lack execute bits on bin scripts; node runs them anyway.
	mode := os.FileMode(0o644)
	if hdr.FileInfo().Mode()&0o111 != 0 {
		mode = 0o755
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, io.LimitReader(r, hdr.Size)); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
