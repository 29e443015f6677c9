// Package corpus reads bibliography files from disk, transparently
// decompressing them and fingerprinting their contents.
package corpus

import (
	"bytes"
	"compress/gzip"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"
)

// Compression format magic numbers.
var (
	xzMagic   = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}
	gzipMagic = []byte{0x1F, 0x8B}
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
)

// Indirection for testing.
var (
	xzNewReader   = xz.NewReader
	gzipNewReader = gzip.NewReader
)

// File is a decoded corpus file.
type File struct {
	Path        string `json:"path"`
	Text        string `json:"-"`
	Fingerprint string `json:"fingerprint"` // BLAKE3 of the decoded text
	Compression string `json:"compression,omitempty"`
}

// ReadFile reads a corpus file. xz and gzip input is detected by its magic
// number. A leading byte order mark is stripped and invalid UTF-8 is replaced
// by U+FFFD.
func ReadFile(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading corpus %s", path)
	}
	f, err := Decode(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding corpus %s", path)
	}
	f.Path = path
	return f, nil
}

// Decode decompresses and normalizes raw corpus bytes.
func Decode(raw []byte) (*File, error) {
	var f File
	var data []byte
	var err error

	switch {
	case bytes.HasPrefix(raw, xzMagic):
		f.Compression = "xz"
		r, rerr := xzNewReader(bytes.NewReader(raw))
		if rerr != nil {
			return nil, errors.Wrap(rerr, "opening xz stream")
		}
		data, err = io.ReadAll(r)
	case bytes.HasPrefix(raw, gzipMagic):
		f.Compression = "gzip"
		r, rerr := gzipNewReader(bytes.NewReader(raw))
		if rerr != nil {
			return nil, errors.Wrap(rerr, "opening gzip stream")
		}
		defer r.Close()
		data, err = io.ReadAll(r)
	default:
		data = raw
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decompressing %s", f.Compression)
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	f.Text = strings.ToValidUTF8(string(data), "�")
	f.Fingerprint = Fingerprint(f.Text)
	return &f, nil
}

// Fingerprint returns the hex BLAKE3 digest of text.
func Fingerprint(text string) string {
	sum := blake3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ReadFiles reads several corpus files in order.
func ReadFiles(paths []string) ([]*File, error) {
	files := make([]*File, 0, len(paths))
	for _, p := range paths {
		f, err := ReadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// Join concatenates file texts in order, separated by a newline, so that a
// single parse sees later files' duplicate keys last.
func Join(files []*File) string {
	var b strings.Builder
	for i, f := range files {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.Text)
	}
	return b.String()
}
