package imagecheck

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// SniffLen is how many leading bytes are inspected to identify the image
// format. The JPEG and PNG signatures sit within the first dozen bytes;
// 512 leaves headroom for detectors that look a little further in.
const SniffLen = 512

var (
	// ErrExtension marks a filename whose extension is missing or not on
	// the allow-list.
	ErrExtension = errors.New("file extension not allowed")
	// ErrFormat marks content whose magic bytes are not an allowed image
	// format, or do not match the declared extension.
	ErrFormat = errors.New("unsupported image format")
	// ErrTooLarge marks an upload that exceeded the size ceiling. It is
	// raised mid-stream, before the file is fully read.
	ErrTooLarge = errors.New("file too large")
)

// allowedExtensions is the upload allow-list, matched after lowercasing.
var allowedExtensions = map[string]bool{
	"jpeg": true,
	"jpg":  true,
	"png":  true,
}

// NormalizeExt returns the lowercased extension after the last dot of the
// client filename, which is the only part of that filename ever used.
func NormalizeExt(filename string) (string, error) {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return "", fmt.Errorf("%w: no extension on %q", ErrExtension, filename)
	}
	ext := strings.ToLower(filename[idx+1:])
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: %q", ErrExtension, ext)
	}
	return ext, nil
}

// SniffFormat identifies the image format from leading bytes, reduced to
// the canonical extension used for comparisons.
func SniffFormat(head []byte) (string, error) {
	mt := mimetype.Detect(head)
	switch {
	case mt.Is("image/jpeg"):
		return "jpg", nil
	case mt.Is("image/png"):
		return "png", nil
	}
	return "", fmt.Errorf("%w: detected %s", ErrFormat, mt.String())
}

// Matches reports whether a declared extension names the same format the
// magic bytes identified. jpeg and jpg are the same format.
func Matches(declaredExt, sniffed string) bool {
	if declaredExt == "jpeg" {
		declaredExt = "jpg"
	}
	return declaredExt == sniffed
}

// ReadHeader pulls up to SniffLen bytes from r and returns them together
// with a reader that replays the whole stream from the start.
func ReadHeader(r io.Reader) ([]byte, io.Reader, error) {
	head := make([]byte, SniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("failed to read file header: %w", err)
	}
	head = head[:n]
	return head, io.MultiReader(bytes.NewReader(head), r), nil
}

// LimitBytes wraps r so that reading past max bytes fails with
// ErrTooLarge. The copy consuming the reader aborts on the chunk that
// crosses the ceiling instead of buffering the rest.
func LimitBytes(r io.Reader, max int64) io.Reader {
	return &limitReader{r: r, remaining: max}
}

type limitReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}
