package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"meter-image-backend/internal/parse"
)

// ErrExists is returned by Promote when the final name is already taken.
var ErrExists = errors.New("file already exists")

// stagingSuffix marks a file that was written but not yet promoted.
const stagingSuffix = ".part"

// Dir is a staged file store rooted at one directory. Files are written
// to a ".part" staging name first and only renamed to their final name
// once the metadata row exists, so a crash or failure in between never
// leaves a visible file without a row.
type Dir struct {
	root string
}

// NewDir creates the storage root if needed and returns the store.
func NewDir(root string) (*Dir, error) {
	if root == "" {
		return nil, errors.New("storage root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Dir{root: root}, nil
}

// Root returns the configured storage root.
func (d *Dir) Root() string {
	return d.root
}

// Path returns the root-joined path for a stored name. This is the value
// recorded in the images table and echoed back to clients.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.root, name)
}

// Stage writes the reader into the staging file for name, created
// exclusively so that two concurrent uploads can never share a staging
// file. A name whose staging file is already taken fails with ErrExists
// and leaves the other upload's file alone. On a write error Stage
// removes its own partial file; the caller never has to clean up after
// a failed Stage.
func (d *Dir) Stage(name string, r io.Reader) (int64, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}

	path := d.stagingPath(name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, fmt.Errorf("%w: %s", ErrExists, name)
		}
		return 0, fmt.Errorf("failed to create staging file: %w", err)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(path)
		return n, fmt.Errorf("failed to write staging file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return n, fmt.Errorf("failed to sync staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return n, fmt.Errorf("failed to close staging file: %w", err)
	}
	return n, nil
}

// Promote renames a staged file to its final name. It refuses to replace
// an existing file; combined with the exclusive create in Stage this
// makes silent overwrites impossible even when generated names collide.
func (d *Dir) Promote(name string) error {
	if err := checkName(name); err != nil {
		return err
	}

	final := filepath.Join(d.root, name)
	if _, err := os.Lstat(final); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, name)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check final path: %w", err)
	}

	if err := os.Rename(d.stagingPath(name), final); err != nil {
		return fmt.Errorf("failed to promote staging file: %w", err)
	}
	return nil
}

// Discard removes the staging file for name if it exists.
func (d *Dir) Discard(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := os.Remove(d.stagingPath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove staging file: %w", err)
	}
	return nil
}

// Remove deletes a promoted file. Used when a later pipeline step fails
// and the already-written file must not outlive its missing row.
func (d *Dir) Remove(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(d.root, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stored file: %w", err)
	}
	return nil
}

// SweepStaging removes staging files older than maxAge and returns the
// names they were staged under. The request path cleans up after every
// failure it can see; what it cannot see is a process crash between Stage
// and Promote, and those leftovers are what the sweep collects. Files
// whose name is not a canonical image name are left alone, as is anything
// recent enough to still be an in-flight upload.
func (d *Dir) SweepStaging(maxAge time.Duration) ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage root: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	var removed []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), stagingSuffix) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), stagingSuffix)
		if !parse.IsImageName(name) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// The file raced with a concurrent promote or discard.
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(d.root, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("failed to remove stale staging file %s: %w", entry.Name(), err)
		}
		removed = append(removed, name)
	}
	return removed, nil
}

func (d *Dir) stagingPath(name string) string {
	return filepath.Join(d.root, name+stagingSuffix)
}

// checkName rejects anything that could escape the root. Generated names
// never contain separators; this guards against a caller bug becoming a
// path traversal.
func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid storage name %q", name)
	}
	return nil
}
