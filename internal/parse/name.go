package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// timeLayout is the timestamp segment of a stored image name.
const timeLayout = "20060102_150405"

var imageNameRe = regexp.MustCompile(`^(\d+)_(\d{8}_\d{6})_([0-9a-zA-Z-]+)\.([a-z0-9]+)$`)

// StoredName holds the structured data parsed from a stored image filename.
type StoredName struct {
	MeterID    int64
	CapturedAt time.Time
	Token      string
	Ext        string
}

// FormatImageName builds the canonical storage name for an accepted image:
// meter id, capture timestamp, random token, validated extension. Nothing
// from the client's own filename survives into it.
func FormatImageName(meterID int64, at time.Time, token, ext string) string {
	return fmt.Sprintf("%d_%s_%s.%s", meterID, at.Format(timeLayout), token, ext)
}

// ParseImageName extracts the components of a canonical storage name.
// The timestamp comes back in UTC, matching how names are generated.
func ParseImageName(name string) (StoredName, error) {
	m := imageNameRe.FindStringSubmatch(name)
	if m == nil {
		return StoredName{}, fmt.Errorf("not a stored image name: %q", name)
	}

	meterID, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return StoredName{}, fmt.Errorf("invalid meter id in %q: %w", name, err)
	}

	capturedAt, err := time.Parse(timeLayout, m[2])
	if err != nil {
		return StoredName{}, fmt.Errorf("invalid timestamp in %q: %w", name, err)
	}

	return StoredName{MeterID: meterID, CapturedAt: capturedAt, Token: m[3], Ext: m[4]}, nil
}

// IsImageName reports whether name is a canonical storage name. The
// staging sweep uses this to leave foreign files in the root alone.
func IsImageName(name string) bool {
	return imageNameRe.MatchString(name)
}
