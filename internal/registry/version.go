package registry

import (
	"fmt"
	"strconv"
)

// Lineage is the one-letter prefix that separates the published and draft
// version id sequences.
type Lineage byte

const (
	LineagePublished Lineage = 'v'
	LineageDraft     Lineage = 'd'
)

func (l Lineage) String() string {
	switch l {
	case LineagePublished:
		return "published"
	case LineageDraft:
		return "draft"
	default:
		return fmt.Sprintf("lineage(%q)", byte(l))
	}
}

// VersionID names one immutable bundle, e.g. "v000001" or "d000042".
type VersionID string

const versionDigits = 6

// FirstVersion returns the id every lineage starts at.
func FirstVersion(l Lineage) VersionID {
	return formatVersion(l, 1)
}

func formatVersion(l Lineage, n int) VersionID {
	return VersionID(fmt.Sprintf("%c%0*d", byte(l), versionDigits, n))
}

// ParseVersionID validates s and returns it as a VersionID.
func ParseVersionID(s string) (VersionID, error) {
	id := VersionID(s)
	if _, _, err := id.parts(); err != nil {
		return "", err
	}
	return id, nil
}

func (id VersionID) parts() (Lineage, int, error) {
	if len(id) < versionDigits+1 {
		return 0, 0, fmt.Errorf("invalid version id %q", string(id))
	}
	l := Lineage(id[0])
	if l != LineagePublished && l != LineageDraft {
		return 0, 0, fmt.Errorf("invalid version id %q: unknown lineage", string(id))
	}
	digits := string(id[1:])
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, 0, fmt.Errorf("invalid version id %q", string(id))
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, 0, fmt.Errorf("invalid version id %q", string(id))
	}
	return l, n, nil
}

// Lineage returns the id's lineage, or 0 for a malformed id.
func (id VersionID) Lineage() Lineage {
	l, _, err := id.parts()
	if err != nil {
		return 0
	}
	return l
}

// Number returns the numeric suffix, or 0 for a malformed id.
func (id VersionID) Number() int {
	_, n, err := id.parts()
	if err != nil {
		return 0
	}
	return n
}

// Next returns the following id in the same lineage.
func (id VersionID) Next() (VersionID, error) {
	l, n, err := id.parts()
	if err != nil {
		return "", err
	}
	return formatVersion(l, n+1), nil
}

func (id VersionID) String() string {
	return string(id)
}
