package util

import (
	"fmt"
	"regexp"
	"strconv"
)

type Version struct {
	Major uint
	Minor uint
	Patch uint
}

// QlflowVersion is the version of this tool. It is stamped into every generated file.
var QlflowVersion = Version{0, 3, 1}

var versionRegexp = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)$`)

// ParseVersion parses strings of the form `v1.3.0` (the leading `v` is optional).
func ParseVersion(s string) (Version, error) {
	match := versionRegexp.FindStringSubmatch(s)
	if match == nil {
		return Version{}, fmt.Errorf("invalid version string '%s'", s)
	}

	parts := []uint{}
	for _, m := range match[1:] {
		part, err := strconv.ParseUint(m, 10, 32)
		if err != nil {
			return Version{}, err
		}
		parts = append(parts, uint(part))
	}
	return Version{parts[0], parts[1], parts[2]}, nil
}

// Compare returns -1, 0 or 1 depending on whether v is older, equal or newer than other.
func (v Version) Compare(other Version) int {
	a := [3]uint{v.Major, v.Minor, v.Patch}
	b := [3]uint{other.Major, other.Minor, other.Patch}
	for i := range a {
		if a[i] < b[i] {
			return -1
		}
		if a[i] > b[i] {
			return 1
		}
	}
	return 0
}

// IsZero reports whether the version is unset.
func (v Version) IsZero() bool {
	return v == Version{}
}

func (v Version) String() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}
