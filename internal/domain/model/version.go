package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadVersion is returned when a remote version string cannot be parsed.
var ErrBadVersion = errors.New("bad remote version")

// Version is a semantic version reported by a remote cluster.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses a dotted version such as "8.11.1". At least three
// numeric components are required; anything after the third is ignored.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) < 3 {
		return Version{}, fmt.Errorf("%w: %q has fewer than three components", ErrBadVersion, s)
	}

	var nums [3]int
	for i := range nums {
		n, err := strconv.ParseUint(parts[i], 10, 31)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q component %d is not numeric", ErrBadVersion, s, i+1)
		}
		nums[i] = int(n)
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// String renders the version as major.minor.patch.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare orders versions lexicographically on (major, minor, patch) and
// returns -1, 0 or +1.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(v.Patch, o.Patch)
	}
}

// AtLeast reports whether v is at or above floor on (major, minor). Patch level
// never gates a capability.
func (v Version) AtLeast(floor Version) bool {
	if v.Major != floor.Major {
		return v.Major > floor.Major
	}
	return v.Minor >= floor.Minor
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
