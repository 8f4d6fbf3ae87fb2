package domain

import (
	"fmt"
)

// APIVersion is the version of the HTTP surface a token was minted for.
// Validity is enforced at parse time so handlers never see a version
// outside the ordering table.
type APIVersion string

// Supported API versions. The verification surface ships as v1; adding a
// version means extending versionOrder and registering the new subrouter.
const (
	APIVersionV1 APIVersion = "v1"
)

// versionOrder ranks versions for compatibility checks. Higher is newer.
var versionOrder = map[APIVersion]int{
	APIVersionV1: 1,
}

// ParseAPIVersion validates and returns an APIVersion.
// Unknown versions are rejected rather than passed through.
func ParseAPIVersion(s string) (APIVersion, error) {
	v := APIVersion(s)
	if _, ok := versionOrder[v]; !ok {
		return "", fmt.Errorf("unknown API version: %s", s)
	}
	return v, nil
}

func (v APIVersion) String() string {
	return string(v)
}

// IsNil reports whether the version is unset.
func (v APIVersion) IsNil() bool {
	return v == ""
}

// IsAtLeast reports whether v is the same as or newer than other. The
// version gate uses it as routeVersion.IsAtLeast(tokenVersion): older
// tokens stay valid on newer routes, newer tokens never replay onto older
// ones. Versions missing from the ordering table compare as lowest, so an
// unknown route version fails closed.
func (v APIVersion) IsAtLeast(other APIVersion) bool {
	thisOrder, thisOK := versionOrder[v]
	otherOrder, otherOK := versionOrder[other]

	if !thisOK {
		return false
	}
	if !otherOK {
		return true
	}

	return thisOrder >= otherOrder
}

// SupportedVersions returns every version the server currently serves.
func SupportedVersions() []APIVersion {
	return []APIVersion{APIVersionV1}
}

// DefaultVersion is the version stamped on newly minted tokens.
func DefaultVersion() APIVersion {
	return APIVersionV1
}
