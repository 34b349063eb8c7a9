package entities

// MarkerKind names one of the auxiliary exclusion sets
type MarkerKind string

const (
	MarkerRemoved  MarkerKind = "removed"
	MarkerDelegate MarkerKind = "delegate"
	MarkerHidden   MarkerKind = "hidden"
)

// IsValid reports whether the kind names a known set
func (k MarkerKind) IsValid() bool {
	return k == MarkerRemoved || k == MarkerDelegate || k == MarkerHidden
}
