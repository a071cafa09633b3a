package provisioning

// Directory parent groups per team kind. The parent decides where in the
// external directory hierarchy a new group is nested.
var parentGroups = map[string]string{
	"competition": "Competition Teams",
	"development": "Development Teams",
}

// DefaultParentGroup catches unknown kinds. Falling back here is a
// warning, never an error.
const DefaultParentGroup = "General Teams"

// ParentGroupFor resolves a team kind to its directory parent group name.
// The second return reports whether the kind was recognized.
func ParentGroupFor(kind string) (string, bool) {
	if name, ok := parentGroups[kind]; ok {
		return name, true
	}
	return DefaultParentGroup, false
}
