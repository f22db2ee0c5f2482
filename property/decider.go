package property

// Structural properties that always travel with a node, protected or not.
const (
	PrimaryType = "jcr:primaryType"
	MixinTypes  = "jcr:mixinTypes"
)

// Descriptor describes a single property encountered during a content walk.
type Descriptor struct {
	// Name is unique within the owning node.
	Name string

	// Protected is true when the repository manages the value itself.
	Protected bool
}

// NodeClassification is the security classification of the node owning a property.
// A node may be authorizable, access control, both or neither.
type NodeClassification struct {
	// Authorizable marks user and group nodes.
	Authorizable bool

	// AccessControl marks ACL and privilege entries.
	AccessControl bool
}

// IsSecurityNode reports whether the node carries identity or access control state.
func (c NodeClassification) IsSecurityNode() bool {
	return c.Authorizable || c.AccessControl
}

// IsTransferable reports whether p should be written to the target repository.
//
// Protected properties are normally dropped because the target regenerates them.
// Identity and access control nodes are the exception: their protected properties
// (group membership, privilege sets) are the security state itself and must be kept.
func IsTransferable(p Descriptor, owner NodeClassification) bool {
	switch {
	case isStructural(p.Name):
		return true
	case !p.Protected:
		return true
	case owner.IsSecurityNode():
		return true
	default:
		return false
	}
}

func isStructural(name string) bool {
	return name == PrimaryType || name == MixinTypes
}
