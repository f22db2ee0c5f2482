package property

var authorizableTypes = map[string]struct{}{
	"rep:Authorizable": {},
	"rep:User":         {},
	"rep:SystemUser":   {},
	"rep:Group":        {},
}

var accessControlTypes = map[string]struct{}{
	"rep:ACL":        {},
	"rep:Policy":     {},
	"rep:ACE":        {},
	"rep:GrantACE":   {},
	"rep:DenyACE":    {},
	"rep:Privileges": {},
}

// Classify derives a node's classification from its primary and mixin node types.
func Classify(primaryType string, mixins []string) NodeClassification {
	var c NodeClassification
	for _, t := range append([]string{primaryType}, mixins...) {
		if _, ok := authorizableTypes[t]; ok {
			c.Authorizable = true
		}
		if _, ok := accessControlTypes[t]; ok {
			c.AccessControl = true
		}
	}
	return c
}
