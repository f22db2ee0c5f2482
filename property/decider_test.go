package property

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

var allClassifications = []NodeClassification{
	{},
	{Authorizable: true},
	{AccessControl: true},
	{Authorizable: true, AccessControl: true},
}

func TestIsTransferable_StructuralPropertiesAlwaysPass(t *testing.T) {
	for _, name := range []string{PrimaryType, MixinTypes} {
		for _, protected := range []bool{false, true} {
			for _, owner := range allClassifications {
				p := Descriptor{Name: name, Protected: protected}
				assert.True(t, IsTransferable(p, owner), "%s protected=%v owner=%+v", name, protected, owner)
			}
		}
	}
}

func TestIsTransferable_UnprotectedAlwaysPasses(t *testing.T) {
	for _, owner := range allClassifications {
		p := Descriptor{Name: "jcr:title", Protected: false}
		assert.True(t, IsTransferable(p, owner), "owner=%+v", owner)
	}
}

func TestIsTransferable_ProtectedMatrix(t *testing.T) {
	tests := []struct {
		name  string
		owner NodeClassification
		want  bool
	}{
		{name: "plain content node", owner: NodeClassification{}, want: false},
		{name: "authorizable node", owner: NodeClassification{Authorizable: true}, want: true},
		{name: "access control node", owner: NodeClassification{AccessControl: true}, want: true},
		{name: "both", owner: NodeClassification{Authorizable: true, AccessControl: true}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Descriptor{Name: "rep:members", Protected: true}
			assert.Equal(t, tt.want, IsTransferable(p, tt.owner))
		})
	}
}

func TestIsTransferable_Scenarios(t *testing.T) {
	tests := []struct {
		name  string
		prop  Descriptor
		owner NodeClassification
		want  bool
	}{
		{
			name: "protected lastModified on content node",
			prop: Descriptor{Name: "jcr:lastModified", Protected: true},
			want: false,
		},
		{
			name:  "unprotected primary type",
			prop:  Descriptor{Name: "jcr:primaryType", Protected: false},
			owner: NodeClassification{Authorizable: true},
			want:  true,
		},
		{
			name:  "privileges on access control entry",
			prop:  Descriptor{Name: "rep:privileges", Protected: true},
			owner: NodeClassification{AccessControl: true},
			want:  true,
		},
		{
			name: "protected primary type on content node",
			prop: Descriptor{Name: "jcr:primaryType", Protected: true},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransferable(tt.prop, tt.owner))
		})
	}
}

func TestIsTransferable_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				assert.False(t, IsTransferable(Descriptor{Name: "jcr:created", Protected: true}, NodeClassification{}))
			}
		}()
	}
	wg.Wait()
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		primaryType string
		mixins      []string
		want        NodeClassification
	}{
		{name: "folder", primaryType: "nt:folder", want: NodeClassification{}},
		{name: "user", primaryType: "rep:User", want: NodeClassification{Authorizable: true}},
		{name: "group", primaryType: "rep:Group", want: NodeClassification{Authorizable: true}},
		{name: "acl", primaryType: "rep:ACL", want: NodeClassification{AccessControl: true}},
		{name: "deny entry", primaryType: "rep:DenyACE", want: NodeClassification{AccessControl: true}},
		{
			name:        "mixin access control",
			primaryType: "nt:unstructured",
			mixins:      []string{"mix:versionable", "rep:Privileges"},
			want:        NodeClassification{AccessControl: true},
		},
		{
			name:        "both via mixin",
			primaryType: "rep:SystemUser",
			mixins:      []string{"rep:Policy"},
			want:        NodeClassification{Authorizable: true, AccessControl: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.primaryType, tt.mixins))
		})
	}
}
