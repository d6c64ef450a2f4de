package testsupport

import "github.com/goliatone/go-formtree/pkg/schema"

// NodeOption customises nodes built by Group and Field.
type NodeOption func(*schema.Node)

// Root returns a synthetic root hosting children, shaped like
// schema.NoticeType.Root but without the metadata container.
func Root(children ...*schema.Node) *schema.Node {
	return &schema.Node{
		ID:          schema.RootID,
		ContentType: schema.ContentTypeRoot,
		Children:    children,
	}
}

// Group builds a group node. Groups get a structure node id unless Cosmetic is
// supplied.
func Group(id string, options ...NodeOption) *schema.Node {
	node := &schema.Node{
		ID:          id,
		ContentType: schema.ContentTypeGroup,
		DisplayType: schema.DisplayTypeGroup,
		NodeID:      "ND-" + id,
	}
	for _, opt := range options {
		opt(node)
	}
	return node
}

// Field builds a field node with linked metadata of the supplied kind.
func Field(id string, kind schema.FieldKind, options ...NodeOption) *schema.Node {
	node := &schema.Node{
		ID:          id,
		ContentType: schema.ContentTypeField,
		DisplayType: schema.DisplayTypeTextbox,
		Field:       &schema.Field{ID: id, Type: kind},
	}
	for _, opt := range options {
		opt(node)
	}
	return node
}

// Children appends child nodes.
func Children(children ...*schema.Node) NodeOption {
	return func(n *schema.Node) {
		n.Children = append(n.Children, children...)
	}
}

// Repeatable marks the node repeatable.
func Repeatable() NodeOption {
	return func(n *schema.Node) { n.Repeatable = true }
}

// Cosmetic drops the structure node id so the group is display-only.
func Cosmetic() NodeOption {
	return func(n *schema.Node) { n.NodeID = "" }
}

// Collapsed defers child instantiation until expansion.
func Collapsed() NodeOption {
	return func(n *schema.Node) { n.Collapsed = true }
}

// ReadOnly marks the node read-only.
func ReadOnly() NodeOption {
	return func(n *schema.Node) { n.ReadOnly = true }
}

// Hidden marks the node hidden.
func Hidden() NodeOption {
	return func(n *schema.Node) { n.Hidden = true }
}

// IDScheme makes the field generate identifiers of scheme.
func IDScheme(scheme string) NodeOption {
	return func(n *schema.Node) {
		n.IDScheme = scheme
		if n.Field != nil {
			n.Field.IDScheme = scheme
		}
	}
}

// IDSchemes makes the field reference identifiers of the supplied schemes.
func IDSchemes(schemes ...string) NodeOption {
	return func(n *schema.Node) {
		n.IDSchemes = append([]string(nil), schemes...)
		if n.Field != nil {
			n.Field.IDSchemes = append([]string(nil), schemes...)
		}
	}
}

// ValueSource makes the field mirror the value of source.
func ValueSource(source string) NodeOption {
	return func(n *schema.Node) { n.ValueSource = source }
}

// IdentifierField names the field whose identifier numbers the group.
func IdentifierField(fieldID string) NodeOption {
	return func(n *schema.Node) { n.IdentifierFieldID = fieldID }
}

// Preset sets the initial field value.
func Preset(value string) NodeOption {
	return func(n *schema.Node) { n.PresetValue = value }
}

// DisplayType overrides the display type.
func DisplayType(displayType string) NodeOption {
	return func(n *schema.Node) { n.DisplayType = displayType }
}

// Property attaches a dynamic property to the field metadata.
func Property(kind schema.PropertyKind, prop *schema.DynamicProperty) NodeOption {
	return func(n *schema.Node) {
		if n.Field == nil {
			return
		}
		switch kind {
		case schema.PropertyMandatory:
			n.Field.Mandatory = prop
		case schema.PropertyForbidden:
			n.Field.Forbidden = prop
		case schema.PropertyPattern:
			n.Field.Pattern = prop
		case schema.PropertyCodeList:
			n.Field.CodeList = prop
		case schema.PropertyRepeatable:
			n.Field.Repeatable = prop
		case schema.PropertyInChangeNotice:
			n.Field.InChangeNotice = prop
		case schema.PropertyAssert:
			n.Field.Assert = prop
		}
	}
}

// Mandatory is shorthand for an unconditional mandatory property.
func Mandatory() NodeOption {
	return Property(schema.PropertyMandatory, &schema.DynamicProperty{Value: true, Severity: schema.SeverityError})
}
