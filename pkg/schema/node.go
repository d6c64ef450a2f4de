package schema

// ContentType classifies content schema nodes.
type ContentType string

const (
	ContentTypeField ContentType = "field"
	ContentTypeGroup ContentType = "group"

	// Top-level containers hosting the "metadata" and "content" arrays of a
	// notice type definition.
	ContentTypeMetadataContainer ContentType = "notice-metadata"
	ContentTypeDataContainer     ContentType = "notice-data"

	// ContentTypeRoot marks the synthetic root returned by NoticeType.Root.
	ContentTypeRoot ContentType = "notice"
)

// Display types used by notice type definitions.
const (
	DisplayTypeSection  = "SECTION"
	DisplayTypeGroup    = "GROUP"
	DisplayTypeCombobox = "COMBOBOX"
	DisplayTypeCheckbox = "CHECKBOX"
	DisplayTypeRadio    = "RADIO"
	DisplayTypeTextarea = "TEXTAREA"
	DisplayTypeTextbox  = "TEXTBOX"
)

// Identifiers of the synthetic root and its containers.
const (
	RootID              = "notice-root"
	MetadataContainerID = "notice-metadata"
	DataContainerID     = "notice-data"

	// StructureRootID is the structure node of the whole notice document.
	StructureRootID = "ND-Root"
)

// Standard notice fields the editor fills in and exports at the top level.
const (
	FieldSDKVersion    = "OPT-002-notice"
	FieldNoticeSubtype = "OPP-070-notice"
	FieldNoticeUUID    = "BT-701-notice"
)

// Node is a static content schema entry: a display group or an input field of
// a notice type definition. Nodes are immutable once Link has run; the session
// shares them across every instance materialised from them.
type Node struct {
	ID                string      `json:"id" yaml:"id"`
	ContentType       ContentType `json:"contentType" yaml:"contentType"`
	DisplayType       string      `json:"displayType,omitempty" yaml:"displayType,omitempty"`
	Label             string      `json:"_label,omitempty" yaml:"_label,omitempty"`
	Description       string      `json:"description,omitempty" yaml:"description,omitempty"`
	Repeatable        bool        `json:"_repeatable,omitempty" yaml:"_repeatable,omitempty"`
	Hidden            bool        `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	ReadOnly          bool        `json:"readOnly,omitempty" yaml:"readOnly,omitempty"`
	Collapsed         bool        `json:"collapsed,omitempty" yaml:"collapsed,omitempty"`
	NodeID            string      `json:"nodeId,omitempty" yaml:"nodeId,omitempty"`
	IDScheme          string      `json:"_idScheme,omitempty" yaml:"_idScheme,omitempty"`
	IDSchemes         []string    `json:"_idSchemes,omitempty" yaml:"_idSchemes,omitempty"`
	ValueSource       string      `json:"valueSource,omitempty" yaml:"valueSource,omitempty"`
	IdentifierFieldID string      `json:"_identifierFieldId,omitempty" yaml:"_identifierFieldId,omitempty"`
	PresetValue       string      `json:"_presetValue,omitempty" yaml:"_presetValue,omitempty"`
	Children          []*Node     `json:"content,omitempty" yaml:"content,omitempty"`

	// Field holds the field metadata linked by Link. Nil for groups.
	Field *Field `json:"-" yaml:"-"`
}

// IsField reports whether the node describes an input field.
func (n *Node) IsField() bool {
	return n != nil && n.ContentType == ContentTypeField
}

// IsGroup reports whether the node hosts child content (groups, containers and
// the root).
func (n *Node) IsGroup() bool {
	return n != nil && n.ContentType != ContentTypeField
}

// IsCosmetic reports whether the node only exists to arrange its children on
// screen. Display groups without a conceptual node are flattened out of the
// visual model.
func (n *Node) IsCosmetic() bool {
	return n != nil && n.ContentType == ContentTypeGroup && n.NodeID == ""
}

// HasIDScheme reports whether instances of the node generate identifiers.
func (n *Node) HasIDScheme() bool {
	return n.IsField() && n.IDScheme != ""
}

// HasIDSchemes reports whether instances of the node reference identifiers.
func (n *Node) HasIDSchemes() bool {
	return n.IsField() && len(n.IDSchemes) > 0
}

// Kind returns the field kind of the linked metadata, or the empty kind for
// groups and unlinked fields.
func (n *Node) Kind() FieldKind {
	if n == nil || n.Field == nil {
		return ""
	}
	return n.Field.Type
}

// ChildIndex returns the schema position of child within n, or -1.
func (n *Node) ChildIndex(child *Node) int {
	if n == nil {
		return -1
	}
	for idx, candidate := range n.Children {
		if candidate == child {
			return idx
		}
	}
	return -1
}

// Walk visits n and its descendants depth-first, pre-order. Returning false
// from fn skips the subtree of the visited node.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || fn == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// Find returns the first node in the subtree with the supplied id.
func (n *Node) Find(id string) *Node {
	var found *Node
	n.Walk(func(candidate *Node) bool {
		if found != nil {
			return false
		}
		if candidate.ID == id {
			found = candidate
			return false
		}
		return true
	})
	return found
}

// NoticeType is a notice type definition as published per SDK version and
// notice subtype.
type NoticeType struct {
	ID         string  `json:"noticeId" yaml:"noticeId"`
	SDKVersion string  `json:"sdkVersion" yaml:"sdkVersion"`
	Metadata   []*Node `json:"metadata" yaml:"metadata"`
	Content    []*Node `json:"content" yaml:"content"`

	root *Node
}

// Root returns the synthetic root node hosting the metadata and data
// containers. The same root is returned on every call.
func (nt *NoticeType) Root() *Node {
	if nt == nil {
		return nil
	}
	if nt.root == nil {
		nt.root = &Node{
			ID:          RootID,
			ContentType: ContentTypeRoot,
			Children: []*Node{
				{
					ID:          MetadataContainerID,
					ContentType: ContentTypeMetadataContainer,
					Hidden:      true,
					Children:    nt.Metadata,
				},
				{
					ID:          DataContainerID,
					ContentType: ContentTypeDataContainer,
					Children:    nt.Content,
				},
			},
		}
	}
	return nt.root
}
