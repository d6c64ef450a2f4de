package schema

import (
	"sort"
	"strings"
)

// FieldKind is the closed set of field types defined by the SDK.
type FieldKind string

const (
	KindAmount           FieldKind = "amount"
	KindCode             FieldKind = "code"
	KindDate             FieldKind = "date"
	KindEmail            FieldKind = "email"
	KindID               FieldKind = "id"
	KindIDRef            FieldKind = "id-ref"
	KindIndicator        FieldKind = "indicator"
	KindInteger          FieldKind = "integer"
	KindMeasure          FieldKind = "measure"
	KindNumber           FieldKind = "number"
	KindPhone            FieldKind = "phone"
	KindText             FieldKind = "text"
	KindTextMultilingual FieldKind = "text-multilingual"
	KindTime             FieldKind = "time"
	KindURL              FieldKind = "url"
)

var fieldKinds = map[FieldKind]struct{}{
	KindAmount:           {},
	KindCode:             {},
	KindDate:             {},
	KindEmail:            {},
	KindID:               {},
	KindIDRef:            {},
	KindIndicator:        {},
	KindInteger:          {},
	KindMeasure:          {},
	KindNumber:           {},
	KindPhone:            {},
	KindText:             {},
	KindTextMultilingual: {},
	KindTime:             {},
	KindURL:              {},
}

// Valid reports whether k belongs to the closed kind set.
func (k FieldKind) Valid() bool {
	_, ok := fieldKinds[k]
	return ok
}

// FieldKinds returns every supported kind in lexical order.
func FieldKinds() []FieldKind {
	out := make([]FieldKind, 0, len(fieldKinds))
	for kind := range fieldKinds {
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PropertyKind names one of the dynamic properties carried by a field.
type PropertyKind string

const (
	PropertyMandatory      PropertyKind = "mandatory"
	PropertyForbidden      PropertyKind = "forbidden"
	PropertyPattern        PropertyKind = "pattern"
	PropertyCodeList       PropertyKind = "codeList"
	PropertyRepeatable     PropertyKind = "repeatable"
	PropertyInChangeNotice PropertyKind = "inChangeNotice"
	PropertyAssert         PropertyKind = "assert"
)

// Severity values used by constraints.
const (
	SeverityError   = "ERROR"
	SeverityWarning = "WARN"
)

// Constraint is one conditional entry of a dynamic property. An empty
// NoticeTypes set applies to every notice subtype.
type Constraint struct {
	NoticeTypes []string `json:"noticeTypes,omitempty" yaml:"noticeTypes,omitempty"`
	Condition   string   `json:"condition,omitempty" yaml:"condition,omitempty"`
	Value       any      `json:"value" yaml:"value"`
	Severity    string   `json:"severity,omitempty" yaml:"severity,omitempty"`
	Message     string   `json:"message,omitempty" yaml:"message,omitempty"`
}

// AppliesTo reports whether the constraint is restricted to subtypes that
// include the supplied one.
func (c Constraint) AppliesTo(subtype string) bool {
	if len(c.NoticeTypes) == 0 {
		return true
	}
	for _, candidate := range c.NoticeTypes {
		if strings.EqualFold(strings.TrimSpace(candidate), strings.TrimSpace(subtype)) {
			return true
		}
	}
	return false
}

// DynamicProperty is a field property whose effective value depends on the
// notice subtype and on conditions. The top-level Value, Severity and Message
// form the unconditional default, which exists when Value is non-nil.
type DynamicProperty struct {
	Value       any          `json:"value,omitempty" yaml:"value,omitempty"`
	Severity    string       `json:"severity,omitempty" yaml:"severity,omitempty"`
	Message     string       `json:"message,omitempty" yaml:"message,omitempty"`
	Constraints []Constraint `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// HasDefault reports whether the property declares an unconditional default.
func (p *DynamicProperty) HasDefault() bool {
	return p != nil && p.Value != nil
}

// Default returns the unconditional default as a constraint.
func (p *DynamicProperty) Default() Constraint {
	if p == nil {
		return Constraint{}
	}
	return Constraint{Value: p.Value, Severity: p.Severity, Message: p.Message}
}

// Field is the metadata published for a field id in the SDK fields file.
type Field struct {
	ID             string           `json:"id" yaml:"id"`
	ParentNodeID   string           `json:"parentNodeId,omitempty" yaml:"parentNodeId,omitempty"`
	Name           string           `json:"name,omitempty" yaml:"name,omitempty"`
	BTID           string           `json:"btId,omitempty" yaml:"btId,omitempty"`
	Type           FieldKind        `json:"type" yaml:"type"`
	MaxLength      int              `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	IDScheme       string           `json:"idScheme,omitempty" yaml:"idScheme,omitempty"`
	IDSchemes      []string         `json:"idSchemes,omitempty" yaml:"idSchemes,omitempty"`
	Mandatory      *DynamicProperty `json:"mandatory,omitempty" yaml:"mandatory,omitempty"`
	Forbidden      *DynamicProperty `json:"forbidden,omitempty" yaml:"forbidden,omitempty"`
	Pattern        *DynamicProperty `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	CodeList       *DynamicProperty `json:"codeList,omitempty" yaml:"codeList,omitempty"`
	Repeatable     *DynamicProperty `json:"repeatable,omitempty" yaml:"repeatable,omitempty"`
	InChangeNotice *DynamicProperty `json:"inChangeNotice,omitempty" yaml:"inChangeNotice,omitempty"`
	Assert         *DynamicProperty `json:"assert,omitempty" yaml:"assert,omitempty"`
}

// Property returns the dynamic property of the given kind, or nil.
func (f *Field) Property(kind PropertyKind) *DynamicProperty {
	if f == nil {
		return nil
	}
	switch kind {
	case PropertyMandatory:
		return f.Mandatory
	case PropertyForbidden:
		return f.Forbidden
	case PropertyPattern:
		return f.Pattern
	case PropertyCodeList:
		return f.CodeList
	case PropertyRepeatable:
		return f.Repeatable
	case PropertyInChangeNotice:
		return f.InChangeNotice
	case PropertyAssert:
		return f.Assert
	default:
		return nil
	}
}

// ValidatedProperties lists the properties the validator registers, in
// registration order.
func ValidatedProperties() []PropertyKind {
	return []PropertyKind{
		PropertyMandatory,
		PropertyForbidden,
		PropertyPattern,
		PropertyCodeList,
		PropertyRepeatable,
		PropertyInChangeNotice,
	}
}

// Codelist describes a codelist declared by the fields file.
type Codelist struct {
	ID         string `json:"id" yaml:"id"`
	ParentID   string `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	Filename   string `json:"filename,omitempty" yaml:"filename,omitempty"`
	Structural bool   `json:"structural,omitempty" yaml:"structural,omitempty"`
}

// StructureNode is a conceptual node of the notice XML structure.
type StructureNode struct {
	ID            string `json:"id" yaml:"id"`
	ParentID      string `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	XPathRelative string `json:"xpathRelative,omitempty" yaml:"xpathRelative,omitempty"`
	Repeatable    bool   `json:"repeatable,omitempty" yaml:"repeatable,omitempty"`
}

// FieldSet is the content of the SDK fields file.
type FieldSet struct {
	SDKVersion string           `json:"sdkVersion" yaml:"sdkVersion"`
	Nodes      []*StructureNode `json:"xmlStructure,omitempty" yaml:"xmlStructure,omitempty"`
	Fields     []*Field         `json:"fields" yaml:"fields"`
	Codelists  []*Codelist      `json:"codelists,omitempty" yaml:"codelists,omitempty"`

	fields    map[string]*Field
	nodes     map[string]*StructureNode
	codelists map[string]*Codelist
}

func (fs *FieldSet) index() {
	if fs.fields != nil {
		return
	}
	fs.fields = make(map[string]*Field, len(fs.Fields))
	for _, field := range fs.Fields {
		if field != nil && field.ID != "" {
			fs.fields[field.ID] = field
		}
	}
	fs.nodes = make(map[string]*StructureNode, len(fs.Nodes))
	for _, node := range fs.Nodes {
		if node != nil && node.ID != "" {
			fs.nodes[node.ID] = node
		}
	}
	fs.codelists = make(map[string]*Codelist, len(fs.Codelists))
	for _, list := range fs.Codelists {
		if list != nil && list.ID != "" {
			fs.codelists[list.ID] = list
		}
	}
}

// Field returns the metadata for id.
func (fs *FieldSet) Field(id string) (*Field, bool) {
	if fs == nil {
		return nil, false
	}
	fs.index()
	field, ok := fs.fields[id]
	return field, ok
}

// Node returns the structure node for id.
func (fs *FieldSet) Node(id string) (*StructureNode, bool) {
	if fs == nil {
		return nil, false
	}
	fs.index()
	node, ok := fs.nodes[id]
	return node, ok
}

// Codelist returns the codelist declaration for id.
func (fs *FieldSet) Codelist(id string) (*Codelist, bool) {
	if fs == nil {
		return nil, false
	}
	fs.index()
	list, ok := fs.codelists[id]
	return list, ok
}

// HasCodelists reports whether the fields file declared any codelist. Files
// without a declaration block skip codelist reference checks.
func (fs *FieldSet) HasCodelists() bool {
	return fs != nil && len(fs.Codelists) > 0
}
