package schema

import (
	"fmt"
	"strings"
)

// Link attaches field metadata to every field node of the notice type and
// checks the references it can verify up front: unknown fields, unsupported
// field kinds, unknown structure nodes and unknown codelists. The first
// problem is returned as a *ConfigurationError.
func Link(nt *NoticeType, fields *FieldSet) error {
	if nt == nil {
		return ErrNilNoticeType
	}
	if fields == nil {
		return &ConfigurationError{Subject: "notice type", ID: nt.ID, Reason: "no field metadata supplied"}
	}

	var linkErr error
	nt.Root().Walk(func(node *Node) bool {
		if linkErr != nil {
			return false
		}
		linkErr = linkNode(node, fields)
		return linkErr == nil
	})
	return linkErr
}

func linkNode(node *Node, fields *FieldSet) error {
	if node == nil {
		return nil
	}
	switch node.ContentType {
	case ContentTypeRoot, ContentTypeMetadataContainer, ContentTypeDataContainer:
		return nil
	case ContentTypeGroup:
		return linkGroup(node, fields)
	case ContentTypeField:
		return linkField(node, fields)
	default:
		return &ConfigurationError{
			Subject: "node",
			ID:      node.ID,
			Reason:  fmt.Sprintf("unsupported content type %q", node.ContentType),
		}
	}
}

func linkGroup(node *Node, fields *FieldSet) error {
	if node.NodeID == "" || len(fields.Nodes) == 0 {
		return nil
	}
	if _, ok := fields.Node(node.NodeID); !ok {
		return &ConfigurationError{Subject: "node", ID: node.NodeID, Reason: "group " + node.ID + " references an unknown structure node"}
	}
	return nil
}

func linkField(node *Node, fields *FieldSet) error {
	field, ok := fields.Field(node.ID)
	if !ok {
		return &ConfigurationError{Subject: "field", ID: node.ID, Reason: "unknown field"}
	}
	if !field.Type.Valid() {
		return &ConfigurationError{Subject: "field", ID: node.ID, Reason: fmt.Sprintf("unsupported field type %q", field.Type)}
	}
	if len(node.Children) > 0 {
		return &ConfigurationError{Subject: "field", ID: node.ID, Reason: "fields cannot host content"}
	}
	if err := checkCodelists(field, fields); err != nil {
		return err
	}

	node.Field = field
	if node.IDScheme == "" {
		node.IDScheme = field.IDScheme
	}
	if len(node.IDSchemes) == 0 && len(field.IDSchemes) > 0 {
		node.IDSchemes = append([]string(nil), field.IDSchemes...)
	}
	return nil
}

func checkCodelists(field *Field, fields *FieldSet) error {
	prop := field.CodeList
	if prop == nil || !fields.HasCodelists() {
		return nil
	}
	refs := make([]string, 0, len(prop.Constraints)+1)
	if prop.HasDefault() {
		refs = append(refs, CodelistRef(prop.Value))
	}
	for _, constraint := range prop.Constraints {
		refs = append(refs, CodelistRef(constraint.Value))
	}
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if _, ok := fields.Codelist(ref); !ok {
			return &ConfigurationError{Subject: "codelist", ID: ref, Reason: "referenced by field " + field.ID + " but not declared"}
		}
	}
	return nil
}

// CodelistRef extracts a codelist id from a codeList property value. The SDK
// publishes either a bare id or an object carrying an "id" member.
func CodelistRef(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case map[string]any:
		if id, ok := typed["id"].(string); ok {
			return strings.TrimSpace(id)
		}
	}
	return ""
}
