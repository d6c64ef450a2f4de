package visualmodel

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/goliatone/go-formtree/pkg/schema"
	"github.com/goliatone/go-formtree/pkg/tree"
	"github.com/goliatone/go-formtree/pkg/widgets"
)

// Visual types distinguishing fields from everything else.
const (
	VisTypeField    = "field"
	VisTypeNonField = "non-field"
)

// Node is one element of the visual model. Fields carry a value; groups tied
// to a structure node carry the structure node id. The root additionally
// carries the document-level values copied from the standard notice fields.
//
// InstanceCount is the instance number of the element within its repeater,
// 1 outside repeaters. It is encoded under the contentCount key the notice
// editor reads.
type Node struct {
	ContentID     string  `json:"contentId"`
	ContentType   string  `json:"contentType"`
	VisType       string  `json:"visType"`
	InstanceCount int     `json:"contentCount"`
	Value         *string `json:"value,omitempty"`
	VisNodeID     string  `json:"visNodeId,omitempty"`
	SDKVersion    string  `json:"sdkVersion,omitempty"`
	NoticeSubType string  `json:"noticeSubType,omitempty"`
	NoticeUUID    string  `json:"noticeUuid,omitempty"`
	Children      []*Node `json:"children,omitempty"`
}

// FindByContentID returns the first node of the subtree, in depth-first
// order, with the supplied content id.
func (n *Node) FindByContentID(id string) *Node {
	if n == nil {
		return nil
	}
	if n.ContentID == id {
		return n
	}
	for _, child := range n.Children {
		if found := child.FindByContentID(id); found != nil {
			return found
		}
	}
	return nil
}

// Text returns the field value, empty for groups.
func (n *Node) Text() string {
	if n == nil || n.Value == nil {
		return ""
	}
	return *n.Value
}

// SerializationError reports a tree that cannot be exported, typically
// because a standard notice field is missing.
type SerializationError struct {
	ContentID string
	Reason    string
}

func (e *SerializationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("visualmodel: %s: %s", e.ContentID, e.Reason)
}

// Serialize builds the visual model of the tree rooted at root. Groups
// without a structure node are left out and their children take their place.
// The root is exported as "notice-root" and carries the SDK version, notice
// subtype and notice UUID; a missing standard field is a
// *SerializationError. Serialize reads the tree only.
func Serialize(root *tree.Instance) (*Node, error) {
	if root == nil {
		return nil, &SerializationError{ContentID: schema.RootID, Reason: "tree is not loaded"}
	}
	out := &Node{
		ContentID:     schema.RootID,
		ContentType:   string(root.Node().ContentType),
		VisType:       VisTypeNonField,
		InstanceCount: 1,
		VisNodeID:     schema.StructureRootID,
	}
	for _, child := range root.Children() {
		out.Children = append(out.Children, convert(child)...)
	}

	hoisted := []struct {
		field string
		dest  *string
	}{
		{field: schema.FieldSDKVersion, dest: &out.SDKVersion},
		{field: schema.FieldNoticeSubtype, dest: &out.NoticeSubType},
		{field: schema.FieldNoticeUUID, dest: &out.NoticeUUID},
	}
	for _, h := range hoisted {
		node := out.FindByContentID(h.field)
		if node == nil || node.Value == nil {
			return nil, &SerializationError{ContentID: h.field, Reason: "required field is missing"}
		}
		*h.dest = *node.Value
	}
	return out, nil
}

func convert(inst *tree.Instance) []*Node {
	node := inst.Node()
	if node.IsCosmetic() {
		var spliced []*Node
		for _, child := range inst.Children() {
			spliced = append(spliced, convert(child)...)
		}
		return spliced
	}

	out := &Node{
		ContentID:     node.ID,
		ContentType:   string(node.ContentType),
		VisType:       VisTypeNonField,
		InstanceCount: inst.Number(),
	}
	if inst.IsField() {
		value := fieldValue(inst)
		out.VisType = VisTypeField
		out.Value = &value
		return []*Node{out}
	}
	out.VisNodeID = node.NodeID
	for _, child := range inst.Children() {
		out.Children = append(out.Children, convert(child)...)
	}
	return []*Node{out}
}

func fieldValue(inst *tree.Instance) string {
	ctrl := inst.Control()
	if ctrl == nil {
		return ""
	}
	return widgets.Selected(ctrl)
}

// EncodeJSON renders the model as indented JSON.
func EncodeJSON(n *Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(n); err != nil {
		return nil, fmt.Errorf("visualmodel: encode json: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeJSON parses a model previously rendered by EncodeJSON.
func DecodeJSON(data []byte) (*Node, error) {
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("visualmodel: decode json: %w", err)
	}
	return &n, nil
}

// encMode uses Core Deterministic Encoding so identical models always
// produce identical bytes.
var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("visualmodel: CBOR encoder initialization failed: " + err.Error())
	}
	return mode
}

// EncodeCBOR renders the model as deterministic CBOR.
func EncodeCBOR(n *Node) ([]byte, error) {
	data, err := encMode.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("visualmodel: encode cbor: %w", err)
	}
	return data, nil
}

// DecodeCBOR parses a model rendered by EncodeCBOR.
func DecodeCBOR(data []byte) (*Node, error) {
	var n Node
	if err := cbor.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("visualmodel: decode cbor: %w", err)
	}
	return &n, nil
}
