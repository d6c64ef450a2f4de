package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formtree/pkg/schema"
)

// Transformer mutates a freshly loaded notice type before the tree is built.
// Implementations can preset values, hide fields or relabel content.
type Transformer interface {
	Transform(ctx context.Context, nt *schema.NoticeType) error
}

// TransformerFunc adapts plain functions to the Transformer interface.
type TransformerFunc func(ctx context.Context, nt *schema.NoticeType) error

// Transform executes the wrapped function when non-nil.
func (fn TransformerFunc) Transform(ctx context.Context, nt *schema.NoticeType) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, nt)
}

// PresetTransformer applies declarative patches keyed by content id. The
// document is YAML or JSON:
//
//	content:
//	  BT-21-Procedure: {presetValue: "Road works"}
//	  GR-Lot-Options: {collapsed: false}
//	  BT-54-Lot: {hidden: true, label: "field|name|BT-54-Lot-Short"}
type PresetTransformer struct {
	document presetDocument
}

type presetDocument struct {
	Content map[string]contentPatch `yaml:"content" json:"content"`
}

type contentPatch struct {
	Label       string  `yaml:"label" json:"label"`
	PresetValue *string `yaml:"presetValue" json:"presetValue"`
	Hidden      *bool   `yaml:"hidden" json:"hidden"`
	ReadOnly    *bool   `yaml:"readOnly" json:"readOnly"`
	Collapsed   *bool   `yaml:"collapsed" json:"collapsed"`
}

// NewPresetTransformer constructs a transformer from raw YAML or JSON bytes.
func NewPresetTransformer(data []byte) (*PresetTransformer, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("preset transformer: document is empty")
	}
	var document presetDocument
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("preset transformer: parse document: %w", err)
	}
	return &PresetTransformer{document: document}, nil
}

// NewPresetTransformerFromFS loads a preset document from fsys.
func NewPresetTransformerFromFS(fsys fs.FS, path string) (*PresetTransformer, error) {
	if fsys == nil {
		return nil, errors.New("preset transformer: filesystem is nil")
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("preset transformer: path is required")
	}
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("preset transformer: read %s: %w", path, err)
	}
	return NewPresetTransformer(data)
}

// Transform applies the patches. Unknown content ids are configuration
// errors.
func (t *PresetTransformer) Transform(ctx context.Context, nt *schema.NoticeType) error {
	if nt == nil {
		return errors.New("preset transformer: notice type is nil")
	}
	root := nt.Root()
	for id, patch := range t.document.Content {
		if err := ctx.Err(); err != nil {
			return err
		}
		node := root.Find(id)
		if node == nil {
			return &schema.ConfigurationError{Subject: "node", ID: id, Reason: "preset targets unknown content"}
		}
		if err := applyContentPatch(node, patch); err != nil {
			return err
		}
	}
	return nil
}

func applyContentPatch(node *schema.Node, patch contentPatch) error {
	if patch.Label != "" {
		node.Label = patch.Label
	}
	if patch.PresetValue != nil {
		if !node.IsField() {
			return &schema.ConfigurationError{Subject: "node", ID: node.ID, Reason: "preset value on a group"}
		}
		node.PresetValue = *patch.PresetValue
	}
	if patch.Hidden != nil {
		node.Hidden = *patch.Hidden
	}
	if patch.ReadOnly != nil {
		node.ReadOnly = *patch.ReadOnly
	}
	if patch.Collapsed != nil {
		node.Collapsed = *patch.Collapsed
	}
	return nil
}

// standardPresets fills the notice-level fields the editor owns: the SDK
// version, the notice subtype and the notice identifier.
func standardPresets(nt *schema.NoticeType, req Request, newID func() string) {
	sdkVersion := nt.SDKVersion
	if sdkVersion == "" {
		sdkVersion = sdkVersionPrefix + req.SDKVersion
	}
	presets := map[string]string{
		schema.FieldSDKVersion:    sdkVersion,
		schema.FieldNoticeSubtype: req.NoticeSubtype,
		schema.FieldNoticeUUID:    newID(),
	}
	nt.Root().Walk(func(node *schema.Node) bool {
		if value, ok := presets[node.ID]; ok && node.IsField() {
			node.PresetValue = value
		}
		return true
	})
}
