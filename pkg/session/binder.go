package session

import (
	"context"
	"errors"

	"github.com/goliatone/go-formtree/pkg/dynprop"
	"github.com/goliatone/go-formtree/pkg/provider"
	"github.com/goliatone/go-formtree/pkg/schema"
	"github.com/goliatone/go-formtree/pkg/tree"
	"github.com/goliatone/go-formtree/pkg/widgets"
)

// optionsBinder hands prepared option lists to the controls of added code
// and indicator fields. It runs before the validator so codelist membership
// is checked against the bound options.
type optionsBinder struct {
	options map[*schema.Node][]widgets.Option
}

func (b *optionsBinder) StructureChanged(change tree.Change) {
	for _, inst := range change.Added {
		options, ok := b.options[inst.Node()]
		if !ok || inst.Control() == nil {
			continue
		}
		inst.Control().SetOptions(append([]widgets.Option(nil), options...))
	}
}

func (b *optionsBinder) ValueChanged(*tree.Instance, string) {}

// bindOptions prepares the option lists of every code and indicator field of
// nt, collapsed content included. Codelists are fetched once per id.
func (m *Manager) bindOptions(ctx context.Context, nt *schema.NoticeType, req Request, dctx dynprop.Context) (map[*schema.Node][]widgets.Option, error) {
	out := make(map[*schema.Node][]widgets.Option)
	fetched := make(map[string][]widgets.Option)

	var walkErr error
	nt.Root().Walk(func(node *schema.Node) bool {
		if walkErr != nil {
			return false
		}
		if !node.IsField() {
			return true
		}
		switch node.Kind() {
		case schema.KindIndicator:
			out[node] = widgets.IndicatorOptions(
				m.label(ctx, req, provider.KeyIndicatorTrue+node.ID, "true"),
				m.label(ctx, req, provider.KeyIndicatorFalse+node.ID, "false"),
			)
		case schema.KindCode:
			options, err := m.codelistOptions(ctx, node, req, dctx, fetched)
			if err != nil {
				walkErr = err
				return false
			}
			if options != nil {
				out[node] = options
			}
		}
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}

func (m *Manager) codelistOptions(ctx context.Context, node *schema.Node, req Request, dctx dynprop.Context, fetched map[string][]widgets.Option) ([]widgets.Option, error) {
	def := node.Field.Property(schema.PropertyCodeList)
	if def == nil || m.codelists == nil {
		return nil, nil
	}
	res, err := dynprop.Resolve(def, dctx)
	if err != nil {
		return nil, &schema.ConfigurationError{Subject: "field", ID: node.ID, Reason: "property codeList", Err: err}
	}
	id, err := res.Codelist()
	if err != nil {
		return nil, &schema.ConfigurationError{Subject: "field", ID: node.ID, Reason: "property codeList", Err: err}
	}
	if id == "" {
		return nil, nil
	}
	if options, ok := fetched[id]; ok {
		return options, nil
	}
	codes, err := m.codelists.Codes(ctx, req.SDKVersion, id, req.Language)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return nil, &schema.ConfigurationError{Subject: "codelist", ID: id, Reason: "unknown codelist", Err: err}
		}
		return nil, err
	}
	options := make([]widgets.Option, 0, len(codes))
	for _, code := range codes {
		options = append(options, widgets.Option{Value: code.Code, Label: code.Label})
	}
	fetched[id] = options
	return options, nil
}

func (m *Manager) label(ctx context.Context, req Request, key, fallback string) string {
	if m.translator == nil {
		return fallback
	}
	text, err := m.translator.Label(ctx, req.SDKVersion, key, req.Language)
	if err != nil || text == "" {
		return fallback
	}
	return text
}
