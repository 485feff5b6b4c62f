package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/typelens/typelens/coalesce"
	"github.com/typelens/typelens/tooltip"
)

// Overlay renders tooltips as DOM injected into the inspected page. All
// elements live under a maximum z-index and carry data-typelens
// attributes so the tracker script can route clicks on close/copy/search
// affordances back through the binding.
type Overlay struct {
	tab *Tab
}

// NewOverlay wraps a tab.
func NewOverlay(tab *Tab) *Overlay {
	return &Overlay{tab: tab}
}

const ensureJS = `() => {
	if (document.getElementById('typelens-floating')) return;
	const el = document.createElement('div');
	el.id = 'typelens-floating';
	el.style.cssText = 'position:fixed;left:0;top:0;display:none;' +
		'z-index:2147483647;background:#1e1e1e;color:#eee;' +
		'font:12px/1.5 system-ui,sans-serif;padding:8px 10px;' +
		'border-radius:6px;box-shadow:0 2px 12px rgba(0,0,0,.4);' +
		'pointer-events:none;max-width:280px;';
	document.documentElement.appendChild(el);
}`

const setPosJS = `(x, y, visible) => {
	const el = document.getElementById('typelens-floating');
	if (!el) return;
	el.style.left = x + 'px';
	el.style.top = y + 'px';
	el.style.display = visible ? 'block' : 'none';
}`

const hideJS = `() => {
	const el = document.getElementById('typelens-floating');
	if (el) el.style.display = 'none';
}`

// renderFieldsJS fills a tooltip element with label/value rows. Values go
// in through textContent, never innerHTML, so page-derived strings cannot
// inject markup. Copy and search affordances are data attributes the
// tracker's click listener picks up.
const renderFieldsJS = `(targetId, fieldsJSON, interactive) => {
	const el = document.getElementById(targetId);
	if (!el) return;
	el.textContent = '';
	const fields = JSON.parse(fieldsJSON);
	for (const f of fields) {
		const row = document.createElement('div');
		const label = document.createElement('span');
		label.textContent = f.label + ' ';
		label.style.color = '#999';
		const value = document.createElement('span');
		value.textContent = f.value;
		if (interactive) {
			value.dataset.typelensCopy = f.value;
			value.style.cursor = 'pointer';
			if (f.searchable) {
				value.dataset.typelensSearch = f.value;
				value.style.textDecoration = 'underline';
			}
		}
		row.appendChild(label);
		row.appendChild(value);
		el.appendChild(row);
	}
}`

const createPinJS = `(id, x, y) => {
	const el = document.createElement('div');
	el.id = 'typelens-pin-' + id;
	el.dataset.typelensPin = id;
	el.style.cssText = 'position:absolute;z-index:2147483646;' +
		'background:#1e1e1e;color:#eee;font:12px/1.5 system-ui,sans-serif;' +
		'padding:8px 10px;border-radius:6px;' +
		'box-shadow:0 2px 12px rgba(0,0,0,.4);max-width:280px;';
	el.style.left = (x + window.scrollX) + 'px';
	el.style.top = (y + window.scrollY) + 'px';
	const close = document.createElement('span');
	close.textContent = '×';
	close.dataset.typelensClose = id;
	close.style.cssText = 'float:right;cursor:pointer;margin-left:6px;color:#999;';
	el.appendChild(close);
	const body = document.createElement('div');
	body.id = 'typelens-pin-body-' + id;
	el.appendChild(body);
	document.documentElement.appendChild(el);
}`

const removePinJS = `(id) => {
	const el = document.getElementById('typelens-pin-' + id);
	if (el) el.remove();
}`

const teardownJS = `(destroyPinned) => {
	const el = document.getElementById('typelens-floating');
	if (el) el.remove();
	if (destroyPinned) {
		for (const pin of document.querySelectorAll('[data-typelens-pin]')) {
			pin.remove();
		}
	}
}`

type renderedField struct {
	Label      string `json:"label"`
	Value      string `json:"value"`
	Searchable bool   `json:"searchable"`
}

func fieldsJSON(content tooltip.Content) (string, error) {
	fields := content.Fields()
	out := make([]renderedField, 0, len(fields))
	for _, f := range fields {
		out = append(out, renderedField{Label: f.Label, Value: f.Value, Searchable: f.Searchable})
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// EnsureFloating implements tooltip.Overlay.
func (o *Overlay) EnsureFloating(ctx context.Context) error {
	if _, err := o.tab.Page.Context(ctx).Eval(ensureJS); err != nil {
		return fmt.Errorf("browser: create floating tooltip: %w", err)
	}
	return nil
}

// ShowFloating implements tooltip.Overlay.
func (o *Overlay) ShowFloating(ctx context.Context, pos coalesce.Point) error {
	if _, err := o.tab.Page.Context(ctx).Eval(setPosJS, pos.X, pos.Y, true); err != nil {
		return fmt.Errorf("browser: show floating tooltip: %w", err)
	}
	return nil
}

// MoveFloating implements tooltip.Overlay.
func (o *Overlay) MoveFloating(ctx context.Context, pos coalesce.Point) error {
	if _, err := o.tab.Page.Context(ctx).Eval(setPosJS, pos.X, pos.Y, true); err != nil {
		return fmt.Errorf("browser: move floating tooltip: %w", err)
	}
	return nil
}

// SetFloatingContent implements tooltip.Overlay.
func (o *Overlay) SetFloatingContent(ctx context.Context, content tooltip.Content) error {
	fields, err := fieldsJSON(content)
	if err != nil {
		return fmt.Errorf("browser: encode tooltip fields: %w", err)
	}
	if _, err := o.tab.Page.Context(ctx).Eval(renderFieldsJS, "typelens-floating", fields, false); err != nil {
		return fmt.Errorf("browser: render floating tooltip: %w", err)
	}
	return nil
}

// HideFloating implements tooltip.Overlay.
func (o *Overlay) HideFloating(ctx context.Context) error {
	if _, err := o.tab.Page.Context(ctx).Eval(hideJS); err != nil {
		return fmt.Errorf("browser: hide floating tooltip: %w", err)
	}
	return nil
}

// CreatePinned implements tooltip.Overlay.
func (o *Overlay) CreatePinned(ctx context.Context, pin tooltip.Pinned) error {
	page := o.tab.Page.Context(ctx)
	if _, err := page.Eval(createPinJS, pin.ID, pin.X, pin.Y); err != nil {
		return fmt.Errorf("browser: create pinned tooltip: %w", err)
	}
	fields, err := fieldsJSON(pin.Content)
	if err != nil {
		return fmt.Errorf("browser: encode pinned fields: %w", err)
	}
	if _, err := page.Eval(renderFieldsJS, "typelens-pin-body-"+pin.ID, fields, true); err != nil {
		return fmt.Errorf("browser: render pinned tooltip: %w", err)
	}
	return nil
}

// RemovePinned implements tooltip.Overlay.
func (o *Overlay) RemovePinned(ctx context.Context, id string) error {
	if _, err := o.tab.Page.Context(ctx).Eval(removePinJS, id); err != nil {
		return fmt.Errorf("browser: remove pinned tooltip: %w", err)
	}
	return nil
}

// Teardown implements tooltip.Overlay.
func (o *Overlay) Teardown(ctx context.Context, destroyPinned bool) error {
	if _, err := o.tab.Page.Context(ctx).Eval(teardownJS, destroyPinned); err != nil {
		return fmt.Errorf("browser: overlay teardown: %w", err)
	}
	return nil
}
