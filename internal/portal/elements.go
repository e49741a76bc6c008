package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-rod/rod"

	"saintagent/internal/browser"
)

// ElementDescriptor is one actionable element inside the work-area frame,
// shaped for consumption by the model rather than for DOM fidelity.
type ElementDescriptor struct {
	Selector string `json:"selector"`
	Tag      string `json:"tag"`
	Label    string `json:"label"`
	Kind     string `json:"kind"` // button, link, input, select
}

// collectElementsJS walks the work-area DOM in one pass and returns
// descriptors for every visible, labeled, interactive element. Running the
// walk inside the page avoids a protocol round-trip per element; the portal
// routinely renders hundreds of candidates.
const collectElementsJS = `() => {
	const out = [];
	const seen = new Set();
	const nodes = document.querySelectorAll(
		'a, button, input, select, textarea, [role="button"], [onclick]');
	for (const el of nodes) {
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') continue;
		if (el.getAttribute('aria-hidden') === 'true') continue;
		if (el.closest('#sapur-aria')) continue;
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 && rect.height === 0) continue;

		let label = (el.getAttribute('aria-label') || el.getAttribute('title') ||
			el.value || el.placeholder || el.innerText || '').trim();
		label = label.replace(/\s+/g, ' ').slice(0, 120);
		if (!label) continue;

		let selector;
		if (el.id) {
			selector = '#' + CSS.escape(el.id);
		} else {
			// Positional fallback; stable only until the next navigation,
			// which matches the per-call resolution contract.
			const tag = el.tagName.toLowerCase();
			const same = Array.from(document.querySelectorAll(tag));
			selector = tag + ':nth-of-type(' + (same.indexOf(el) + 1) + ')';
		}
		if (seen.has(selector)) continue;
		seen.add(selector);

		const tag = el.tagName.toLowerCase();
		let kind = 'button';
		if (tag === 'a') kind = 'link';
		else if (tag === 'input' || tag === 'textarea') kind = 'input';
		else if (tag === 'select') kind = 'select';

		out.push({selector, tag, label, kind});
	}
	return out;
}`

// InteractiveElements resolves the frame and returns descriptors for its
// actionable elements. Descriptors are valid only until the next navigation.
func (c *Client) InteractiveElements(ctx context.Context, s *browser.Session) ([]ElementDescriptor, error) {
	frame, err := c.ResolveFrame(ctx, s)
	if err != nil {
		return nil, err
	}

	res, err := frame.Timeout(c.cfg.ActionTimeout).Evaluate(&rod.EvalOptions{
		JS:      collectElementsJS,
		ByValue: true,
	})
	if err != nil {
		return nil, fmt.Errorf("collect elements: %w", err)
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal element facts: %w", err)
	}
	var elements []ElementDescriptor
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, fmt.Errorf("decode element facts: %w", err)
	}

	c.sessions.Touch(s)
	return elements, nil
}

// FormatElements renders descriptors as a compact listing for the model.
func FormatElements(elements []ElementDescriptor) string {
	if len(elements) == 0 {
		return "no interactive elements found on this screen"
	}
	var b strings.Builder
	for _, el := range elements {
		fmt.Fprintf(&b, "[%s] %s -> %s\n", el.Kind, el.Label, el.Selector)
	}
	return strings.TrimRight(b.String(), "\n")
}
