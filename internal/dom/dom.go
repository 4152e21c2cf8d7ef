// Package dom is an in-memory model of the few page elements the embed
// controller touches. The server uses it to compute a page's initial state
// and tests use it in place of a browser.
package dom

import "github.com/ziadkadry99/chartembed/internal/embed"

// Element is an in-memory page element.
type Element struct {
	id      string
	display string
	text    string
	value   string
	attrs   map[string]string
}

// NewElement returns an element with the given id.
func NewElement(id string) *Element {
	return &Element{id: id, attrs: make(map[string]string)}
}

// Display returns style.display.
func (e *Element) Display() string { return e.display }

// SetDisplay sets style.display.
func (e *Element) SetDisplay(value string) { e.display = value }

// TextContent returns the element's text.
func (e *Element) TextContent() string { return e.text }

// SetTextContent replaces the element's text.
func (e *Element) SetTextContent(text string) { e.text = text }

// Value returns the current value of an input element.
func (e *Element) Value() string { return e.value }

// SetValue sets the current value of an input element.
func (e *Element) SetValue(value string) { e.value = value }

// Attribute returns the named attribute, or "" if unset.
func (e *Element) Attribute(name string) string { return e.attrs[name] }

// SetAttribute sets the named attribute.
func (e *Element) SetAttribute(name, value string) { e.attrs[name] = value }

// Document is a set of elements keyed by id. It is not safe for concurrent
// use.
type Document struct {
	elements map[string]*Element
}

// New returns an empty document.
func New() *Document {
	return &Document{elements: make(map[string]*Element)}
}

// Add inserts el, replacing any element with the same id.
func (d *Document) Add(el *Element) *Element {
	d.elements[el.id] = el
	return el
}

// Create adds and returns a new element.
func (d *Document) Create(id string) *Element {
	return d.Add(NewElement(id))
}

// Get returns the element with the given id.
func (d *Document) Get(id string) (*Element, bool) {
	el, ok := d.elements[id]
	return el, ok
}

// ElementByID implements embed.Document.
func (d *Document) ElementByID(id string) (embed.Element, error) {
	el, ok := d.elements[id]
	if !ok {
		return nil, embed.ErrElementNotFound
	}
	return el, nil
}

// ChartPage returns a document holding the elements of the chart page under
// the given ids, with the panel hidden and the button labelled to match.
func ChartPage(ids embed.IDs) *Document {
	d := New()
	d.Create(ids.Panel).SetDisplay(embed.DisplayHidden)
	d.Create(ids.Button).SetTextContent(embed.LabelShow)
	d.Create(ids.Frame)
	if _, ok := d.Get(ids.EmbedText); !ok {
		d.Create(ids.EmbedText)
	}
	d.Create(ids.Selector)
	return d
}
