//go:build js && wasm

// Package wasmdom binds the embed controller to the browser's document
// through syscall/js.
package wasmdom

import (
	"syscall/js"

	"github.com/ziadkadry99/chartembed/internal/embed"
)

// Element wraps a DOM element.
type Element struct {
	v js.Value
}

// Wrap returns an Element for v.
func Wrap(v js.Value) Element { return Element{v: v} }

func (e Element) Display() string {
	return e.v.Get("style").Get("display").String()
}

func (e Element) SetDisplay(value string) {
	e.v.Get("style").Set("display", value)
}

func (e Element) SetTextContent(text string) {
	e.v.Set("textContent", text)
}

func (e Element) SetAttribute(name, value string) {
	e.v.Call("setAttribute", name, value)
}

// Value returns the element's value property, or "" when it has none.
func (e Element) Value() string {
	v := e.v.Get("value")
	if v.IsUndefined() || v.IsNull() {
		return ""
	}
	return v.String()
}

// Document wraps the global document.
type Document struct {
	doc js.Value
}

// NewDocument returns a Document for the page's global document.
func NewDocument() *Document {
	return &Document{doc: js.Global().Get("document")}
}

// ElementByID implements embed.Document.
func (d *Document) ElementByID(id string) (embed.Element, error) {
	v := d.doc.Call("getElementById", id)
	if v.IsNull() || v.IsUndefined() {
		return nil, embed.ErrElementNotFound
	}
	return Wrap(v), nil
}
