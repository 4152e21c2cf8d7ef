package embed

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrElementNotFound is returned when an identifier does not resolve to an
// element in the document. Documents return it unwrapped; the controller
// adds the identifier.
var ErrElementNotFound = errors.New("element not found")

// Element is a page element that can play any of the controller's roles.
type Element interface {
	Styler
	TextSetter
	AttributeSetter
	Valuer
}

// Document resolves element identifiers.
type Document interface {
	ElementByID(id string) (Element, error)
}

// IDs names the elements the host page provides.
type IDs struct {
	Panel     string
	Button    string
	Frame     string
	EmbedText string
	Selector  string
}

// DefaultIDs returns the identifiers used by the chart page. The panel
// doubles as the element showing the snippet.
func DefaultIDs() IDs {
	return IDs{
		Panel:     "embedChart",
		Button:    "embedChartButton",
		Frame:     "chartIFrame",
		EmbedText: "embedChart",
		Selector:  "chartSelector",
	}
}

// ToggleByID resolves the panel and button in doc and toggles the panel.
// Nothing is modified when a lookup fails.
func (c Controller) ToggleByID(doc Document, panelID, buttonID string) error {
	els, err := lookup(doc, panelID, buttonID)
	if err != nil {
		return err
	}
	c.TogglePanel(els[0], els[1])
	return nil
}

// SelectByID resolves the frame, snippet and selector elements in doc and
// applies the selector's current value. Nothing is modified when a lookup
// fails.
func (c Controller) SelectByID(doc Document, frameID, embedTextID, selectorID string) error {
	els, err := lookup(doc, frameID, embedTextID, selectorID)
	if err != nil {
		return err
	}
	c.UpdateChartSelection(els[0], els[1], els[2])
	return nil
}

func lookup(doc Document, ids ...string) ([]Element, error) {
	els := make([]Element, 0, len(ids))
	for _, id := range ids {
		el, err := doc.ElementByID(id)
		if err == nil && isNil(el) {
			err = ErrElementNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("looking up #%s: %w", id, err)
		}
		els = append(els, el)
	}
	return els, nil
}

// isNil reports whether el is nil or holds a nil pointer.
func isNil(el Element) bool {
	if el == nil {
		return true
	}
	v := reflect.ValueOf(el)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface, reflect.Func, reflect.Slice, reflect.Chan:
		return v.IsNil()
	}
	return false
}
