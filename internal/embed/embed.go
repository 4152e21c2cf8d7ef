package embed

import (
	"html/template"
	"strings"
)

// Display values written to the panel's style.
const (
	DisplayHidden  = "none"
	DisplayVisible = "block"
)

// Toggle button labels.
const (
	LabelShow = "Embed chart"
	LabelHide = "Hide embed code"
)

// Styler is an element whose style.display can be read and written.
type Styler interface {
	Display() string
	SetDisplay(value string)
}

// TextSetter is an element whose text content can be replaced.
type TextSetter interface {
	SetTextContent(text string)
}

// AttributeSetter is an element with settable attributes.
type AttributeSetter interface {
	SetAttribute(name, value string)
}

// Valuer is an input element with a current value.
type Valuer interface {
	Value() string
}

// Controller keeps the embed panel and chart frame in step with user
// actions. The zero value writes the selected URL into the snippet verbatim.
type Controller struct {
	// Escape HTML-escapes the chart URL inside the snippet. Use it when the
	// selector's options come from an untrusted source.
	Escape bool
}

// TogglePanel flips the panel between hidden and visible and relabels the
// button to match. Only the literal "none" counts as hidden, so a panel with
// an unset display is hidden by the first call.
func (c Controller) TogglePanel(panel Styler, button TextSetter) {
	if panel.Display() == DisplayHidden {
		panel.SetDisplay(DisplayVisible)
	} else {
		panel.SetDisplay(DisplayHidden)
	}
	if panel.Display() == DisplayHidden {
		button.SetTextContent(LabelShow)
	} else {
		button.SetTextContent(LabelHide)
	}
}

// UpdateChartSelection points the frame at the selector's current value and
// shows the matching embed snippet.
func (c Controller) UpdateChartSelection(frame AttributeSetter, embedText TextSetter, selector Valuer) {
	src := selector.Value()
	frame.SetAttribute("src", src)
	embedText.SetTextContent(c.Markup(src))
}

// Markup returns the embed snippet for src according to the controller's
// escaping mode.
func (c Controller) Markup(src string) string {
	if c.Escape {
		return EscapedMarkup(src)
	}
	return Markup(src)
}

// TogglePanel is Controller.TogglePanel on the zero Controller.
func TogglePanel(panel Styler, button TextSetter) {
	Controller{}.TogglePanel(panel, button)
}

// UpdateChartSelection is Controller.UpdateChartSelection on the zero
// Controller.
func UpdateChartSelection(frame AttributeSetter, embedText TextSetter, selector Valuer) {
	Controller{}.UpdateChartSelection(frame, embedText, selector)
}

const (
	markupPrefix = `<iframe width="600" height="400" seamless frameBorder="0" scrolling="no" src="`
	markupSuffix = `"></iframe>`
)

// Markup returns the iframe snippet for src with src copied verbatim.
func Markup(src string) string {
	var b strings.Builder
	b.Grow(len(markupPrefix) + len(src) + len(markupSuffix))
	b.WriteString(markupPrefix)
	b.WriteString(src)
	b.WriteString(markupSuffix)
	return b.String()
}

// EscapedMarkup is Markup with src escaped for use inside a double-quoted
// HTML attribute.
func EscapedMarkup(src string) string {
	return Markup(template.HTMLEscapeString(src))
}
