//go:build js && wasm

// Command embedpanel is the chart page's in-browser controller. Build with
//
//	GOOS=js GOARCH=wasm go build -o embedpanel.wasm ./web/embedpanel
//
// and serve it next to wasm_exec.js from the configured wasm_dir.
package main

import (
	"syscall/js"

	"github.com/ziadkadry99/chartembed/internal/embed"
	"github.com/ziadkadry99/chartembed/internal/wasmdom"
)

func main() {
	doc := wasmdom.NewDocument()
	ids := embed.DefaultIDs()

	// The page sets data-escape on <body> when escape_markup is enabled.
	var c embed.Controller
	body := js.Global().Get("document").Get("body")
	if !body.IsNull() && body.Call("hasAttribute", "data-escape").Bool() {
		c.Escape = true
	}

	toggle := js.FuncOf(func(this js.Value, args []js.Value) any {
		err := c.ToggleByID(doc, arg(args, 0, ids.Panel), arg(args, 1, ids.Button))
		if err != nil {
			reportError("toggleEmbedCode", err)
		}
		return nil
	})
	change := js.FuncOf(func(this js.Value, args []js.Value) any {
		err := c.SelectByID(doc,
			arg(args, 0, ids.Frame),
			arg(args, 1, ids.EmbedText),
			arg(args, 2, ids.Selector))
		if err != nil {
			reportError("changeChart", err)
		}
		return nil
	})
	js.Global().Set("toggleEmbedCode", toggle)
	js.Global().Set("changeChart", change)
	js.Global().Set("embedPanelReady", true)

	select {}
}

// arg returns args[i] as a string, or def when it is missing or not a
// string.
func arg(args []js.Value, i int, def string) string {
	if i >= len(args) || args[i].Type() != js.TypeString || args[i].String() == "" {
		return def
	}
	return args[i].String()
}

func reportError(fn string, err error) {
	js.Global().Get("console").Call("error", fn+": "+err.Error())
}
