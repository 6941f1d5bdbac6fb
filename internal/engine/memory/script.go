package memory

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
)

const scriptTimeout = time.Second

// scriptEffects collects what a page script asked the browser to do
type scriptEffects struct {
	navigate string
	back     bool
	reload   bool
	title    string
	console  []string
}

// runScript executes script in a fresh VM exposing a tiny window object.
// Nothing the script does touches the handle until it has finished.
func runScript(script string) (scriptEffects, error) {
	var fx scriptEffects
	vm := goja.New()

	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())

	location := vm.NewObject()
	_ = location.Set("replace", func(uri string) { fx.navigate = uri })
	_ = location.Set("assign", func(uri string) { fx.navigate = uri })
	_ = location.Set("reload", func() { fx.reload = true })

	history := vm.NewObject()
	_ = history.Set("back", func() { fx.back = true })

	window := vm.NewObject()
	_ = window.Set("location", location)
	_ = window.Set("history", history)
	vm.Set("window", window)

	document := vm.NewObject()
	_ = document.DefineAccessorProperty("title",
		vm.ToValue(func() string { return fx.title }),
		vm.ToValue(func(v string) { fx.title = v }),
		goja.FLAG_FALSE, goja.FLAG_TRUE)
	vm.Set("document", document)

	console := vm.NewObject()
	_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
		for _, arg := range call.Arguments {
			fx.console = append(fx.console, arg.String())
		}
		return goja.Undefined()
	})
	vm.Set("console", console)

	timer := time.AfterFunc(scriptTimeout, func() {
		vm.Interrupt("execution timeout exceeded")
	})
	defer timer.Stop()

	if _, err := vm.RunString(script); err != nil {
		return scriptEffects{}, fmt.Errorf("script failed: %w", err)
	}
	return fx, nil
}
