//go:build js && wasm
// +build js,wasm

package main

import (
	"fmt"
	"syscall/js"

	"github.com/MeKo-Tech/colorboost/internal/adjust"
	"github.com/MeKo-Tech/colorboost/internal/intensity"
)

// adjustImageData is called from JavaScript with a canvas ImageData.data
// array (Uint8ClampedArray) and the slider value. The array is adjusted in
// place, so the caller can put the same ImageData back onto the canvas.
//
// The caller is expected to pass a fresh copy of the original pixels on
// every slider change; adjusting the same array twice compounds.
func adjustImageData(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult(fmt.Errorf("expected (data, sliderValue), got %d arguments", len(args)))
	}

	data := args[0]
	if data.Type() != js.TypeObject || data.Get("length").Type() != js.TypeNumber {
		return errorResult(fmt.Errorf("data must be a Uint8ClampedArray"))
	}
	if args[1].Type() != js.TypeNumber {
		return errorResult(fmt.Errorf("sliderValue must be a number"))
	}

	factor, err := intensity.Map(args[1].Float())
	if err != nil {
		return errorResult(err)
	}

	pix := make([]byte, data.Get("length").Int())
	js.CopyBytesToGo(pix, data)

	if err := adjust.Adjust(pix, factor); err != nil {
		return errorResult(err)
	}

	js.CopyBytesToJS(data, pix)
	return map[string]interface{}{
		"status": "ok",
		"factor": float64(factor),
		"pixels": len(pix) / adjust.BytesPerPixel,
	}
}

// factorFor exposes the slider mapping so the page can display it.
func factorFor(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeNumber {
		return errorResult(fmt.Errorf("expected a numeric sliderValue"))
	}
	factor, err := intensity.Map(args[0].Float())
	if err != nil {
		return errorResult(err)
	}
	return map[string]interface{}{"factor": float64(factor)}
}

func initModule(this js.Value, args []js.Value) interface{} {
	fmt.Println("ColorBoost WASM module initialized")
	return map[string]interface{}{
		"status":   "ready",
		"minLevel": float64(intensity.MinLevel),
		"maxLevel": float64(intensity.MaxLevel),
	}
}

func errorResult(err error) map[string]interface{} {
	return map[string]interface{}{"error": err.Error()}
}

func main() {
	c := make(chan struct{})

	js.Global().Set("colorboostAdjust", js.FuncOf(adjustImageData))
	js.Global().Set("colorboostFactor", js.FuncOf(factorFor))
	js.Global().Set("colorboostInit", js.FuncOf(initModule))

	fmt.Println("ColorBoost WASM module loaded")
	<-c
}
