//go:build noonnx

package model

import "fmt"

// graphBackend is compiled out with the noonnx tag.
type graphBackend struct{}

func newGraphBackend(string) backend {
	return graphBackend{}
}

func (graphBackend) name() string {
	return "onnx"
}

func (graphBackend) load(path string, _ int) error {
	return fmt.Errorf("%w: built without onnxruntime support", ErrUnsupportedModel)
}

func (graphBackend) run([]float32) (output, error) {
	return output{}, ErrNotLoaded
}

func (graphBackend) close() error {
	return nil
}
