//go:build !noonnx

package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortOnce sync.Once
	ortErr  error
)

func initRuntime(library string) error {
	ortOnce.Do(func() {
		if library != "" {
			ort.SetSharedLibraryPath(library)
		}
		ortErr = ort.InitializeEnvironment()
	})
	return ortErr
}

// graphBackend runs ONNX models through onnxruntime.
type graphBackend struct {
	library string
	session *ort.DynamicAdvancedSession
	input   string
	outputs []string
}

func newGraphBackend(library string) backend {
	return &graphBackend{library: library}
}

func (b *graphBackend) name() string {
	return "onnx"
}

func (b *graphBackend) load(path string, numFeatures int) error {
	if err := initRuntime(b.library); err != nil {
		return fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", path, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return fmt.Errorf("%w: model has no inputs or outputs", ErrShapeMismatch)
	}
	if dims := inputs[0].Dimensions; len(dims) == 2 && dims[1] > 0 && numFeatures > 0 && dims[1] != int64(numFeatures) {
		return fmt.Errorf("%w: model input takes %d features, feature list has %d", ErrShapeMismatch, dims[1], numFeatures)
	}

	names := make([]string, 0, len(outputs))
	for _, o := range outputs {
		names = append(names, o.Name)
	}
	session, err := ort.NewDynamicAdvancedSession(path, []string{inputs[0].Name}, names, nil)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if b.session != nil {
		b.session.Destroy()
	}
	b.session = session
	b.input = inputs[0].Name
	b.outputs = names
	return nil
}

func (b *graphBackend) run(vector []float32) (output, error) {
	if b.session == nil {
		return output{}, ErrNotLoaded
	}

	in, err := ort.NewTensor(ort.NewShape(1, int64(len(vector))), vector)
	if err != nil {
		return output{}, err
	}
	defer in.Destroy()

	outs := make([]ort.Value, len(b.outputs))
	if err := b.session.Run([]ort.Value{in}, outs); err != nil {
		return output{}, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		for _, o := range outs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	// The first float tensor holds probabilities; an int64 tensor is a
	// hard label.
	var label *ort.Tensor[int64]
	for _, o := range outs {
		switch t := o.(type) {
		case *ort.Tensor[float32]:
			return output{probabilities: firstRow(t.GetData(), t.GetShape())}, nil
		case *ort.Tensor[int64]:
			if label == nil {
				label = t
			}
		}
	}
	if label != nil && len(label.GetData()) > 0 {
		return output{hard: true, label: label.GetData()[0]}, nil
	}
	return output{}, fmt.Errorf("%w: no float or label output", ErrShapeMismatch)
}

func firstRow(data []float32, shape ort.Shape) []float64 {
	n := len(data)
	if len(shape) > 1 && shape[len(shape)-1] > 0 && int(shape[len(shape)-1]) < n {
		n = int(shape[len(shape)-1])
	}
	row := make([]float64, n)
	for i := 0; i < n; i++ {
		row[i] = float64(data[i])
	}
	return row
}

func (b *graphBackend) close() error {
	if b.session == nil {
		return nil
	}
	err := b.session.Destroy()
	b.session = nil
	return err
}
