package convert

import (
	"fmt"
	"os"

	"github.com/nlpodyssey/safetensors"
)

func parseSafetensors(path string) (*TensorMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := safetensors.ReadAllRaw(f, 0)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	// ReadAllRaw yields tensors in data-offset order, i.e. file order,
	// which becomes the map's insertion order.
	m := NewTensorMap()
	for _, rt := range st.Tensors {
		m.Set(rt.Name(), &Tensor{
			DType: rt.DType(),
			Shape: rt.Shape(),
			Data:  rt.Data(),
		})
	}

	return m, nil
}
