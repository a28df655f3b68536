package convert

import (
	"fmt"
	"io"
	"os"

	"github.com/nlpodyssey/safetensors"
	"github.com/nlpodyssey/safetensors/dtype"
)

// namedTensor adapts a map entry to the safetensors serializer.
type namedTensor struct {
	name string
	t    *Tensor
}

func (nt namedTensor) Name() string       { return nt.name }
func (nt namedTensor) DType() dtype.DType { return nt.t.DType }
func (nt namedTensor) Shape() []int       { return nt.t.Shape }

func (nt namedTensor) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(nt.t.Data)
	return int64(n), err
}

func writeSafetensors(path string, m *TensorMap, metadata map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	tensors := make([]namedTensor, 0, m.Len())
	for name, t := range m.All() {
		tensors = append(tensors, namedTensor{name: name, t: t})
	}

	if err := safetensors.Serialize(f, tensors, metadata); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}

	return f.Close()
}
