package convert

import (
	"fmt"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/nlpodyssey/safetensors/dtype"
)

func parseTorch(path string) (*TensorMap, error) {
	obj, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("unpickle %s: %w", path, err)
	}

	d, ok := obj.(*types.Dict)
	if !ok {
		return nil, fmt.Errorf("%s: expected a dict of tensors, got %T", path, obj)
	}

	m := NewTensorMap()
	for _, k := range d.Keys() {
		name, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("%s: non-string tensor key %v", path, k)
		}

		pt, ok := d.MustGet(k).(*pytorch.Tensor)
		if !ok {
			return nil, fmt.Errorf("%s: value of %q is %T, not a tensor", path, name, d.MustGet(k))
		}

		t, err := torchTensor(pt)
		if err != nil {
			return nil, fmt.Errorf("%s: tensor %q: %w", path, name, err)
		}
		m.Set(name, t)
	}

	return m, nil
}

// torchTensor re-encodes a pickled storage into the raw layout used for
// safetensors output. gopickle decodes half and bfloat16 storages to
// float32, so the original dtype is recovered from the storage type.
func torchTensor(pt *pytorch.Tensor) (*Tensor, error) {
	shape := make([]int, len(pt.Size))
	copy(shape, pt.Size)

	var dt dtype.DType
	var f32s []float32
	switch s := pt.Source.(type) {
	case *pytorch.FloatStorage:
		dt, f32s = dtype.F32, s.Data
	case *pytorch.HalfStorage:
		dt, f32s = dtype.F16, s.Data
	case *pytorch.BFloat16Storage:
		dt, f32s = dtype.BF16, s.Data
	default:
		return nil, fmt.Errorf("unsupported storage type %T", s)
	}

	n := 1
	for _, d := range shape {
		n *= d
	}

	offset := int(pt.StorageOffset)
	if offset < 0 || offset+n > len(f32s) {
		return nil, fmt.Errorf("storage too small: offset %d, %d elements, %d stored", offset, n, len(f32s))
	}

	return newTensor(dt, shape, f32s[offset:offset+n])
}
