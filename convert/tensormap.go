package convert

import (
	"encoding/binary"
	"fmt"
	"iter"
	"math"

	"github.com/d4l3k/go-bfloat16"
	"github.com/nlpodyssey/safetensors/dtype"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/x448/float16"
)

// Tensor is one named entry of an adapter file: a raw little-endian,
// row-major payload plus its dtype and shape. Tensors that pass through
// the conversion untouched keep their payload slice as-is, so the output
// stays bitwise identical to the input for those entries.
type Tensor struct {
	DType dtype.DType
	Shape []int
	Data  []byte
}

// Elems returns the number of elements implied by the shape. A zero-rank
// shape holds a single scalar.
func (t *Tensor) Elems() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Float32s decodes the payload into float32 values. Only the float
// dtypes that appear in LoRA checkpoints are supported.
func (t *Tensor) Float32s() ([]float32, error) {
	switch t.DType {
	case dtype.F32:
		f32s := make([]float32, len(t.Data)/4)
		for i := range f32s {
			f32s[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.Data[i*4:]))
		}
		return f32s, nil
	case dtype.F16:
		f32s := make([]float32, len(t.Data)/2)
		for i := range f32s {
			f32s[i] = float16.Frombits(binary.LittleEndian.Uint16(t.Data[i*2:])).Float32()
		}
		return f32s, nil
	case dtype.BF16:
		return bfloat16.DecodeFloat32(t.Data), nil
	default:
		return nil, fmt.Errorf("unsupported dtype %s", t.DType)
	}
}

// Scalar returns the single element of a one-element tensor.
func (t *Tensor) Scalar() (float32, error) {
	if t.Elems() != 1 {
		return 0, fmt.Errorf("expected a scalar, got shape %v", t.Shape)
	}

	f32s, err := t.Float32s()
	if err != nil {
		return 0, err
	}
	return f32s[0], nil
}

// newTensor encodes float32 values into the raw payload layout of the
// given dtype.
func newTensor(dt dtype.DType, shape []int, f32s []float32) (*Tensor, error) {
	var data []byte
	switch dt {
	case dtype.F32:
		data = make([]byte, len(f32s)*4)
		for i, v := range f32s {
			binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
		}
	case dtype.F16:
		data = make([]byte, len(f32s)*2)
		for i, v := range f32s {
			binary.LittleEndian.PutUint16(data[i*2:], float16.Fromfloat32(v).Bits())
		}
	case dtype.BF16:
		data = bfloat16.EncodeFloat32(f32s)
	default:
		return nil, fmt.Errorf("unsupported dtype %s", dt)
	}

	return &Tensor{DType: dt, Shape: shape, Data: data}, nil
}

// TensorMap is an insertion-ordered mapping from key to tensor. It is the
// in-memory form of an adapter file on both sides of the conversion.
type TensorMap struct {
	om *orderedmap.OrderedMap[string, *Tensor]
}

func NewTensorMap() *TensorMap {
	return &TensorMap{om: orderedmap.New[string, *Tensor]()}
}

func (m *TensorMap) Set(key string, t *Tensor) {
	m.om.Set(key, t)
}

func (m *TensorMap) Get(key string) (*Tensor, bool) {
	return m.om.Get(key)
}

func (m *TensorMap) Has(key string) bool {
	_, ok := m.om.Get(key)
	return ok
}

func (m *TensorMap) Len() int {
	return m.om.Len()
}

// All iterates entries in insertion order.
func (m *TensorMap) All() iter.Seq2[string, *Tensor] {
	return func(yield func(string, *Tensor) bool) {
		for pair := m.om.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}
