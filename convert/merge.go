package convert

import (
	"fmt"
	"slices"

	"github.com/pdevine/tensor"
	"github.com/pdevine/tensor/native"

	"github.com/nlpodyssey/safetensors/dtype"
)

// factorPair holds the two low-rank factors of one projection axis:
// a is the down-projection (r, in_features), b the up-projection (h, r).
type factorPair struct {
	a, b *Tensor
}

// mergeGroup collects the q/k/v factor pairs sharing one module path.
type mergeGroup struct {
	q, k, v factorPair
}

func (g *mergeGroup) pair(axis string) *factorPair {
	switch axis {
	case "q":
		return &g.q
	case "k":
		return &g.k
	case "v":
		return &g.v
	}
	return nil
}

func (g *mergeGroup) set(axis, factor string, t *Tensor) {
	p := g.pair(axis)
	if p == nil {
		return
	}

	switch factor {
	case "lora_A":
		p.a = t
	case "lora_B":
		p.b = t
	}
}

// complete reports whether all six axis-by-factor slots are filled.
// Completeness is the sole precondition for fusion.
func (g *mergeGroup) complete() bool {
	return g.q.a != nil && g.q.b != nil &&
		g.k.a != nil && g.k.b != nil &&
		g.v.a != nil && g.v.b != nil
}

// fuseGroup builds the fused low-rank factors for one complete group.
// The fused up-projection is block-diagonal across the three axes so no
// axis's contribution leaks into another's output slice; the fused
// down-projection is the q,k,v row stack.
func fuseGroup(g *mergeGroup) (fusedA, fusedB *Tensor, err error) {
	if len(g.q.b.Shape) != 2 {
		return nil, nil, fmt.Errorf("q factor B is %d-dimensional, want 2", len(g.q.b.Shape))
	}
	h, r := g.q.b.Shape[0], g.q.b.Shape[1]

	if len(g.q.a.Shape) != 2 {
		return nil, nil, fmt.Errorf("q factor A is %d-dimensional, want 2", len(g.q.a.Shape))
	}
	if g.q.a.Shape[0] != r {
		return nil, nil, fmt.Errorf("rank mismatch between factors: B is [%d %d], A is %v", h, r, g.q.a.Shape)
	}
	in := g.q.a.Shape[1]

	dt := g.q.b.DType
	switch dt {
	case dtype.F32, dtype.F16, dtype.BF16:
	default:
		return nil, nil, fmt.Errorf("unsupported dtype %s", dt)
	}

	// The fixed x3 alpha rescale assumes a shared rank, so axes that
	// disagree on shape or dtype are rejected rather than silently fused.
	for _, ax := range []struct {
		name string
		p    factorPair
	}{{"q", g.q}, {"k", g.k}, {"v", g.v}} {
		if !slices.Equal(ax.p.b.Shape, []int{h, r}) {
			return nil, nil, fmt.Errorf("%s factor B has shape %v, want [%d %d]", ax.name, ax.p.b.Shape, h, r)
		}
		if !slices.Equal(ax.p.a.Shape, []int{r, in}) {
			return nil, nil, fmt.Errorf("%s factor A has shape %v, want [%d %d]", ax.name, ax.p.a.Shape, r, in)
		}
		if ax.p.a.DType != dt || ax.p.b.DType != dt {
			return nil, nil, fmt.Errorf("%s factor dtype differs from %s", ax.name, dt)
		}
	}

	qb, err := g.q.b.Float32s()
	if err != nil {
		return nil, nil, err
	}
	kb, err := g.k.b.Float32s()
	if err != nil {
		return nil, nil, err
	}
	vb, err := g.v.b.Float32s()
	if err != nil {
		return nil, nil, err
	}

	fused := tensor.New(tensor.WithShape(3*h, 3*r), tensor.Of(tensor.Float32))
	rows, err := native.MatrixF32(fused)
	if err != nil {
		return nil, nil, err
	}

	for i := range h {
		copy(rows[i][:r], qb[i*r:(i+1)*r])
		copy(rows[h+i][r:2*r], kb[i*r:(i+1)*r])
		copy(rows[2*h+i][2*r:], vb[i*r:(i+1)*r])
	}

	fusedB, err = newTensor(dt, []int{3 * h, 3 * r}, fused.Data().([]float32))
	if err != nil {
		return nil, nil, err
	}

	// Row-major concatenation along the first axis is contiguous, so the
	// fused A factor is the three payloads back to back.
	data := make([]byte, 0, len(g.q.a.Data)+len(g.k.a.Data)+len(g.v.a.Data))
	data = append(data, g.q.a.Data...)
	data = append(data, g.k.a.Data...)
	data = append(data, g.v.a.Data...)
	fusedA = &Tensor{DType: dt, Shape: []int{3 * r, in}, Data: data}

	return fusedA, fusedB, nil
}
