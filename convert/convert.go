// Package convert rewrites LoRA adapter files that store separate
// to_q/to_k/to_v low-rank factors into the fused qkv layout expected by
// z-image-turbo / Lumina2 model loaders.
//
// Each attention group's three up-projection factors are placed on the
// diagonal of a zero (3h, 3r) matrix and its three down-projection
// factors are stacked row-wise, so the fused adapter reproduces the
// exact per-axis contributions of the unfused one. Per-axis alpha scales
// are replaced by a single fused alpha of three times the q alpha.
package convert

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/zimagetools/lorafuse/version"
)

// ProgressFunc receives cooperative progress updates: an approximate
// percentage and a status label. Reporting is purely observational and
// has no effect on the conversion.
type ProgressFunc func(percent int, status string)

const targetModel = "z-image-turbo / Lumina2"

// Convert reads the adapter at inputPath, fuses every complete q/k/v
// attention group, and writes the result to outputPath in safetensors
// format. It returns the number of fused groups. Incomplete or malformed
// groups are dropped with a warning; they lower the count but are not
// errors.
func Convert(inputPath, outputPath string, progress ProgressFunc) (int, error) {
	report := func(percent int, status string) {
		if progress != nil {
			progress(percent, status)
		}
	}

	report(0, "Loading: "+filepath.Base(inputPath))

	in, err := loadTensorMap(inputPath)
	if err != nil {
		return 0, err
	}

	out := NewTensorMap()
	groups := make(map[string]*mergeGroup)
	var groupOrder []string

	total := in.Len()
	var processed int
	for key, t := range in.All() {
		processed++
		if processed%100 == 0 {
			report(10+40*processed/total, "Parsing keys...")
		}

		switch p := classifyKey(key, in.Has); p.kind {
		case kindRenameOut:
			out.Set(p.outKey, t)
			if p.alphaKey != "" {
				if alpha, ok := in.Get(p.alphaKey); ok {
					out.Set(p.outAlphaKey, alpha)
				}
			}
		case kindSkipAlpha:
		case kindMergeCandidate:
			g, ok := groups[p.groupKey]
			if !ok {
				g = &mergeGroup{}
				groups[p.groupKey] = g
				groupOrder = append(groupOrder, p.groupKey)
			}
			g.set(p.axis, p.factor, t)
		default:
			out.Set(key, t)
		}
	}

	slog.Debug("classified keys", "total", total, "groups", len(groupOrder))

	report(60, "Merging attention groups...")

	var fused int
	for _, groupKey := range groupOrder {
		g := groups[groupKey]
		if !g.complete() {
			slog.Warn("dropping incomplete qkv group", "group", groupKey)
			continue
		}

		fusedA, fusedB, err := fuseGroup(g)
		if err != nil {
			slog.Warn("skipping qkv group", "group", groupKey, "error", err)
			continue
		}

		alpha, err := fusedAlpha(in, groupKey)
		if err != nil {
			slog.Warn("skipping qkv group", "group", groupKey, "error", err)
			continue
		}

		out.Set(groupKey+".qkv.lora_B.weight", fusedB)
		out.Set(groupKey+".qkv.lora_A.weight", fusedA)
		if alpha != nil {
			out.Set(groupKey+".qkv.alpha", alpha)
		}
		fused++
	}

	report(90, "Saving: "+filepath.Base(outputPath))

	metadata := map[string]string{
		"converted_for": targetModel,
		"script":        "lorafuse " + version.Version,
	}
	if err := writeSafetensors(outputPath, out, metadata); err != nil {
		return 0, err
	}

	report(100, "Done")
	return fused, nil
}

// fusedAlpha looks up the q-axis alpha under either of the two legacy key
// conventions and rescales it for the fused rank. A missing alpha yields
// (nil, nil): the group simply gets no alpha entry.
func fusedAlpha(in *TensorMap, groupKey string) (*Tensor, error) {
	alpha, ok := in.Get(groupKey + ".to_q.alpha")
	if !ok {
		alpha, ok = in.Get(groupKey + ".to_q.lora_A.alpha")
	}
	if !ok {
		return nil, nil
	}

	v, err := alpha.Scalar()
	if err != nil {
		return nil, fmt.Errorf("alpha: %w", err)
	}

	// The fused rank is three times a single axis's rank, and alpha
	// scaling is applied per unit rank.
	return newTensor(alpha.DType, alpha.Shape, []float32{v * 3.0})
}
