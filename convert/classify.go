package convert

import "strings"

// Key naming contract of z-image-turbo / Lumina2 LoRA checkpoints. The
// attention module stores separate to_q/to_k/to_v projections plus an
// output projection to_out.0; the fused checkpoint expects a single qkv
// projection and a renamed out projection.
const (
	outProjMarker = ".attention.to_out.0."
	attnMarker    = ".attention.to_"
)

type keyKind int

const (
	kindPassthrough keyKind = iota
	kindRenameOut
	kindSkipAlpha
	kindMergeCandidate
)

// parsedKey is the classification of one input key. For kindRenameOut,
// outKey holds the rewritten key, and alphaKey/outAlphaKey carry the
// companion alpha along when the input has one. For kindMergeCandidate,
// groupKey, axis and factor locate the tensor's slot in its merge group.
type parsedKey struct {
	kind keyKind

	outKey      string
	alphaKey    string
	outAlphaKey string

	groupKey string
	axis     string // "q", "k" or "v"
	factor   string // "lora_A" or "lora_B"
}

func isAxisSegment(s string) bool {
	return s == "to_q" || s == "to_k" || s == "to_v"
}

// classifyKey decides what happens to a single input key. Rules apply in
// order, first match wins. hasKey reports whether a key exists in the
// input map; it is only consulted for the companion alpha of a renamed
// out-projection factor.
func classifyKey(key string, hasKey func(string) bool) parsedKey {
	// Output projection: a plain rename, not a merge. A lora_A factor
	// drags its sibling alpha along under the same rename.
	if strings.Contains(key, outProjMarker) {
		p := parsedKey{
			kind:   kindRenameOut,
			outKey: strings.ReplaceAll(key, ".to_out.0.", ".out."),
		}
		if i := strings.LastIndex(key, ".lora_A"); i >= 0 {
			alphaKey := key[:i] + ".alpha"
			if hasKey(alphaKey) {
				p.alphaKey = alphaKey
				p.outAlphaKey = strings.ReplaceAll(alphaKey, ".to_out.0.", ".out.")
			}
		}
		return p
	}

	// Per-axis alphas are superseded by the single fused alpha.
	if strings.Contains(key, attnMarker) && strings.Contains(key, ".alpha") {
		return parsedKey{kind: kindSkipAlpha}
	}

	if strings.Contains(key, attnMarker) &&
		(strings.Contains(key, ".to_q.") || strings.Contains(key, ".to_k.") || strings.Contains(key, ".to_v.")) {
		parts := strings.Split(key, ".")

		var axis, factor string
		for _, part := range parts {
			switch {
			case isAxisSegment(part):
				if axis == "" {
					axis = part[3:]
				}
			case part == "lora_A" || part == "lora_B":
				if factor == "" {
					factor = part
				}
			}
		}

		// Keys that resemble the convention but name no recognizable
		// axis or factor segment fall through to passthrough so their
		// data survives.
		if axis != "" && factor != "" {
			base := make([]string, 0, len(parts))
			for _, part := range parts {
				if !isAxisSegment(part) {
					base = append(base, part)
				}
			}
			// The last two segments are the factor name and the tensor
			// name suffix; everything before them is the group key.
			if len(base) >= 2 {
				return parsedKey{
					kind:     kindMergeCandidate,
					groupKey: strings.Join(base[:len(base)-2], "."),
					axis:     axis,
					factor:   factor,
				}
			}
		}
	}

	return parsedKey{kind: kindPassthrough}
}
