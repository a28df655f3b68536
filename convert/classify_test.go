package convert

import "testing"

func TestClassifyKey(t *testing.T) {
	input := map[string]bool{
		"layer0.attention.to_out.0.alpha": true,
	}
	hasKey := func(k string) bool { return input[k] }

	cases := []struct {
		name string
		key  string
		want parsedKey
	}{
		{
			"out projection rename",
			"layer0.attention.to_out.0.lora_B.weight",
			parsedKey{kind: kindRenameOut, outKey: "layer0.attention.out.lora_B.weight"},
		},
		{
			"out projection factor A drags its alpha",
			"layer0.attention.to_out.0.lora_A.weight",
			parsedKey{
				kind:        kindRenameOut,
				outKey:      "layer0.attention.out.lora_A.weight",
				alphaKey:    "layer0.attention.to_out.0.alpha",
				outAlphaKey: "layer0.attention.out.alpha",
			},
		},
		{
			"out projection alpha renamed on its own",
			"layer0.attention.to_out.0.alpha",
			parsedKey{kind: kindRenameOut, outKey: "layer0.attention.out.alpha"},
		},
		{
			"per-axis alpha skipped",
			"layer0.attention.to_q.alpha",
			parsedKey{kind: kindSkipAlpha},
		},
		{
			"q factor B merge candidate",
			"layer0.attention.to_q.lora_B.weight",
			parsedKey{kind: kindMergeCandidate, groupKey: "layer0.attention", axis: "q", factor: "lora_B"},
		},
		{
			"nested path merge candidate",
			"base.blocks.3.attention.to_v.lora_A.weight",
			parsedKey{kind: kindMergeCandidate, groupKey: "base.blocks.3.attention", axis: "v", factor: "lora_A"},
		},
		{
			"axis marker without factor passes through",
			"layer0.attention.to_k.weight",
			parsedKey{kind: kindPassthrough},
		},
		{
			"unrelated lora key passes through",
			"layer0.mlp.fc1.lora_A.weight",
			parsedKey{kind: kindPassthrough},
		},
		{
			"base model weight passes through",
			"layer0.norm.weight",
			parsedKey{kind: kindPassthrough},
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyKey(tt.key, hasKey); got != tt.want {
				t.Fatalf("classifyKey(%q) = %+v, want %+v", tt.key, got, tt.want)
			}
		})
	}
}

func TestClassifyKeySkipsMissingCompanionAlpha(t *testing.T) {
	hasKey := func(string) bool { return false }

	got := classifyKey("layer0.attention.to_out.0.lora_A.weight", hasKey)
	if got.kind != kindRenameOut {
		t.Fatalf("kind = %v, want %v", got.kind, kindRenameOut)
	}
	if got.alphaKey != "" || got.outAlphaKey != "" {
		t.Fatalf("expected no companion alpha, got %q -> %q", got.alphaKey, got.outAlphaKey)
	}
}
