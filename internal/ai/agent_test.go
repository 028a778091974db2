package ai

import (
	"strings"
	"testing"

	"fulfillment-engine/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestParseExplanation(t *testing.T) {
	out, err := parseExplanation(`{"summary":"Received 10, shipped 4.","findings":["fallback used"],"consistent":true,"confidence":0.9}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Consistent || len(out.Findings) != 1 || out.Confidence != 0.9 {
		t.Errorf("unexpected explanation: %+v", out)
	}
}

func TestParseExplanation_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"not json":      "the stock is fine",
		"no summary":    `{"summary":"  ","consistent":true,"confidence":0.5}`,
		"confidence>1":  `{"summary":"ok","consistent":true,"confidence":1.5}`,
		"negative conf": `{"summary":"ok","consistent":true,"confidence":-0.1}`,
	}
	for name, content := range cases {
		if _, err := parseExplanation(content); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestExplanationSchema(t *testing.T) {
	schema, err := explanationSchema()
	if err != nil {
		t.Fatal(err)
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %v", schema)
	}
	for _, key := range []string{"summary", "findings", "consistent", "confidence"} {
		if _, ok := props[key]; !ok {
			t.Errorf("schema is missing %q", key)
		}
	}
	if schema["additionalProperties"] != false {
		t.Errorf("expected additionalProperties=false, got %v", schema["additionalProperties"])
	}
}

func TestBuildPrompt(t *testing.T) {
	lvl := &core.StockLevel{
		ID:           3,
		ItemID:       uuid.New(),
		WarehouseID:  1,
		LocationCode: "GENERAL",
		OnHand:       decimal.NewFromInt(6),
		SoftReserved: decimal.Zero,
		HardReserved: decimal.Zero,
	}

	empty := buildPrompt(lvl, nil)
	if !strings.Contains(empty, "(no movements recorded)") || !strings.Contains(empty, "location GENERAL") {
		t.Errorf("unexpected prompt:\n%s", empty)
	}

	withTrail := buildPrompt(lvl, []core.StockMovement{{
		Kind:        core.MovementFallbackDeduct,
		Quantity:    decimal.NewFromInt(4),
		OnHandDelta: decimal.NewFromInt(-4),
		OnHandAfter: decimal.NewFromInt(6),
		Reference:   "delivery_note:DN-00001",
	}})
	if !strings.Contains(withTrail, "FALLBACK_DEDUCT qty=4") || !strings.Contains(withTrail, "DN-00001") {
		t.Errorf("movement missing from prompt:\n%s", withTrail)
	}
}
