package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"fulfillment-engine/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// StockExplanation is the structured answer returned for a stock level's audit trail.
type StockExplanation struct {
	Summary    string   `json:"summary" jsonschema_description:"Two or three sentences describing how the current quantities came about"`
	Findings   []string `json:"findings" jsonschema_description:"Notable events, e.g. fallback deductions, large reversals, reservations that never shipped"`
	Consistent bool     `json:"consistent" jsonschema_description:"True when replaying the movement deltas reproduces the current totals"`
	Confidence float64  `json:"confidence" jsonschema_description:"0.0-1.0"`
}

// Validate rejects answers the caller cannot show.
func (e *StockExplanation) Validate() error {
	if strings.TrimSpace(e.Summary) == "" {
		return fmt.Errorf("explanation summary is empty")
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range", e.Confidence)
	}
	return nil
}

type Explainer interface {
	ExplainStockLevel(ctx context.Context, level *core.StockLevel, movements []core.StockMovement) (*StockExplanation, error)
}

type Agent struct {
	client *openai.Client
	model  string
}

// NewAgent builds an explainer on the Responses API. An empty model uses gpt-4o.
func NewAgent(apiKey, model string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = string(shared.ChatModelGPT4o)
	}
	return &Agent{client: &client, model: model}
}

func (a *Agent) ExplainStockLevel(ctx context.Context, level *core.StockLevel, movements []core.StockMovement) (*StockExplanation, error) {
	schemaMap, err := explanationSchema()
	if err != nil {
		return nil, err
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(a.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(buildPrompt(level, movements)),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "stock_level_explanation",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A plain-language explanation of a stock level's movement history"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}
	return parseExplanation(resp.OutputText())
}

func buildPrompt(level *core.StockLevel, movements []core.StockMovement) string {
	var trail strings.Builder
	for _, m := range movements {
		fmt.Fprintf(&trail, "- %s %s qty=%s delta(on_hand=%s soft=%s hard=%s) -> on_hand=%s soft=%s hard=%s actor=%d ref=%q memo=%q\n",
			m.CreatedAt.Format("2006-01-02 15:04"), m.Kind, m.Quantity,
			m.OnHandDelta, m.SoftDelta, m.HardDelta,
			m.OnHandAfter, m.SoftAfter, m.HardAfter, m.ActorID, m.Reference, m.Memo)
	}
	if trail.Len() == 0 {
		trail.WriteString("(no movements recorded)\n")
	}

	return fmt.Sprintf(`You are a warehouse stock auditor.
Explain to an operations manager how the stock level below reached its current quantities.
Rules:
1. Base every statement on the movement trail; do not invent events.
2. Available = on hand - soft reserved - hard reserved.
3. Call out FALLBACK_DEDUCT movements and any reservation that was released instead of shipped.
4. Set consistent=false if the trail does not replay to the current totals.
5. Provide a confidence score (0.0-1.0).

Stock level %d: item %s, warehouse %d, location %s
Current: on_hand=%s soft_reserved=%s hard_reserved=%s available=%s

Movements (oldest first):
%s`, level.ID, level.ItemID, level.WarehouseID, level.LocationCode,
		level.OnHand, level.SoftReserved, level.HardReserved, level.Available(), trail.String())
}

func parseExplanation(content string) (*StockExplanation, error) {
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}
	var out StockExplanation
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("explanation validation failed: %w", err)
	}
	return &out, nil
}

// explanationSchema reflects StockExplanation into the map form the API expects.
func explanationSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schemaJSON, err := json.Marshal(reflector.Reflect(&StockExplanation{}))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	return schemaMap, nil
}
