package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/wonny/oracle/internal/contracts"
)

func TestRegistryGet(t *testing.T) {
	r := NewRegistry()

	for _, kind := range contracts.AllKinds() {
		t.Run(string(kind), func(t *testing.T) {
			d, err := r.Get(kind)
			if err != nil {
				t.Fatalf("Get(%s) failed: %v", kind, err)
			}
			if d.Kind != kind {
				t.Errorf("Expected kind %s, got %s", kind, d.Kind)
			}
			if len(d.Fields) == 0 {
				t.Errorf("Expected fields for %s", kind)
			}
		})
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get(contracts.AnalysisKind("mystery_analysis"))
	if !errors.Is(err, contracts.ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
}

func TestValidateMarketForecast(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{
			name: "valid",
			doc:  `{"outlook":"UP","reason":"futures strength","up_percentage":70}`,
		},
		{
			name: "valid without optional field",
			doc:  `{"outlook":"DOWN","reason":"hawkish fed minutes"}`,
		},
		{
			name:    "missing required reason",
			doc:     `{"outlook":"UP"}`,
			wantErr: true,
		},
		{
			name:    "enum value outside set",
			doc:     `{"outlook":"SIDEWAYS","reason":"choppy"}`,
			wantErr: true,
		},
		{
			name:    "enum never coerced by case",
			doc:     `{"outlook":"up","reason":"futures strength"}`,
			wantErr: true,
		},
		{
			name:    "wrong type for reason",
			doc:     `{"outlook":"UP","reason":42}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc map[string]interface{}
			if err := json.Unmarshal([]byte(tt.doc), &doc); err != nil {
				t.Fatalf("bad test fixture: %v", err)
			}

			err := r.Validate(contracts.KindMarketForecast, doc)
			if tt.wantErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected valid document, got %v", err)
			}
		})
	}
}

func TestValidateItemLevelKind(t *testing.T) {
	r := NewRegistry()

	valid := `{
		"as_of": "2025-01-15",
		"items": [
			{"ticker": "QQQ", "net_flow_musd": 1250.5, "flow_trend": "inflow", "impact": 3}
		]
	}`

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(valid), &doc); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}

	if err := r.Validate(contracts.KindETFFlowsWeekly, doc); err != nil {
		t.Errorf("Expected valid document, got %v", err)
	}

	// Break one array element
	items := doc["items"].([]interface{})
	item := items[0].(map[string]interface{})
	delete(item, "ticker")

	err := r.Validate(contracts.KindETFFlowsWeekly, doc)
	if err == nil {
		t.Fatal("Expected validation error for missing item ticker")
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected *ValidationError, got %T", err)
	}
	if !strings.Contains(verr.Path, "items[0]") {
		t.Errorf("Expected path to point into items[0], got %s", verr.Path)
	}
}

func TestValidateToleratesExtraFields(t *testing.T) {
	r := NewRegistry()

	doc := map[string]interface{}{
		"outlook":          "UP",
		"reason":           "breadth thrust",
		"extra_commentary": "models often add fields",
	}

	if err := r.Validate(contracts.KindMarketForecast, doc); err != nil {
		t.Errorf("Extra fields should be tolerated, got %v", err)
	}
}

func TestShapeIsDeterministic(t *testing.T) {
	r := NewRegistry()

	d, err := r.Get(contracts.KindMarketAnalysis)
	if err != nil {
		t.Fatal(err)
	}

	first := d.Shape()
	for i := 0; i < 10; i++ {
		if got := d.Shape(); got != first {
			t.Fatal("Shape() output changed between calls")
		}
	}

	if !strings.Contains(first, `"top_momentum_sectors"`) {
		t.Error("Expected shape to list top_momentum_sectors")
	}
	if !strings.Contains(first, `"<string>"`) {
		t.Error("Expected placeholder values in shape")
	}
}

func TestShapeRendersEnums(t *testing.T) {
	r := NewRegistry()

	d, err := r.Get(contracts.KindSignals)
	if err != nil {
		t.Fatal(err)
	}

	shape := d.Shape()
	if !strings.Contains(shape, "buy|sell|hold") {
		t.Errorf("Expected enum alternatives in shape, got:\n%s", shape)
	}
}
