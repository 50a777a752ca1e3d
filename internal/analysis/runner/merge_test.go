package runner

import (
	"testing"
)

func TestMergeScalarsPreferPrimary(t *testing.T) {
	primary := map[string]interface{}{
		"rotation_view": "into cyclicals",
		"comment":       "",
	}
	secondary := map[string]interface{}{
		"rotation_view": "into defensives",
		"comment":       "dollar weakness supports exporters",
		"extra_field":   "only in secondary",
	}

	out := Merge(primary, secondary)

	if out["rotation_view"] != "into cyclicals" {
		t.Errorf("Primary scalar must win, got %v", out["rotation_view"])
	}
	if out["comment"] != "dollar weakness supports exporters" {
		t.Errorf("Empty primary scalar must be backfilled, got %v", out["comment"])
	}
	if out["extra_field"] != "only in secondary" {
		t.Error("Secondary-only fields must be carried over")
	}
}

func TestMergeNilPrimaryBackfilled(t *testing.T) {
	out := Merge(
		map[string]interface{}{"net_liquidity_busd": nil},
		map[string]interface{}{"net_liquidity_busd": 5950.0},
	)
	if out["net_liquidity_busd"] != 5950.0 {
		t.Errorf("Null primary must be backfilled, got %v", out["net_liquidity_busd"])
	}
}

func TestMergeListUnionByTicker(t *testing.T) {
	primary := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"ticker": "AAPL", "action": "buy"},
			map[string]interface{}{"ticker": "NVDA", "action": "hold"},
		},
	}
	secondary := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"ticker": "AAPL", "action": "sell"},
			map[string]interface{}{"ticker": "MSFT", "action": "buy"},
		},
	}

	out := Merge(primary, secondary)
	items := out["items"].([]interface{})

	if len(items) != 3 {
		t.Fatalf("Expected union of 3 tickers, got %d", len(items))
	}

	byTicker := map[string]map[string]interface{}{}
	for _, it := range items {
		obj := it.(map[string]interface{})
		byTicker[obj["ticker"].(string)] = obj
	}

	if byTicker["AAPL"]["action"] != "buy" {
		t.Error("Primary must win the AAPL conflict")
	}
	if _, ok := byTicker["MSFT"]; !ok {
		t.Error("Secondary-only MSFT must survive the merge")
	}
	if _, ok := byTicker["NVDA"]; !ok {
		t.Error("Primary-only NVDA must survive the merge")
	}
}

func TestMergePreservesPrimaryOrder(t *testing.T) {
	primary := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"ticker": "NVDA"},
			map[string]interface{}{"ticker": "AAPL"},
		},
	}
	secondary := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"ticker": "MSFT"},
		},
	}

	items := Merge(primary, secondary)["items"].([]interface{})

	order := []string{}
	for _, it := range items {
		order = append(order, it.(map[string]interface{})["ticker"].(string))
	}
	want := []string{"NVDA", "AAPL", "MSFT"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Expected order %v, got %v", want, order)
		}
	}
}

func TestMergeStringListsKeepPrimary(t *testing.T) {
	// String-element lists carry no ticker key; the primary list stands
	primary := map[string]interface{}{
		"into_sectors": []interface{}{"Technology", "Industrials"},
	}
	secondary := map[string]interface{}{
		"into_sectors": []interface{}{"Utilities"},
	}

	sectors := Merge(primary, secondary)["into_sectors"].([]interface{})
	if len(sectors) != 2 {
		t.Fatalf("Untagged secondary elements must be dropped, got %v", sectors)
	}
}
