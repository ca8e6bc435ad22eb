package chunker

import "testing"

func TestMergeTaintFindings_CombinesDistinctKeys(t *testing.T) {
	data := map[string]interface{}{
		"success": true,
		"taint_paths": []interface{}{
			map[string]interface{}{"id": 1},
		},
		"all_rule_findings": []interface{}{
			map[string]interface{}{"id": 2},
		},
		"vulnerabilities": []interface{}{
			map[string]interface{}{"id": 3},
		},
	}
	merged := mergeTaintFindings(data)
	items, ok := merged["merged_findings"].([]interface{})
	if !ok {
		t.Fatalf("expected merged_findings list, got %v", merged["merged_findings"])
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 merged items, got %d", len(items))
	}
	for _, item := range items {
		m := item.(map[string]interface{})
		if _, ok := m["finding_type"]; !ok {
			t.Errorf("expected finding_type tag on %v", m)
		}
	}
}

func TestMergeTaintFindings_SkipsDuplicatePathsKey(t *testing.T) {
	path := map[string]interface{}{"id": 1}
	data := map[string]interface{}{
		"taint_paths": []interface{}{path},
		"paths":       []interface{}{map[string]interface{}{"id": float64(1)}},
	}
	merged := mergeTaintFindings(data)
	items := merged["merged_findings"].([]interface{})
	if len(items) != 1 {
		t.Errorf("expected duplicate 'paths' entry to be skipped, got %d items", len(items))
	}
}

func TestMergeTaintFindings_KeepsDistinctPaths(t *testing.T) {
	data := map[string]interface{}{
		"taint_paths": []interface{}{map[string]interface{}{"id": 1}},
		"paths":       []interface{}{map[string]interface{}{"id": 2}},
	}
	merged := mergeTaintFindings(data)
	items := merged["merged_findings"].([]interface{})
	if len(items) != 2 {
		t.Errorf("expected distinct 'paths' entries to be kept, got %d items", len(items))
	}
}

func TestMergeTaintFindings_NoRelevantKeysReturnsUnchanged(t *testing.T) {
	data := map[string]interface{}{"summary": "nothing here"}
	merged := mergeTaintFindings(data)
	if merged["summary"] != "nothing here" {
		t.Errorf("expected data to pass through unchanged, got %v", merged)
	}
	if _, ok := merged["merged_findings"]; ok {
		t.Errorf("expected no merged_findings key when there is nothing to merge")
	}
}
