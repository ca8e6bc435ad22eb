package chunker

import "encoding/json"

// mergeTaintFindings reproduces the taint_analysis special case: its
// findings are split across several keys (taint_paths,
// all_rule_findings, infrastructure_issues, paths, vulnerabilities),
// some of which duplicate each other. Each item is tagged with the key
// it came from and everything is merged into one "merged_findings"
// list so the generic dict chunker has a single list to chunk,
// without losing or duplicating facts across the source keys.
func mergeTaintFindings(data map[string]interface{}) map[string]interface{} {
	_, hasPaths := data["taint_paths"]
	_, hasRuleFindings := data["all_rule_findings"]
	if !hasPaths && !hasRuleFindings {
		return data
	}

	var merged []interface{}

	if v, ok := data["taint_paths"].([]interface{}); ok {
		merged = append(merged, tagAll(v, "taint_path")...)
	}
	if v, ok := data["all_rule_findings"].([]interface{}); ok {
		merged = append(merged, tagAll(v, "rule_finding")...)
	}

	if infra, ok := data["infrastructure_issues"].([]interface{}); ok {
		rules, _ := data["all_rule_findings"].([]interface{})
		if !sameItemSet(infra, rules) {
			merged = append(merged, tagAll(infra, "infrastructure")...)
		}
	}

	if paths, ok := data["paths"].([]interface{}); ok {
		taintPaths, _ := data["taint_paths"].([]interface{})
		if !sameItemSet(paths, taintPaths) {
			merged = append(merged, tagAll(paths, "path")...)
		}
	}

	if v, ok := data["vulnerabilities"].([]interface{}); ok {
		merged = append(merged, tagAll(v, "vulnerability")...)
	}

	totalVulns := len(merged)
	if tv, ok := data["total_vulnerabilities"]; ok {
		if n, ok := tv.(float64); ok {
			totalVulns = int(n)
		}
	}

	return map[string]interface{}{
		"success":               data["success"],
		"summary":               data["summary"],
		"total_vulnerabilities": totalVulns,
		"sources_found":         data["sources_found"],
		"sinks_found":           data["sinks_found"],
		"merged_findings":       merged,
	}
}

// tagAll stamps finding_type onto a copy of each item so the merge
// remains traceable to its originating key.
func tagAll(items []interface{}, findingType string) []interface{} {
	tagged := make([]interface{}, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			tagged[i] = item
			continue
		}
		cp := make(map[string]interface{}, len(m)+1)
		for k, v := range m {
			cp[k] = v
		}
		cp["finding_type"] = findingType
		tagged[i] = cp
	}
	return tagged
}

// sameItemSet compares two item lists for set-equality by canonical
// JSON encoding, mirroring the original's sorted-keys comparison used
// to skip adding a list that's just a duplicate of one already merged.
func sameItemSet(a, b []interface{}) bool {
	setA, err := canonicalSet(a)
	if err != nil {
		return false
	}
	setB, err := canonicalSet(b)
	if err != nil {
		return false
	}
	if len(setA) != len(setB) {
		return false
	}
	for k := range setA {
		if !setB[k] {
			return false
		}
	}
	return true
}

// canonicalSet encodes each item to JSON for set comparison. Go's
// encoding/json sorts map[string]interface{} keys when marshaling, so
// this gives the same canonical form as Python's
// json.dumps(item, sort_keys=True) without a separate normalization pass.
func canonicalSet(items []interface{}) (map[string]bool, error) {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		set[string(data)] = true
	}
	return set, nil
}
