package fingerprint

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	tableRefRe = regexp.MustCompile(`(?i)\b(?:FROM|JOIN|INTO|UPDATE|TABLE)\s+` + "`?" + `([a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z_][a-zA-Z0-9_]*){0,2})` + "`?")
	dbtHeaderRe = regexp.MustCompile(`(?s)^\s*/\*\s*(\{.*?\})\s*\*/`)
)

// ExtractTables returns the distinct table names referenced by sql, in
// first-seen order. This is intentionally lightweight text scanning, not SQL
// parsing: derived tables and CTE aliases can slip through and callers must
// treat the result as a hint.
func ExtractTables(sql string) []string {
	matches := tableRefRe.FindAllStringSubmatch(sql, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.ToLower(m[1])
		if isKeyword(name) {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		tables = append(tables, name)
	}
	return tables
}

// common words that follow FROM/JOIN in non-table positions
func isKeyword(name string) bool {
	switch name {
	case "select", "lateral", "unnest", "values", "dual":
		return true
	}
	return false
}

type dbtHeader struct {
	App         string `json:"app"`
	NodeID      string `json:"node_id"`
	ProfileName string `json:"profile_name"`
	TargetName  string `json:"target_name"`
}

// DBTMetadata parses the JSON comment header dbt prepends to generated
// statements. Returns node id, profile and target; ok is false when the
// query carries no dbt header.
func DBTMetadata(sql string) (nodeID, project, target string, ok bool) {
	m := dbtHeaderRe.FindStringSubmatch(sql)
	if m == nil {
		return "", "", "", false
	}

	var hdr dbtHeader
	if err := json.Unmarshal([]byte(m[1]), &hdr); err != nil {
		return "", "", "", false
	}
	if !strings.EqualFold(hdr.App, "dbt") {
		return "", "", "", false
	}
	return hdr.NodeID, hdr.ProfileName, hdr.TargetName, true
}
