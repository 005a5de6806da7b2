package normalize

import "brd-decomposer/internal/models"

// Summary converts a decoded summary payload into a DocumentSummary,
// tolerating missing fields and a scope given as an in/out object instead
// of a flat list.
func Summary(data map[string]interface{}) models.DocumentSummary {
	return models.DocumentSummary{
		ProjectName:           stringFieldOr(data, "Unknown Project", "project_name"),
		ProjectDescription:    stringField(data, "project_description"),
		Objectives:            CoerceStringList(data["objectives"]),
		Scope:                 scopeList(data["scope"]),
		Stakeholders:          CoerceStringList(data["stakeholders"]),
		KeyFeatures:           CoerceStringList(data["key_features"]),
		TechnicalRequirements: CoerceStringList(data["technical_requirements"]),
		TimelineEstimate:      stringFieldOr(data, "Unknown", "timeline_estimate"),
		Risks:                 CoerceStringList(data["risks"]),
		Assumptions:           CoerceStringList(data["assumptions"]),
	}
}

// scopeList flattens a scope object of the form
// {"in_scope": [...], "out_of_scope": [...]} into a single list, marking
// out-of-scope entries with a prefix. Flat lists and scalars pass through
// CoerceStringList unchanged.
func scopeList(v interface{}) []string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return CoerceStringList(v)
	}
	out := CoerceStringList(m["in_scope"])
	for _, item := range CoerceStringList(m["out_of_scope"]) {
		out = append(out, "Out of scope: "+item)
	}
	return out
}
