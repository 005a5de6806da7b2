package normalize

import (
	"fmt"
	"sort"
)

// Statistics counts the well-formed nodes found during validation.
type Statistics struct {
	EpicsCount    int `json:"epics_count"`
	StoriesCount  int `json:"stories_count"`
	SubtasksCount int `json:"subtasks_count"`
	TotalHours    int `json:"total_hours"`
}

// Report is the outcome of validating a decomposition payload. Errors
// mean the payload is structurally unusable; warnings flag gaps the
// normalizer would paper over.
type Report struct {
	IsValid    bool       `json:"is_valid"`
	Errors     []string   `json:"errors"`
	Warnings   []string   `json:"warnings"`
	Statistics Statistics `json:"statistics"`
}

var (
	epicDisplayFields  = []string{"id", "title", "description", "priority"}
	storyDisplayFields = []string{"id", "title", "description", "priority", "acceptance_criteria", "subtasks"}
	taskDisplayFields  = []string{"id", "title", "description", "priority"}
)

// Validate inspects a decoded decomposition payload without modifying it
// and reports structural errors, missing display fields, and duplicate
// IDs across the whole tree.
func Validate(parsed interface{}) Report {
	report := Report{Errors: []string{}, Warnings: []string{}}

	root, ok := parsed.(map[string]interface{})
	if !ok {
		report.Errors = append(report.Errors, "root object is not an object")
		return report
	}
	rawEpics, ok := root["epics"]
	if !ok {
		report.Errors = append(report.Errors, "missing required field: epics")
		return report
	}
	epics, ok := rawEpics.([]interface{})
	if !ok {
		report.Errors = append(report.Errors, "epics is not a list")
		return report
	}

	// Entries that are not objects are skipped silently; reporting them
	// belongs to normalization, not validation.
	ids := map[string]int{}
	for i, rawEpic := range epics {
		epic, ok := rawEpic.(map[string]interface{})
		if !ok {
			continue
		}
		report.Statistics.EpicsCount++
		report.Warnings = append(report.Warnings,
			missingFields(epic, epicDisplayFields, fmt.Sprintf("epic %d", i+1))...)
		recordID(ids, epic)

		for j, rawStory := range asItems(epic["stories"]) {
			story, ok := rawStory.(map[string]interface{})
			if !ok {
				continue
			}
			report.Statistics.StoriesCount++
			report.Warnings = append(report.Warnings,
				missingFields(story, storyDisplayFields, fmt.Sprintf("epic %d story %d", i+1, j+1))...)
			recordID(ids, story)

			for k, rawTask := range asItems(story["subtasks"]) {
				task, ok := rawTask.(map[string]interface{})
				if !ok {
					continue
				}
				report.Statistics.SubtasksCount++
				report.Warnings = append(report.Warnings,
					missingFields(task, taskDisplayFields,
						fmt.Sprintf("epic %d story %d subtask %d", i+1, j+1, k+1))...)
				recordID(ids, task)
				report.Statistics.TotalHours += CoerceInt(task["estimated_hours"], 0)
			}
		}
	}

	if report.Statistics.EpicsCount == 0 {
		report.Warnings = append(report.Warnings, "decomposition contains no epics")
	}
	if report.Statistics.TotalHours == 0 {
		report.Warnings = append(report.Warnings, "decomposition carries no estimated hours")
	}
	if dupes := duplicateIDs(ids); len(dupes) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("duplicate ids: %v", dupes))
	}

	report.IsValid = len(report.Errors) == 0
	return report
}

func missingFields(node map[string]interface{}, fields []string, label string) []string {
	var out []string
	for _, field := range fields {
		if v, ok := node[field]; !ok || v == nil {
			out = append(out, fmt.Sprintf("%s missing field: %s", label, field))
		}
	}
	return out
}

func recordID(ids map[string]int, node map[string]interface{}) {
	if id := stringField(node, "id"); id != "" {
		ids[id]++
	}
}

func duplicateIDs(ids map[string]int) []string {
	var dupes []string
	for id, count := range ids {
		if count > 1 {
			dupes = append(dupes, id)
		}
	}
	sort.Strings(dupes)
	return dupes
}
