package normalize

import (
	"fmt"

	"go.uber.org/zap"

	"brd-decomposer/internal/models"
)

// wrapperKeys are envelope keys models sometimes nest the real payload
// under. Unwrapping happens only when the root has no epics of its own.
var wrapperKeys = []string{"data", "result", "decomposition", "payload"}

// Normalizer walks loosely-typed decomposition payloads into the canonical
// epic/story/subtask hierarchy. It never fails: malformed nodes are
// skipped and recorded as warnings on the result.
type Normalizer struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// Decomposition converts a decoded JSON value into a complete
// RequirementsDecomposition. Missing IDs and titles are synthesized,
// priorities, statuses, and hours coerced, and per-level hour totals
// rolled up when absent.
func (n *Normalizer) Decomposition(obj interface{}) models.RequirementsDecomposition {
	root, ok := obj.(map[string]interface{})
	if !ok {
		n.logger.Warn("decomposition payload is not an object",
			zap.String("type", fmt.Sprintf("%T", obj)))
		return models.RequirementsDecomposition{
			Epics:         []models.Epic{},
			TimelineWeeks: 1,
			Warnings:      []string{"object_not_dict"},
		}
	}
	root = unwrapEnvelope(root)

	var defects []string
	epics := []models.Epic{}
	for i, item := range asItems(root["epics"]) {
		m, ok := item.(map[string]interface{})
		if !ok {
			n.logger.Warn("skipping malformed epic",
				zap.Int("index", i), zap.String("type", fmt.Sprintf("%T", item)))
			defects = append(defects, fmt.Sprintf("skipped malformed epic at index %d", i))
			continue
		}
		epics = append(epics, n.epic(m, i, &defects))
	}

	sum := 0
	for _, e := range epics {
		sum += e.EstimatedHours
	}
	total := CoerceInt(root["total_estimated_hours"], sum)

	weeks := CoerceInt(root["timeline_weeks"], 0)
	if weeks < 1 {
		weeks = EstimateWeeks(total)
	}

	warnings := CoerceStringList(root["warnings"])
	warnings = append(warnings, defects...)

	return models.RequirementsDecomposition{
		Epics:               epics,
		TotalEstimatedHours: total,
		TimelineWeeks:       weeks,
		Notes:               stringField(root, "notes", "summary"),
		Warnings:            warnings,
	}
}

func (n *Normalizer) epic(m map[string]interface{}, index int, defects *[]string) models.Epic {
	stories := []models.Story{}
	for i, item := range asItems(m["stories"]) {
		sm, ok := item.(map[string]interface{})
		if !ok {
			n.logger.Warn("skipping malformed story",
				zap.Int("epic", index), zap.Int("index", i),
				zap.String("type", fmt.Sprintf("%T", item)))
			*defects = append(*defects,
				fmt.Sprintf("epic %d: skipped malformed story at index %d", index+1, i))
			continue
		}
		stories = append(stories, n.story(sm, index, i, defects))
	}

	sum := 0
	for _, s := range stories {
		sum += s.EstimatedHours
	}

	return models.Epic{
		ID:             stringFieldOr(m, fmt.Sprintf("EPIC-%d", index+1), "id", "epic_id"),
		Title:          stringFieldOr(m, "Untitled Epic", "title", "name"),
		Description:    stringField(m, "description", "details"),
		Priority:       CoercePriority(m["priority"]),
		EstimatedHours: CoerceInt(m["estimated_hours"], sum),
		Assignee:       stringField(m, "assignee"),
		Status:         CoerceStatus(m["status"]),
		Stories:        stories,
	}
}

func (n *Normalizer) story(m map[string]interface{}, epicIndex, index int, defects *[]string) models.Story {
	subtasks := []models.Subtask{}
	for i, item := range asItems(m["subtasks"]) {
		tm, ok := item.(map[string]interface{})
		if !ok {
			n.logger.Warn("skipping malformed subtask",
				zap.Int("epic", epicIndex), zap.Int("story", index), zap.Int("index", i),
				zap.String("type", fmt.Sprintf("%T", item)))
			*defects = append(*defects,
				fmt.Sprintf("epic %d story %d: skipped malformed subtask at index %d",
					epicIndex+1, index+1, i))
			continue
		}
		subtasks = append(subtasks, n.subtask(tm, i))
	}

	sum := 0
	for _, st := range subtasks {
		sum += st.EstimatedHours
	}

	return models.Story{
		ID:                 stringFieldOr(m, fmt.Sprintf("STORY-%d", index+1), "id", "story_id"),
		Title:              stringFieldOr(m, "Untitled Story", "title", "name"),
		Description:        stringField(m, "description", "details"),
		AcceptanceCriteria: CoerceStringList(m["acceptance_criteria"]),
		Priority:           CoercePriority(m["priority"]),
		EstimatedHours:     CoerceInt(m["estimated_hours"], sum),
		Assignee:           stringField(m, "assignee"),
		Status:             CoerceStatus(m["status"]),
		Subtasks:           subtasks,
	}
}

func (n *Normalizer) subtask(m map[string]interface{}, index int) models.Subtask {
	return models.Subtask{
		ID:             stringFieldOr(m, fmt.Sprintf("SUBTASK-%d", index+1), "id", "task_id"),
		Title:          stringFieldOr(m, "Untitled Subtask", "title", "name"),
		Description:    stringField(m, "description", "details"),
		Priority:       CoercePriority(m["priority"]),
		EstimatedHours: CoerceInt(m["estimated_hours"], 0),
		Assignee:       stringField(m, "assignee"),
		Status:         CoerceStatus(m["status"]),
	}
}

// unwrapEnvelope descends into a wrapper object when the payload was
// nested under a generic key and the root itself carries no epics.
func unwrapEnvelope(root map[string]interface{}) map[string]interface{} {
	if _, ok := root["epics"]; ok {
		return root
	}
	for _, key := range wrapperKeys {
		if inner, ok := root[key].(map[string]interface{}); ok {
			if _, ok := inner["epics"]; ok {
				return inner
			}
		}
	}
	return root
}

// asItems views a value as a list of child nodes: lists pass through, a
// single object becomes a one-element list, anything else is empty.
func asItems(v interface{}) []interface{} {
	switch items := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return items
	case map[string]interface{}:
		return []interface{}{items}
	default:
		return nil
	}
}

// EstimateWeeks derives a timeline from total hours at a 40-hour week,
// never less than one week.
func EstimateWeeks(totalHours int) int {
	if totalHours <= 0 {
		return 1
	}
	return (totalHours + 39) / 40
}
