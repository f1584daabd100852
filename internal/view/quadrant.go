package view

import (
	"fmt"
	"strings"

	"github.com/dohr-michael/priomatrix/internal/tasks"
)

// Quadrant is one cell of the urgency/importance matrix.
type Quadrant string

const (
	QuadrantDo        Quadrant = "Do"
	QuadrantSchedule  Quadrant = "Schedule"
	QuadrantDelegate  Quadrant = "Delegate"
	QuadrantEliminate Quadrant = "Eliminate"
)

// QuadrantOrder is the display order of the matrix.
var QuadrantOrder = []Quadrant{QuadrantDo, QuadrantSchedule, QuadrantDelegate, QuadrantEliminate}

// QuadrantOf places an urgency/importance pair.
func QuadrantOf(urgency, importance tasks.Level) Quadrant {
	switch {
	case urgency == tasks.LevelHigh && importance == tasks.LevelHigh:
		return QuadrantDo
	case importance == tasks.LevelHigh:
		return QuadrantSchedule
	case urgency == tasks.LevelHigh:
		return QuadrantDelegate
	default:
		return QuadrantEliminate
	}
}

// Levels returns the urgency/importance pair that a quadrant stands for, the
// seed for a task created from that quadrant.
func (q Quadrant) Levels() (urgency, importance tasks.Level) {
	switch q {
	case QuadrantDo:
		return tasks.LevelHigh, tasks.LevelHigh
	case QuadrantSchedule:
		return tasks.LevelLow, tasks.LevelHigh
	case QuadrantDelegate:
		return tasks.LevelHigh, tasks.LevelLow
	default:
		return tasks.LevelLow, tasks.LevelLow
	}
}

// Quadrants groups items by matrix cell. Every quadrant is present, possibly empty.
func Quadrants(items []Item) map[Quadrant][]Item {
	out := make(map[Quadrant][]Item, len(QuadrantOrder))
	for _, q := range QuadrantOrder {
		out[q] = []Item{}
	}
	for _, it := range items {
		q := QuadrantOf(it.Task.Urgency, it.Task.Importance)
		out[q] = append(out[q], it)
	}
	return out
}

// ParseQuadrant matches a quadrant name case-insensitively.
func ParseQuadrant(s string) (Quadrant, error) {
	for _, q := range QuadrantOrder {
		if strings.EqualFold(strings.TrimSpace(s), string(q)) {
			return q, nil
		}
	}
	return "", fmt.Errorf("unknown quadrant %q (want do, schedule, delegate or eliminate)", s)
}
