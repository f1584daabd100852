package view

import (
	"time"

	"github.com/dohr-michael/priomatrix/internal/calendar"
	"github.com/dohr-michael/priomatrix/internal/tasks"
)

// Item is a task surfaced by a view together with the status resolved for it.
type Item struct {
	Task   tasks.Task   `json:"task"`
	Status tasks.Status `json:"status"`
}

// Filter returns the tasks visible at granularity g around anchor, each with
// its status resolved at anchor. Collection order is preserved.
func Filter(all []tasks.Task, g Granularity, anchor time.Time, weekStart time.Weekday) []Item {
	iv := IntervalFor(g, anchor, weekStart)
	items := make([]Item, 0, len(all))
	for i := range all {
		t := &all[i]
		if !Matches(t, g, iv) {
			continue
		}
		items = append(items, Item{Task: t.Clone(), Status: tasks.StatusOn(t, anchor)})
	}
	return items
}

// Cell is one day of the calendar grid.
type Cell struct {
	Date  string `json:"date"`
	Items []Item `json:"items"`
}

// Calendar lays the visible tasks out one cell per day of the interval. Each
// marker's status is resolved at its own cell date.
func Calendar(all []tasks.Task, g Granularity, anchor time.Time, weekStart time.Weekday) []Cell {
	iv := IntervalFor(g, anchor, weekStart)

	var visible []*tasks.Task
	for i := range all {
		if Matches(&all[i], g, iv) {
			visible = append(visible, &all[i])
		}
	}

	days := iv.Days()
	cells := make([]Cell, 0, len(days))
	for _, d := range days {
		cell := Cell{Date: calendar.FormatDate(d), Items: []Item{}}
		for _, t := range visible {
			if tasks.IsActiveOn(t, d) {
				cell.Items = append(cell.Items, Item{Task: t.Clone(), Status: tasks.StatusOn(t, d)})
			}
		}
		cells = append(cells, cell)
	}
	return cells
}
