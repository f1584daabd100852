package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/priomatrix/internal/calendar"
	"github.com/dohr-michael/priomatrix/internal/events"
	"github.com/dohr-michael/priomatrix/internal/storage"
	"github.com/dohr-michael/priomatrix/internal/tasks"
	"github.com/dohr-michael/priomatrix/internal/view"
)

// NewAddCommand returns the add subcommand.
func NewAddCommand() *cli.Command {
	flags := append(fieldFlags(),
		&cli.StringFlag{Name: "quadrant", Aliases: []string{"q"}, Usage: "Seed urgency/importance from a quadrant (do, schedule, delegate, eliminate)"},
	)
	return &cli.Command{
		Name:      "add",
		Usage:     "Create a task",
		ArgsUsage: "[title]",
		Flags:     flags,
		Action:    runAdd,
	}
}

func runAdd(ctx context.Context, cmd *cli.Command) error {
	p, err := patchFromFlags(cmd)
	if err != nil {
		return err
	}
	if p.Title == nil && cmd.Args().Len() > 0 {
		p.Title = tasks.Ptr(strings.Join(cmd.Args().Slice(), " "))
	}
	if cmd.IsSet("quadrant") {
		q, err := view.ParseQuadrant(cmd.String("quadrant"))
		if err != nil {
			return err
		}
		u, i := q.Levels()
		if p.Urgency == nil {
			p.Urgency = &u
		}
		if p.Importance == nil {
			p.Importance = &i
		}
	}

	ctx, a, err := openApp(ctx, cmd, events.SourceCLI)
	if err != nil {
		return err
	}
	defer a.Close()

	t, _, err := a.engine.Create(ctx, p, a.engine.Now())
	if err != nil {
		return err
	}
	fmt.Printf("Created %s (%s, %s)\n", t.ID, t.Title, view.QuadrantOf(t.Urgency, t.Importance))
	return nil
}

// NewEditCommand returns the edit subcommand.
func NewEditCommand() *cli.Command {
	flags := append(fieldFlags(),
		&cli.StringFlag{Name: "on", Usage: "Occurrence being edited (YYYY-MM-DD, default today)"},
		&cli.BoolFlag{Name: "record", Usage: "Record --status for the occurrence's period of a recurring task"},
	)
	return &cli.Command{
		Name:      "edit",
		Usage:     "Change fields of a task",
		ArgsUsage: "<task_id>",
		Flags:     flags,
		Action:    runEdit,
	}
}

func runEdit(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd, "edit <task_id> [flags]")
	if err != nil {
		return err
	}
	p, err := patchFromFlags(cmd)
	if err != nil {
		return err
	}
	if p.IsEmpty() {
		return errors.New("nothing to change")
	}
	on, err := dateFlag(cmd, "on")
	if err != nil {
		return err
	}

	ctx, a, err := openApp(ctx, cmd, events.SourceCLI)
	if err != nil {
		return err
	}
	defer a.Close()

	current, err := a.engine.Get(id)
	if err != nil {
		return err
	}
	if p.Frequency != nil && p.Date == nil {
		proposed := tasks.ProposeAnchor(current.Frequency, *p.Frequency, current.Date, a.engine.Now(), a.cfg.Calendar.WeekStartDay())
		if proposed != current.Date {
			p.Date = &proposed
		}
	}

	t, _, err := a.engine.Update(ctx, id, p, tasks.SaveOptions{ContextDate: on, RecordCompletion: cmd.Bool("record")})
	if err != nil {
		return err
	}
	fmt.Printf("Updated %s (%d change(s) recorded)\n", t.ID, len(t.History)-len(current.History))
	return nil
}

// NewListCommand returns the list subcommand.
func NewListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List tasks visible in a view",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "view", Aliases: []string{"v"}, Usage: "day, week, month or year", Value: "day"},
			&cli.StringFlag{Name: "date", Usage: "Anchor date (YYYY-MM-DD, default today)"},
			&cli.BoolFlag{Name: "matrix", Aliases: []string{"m"}, Usage: "Group by quadrant"},
		},
		Action: runList,
	}
}

func runList(ctx context.Context, cmd *cli.Command) error {
	g, err := view.ParseGranularity(cmd.String("view"))
	if err != nil {
		return err
	}
	anchor, err := dateFlag(cmd, "date")
	if err != nil {
		return err
	}

	_, a, err := openApp(ctx, cmd, events.SourceCLI)
	if err != nil {
		return err
	}
	defer a.Close()

	items := view.Filter(a.engine.Snapshot().Tasks, g, anchor, a.cfg.Calendar.WeekStartDay())
	if len(items) == 0 {
		fmt.Printf("No tasks for %s %s.\n", g, calendar.FormatDate(anchor))
		return nil
	}

	if !cmd.Bool("matrix") {
		return printItems(items)
	}
	groups := view.Quadrants(items)
	for i, q := range view.QuadrantOrder {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("== %s (%d)\n", q, len(groups[q]))
		if err := printItems(groups[q]); err != nil {
			return err
		}
	}
	return nil
}

func printItems(items []view.Item) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tQUADRANT\tFREQUENCY\tDATE\tTITLE")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			it.Task.ID,
			it.Status,
			view.QuadrantOf(it.Task.Urgency, it.Task.Importance),
			it.Task.Frequency,
			it.Task.Date,
			it.Task.Title,
		)
	}
	return w.Flush()
}

// NewCalendarCommand returns the calendar subcommand.
func NewCalendarCommand() *cli.Command {
	return &cli.Command{
		Name:  "calendar",
		Usage: "Show the day-by-day grid of a view",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "view", Aliases: []string{"v"}, Usage: "day, week, month or year", Value: "week"},
			&cli.StringFlag{Name: "date", Usage: "Anchor date (YYYY-MM-DD, default today)"},
			&cli.BoolFlag{Name: "all", Usage: "Also print days without tasks"},
		},
		Action: runCalendar,
	}
}

func runCalendar(ctx context.Context, cmd *cli.Command) error {
	g, err := view.ParseGranularity(cmd.String("view"))
	if err != nil {
		return err
	}
	anchor, err := dateFlag(cmd, "date")
	if err != nil {
		return err
	}

	_, a, err := openApp(ctx, cmd, events.SourceCLI)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, cell := range view.Calendar(a.engine.Snapshot().Tasks, g, anchor, a.cfg.Calendar.WeekStartDay()) {
		if len(cell.Items) == 0 && !cmd.Bool("all") {
			continue
		}
		d, _ := calendar.ParseDate(cell.Date)
		fmt.Printf("%s %s\n", cell.Date, d.Weekday().String()[:3])
		for _, it := range cell.Items {
			fmt.Printf("  [%s] %s (%s)\n", it.Status, it.Task.Title, it.Task.ID)
		}
	}
	return nil
}

// NewShowCommand returns the show subcommand.
func NewShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show task details",
		ArgsUsage: "<task_id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "on", Usage: "Resolve status for this date (YYYY-MM-DD, default today)"},
			&cli.BoolFlag{Name: "audit", Usage: "Print the audit trail"},
		},
		Action: runShow,
	}
}

func runShow(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd, "show <task_id>")
	if err != nil {
		return err
	}
	on, err := dateFlag(cmd, "on")
	if err != nil {
		return err
	}

	_, a, err := openApp(ctx, cmd, events.SourceCLI)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.engine.Get(id)
	if err != nil {
		return err
	}

	fmt.Printf("ID:          %s\n", t.ID)
	fmt.Printf("Title:       %s\n", t.Title)
	fmt.Printf("Quadrant:    %s (urgency %s, importance %s)\n", view.QuadrantOf(t.Urgency, t.Importance), t.Urgency, t.Importance)
	fmt.Printf("Frequency:   %s\n", t.Frequency)
	fmt.Printf("Date:        %s\n", t.Date)
	fmt.Printf("Created:     %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated:     %s\n", t.UpdatedAt.Format("2006-01-02 15:04:05"))
	if t.CompletedAt != nil {
		fmt.Printf("Completed:   %s\n", t.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	if t.RecurrenceEndedAt != nil {
		fmt.Printf("Ended:       %s\n", t.RecurrenceEndedAt.Format("2006-01-02 15:04:05"))
	}

	fmt.Printf("\nOn %s:  active=%t status=%s\n", calendar.FormatDate(on), tasks.IsActiveOn(&t, on), tasks.StatusOn(&t, on))
	if next, ok := tasks.NextOccurrence(&t, on); ok {
		fmt.Printf("Next:        %s\n", calendar.FormatDate(next))
	}

	if t.Description != "" {
		fmt.Printf("\nDescription:\n%s\n", t.Description)
	}

	if len(t.CompletionHistory) > 0 {
		fmt.Println("\nCompletions:")
		for _, key := range sortedKeys(t.CompletionHistory) {
			fmt.Printf("  %s  %s\n", key, t.CompletionHistory[key])
		}
	}

	if len(t.History) > 0 {
		fmt.Println("\nHistory:")
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, h := range t.History {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%q -> %q\n", h.Timestamp.Format("2006-01-02 15:04"), h.Actor, h.Field, h.OldValue, h.NewValue)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if cmd.Bool("audit") {
		trail, err := storage.ReadTrail(a.cfg.Events.AuditDir, id)
		if err != nil {
			return fmt.Errorf("read audit trail: %w", err)
		}
		fmt.Println("\nAudit:")
		if len(trail) == 0 {
			fmt.Println("  (empty)")
		}
		for _, e := range trail {
			fmt.Printf("  [%s] %s via %s by %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Type, e.Source, e.Actor)
		}
	}
	return nil
}

// NewMoveCommand returns the move subcommand.
func NewMoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "move",
		Usage:     "Move a task to another quadrant",
		ArgsUsage: "<task_id> <quadrant>",
		Action:    runMove,
	}
}

func runMove(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd, "move <task_id> <quadrant>")
	if err != nil {
		return err
	}
	q, err := view.ParseQuadrant(cmd.Args().Get(1))
	if err != nil {
		return err
	}

	ctx, a, err := openApp(ctx, cmd, events.SourceCLI)
	if err != nil {
		return err
	}
	defer a.Close()

	u, i := q.Levels()
	t, _, err := a.engine.Relocate(ctx, id, u, i)
	if err != nil {
		return err
	}
	fmt.Printf("Task %s is in %s.\n", t.ID, q)
	return nil
}

// NewEndCommand returns the end subcommand.
func NewEndCommand() *cli.Command {
	return &cli.Command{
		Name:      "end",
		Usage:     "End a recurring series",
		ArgsUsage: "<task_id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "on", Usage: "Occurrence marked done (YYYY-MM-DD, default today)"},
		},
		Action: runEnd,
	}
}

func runEnd(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd, "end <task_id>")
	if err != nil {
		return err
	}
	on, err := dateFlag(cmd, "on")
	if err != nil {
		return err
	}

	ctx, a, err := openApp(ctx, cmd, events.SourceCLI)
	if err != nil {
		return err
	}
	defer a.Close()

	t, _, err := a.engine.EndSeries(ctx, id, on)
	if err != nil {
		return err
	}
	fmt.Printf("Series %s ended (%s marked done).\n", t.ID, calendar.PeriodKey(on, t.Frequency))
	return nil
}

// NewResumeCommand returns the resume subcommand.
func NewResumeCommand() *cli.Command {
	return &cli.Command{
		Name:      "resume",
		Usage:     "Resume an ended series",
		ArgsUsage: "<task_id>",
		Action:    runResume,
	}
}

func runResume(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd, "resume <task_id>")
	if err != nil {
		return err
	}

	ctx, a, err := openApp(ctx, cmd, events.SourceCLI)
	if err != nil {
		return err
	}
	defer a.Close()

	t, _, err := a.engine.ResumeSeries(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("Series %s resumed.\n", t.ID)
	return nil
}

// NewDeleteCommand returns the delete subcommand.
func NewDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Delete a task",
		ArgsUsage: "<task_id>",
		Action:    runDelete,
	}
}

func runDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd, "delete <task_id>")
	if err != nil {
		return err
	}

	ctx, a, err := openApp(ctx, cmd, events.SourceCLI)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.engine.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Task %s deleted.\n", id)
	return nil
}

// NewNextCommand returns the next subcommand.
func NewNextCommand() *cli.Command {
	return &cli.Command{
		Name:      "next",
		Usage:     "Print the next occurrences of a task",
		ArgsUsage: "<task_id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "after", Usage: "Start after this date (YYYY-MM-DD, default today)"},
			&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Usage: "Number of occurrences", Value: 5},
		},
		Action: runNext,
	}
}

func runNext(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd, "next <task_id>")
	if err != nil {
		return err
	}
	after, err := dateFlag(cmd, "after")
	if err != nil {
		return err
	}

	_, a, err := openApp(ctx, cmd, events.SourceCLI)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.engine.Get(id)
	if err != nil {
		return err
	}
	n := 0
	for ; n < cmd.Int("count"); n++ {
		next, ok := tasks.NextOccurrence(&t, after)
		if !ok {
			break
		}
		fmt.Printf("%s %s\n", calendar.FormatDate(next), tasks.StatusOn(&t, next))
		after = next
	}
	if n == 0 {
		fmt.Println("No upcoming occurrence.")
	}
	return nil
}
