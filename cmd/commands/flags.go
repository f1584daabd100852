package commands

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/priomatrix/internal/calendar"
	"github.com/dohr-michael/priomatrix/internal/tasks"
)

// fieldFlags are the editable task fields shared by add and edit.
func fieldFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Task title"},
		&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Free-text description"},
		&cli.StringFlag{Name: "urgency", Aliases: []string{"u"}, Usage: "High or Low"},
		&cli.StringFlag{Name: "importance", Aliases: []string{"i"}, Usage: "High or Low"},
		&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "TODO, IN_PROGRESS or DONE"},
		&cli.StringFlag{Name: "date", Usage: "Anchor date (YYYY-MM-DD)"},
		&cli.StringFlag{Name: "frequency", Aliases: []string{"f"}, Usage: "None, Daily, Weekly, Monthly or Yearly"},
	}
}

// patchFromFlags builds a patch holding only the flags that were set.
func patchFromFlags(cmd *cli.Command) (tasks.Patch, error) {
	var p tasks.Patch
	if cmd.IsSet("title") {
		p.Title = tasks.Ptr(cmd.String("title"))
	}
	if cmd.IsSet("description") {
		p.Description = tasks.Ptr(cmd.String("description"))
	}
	if cmd.IsSet("urgency") {
		l, err := tasks.ParseLevel(cmd.String("urgency"))
		if err != nil {
			return p, err
		}
		p.Urgency = &l
	}
	if cmd.IsSet("importance") {
		l, err := tasks.ParseLevel(cmd.String("importance"))
		if err != nil {
			return p, err
		}
		p.Importance = &l
	}
	if cmd.IsSet("status") {
		s, err := tasks.ParseStatus(cmd.String("status"))
		if err != nil {
			return p, err
		}
		p.Status = &s
	}
	if cmd.IsSet("date") {
		d, err := calendar.ParseDate(cmd.String("date"))
		if err != nil {
			return p, err
		}
		p.Date = tasks.Ptr(calendar.FormatDate(d))
	}
	if cmd.IsSet("frequency") {
		f, err := calendar.ParseFrequency(cmd.String("frequency"))
		if err != nil {
			return p, err
		}
		p.Frequency = &f
	}
	return p, nil
}

// dateFlag parses a YYYY-MM-DD flag, defaulting to today.
func dateFlag(cmd *cli.Command, name string) (time.Time, error) {
	if !cmd.IsSet(name) {
		return calendar.StartOfDay(time.Now()), nil
	}
	d, err := calendar.ParseDate(cmd.String(name))
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

// requireID returns the first positional argument.
func requireID(cmd *cli.Command, usage string) (string, error) {
	id := cmd.Args().First()
	if id == "" {
		return "", fmt.Errorf("usage: priomatrix %s", usage)
	}
	return id, nil
}
