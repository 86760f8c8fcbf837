package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/marcus/worklog/internal/dateparse"
	"github.com/marcus/worklog/internal/input"
	"github.com/marcus/worklog/internal/models"
	"github.com/marcus/worklog/internal/output"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:     "add <name> <time>",
	Short:   "Add an entry to the log",
	GroupID: "records",
	Example: `  worklog add "code review" 45m
  worklog add "incident follow-up" "1h 30m"
  worklog add --batch @today.txt        # one "NAME | TIME" per line
  printf 'standup | 15m\n' | worklog add --batch -`,
	Args: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("batch") {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		var records []models.LogRecord
		if cmd.Flags().Changed("batch") {
			values, _ := cmd.Flags().GetStringArray("batch")
			lines, _ := input.ExpandFlagValues(values, false)
			for _, line := range lines {
				rec, err := input.ParseRecordLine(line)
				if err != nil {
					output.Error("%v", err)
					return err
				}
				records = append(records, rec)
			}
			if len(records) == 0 {
				return fmt.Errorf("no entries to add")
			}
		} else {
			rec := models.LogRecord{Name: args[0], Time: args[1]}.Normalize()
			if err := rec.Validate(); err != nil {
				output.Error("%v", err)
				return err
			}
			records = append(records, rec)
		}

		ctx, cancel := withTimeout(cmd)
		defer cancel()
		api, _, err := newClient(cmd).authed(ctx)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		for i, rec := range records {
			created, err := api.AddRecord(ctx, models.CollectionLogs, rec)
			if err != nil {
				output.Error("add %q: %v", rec.Name, err)
				if i > 0 {
					output.Warning("%d of %d entries were added", i, len(records))
				}
				return err
			}
			fmt.Printf("ADDED %s\n", output.FormatRecordShort(*created))
		}
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:     "edit <id> [--name NAME] [--time TIME]",
	Short:   "Change an entry's name or time",
	GroupID: "records",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		timeStr, _ := cmd.Flags().GetString("time")
		if !cmd.Flags().Changed("name") && !cmd.Flags().Changed("time") {
			return fmt.Errorf("nothing to change (use --name or --time)")
		}

		ctx, cancel := withTimeout(cmd)
		defer cancel()
		api, _, err := newClient(cmd).authed(ctx)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		rec, err := resolveID(ctx, api, args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if cmd.Flags().Changed("name") {
			rec.Name = name
		}
		if cmd.Flags().Changed("time") {
			rec.Time = timeStr
		}
		rec = rec.Normalize()
		if err := rec.Validate(); err != nil {
			output.Error("%v", err)
			return err
		}

		updated, err := api.UpdateRecord(ctx, models.CollectionLogs, rec)
		if err != nil {
			output.Error("edit: %v", err)
			return err
		}
		fmt.Printf("UPDATED %s\n", output.FormatRecordShort(*updated))
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <id>...",
	Aliases: []string{"delete"},
	Short:   "Remove entries from the log",
	GroupID: "records",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := withTimeout(cmd)
		defer cancel()
		api, _, err := newClient(cmd).authed(ctx)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		var failed int
		for _, prefix := range args {
			rec, err := resolveID(ctx, api, prefix)
			if err != nil {
				output.Error("%v", err)
				failed++
				continue
			}
			if err := api.DeleteRecord(ctx, models.CollectionLogs, rec.ID); err != nil {
				output.Error("failed to remove %s: %v", output.ShortID(rec.ID), err)
				failed++
				continue
			}
			fmt.Printf("REMOVED %s %s\n", output.ShortID(rec.ID), rec.Name)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d removals failed", failed, len(args))
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List entries in the log",
	GroupID: "records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := withTimeout(cmd)
		defer cancel()
		api, _, err := newClient(cmd).authed(ctx)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		snap, err := api.Snapshot(ctx, models.CollectionLogs)
		if err != nil {
			output.Error("list: %v", err)
			return err
		}

		records := snap.Records
		if match, _ := cmd.Flags().GetString("match"); match != "" {
			records = filterRecords(records, match)
		}
		if since, _ := cmd.Flags().GetString("since"); since != "" {
			start, err := dateparse.ParseSince(since, time.Now())
			if err != nil {
				output.Error("%v", err)
				return err
			}
			records = recordsSince(records, start)
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(records)
		}
		if len(records) == 0 {
			fmt.Println("No entries.")
			return nil
		}

		long, _ := cmd.Flags().GetBool("long")
		for _, rec := range records {
			if long {
				fmt.Println(output.FormatRecordLong(rec))
				continue
			}
			line := output.FormatRecordShort(rec)
			if !rec.CreatedAt.IsZero() {
				line += "  " + output.FormatTimeAgo(rec.CreatedAt)
			}
			fmt.Println(line)
		}
		return nil
	},
}

// filterRecords keeps records whose name contains match, ignoring case.
func filterRecords(records []models.LogRecord, match string) []models.LogRecord {
	match = strings.ToLower(match)
	var out []models.LogRecord
	for _, rec := range records {
		if strings.Contains(strings.ToLower(rec.Name), match) {
			out = append(out, rec)
		}
	}
	return out
}

// recordsSince keeps records created at or after start.
func recordsSince(records []models.LogRecord, start time.Time) []models.LogRecord {
	var out []models.LogRecord
	for _, rec := range records {
		if !rec.CreatedAt.Before(start) {
			out = append(out, rec)
		}
	}
	return out
}

func init() {
	addCmd.Flags().StringArray("batch", nil, "add entries from a value, a file (@path) or stdin (-)")

	editCmd.Flags().String("name", "", "new name")
	editCmd.Flags().String("time", "", "new time")

	listCmd.Flags().BoolP("long", "l", false, "show entry details")
	listCmd.Flags().Bool("json", false, "JSON output")
	listCmd.Flags().StringP("match", "m", "", "only entries whose name contains this text")
	listCmd.Flags().String("since", "", "only entries created since a day (today, yesterday, 3d, 2w, monday, 2026-03-01)")

	rootCmd.AddCommand(addCmd, editCmd, rmCmd, listCmd)
}
