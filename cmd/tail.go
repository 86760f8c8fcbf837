package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/marcus/worklog/internal/authgate"
	"github.com/marcus/worklog/internal/logview"
	"github.com/marcus/worklog/internal/models"
	"github.com/marcus/worklog/internal/output"
	"github.com/spf13/cobra"
)

var dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

var tailCmd = &cobra.Command{
	Use:     "tail",
	Short:   "Print the log, then follow changes as they happen",
	GroupID: "records",
	Long: `Print every entry in the log, then one line per change until interrupted.

Examples:
  worklog tail          # Follow the shared log
  worklog tail --json   # One change event per line, as JSON`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c := newClient(cmd)
		if err := c.provider.Restore(ctx); err != nil {
			output.Error("%v", err)
			return err
		}
		if !c.provider.Session().IsAuthenticated() {
			output.Error("%v", errNotSignedIn)
			return errNotSignedIn
		}

		poller := c.poller()
		defer poller.Close()

		view := &lineView{w: os.Stdout, json: jsonOut}
		sync := logview.New(poller, view, models.CollectionLogs)
		sync.OnError = func(err error) { output.Warning("%v", err) }
		defer sync.Stop()

		gate := authgate.New(view, sync)
		gate.OnError = func(err error) { output.Error("%v", err) }
		unsubscribe := c.provider.OnSessionChange(gate.Handle)
		defer unsubscribe()

		if !gate.Active() {
			return fmt.Errorf("could not subscribe to %s", models.CollectionLogs)
		}
		<-ctx.Done()
		return nil
	},
}

// lineView prints each row change as a line instead of keeping rows.
type lineView struct {
	w    io.Writer
	json bool
	seen int
}

func (v *lineView) AppendRow(rec models.LogRecord) logview.Row {
	v.print(models.ChangeEvent{Kind: models.ChangeAdded, Record: rec})
	r := rec
	return &r
}

func (v *lineView) UpdateRow(row logview.Row, rec models.LogRecord) {
	*row.(*models.LogRecord) = rec
	v.print(models.ChangeEvent{Kind: models.ChangeModified, Record: rec})
}

func (v *lineView) RemoveRow(row logview.Row) {
	v.print(models.ChangeEvent{Kind: models.ChangeRemoved, Record: *row.(*models.LogRecord)})
}

// ShowPlaceholder prints only once rows have been seen, so an empty log
// stays quiet at startup.
func (v *lineView) ShowPlaceholder(text string) {
	if !v.json && v.seen > 0 {
		fmt.Fprintln(v.w, dimStyle.Render("("+text+")"))
	}
}

func (v *lineView) ClearPlaceholder() {}

func (v *lineView) SetLoggedIn(bool) {}

func (v *lineView) print(ev models.ChangeEvent) {
	v.seen++
	if v.json {
		data, _ := json.Marshal(ev)
		fmt.Fprintln(v.w, string(data))
		return
	}
	fmt.Fprintln(v.w, output.FormatChange(ev))
}

func init() {
	tailCmd.Flags().Bool("json", false, "print change events as JSON lines")
	rootCmd.AddCommand(tailCmd)
}
