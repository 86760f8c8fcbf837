package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/marcus/worklog/internal/models"
	"github.com/marcus/worklog/internal/output"
	"github.com/marcus/worklog/internal/syncconfig"
	"github.com/marcus/worklog/internal/tui/monitor"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:     "monitor",
	Aliases: []string{"ui"},
	Short:   "Live TUI of the shared work log",
	Long: `Launch a live-updating TUI showing every entry in the shared log.

Signed out, the view offers log in and sign up. Signed in, entries can be
added, edited and deleted, and changes made anywhere appear immediately.

Run with --keys to print the key reference.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		if keys, _ := cmd.Flags().GetBool("keys"); keys {
			rendered, err := output.RenderMarkdown(monitor.HelpMarkdown)
			if err != nil {
				return err
			}
			fmt.Println(rendered)
			return nil
		}

		// The terminal belongs to the TUI, so logs go to a file.
		logFile, err := openLogFile()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer logFile.Close()
		level := slog.LevelInfo
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level})))

		c := newClient(cmd)
		poller := c.poller()
		defer poller.Close()

		model := monitor.NewModel(monitor.Config{
			Auth:       c.provider,
			Store:      poller,
			Collection: models.CollectionLogs,
			Version:    versionStr,

			CheckUpdates: true,
		})
		defer model.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go func() {
			if err := c.provider.Restore(ctx); err != nil {
				slog.Warn("restore session", "err", err)
			}
		}()

		slog.Info("monitor started", "server", c.url)
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running monitor: %w", err)
		}
		return nil
	},
}

func openLogFile() (*os.File, error) {
	path, err := syncconfig.LogPath()
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func init() {
	monitorCmd.Flags().Bool("keys", false, "print the key reference and exit")
	rootCmd.AddCommand(monitorCmd)
}
