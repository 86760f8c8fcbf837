package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/marcus/worklog/internal/output"
	"github.com/marcus/worklog/internal/suggest"
	"github.com/marcus/worklog/internal/syncconfig"
	"github.com/spf13/cobra"
)

var settingNames = []string{"url", "poll-interval", "page-size"}

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Show or change client settings",
	GroupID: "system",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective client settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := syncconfig.ConfigDir()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		fmt.Printf("Config dir:    %s\n", dir)
		fmt.Printf("Server:        %s\n", syncconfig.GetServerURL())
		fmt.Printf("Poll interval: %s\n", syncconfig.GetPollInterval())
		fmt.Printf("Page size:     %d\n", syncconfig.GetPageSize())
		fmt.Printf("Signed in:     %t\n", syncconfig.IsAuthenticated())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <url|poll-interval|page-size> <value>",
	Short: "Change a client setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := syncconfig.LoadConfig()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		key, value := args[0], args[1]
		switch key {
		case "url":
			cfg.URL = value
		case "poll-interval":
			d, err := time.ParseDuration(value)
			if err != nil || d <= 0 {
				return fmt.Errorf("invalid poll interval %q", value)
			}
			cfg.PollInterval = d.String()
		case "page-size":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid page size %q", value)
			}
			cfg.PageSize = n
		default:
			err := fmt.Errorf("unknown setting %q", key)
			if hint := suggest.DidYouMean(suggest.Similar(key, settingNames)); hint != "" {
				err = fmt.Errorf("%w (%s)", err, hint)
			}
			return err
		}

		if err := syncconfig.SaveConfig(cfg); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("%s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
