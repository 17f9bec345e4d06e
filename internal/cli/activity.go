package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tOgg1/threadview/internal/db"
)

var (
	activityThread string
	typingStop     bool
)

func init() {
	rootCmd.AddCommand(typingCmd, callCmd)
	callCmd.AddCommand(callStartCmd, callEndCmd)
	typingCmd.Flags().StringVar(&activityThread, "thread", "", "thread id (default: current context)")
	callCmd.PersistentFlags().StringVar(&activityThread, "thread", "", "thread id (default: current context)")
	typingCmd.Flags().BoolVar(&typingStop, "stop", false, "clear the typing indicator")
}

var typingCmd = &cobra.Command{
	Use:   "typing [sender]",
	Short: "Show or clear a typing indicator in a thread",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sender := ""
		if !typingStop {
			if len(args) == 0 {
				return fmt.Errorf("a sender is required unless --stop is set")
			}
			sender = args[0]
		}
		ctx := cmd.Context()
		threadID, err := resolveThreadID(activityThread)
		if err != nil {
			return err
		}
		database, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := db.NewActivityRepository(database).SetTyping(ctx, threadID, sender); err != nil {
			return err
		}
		if sender == "" {
			fmt.Fprintln(os.Stdout, "Typing indicator cleared")
		} else {
			fmt.Fprintf(os.Stdout, "%s is typing\n", sender)
		}
		return nil
	},
}

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Start or end a group call in a thread",
}

var callStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Mark a group call as running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setCallActive(cmd, true)
	},
}

var callEndCmd = &cobra.Command{
	Use:   "end",
	Short: "Mark the group call as ended",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setCallActive(cmd, false)
	},
}

func setCallActive(cmd *cobra.Command, active bool) error {
	ctx := cmd.Context()
	threadID, err := resolveThreadID(activityThread)
	if err != nil {
		return err
	}
	database, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.NewActivityRepository(database).SetCallActive(ctx, threadID, active); err != nil {
		return err
	}
	if active {
		fmt.Fprintln(os.Stdout, "Call started")
	} else {
		fmt.Fprintln(os.Stdout, "Call ended")
	}
	return nil
}
