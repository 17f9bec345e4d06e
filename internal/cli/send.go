package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/threadview/internal/db"
	"github.com/tOgg1/threadview/internal/models"
)

var (
	sendThread string
	sendFrom   string
	sendInfo   bool
)

func init() {
	rootCmd.AddCommand(sendCmd, editCmd, deleteCmd, readCmd)
	for _, cmd := range []*cobra.Command{sendCmd, readCmd} {
		cmd.Flags().StringVar(&sendThread, "thread", "", "thread id (default: current context)")
	}
	sendCmd.Flags().StringVar(&sendFrom, "from", "", "sender address (default: self, which sends outgoing)")
	sendCmd.Flags().BoolVar(&sendInfo, "info", false, "insert an info notice instead of a message")
}

var sendCmd = &cobra.Command{
	Use:   "send <body...>",
	Short: "Append an interaction to a thread",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		threadID, err := resolveThreadID(sendThread)
		if err != nil {
			return err
		}
		database, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		interaction := buildInteraction(threadID, strings.Join(args, " "), sendFrom, GetConfig().Global.SelfAddress, sendInfo)
		if err := db.NewInteractionRepository(database).Insert(ctx, interaction); err != nil {
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, interaction)
		}
		fmt.Fprintf(os.Stdout, "Sent %s (%s, sort %d)\n", interaction.ID, interaction.Kind, interaction.SortID)
		return nil
	},
}

// buildInteraction maps a sender to an interaction kind: the local address
// sends outgoing, everyone else incoming and unread.
func buildInteraction(threadID, body, from, self string, info bool) *models.Interaction {
	interaction := &models.Interaction{ThreadID: threadID, Body: body}
	from = strings.TrimSpace(from)
	switch {
	case info:
		interaction.Kind = models.InteractionKindInfo
	case from == "" || from == self:
		interaction.Kind = models.InteractionKindOutgoing
	default:
		interaction.Kind = models.InteractionKindIncoming
		interaction.Author = from
	}
	return interaction
}

var editCmd = &cobra.Command{
	Use:   "edit <interaction-id> <body...>",
	Short: "Edit an interaction body",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		database, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := db.NewInteractionRepository(database).Edit(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Edited %s\n", args[0])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <interaction-id>",
	Short: "Delete an interaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		database, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := db.NewInteractionRepository(database).Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Deleted %s\n", args[0])
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Mark every interaction of a thread as read",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		threadID, err := resolveThreadID(sendThread)
		if err != nil {
			return err
		}
		database, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		ids, err := db.NewInteractionRepository(database).MarkReadThrough(ctx, threadID, db.NewestSortID)
		if err != nil {
			return err
		}
		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, ids)
		}
		fmt.Fprintf(os.Stdout, "Marked %d interactions read\n", len(ids))
		return nil
	},
}
