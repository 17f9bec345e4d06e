package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/threadview/internal/db"
	"github.com/tOgg1/threadview/internal/models"
)

var (
	threadParticipants []string
	threadGroup        bool
	threadUse          bool
)

func init() {
	rootCmd.AddCommand(threadCmd)
	threadCmd.AddCommand(threadCreateCmd, threadListCmd, threadUseCmd)

	threadCreateCmd.Flags().StringSliceVarP(&threadParticipants, "participant", "p", nil, "participant address (repeatable)")
	threadCreateCmd.Flags().BoolVar(&threadGroup, "group", false, "mark the thread as a group")
	threadCreateCmd.Flags().BoolVar(&threadUse, "use", false, "select the thread as the current context")
}

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Manage threads",
}

var threadCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a thread",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		database, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		thread := &models.Thread{
			Title:        strings.Join(args, " "),
			IsGroup:      threadGroup || len(threadParticipants) > 1,
			Participants: threadParticipants,
		}
		if err := db.NewThreadRepository(database).Create(ctx, thread); err != nil {
			return err
		}
		if threadUse {
			if err := saveThreadContext(thread); err != nil {
				return err
			}
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, thread)
		}
		fmt.Fprintf(os.Stdout, "Created thread %s (%s)\n", thread.ID, thread.Title)
		return nil
	},
}

var threadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List threads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		database, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		store := db.NewStore(database)
		threads, err := store.Threads.List(ctx)
		if err != nil {
			return err
		}
		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, threads)
		}

		current, _ := contextStore().Load()
		rows := make([][]string, 0, len(threads))
		for _, thread := range threads {
			bounds, err := store.Bounds(ctx, thread.ID)
			if err != nil {
				return err
			}
			marker := ""
			if current != nil && current.ThreadID == thread.ID {
				marker = "*"
			}
			rows = append(rows, []string{
				marker,
				thread.ID,
				truncateCell(thread.Title),
				formatYesNo(thread.IsGroup),
				strconv.Itoa(bounds.Count),
				truncateCell(strings.Join(thread.Participants, ",")),
			})
		}
		return writeTable(os.Stdout, []string{"", "ID", "TITLE", "GROUP", "MESSAGES", "PARTICIPANTS"}, rows)
	},
}

var threadUseCmd = &cobra.Command{
	Use:   "use <thread-id>",
	Short: "Select the current thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		database, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		thread, err := db.NewThreadRepository(database).Get(ctx, args[0])
		if err != nil {
			return err
		}
		if err := saveThreadContext(thread); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Using thread %s (%s)\n", thread.ID, thread.Title)
		return nil
	},
}

func saveThreadContext(thread *models.Thread) error {
	store := contextStore()
	current, err := store.Load()
	if err != nil {
		return err
	}
	current.SetThread(thread.ID, thread.Title)
	return store.Save(current)
}
