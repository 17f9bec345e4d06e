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
	seedThread       string
	seedTitle        string
	seedCount        int
	seedUnread       int
	seedParticipants []string
)

var seedPhrases = []string{
	"did the deploy go out?",
	"looks good to me, merging now",
	"can you take another look at the migration",
	"lunch?",
	"the flaky test is back again, I am on it",
	"pushed a fix, CI should be green in a few minutes",
	"who owns the on-call rotation this week",
	"sounds good",
	"I left a couple of comments on the design doc about the paging behaviour when the window is full",
	"ok",
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVar(&seedThread, "thread", "", "existing thread to append to (default: create one)")
	seedCmd.Flags().StringVar(&seedTitle, "title", "seeded conversation", "title for a new thread")
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 200, "number of interactions to insert")
	seedCmd.Flags().IntVar(&seedUnread, "unread", 5, "number of trailing incoming interactions left unread")
	seedCmd.Flags().StringSliceVarP(&seedParticipants, "participant", "p", []string{"alice", "bob"}, "peer addresses")
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill a thread with sample interactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedCount < 1 {
			return fmt.Errorf("--count must be at least 1")
		}
		if len(seedParticipants) == 0 {
			return fmt.Errorf("at least one participant is required")
		}
		ctx := cmd.Context()
		database, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		store := db.NewStore(database)

		thread, err := seedTargetThread(cmd, store)
		if err != nil {
			return err
		}
		for _, address := range seedParticipants {
			profile := models.Profile{Address: address, DisplayName: displayName(address)}
			if err := store.Profiles.Upsert(ctx, profile); err != nil {
				return err
			}
		}

		for i := 0; i < seedCount; i++ {
			interaction := seedInteraction(thread.ID, i)
			if err := store.Interactions.Insert(ctx, interaction); err != nil {
				return fmt.Errorf("failed to insert interaction %d: %w", i, err)
			}
		}

		if IsJSONOutput() {
			return WriteOutput(os.Stdout, map[string]any{"thread": thread, "inserted": seedCount})
		}
		fmt.Fprintf(os.Stdout, "Seeded %d interactions into %s (%s)\n", seedCount, thread.ID, thread.Title)
		return nil
	},
}

func seedTargetThread(cmd *cobra.Command, store *db.Store) (*models.Thread, error) {
	ctx := cmd.Context()
	if seedThread != "" {
		return store.Threads.Get(ctx, seedThread)
	}
	thread := &models.Thread{
		Title:        seedTitle,
		IsGroup:      len(seedParticipants) > 1,
		Participants: seedParticipants,
	}
	if err := store.Threads.Create(ctx, thread); err != nil {
		return nil, err
	}
	return thread, saveThreadContext(thread)
}

// seedInteraction builds the i-th sample: every fifth is outgoing, every
// fiftieth is an info notice, and the trailing incoming ones stay unread.
func seedInteraction(threadID string, i int) *models.Interaction {
	interaction := &models.Interaction{
		ThreadID: threadID,
		Body:     seedPhrases[i%len(seedPhrases)],
		Read:     i < seedCount-seedUnread,
	}
	switch {
	case i%50 == 49:
		interaction.Kind = models.InteractionKindInfo
		interaction.Body = "thread settings changed"
	case i%5 == 4:
		interaction.Kind = models.InteractionKindOutgoing
	default:
		interaction.Kind = models.InteractionKindIncoming
		interaction.Author = seedParticipants[i%len(seedParticipants)]
	}
	return interaction
}

func displayName(address string) string {
	if address == "" {
		return address
	}
	return strings.ToUpper(address[:1]) + address[1:]
}
