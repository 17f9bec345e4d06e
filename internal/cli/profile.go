package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tOgg1/threadview/internal/db"
)

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(
		profileToggleCmd("block", "Hide message content from a peer in every thread", true, setBlocked),
		profileToggleCmd("unblock", "Show message content from a peer again", false, setBlocked),
		profileToggleCmd("blur", "Blur a peer's avatar", true, setAvatarBlurred),
		profileToggleCmd("unblur", "Stop blurring a peer's avatar", false, setAvatarBlurred),
	)
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Change peer display settings",
}

type profileSetter func(ctx context.Context, repo *db.ProfileRepository, address string, value bool) error

func setBlocked(ctx context.Context, repo *db.ProfileRepository, address string, value bool) error {
	return repo.SetBlocked(ctx, address, value)
}

func setAvatarBlurred(ctx context.Context, repo *db.ProfileRepository, address string, value bool) error {
	return repo.SetAvatarBlurred(ctx, address, value)
}

func profileToggleCmd(use, short string, value bool, set profileSetter) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <address>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := set(ctx, db.NewProfileRepository(database), args[0], value); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Profile %s: %s\n", args[0], use)
			return nil
		},
	}
}
