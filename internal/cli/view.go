package cli

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tOgg1/threadview/internal/listview"
)

var (
	viewThread string
	viewFocus  string
)

func init() {
	rootCmd.AddCommand(viewCmd)
	viewCmd.Flags().StringVar(&viewThread, "thread", "", "thread id (default: current context)")
	viewCmd.Flags().StringVar(&viewFocus, "focus", "", "interaction id to open the thread at")
}

var errNoTTY = errors.New("view requires an interactive terminal; use 'threadview tail' instead")

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Open a thread in the terminal list view",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !hasTTY() {
			return errNoTTY
		}
		threadID, err := resolveThreadID(viewThread)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
		defer stop()

		s, err := openSession(ctx, threadID, viewFocus)
		if err != nil {
			return err
		}
		defer s.Close()

		model := listview.New(listview.Config{Events: s.publisher})
		program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))
		model.SetSender(program)
		model.SetController(s.coordinator)

		width, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil {
			width = 0
		}
		if err := s.start(ctx, model, width); err != nil {
			return err
		}

		_, err = program.Run()
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
