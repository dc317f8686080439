package root

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourname/sleepcat/internal/ui"
)

const Version = "0.1.0"

var (
	flagUser    string
	flagVerbose bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sleepcat",
		Short:         "Sleepcat: sleep tracking that pays your cat in coins",
		Long:          "Sleepcat records when you go to sleep and wake up, and credits one coin per minute slept.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")
	cmd.PersistentFlags().StringVarP(&flagUser, "user", "u", "", "user id (defaults to USER_ID)")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log at the configured LOG_LEVEL instead of errors only")

	cmd.AddCommand(
		newSleepCmd(),
		newWakeCmd(),
		newStatusCmd(),
		newCoinsCmd(),
		newHistoryCmd(),
		newLogCmd(),
		newItemsCmd(),
		newBuyCmd(),
	)
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Bad.Render(ui.IconError+" "+err.Error()))
		os.Exit(1)
	}
}
