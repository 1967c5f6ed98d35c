package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// completionCommand generates shell completion scripts for the root command.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a completion script for your shell so that packfold
subcommands, flags, and cache backends tab-complete.

Install it once for your shell:

Bash:
  $ packfold completion bash > /etc/bash_completion.d/packfold
  # macOS with Homebrew:
  $ packfold completion bash > $(brew --prefix)/etc/bash_completion.d/packfold

Zsh:
  $ packfold completion zsh > "${fpath[1]}/_packfold"
  # compinit must be enabled; add to ~/.zshrc if it is not:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

Fish:
  $ packfold completion fish > ~/.config/fish/completions/packfold.fish

PowerShell:
  PS> packfold completion powershell > packfold.ps1
  # then dot-source packfold.ps1 from your profile.

For a one-off session, pipe the script straight into the shell instead,
for example "source <(packfold completion bash)".
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}

	return cmd
}
