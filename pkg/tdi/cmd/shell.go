package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const shellPrompt = "tdi>> "

func NewShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "shell",
		Aliases: []string{"intr"},
		Short:   "Run tdi commands interactively",
		Long: `Reads one command per line and runs it as if it had been passed to tdi,
e.g. "add buy milk" or "me --json". "exit", "quit" or end of input leave the shell.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if rt.inShell {
				return errors.New("already in an interactive shell")
			}
			return rt.runShell(cmd)
		},
	}
}

// runShell dispatches every input line through a fresh root command, so a line
// behaves exactly like the same arguments on the command line. A failing line
// is reported and the shell keeps going.
func (rt *runtimeState) runShell(cmd *cobra.Command) error {
	scanner := bufio.NewScanner(rt.inputOrStdin())
	log := rt.Logger()
	for {
		_, _ = fmt.Fprint(rt.Writer(), shellPrompt)
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(rt.Writer())
			return scanner.Err()
		}
		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "exit", "quit":
			return nil
		}

		sub := NewRootCommand(Config{
			Context:      cmd.Context(),
			ConfigPath:   rt.configPath,
			ConfigDir:    rt.configDir,
			OutputWriter: rt.Writer(),
			ErrWriter:    rt.ErrWriter(),
			Input:        rt.inputOrStdin(),
			Browser:      rt.browser,
			shell:        rt,
		})
		sub.SetArgs(args)
		if err := sub.Execute(); err != nil {
			log.Debugw("Shell command failed", "args", args, "error", err)
			_, _ = fmt.Fprintf(rt.ErrWriter(), "Error: %v\n", err)
		}
		if err := cmd.Context().Err(); err != nil {
			return err
		}
	}
}
