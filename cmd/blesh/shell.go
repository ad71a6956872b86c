package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/blesh/internal/command"
)

const shellPrompt = "blesh> "

type shellFlags struct {
	json bool
}

func newShellCmd() *cobra.Command {
	flags := &shellFlags{}
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Run an interactive session",
		Long: `Reads commands from stdin, one per line, and prints each result.

A line is either a command with positional arguments:

  init
  scan 3
  connect AA:BB:CC:DD:EE:FF
  write "hello\n" 6e400002-b5a3-f393-e0a9-e50e24dcca9e
  read

or a JSON request: {"command": "read", "args": {"charUuid": "2A19"}}

Type 'help' for the command list and 'exit' to quit. With --json every
result is printed as a JSON response line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.json, "json", false, "Print every result as a JSON response")
	return cmd
}

// shell reads lines from in and prints results to out
type shell struct {
	dispatcher *command.Dispatcher
	in         io.Reader
	out        io.Writer
	prompt     bool
	json       bool

	okColor    *color.Color
	errorColor *color.Color
}

func runShell(cmd *cobra.Command, flags *shellFlags) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	sh := newShell(a.dispatcher, cmd.InOrStdin(), cmd.OutOrStdout(), flags.json)
	return sh.run(ctx)
}

func newShell(d *command.Dispatcher, in io.Reader, out io.Writer, jsonOutput bool) *shell {
	sh := &shell{
		dispatcher: d,
		in:         in,
		out:        out,
		prompt:     isTerminal(in) && !jsonOutput,
		json:       jsonOutput,
		okColor:    color.New(color.FgGreen),
		errorColor: color.New(color.FgRed, color.Bold),
	}
	if !isTerminal(out) {
		sh.okColor.DisableColor()
		sh.errorColor.DisableColor()
	}
	return sh
}

func (sh *shell) run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(sh.in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		if sh.prompt {
			printf(sh.out, "%s", shellPrompt)
		}

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			select {
			case err := <-readErr:
				if err != nil {
					return fmt.Errorf("failed to read input: %w", err)
				}
			default:
			}
			return nil
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "help":
			sh.printHelp()
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}

		sh.print(sh.dispatcher.ExecuteLine(ctx, line))
	}
}

func (sh *shell) printHelp() {
	for _, c := range sh.dispatcher.Commands() {
		usage := c.Usage()
		if len(c.Aliases) > 0 {
			usage += " (" + strings.Join(c.Aliases, ", ") + ")"
		}
		printf(sh.out, "  %-48s %s\n", usage, c.Summary)
	}
	printf(sh.out, "  %-48s %s\n", "help", "Show this list")
	printf(sh.out, "  %-48s %s\n", "exit", "Leave the shell")
}

func (sh *shell) print(resp command.Response) {
	if sh.json {
		data, err := json.Marshal(resp)
		if err != nil {
			data, _ = json.Marshal(command.Response{Error: err.Error(), Kind: "Error"})
		}
		printf(sh.out, "%s\n", data)
		return
	}

	if !resp.OK {
		printf(sh.out, "%s %s\n", sh.errorColor.Sprintf("ERROR [%s]:", resp.Kind), resp.Error)
		return
	}
	printf(sh.out, "%s\n", sh.okColor.Sprint(formatResult(resp.Result)))
}

// formatResult renders a result for humans: strings as-is, string lists one per
// line, everything else as indented JSON
func formatResult(result any) string {
	switch v := result.(type) {
	case nil:
		return "OK"
	case string:
		return v
	case []string:
		if len(v) == 0 {
			return "(none)"
		}
		return strings.Join(v, "\n")
	case bool, int:
		return fmt.Sprint(v)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Sprint(result)
	}
	return string(data)
}
