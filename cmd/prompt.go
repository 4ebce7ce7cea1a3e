package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"dirdiff/config"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	hintStyle   = lipgloss.NewStyle().Faint(true)
)

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// promptForRoots asks for whichever of FROM and TO is still empty. An empty
// answer or EOF leaves the field unset so ValidateRoots reports it.
func promptForRoots(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	if cfg.From != "" && cfg.To != "" {
		return nil
	}
	reader := bufio.NewReader(in)
	fmt.Fprintln(out, hintStyle.Render("Enter the directories to compare."))
	if cfg.From == "" {
		answer, err := readLine(ctx, reader, out, "FROM directory: ")
		if err != nil {
			return err
		}
		cfg.From = answer
	}
	if cfg.To == "" {
		answer, err := readLine(ctx, reader, out, "TO directory: ")
		if err != nil {
			return err
		}
		cfg.To = answer
	}
	return nil
}

func readLine(ctx context.Context, reader *bufio.Reader, out io.Writer, label string) (string, error) {
	type answer struct {
		text string
		err  error
	}
	fmt.Fprint(out, promptStyle.Render(label))

	ch := make(chan answer, 1)
	go func() {
		text, err := reader.ReadString('\n')
		if err == io.EOF {
			err = nil
		}
		ch <- answer{text: strings.TrimSpace(text), err: err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(out)
		return "", ctx.Err()
	case a := <-ch:
		if a.err != nil {
			return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(label, ": "), a.err)
		}
		return a.text, nil
	}
}
