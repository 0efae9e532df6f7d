package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"parcelmap/internal/parcels"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Load the layer once and re-render maps from a menu",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTable(cmd.Context())
		if err != nil {
			return err
		}
		s := &session{table: t}
		interactiveSelect(cmd.Context(), s.actions())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

// session holds the loaded table between menu actions.
type session struct {
	table *parcels.Table
}

type menuAction struct {
	label string
	run   func(ctx context.Context) error
}

func (s *session) actions() []menuAction {
	return []menuAction{
		{"Residential building type map", func(ctx context.Context) error {
			path, err := renderUse(ctx, s.table)
			if err == nil {
				fmt.Printf("%sWrote %s%s\n", colorGreen, path, colorReset)
			}
			return err
		}},
		{"Land value per acre map", func(ctx context.Context) error {
			paths, err := renderLandValue(ctx, s.table, true)
			for _, p := range paths {
				fmt.Printf("%sWrote %s%s\n", colorGreen, p, colorReset)
			}
			return err
		}},
		{"Summary", func(ctx context.Context) error {
			sum, err := summarize(ctx, s.table)
			if err == nil {
				printSummary(os.Stdout, s.table.Layer, sum)
			}
			return err
		}},
		{"Reload layer", func(ctx context.Context) error {
			t, err := loadTable(ctx)
			if err == nil {
				s.table = t
			}
			return err
		}},
	}
}

// interactiveSelect lets user move through the actions with arrow keys and
// press Enter to run one. Errors are printed and the menu stays open.
func interactiveSelect(ctx context.Context, actions []menuAction) {
	if len(actions) == 0 {
		return
	}

	enableVT()

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Println("(interactive selection not supported on this terminal)")
		return
	}
	defer func() { term.Restore(fd, oldState) }()

	reader := bufio.NewReader(os.Stdin)

	selected := 0

	redraw := func() {
		// Clear screen (ANSI reset to top + clear screen)
		fmt.Print("\033[H\033[2J")
		for i, a := range actions {
			prefix := "  "
			if i == selected {
				prefix = "> "
			}
			fmt.Print(prefix + a.label + "\r\n")
		}
		fmt.Print("(↑/↓ to navigate, Enter to run, Esc to quit)\r\n")
	}

	// run restores cooked mode for the action's output, waits for
	// acknowledgement and re-enters raw mode. It reports false if the
	// terminal could not be put back into raw mode.
	run := func() bool {
		term.Restore(fd, oldState)
		fmt.Println()
		a := actions[selected]
		if err := a.run(ctx); err != nil {
			zap.L().Error("action failed", zap.String("action", a.label), zap.Error(err))
			fmt.Printf("%s%s failed: %v%s\n", colorRed, a.label, err, colorReset)
		}

		// Wait for user acknowledgement before returning to list
		fmt.Print("\n(press Enter to return)")
		_, _ = bufio.NewReader(os.Stdin).ReadBytes('\n')

		oldState, err = term.MakeRaw(fd)
		if err != nil {
			return false
		}
		reader = bufio.NewReader(os.Stdin)
		redraw()
		return true
	}

	up := func() {
		if selected > 0 {
			selected--
			redraw()
		}
	}
	down := func() {
		if selected < len(actions)-1 {
			selected++
			redraw()
		}
	}

	redraw()

	for {
		if ctx.Err() != nil {
			return
		}
		b1, err := reader.ReadByte()
		if err != nil {
			return
		}
		// Handle Windows console arrow sequences (0 or 224, then code)
		if b1 == 0 || b1 == 224 {
			b2, _ := reader.ReadByte()
			switch b2 {
			case 72:
				up()
			case 80:
				down()
			case 13:
				if !run() {
					return
				}
			}
			continue
		}

		switch b1 {
		case 27: // ESC or ANSI sequence
			if reader.Buffered() == 0 {
				// Bare ESC – exit
				fmt.Print("\r\n")
				return
			}
			b2, _ := reader.ReadByte()
			if b2 != '[' || reader.Buffered() == 0 {
				continue
			}
			b3, _ := reader.ReadByte()
			switch b3 {
			case 'A':
				up()
			case 'B':
				down()
			}
		case '\r', '\n':
			if !run() {
				return
			}
		case 3: // Ctrl-C
			fmt.Print("\r\n")
			return
		}
	}
}
