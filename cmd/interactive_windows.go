//go:build windows

package main

import (
	"os"

	"golang.org/x/sys/windows"
)

// enableVT turns on virtual terminal input and output so the menu's arrow
// keys arrive as ANSI sequences and its screen clears are honoured.
func enableVT() {
	for _, h := range []struct {
		f    *os.File
		flag uint32
	}{
		{os.Stdin, windows.ENABLE_VIRTUAL_TERMINAL_INPUT},
		{os.Stdout, windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING},
	} {
		handle := windows.Handle(h.f.Fd())
		var mode uint32
		if windows.GetConsoleMode(handle, &mode) == nil {
			windows.SetConsoleMode(handle, mode|h.flag)
		}
	}
}
