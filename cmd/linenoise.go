package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/peterh/liner"
)

// lineEditor adds history files and screen clearing to liner.
type lineEditor struct {
	*liner.State
}

func newLineEditor() *lineEditor {
	l := &lineEditor{liner.NewLiner()}
	l.SetCtrlCAborts(true)
	return l
}

func (ln *lineEditor) HistoryLoad(filepath string) error {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return err
	}
	_, err = ln.ReadHistory(bytes.NewReader(content))
	return err
}

func (ln *lineEditor) HistorySave(filepath string) error {
	var buf bytes.Buffer
	if _, err := ln.WriteHistory(&buf); err != nil {
		return err
	}
	return os.WriteFile(filepath, buf.Bytes(), 0644)
}

func clearScreen(w io.Writer) error {
	_, err := fmt.Fprint(w, "\x1b[H\x1b[2J")
	return err
}
