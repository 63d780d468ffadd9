package cmd

import (
	"fmt"
	"log/slog"

	"github.com/lepinkainen/bookshelf/internal/isbn"
	"github.com/lepinkainen/bookshelf/internal/tui"
)

var promptISBN = tui.PromptISBN

// AddCmd represents the add command
type AddCmd struct {
	ISBN string `arg:"" optional:"" help:"ISBN-13 to add; prompts when omitted"`
}

func (a *AddCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	raw := a.ISBN
	if raw == "" {
		raw, err = promptISBN()
		if err != nil {
			return fmt.Errorf("no ISBN added: %w", err)
		}
	}

	clean, result, err := isbn.Add(cfg.Paths.InputFile, raw)
	if err != nil {
		return err
	}

	switch result {
	case isbn.AlreadyPresent:
		slog.Info("ISBN already in input list", "isbn", clean, "file", cfg.Paths.InputFile)
	default:
		slog.Info("Added ISBN to input list", "isbn", clean, "file", cfg.Paths.InputFile)
	}
	return nil
}
