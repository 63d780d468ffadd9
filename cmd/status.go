package cmd

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/bookshelf/internal/isbn"
	"github.com/lepinkainen/bookshelf/internal/staging"
)

// StatusCmd represents the status command
type StatusCmd struct{}

type statusReport struct {
	Counts    staging.Counts `yaml:"counts"`
	Pending   []string       `yaml:"pending"`
	New       []string       `yaml:"new"`
	Processed []string       `yaml:"processed"`
}

func (s *StatusCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := staging.Open(cfg.Paths.BooksDir, cfg.Paths.StagingDB)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	report := statusReport{Pending: []string{}}
	if report.Counts, err = store.Counts(); err != nil {
		return err
	}
	if report.New, err = store.List(staging.StatusNew); err != nil {
		return err
	}
	if report.Processed, err = store.List(staging.StatusProcessed); err != nil {
		return err
	}

	list, err := isbn.LoadInputList(cfg.Paths.InputFile)
	if err != nil {
		return err
	}
	valid, _ := list.Sanitized()
	for _, id := range valid {
		_, exists, err := store.Exists(id)
		if err != nil {
			return err
		}
		if !exists {
			report.Pending = append(report.Pending, id)
		}
	}

	out, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	_, err = stdout.Write(out)
	return err
}
