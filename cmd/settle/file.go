package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/susu3304/pokerledger/internal/model"
)

// sessionFile is the on-disk description of a session. JSON files parse too.
type sessionFile struct {
	Policy       string         `yaml:"policy"`
	RoundingUnit float64        `yaml:"rounding_unit"`
	Players      []model.Player `yaml:"players"`
	Session      model.Session  `yaml:"session"`
}

func loadFile(path string) (*sessionFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseFile(raw)
}

func parseFile(raw []byte) (*sessionFile, error) {
	var f sessionFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	// The chip ratio only converts chip counts, which a file never holds.
	if err := f.Session.Config.ValidateBuyIn(); err != nil {
		return nil, err
	}
	if len(f.Session.Players) == 0 {
		return nil, fmt.Errorf("session has no players")
	}
	seen := make(map[string]bool, len(f.Session.Players))
	for _, p := range f.Session.Players {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.PlayerID] {
			return nil, fmt.Errorf("%w: %s is listed twice", model.ErrInvalidPlayer, p.PlayerID)
		}
		seen[p.PlayerID] = true
	}
	if f.Session.ID == "" {
		f.Session.ID = "file"
	}
	if f.Session.Active || f.Session.EndTime == nil {
		end := time.Now()
		if f.Session.EndTime != nil {
			end = *f.Session.EndTime
		}
		f.Session.Finalize(end)
	}
	return &f, nil
}
