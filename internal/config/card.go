package config

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// SortKey selects the row ordering.
type SortKey string

const (
	SortWatering SortKey = "watering"
	SortName     SortKey = "name"
	// SortNickname is only accepted when EnableNickname is set.
	SortNickname SortKey = "nickname"
)

var (
	// ErrNoSelection means neither show_all nor entities was supplied.
	ErrNoSelection = errors.New("config: set show_all or list entities")

	// ErrUnknownSort means sort_by names a key that is unknown or disabled.
	ErrUnknownSort = errors.New("config: unknown sort_by")
)

// Card is the dashboard card block, in the same shape as a Lovelace card.
type Card struct {
	Type              string   `yaml:"type,omitempty"`
	ShowAll           bool     `yaml:"show_all"`
	Entities          []string `yaml:"entities"`
	SortBy            SortKey  `yaml:"sort_by"`
	SearchPlaceholder string   `yaml:"search_placeholder"`
	NoWateringText    string   `yaml:"no_watering_text"`
	DoneLabel         string   `yaml:"done_label"`
	SnoozeLabel       string   `yaml:"snooze_label"`
	// ConfirmBeforeDone is a pointer so an omitted key defaults to true.
	ConfirmBeforeDone *bool  `yaml:"confirm_before_done"`
	ConfirmMarkDone   string `yaml:"confirm_mark_done"`
	EnableNickname    bool   `yaml:"enable_nickname"`
	Language          string `yaml:"language"`
}

// ParseCard decodes and validates a card block.
func ParseCard(data []byte) (Card, error) {
	var c Card
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Card{}, fmt.Errorf("parse card: %w", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return Card{}, err
	}
	return c, nil
}

func (c *Card) normalize() {
	c.SortBy = SortKey(strings.ToLower(strings.TrimSpace(string(c.SortBy))))
	if c.SortBy == "" {
		c.SortBy = SortWatering
	}
	ids := c.Entities[:0]
	for _, id := range c.Entities {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	c.Entities = ids
}

// Validate checks the selection mode and sort key.
func (c Card) Validate() error {
	if !c.ShowAll && len(c.Entities) == 0 {
		return ErrNoSelection
	}
	switch c.SortBy {
	case "", SortWatering, SortName:
	case SortNickname:
		if !c.EnableNickname {
			return fmt.Errorf("%w: %q requires enable_nickname", ErrUnknownSort, c.SortBy)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSort, c.SortBy)
	}
	return nil
}

// ConfirmDone reports whether mark-done asks first. Defaults to true.
func (c Card) ConfirmDone() bool {
	return c.ConfirmBeforeDone == nil || *c.ConfirmBeforeDone
}

// SortKeys lists the keys the card can cycle through, default first.
func (c Card) SortKeys() []SortKey {
	keys := []SortKey{SortWatering, SortName}
	if c.EnableNickname {
		keys = append(keys, SortNickname)
	}
	return keys
}
