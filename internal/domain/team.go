package domain

import (
	"errors"
	"strings"
	"time"
)

// ErrEmptyTeamName is returned when a team has no name.
var ErrEmptyTeamName = errors.New("team name cannot be empty")

// Team groups tasks.
type Team struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTeam creates a team with the given name.
func NewTeam(name string) (*Team, error) {
	now := time.Now().UTC()
	team := &Team{Name: strings.TrimSpace(name), CreatedAt: now, UpdatedAt: now}
	if team.Name == "" {
		return nil, ErrEmptyTeamName
	}
	return team, nil
}

// Validate checks the team's fields.
func (t *Team) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyTeamName
	}
	return nil
}
