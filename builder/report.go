package builder

import (
	"time"

	"github.com/google/uuid"
)

// Report summarizes one graph build.
type Report struct {
	ID      string
	Org     string
	Repo    string
	Version string

	FunctionsFound     int
	ClassesFound       int
	ModulesFound       int
	FilesSkipped       int
	CommitsAnalyzed    int
	DevelopersProfiled int
	EventsGenerated    int
	GraphsWritten      int
	TriplesWritten     int

	StartedAt time.Time
	Duration  time.Duration
	Warnings  []string
}

func newReport(org, repo, version string) *Report {
	return &Report{
		ID:        uuid.New().String(),
		Org:       org,
		Repo:      repo,
		Version:   version,
		StartedAt: time.Now().UTC(),
	}
}
