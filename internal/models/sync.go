package models

import (
	"fmt"
	"time"
)

type ColumnInfo struct {
	ColumnName    string  `json:"column_name"`
	ColumnType    string  `json:"column_type"`
	IsNullable    string  `json:"is_nullable"`
	ColumnKey     string  `json:"column_key"`
	ColumnDefault *string `json:"column_default"`
}

// EntityRef names one entity in a synchronization request. When Fields is
// non-empty only those fields are synchronized.
type EntityRef struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields,omitempty"`
}

type SyncOptions struct {
	Force    bool `json:"force"`
	Alter    bool `json:"alter"`
	SafeMode bool `json:"safeMode"`
}

// Mode is the create/alter policy applied to every entity of one batch.
type Mode int

const (
	ModeDefault Mode = iota
	ModeCreateOnly
	ModeAlter
)

func (m Mode) String() string {
	switch m {
	case ModeCreateOnly:
		return "CREATE_ONLY"
	case ModeAlter:
		return "ALTER"
	default:
		return "DEFAULT"
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "CREATE_ONLY":
		*m = ModeCreateOnly
	case "ALTER":
		*m = ModeAlter
	case "DEFAULT", "":
		*m = ModeDefault
	default:
		return fmt.Errorf("unknown sync mode %q", text)
	}
	return nil
}

// EffectiveMode collapses the three flags into one mode. Safe mode wins over
// everything; force never implies alter because destruction is handled by the
// drop phase.
func (o SyncOptions) EffectiveMode() Mode {
	switch {
	case o.SafeMode:
		return ModeCreateOnly
	case o.Alter && !o.Force:
		return ModeAlter
	default:
		return ModeDefault
	}
}

func (o SyncOptions) String() string {
	return fmt.Sprintf("force=%t, alter=%t, safeMode=%t", o.Force, o.Alter, o.SafeMode)
}

type Phase string

const (
	PhaseDrop Phase = "drop"
	PhaseSync Phase = "sync"
)

// EntityResult is the outcome of one structural step for one entity.
type EntityResult struct {
	Entity     string   `json:"entity"`
	Table      string   `json:"table"`
	Phase      Phase    `json:"phase"`
	Success    bool     `json:"success"`
	Action     string   `json:"action,omitempty"`
	Statements []string `json:"statements,omitempty"`
	Drift      []string `json:"drift,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// SyncOutcome is the terminal artifact of one batch.
type SyncOutcome struct {
	RunID      string         `json:"runId"`
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	Logs       []string       `json:"logs"`
	Error      string         `json:"error,omitempty"`
	Mode       Mode           `json:"mode"`
	Options    SyncOptions    `json:"options"`
	Order      []string       `json:"order"`
	Synced     int            `json:"synced"`
	Total      int            `json:"total"`
	Results    []EntityResult `json:"results"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
}

// ScheduleStatus describes the periodic synchronization job.
type ScheduleStatus struct {
	IsRunning   bool         `json:"isRunning"`
	Schedule    string       `json:"cronSchedule"`
	Entities    []string     `json:"entities"`
	Options     SyncOptions  `json:"options"`
	LastRun     string       `json:"lastRun,omitempty"`
	NextRun     string       `json:"nextRun,omitempty"`
	LastOutcome *SyncOutcome `json:"lastOutcome,omitempty"`
}
