package model

// Outcome is one counter kind of an ingestion run.
type Outcome string

// Flag counters. Examined is incremented for every instance attempted and
// Incomplete for every instance whose completion flag is false.
const (
	OutcomeExamined   Outcome = "examined"
	OutcomeIncomplete Outcome = "incomplete"
)

// Terminal outcomes: every examined instance receives exactly one.
const (
	OutcomeLoaded           Outcome = "loaded"
	OutcomeStoredIncomplete Outcome = "stored_incomplete"
	OutcomeParseError       Outcome = "parse_error"
	OutcomeQueued           Outcome = "queued"
	OutcomeError            Outcome = "error"
	OutcomeUnknownType      Outcome = "unknown_type"
	OutcomeUnmapped         Outcome = "unmapped"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeStorageError     Outcome = "storage_error"
	OutcomeSQLError         Outcome = "sql_error"
	OutcomeException        Outcome = "exception"
)

// AllOutcomes lists every counter kind in canonical report order.
var AllOutcomes = []Outcome{
	OutcomeExamined,
	OutcomeLoaded,
	OutcomeIncomplete,
	OutcomeStoredIncomplete,
	OutcomeParseError,
	OutcomeQueued,
	OutcomeError,
	OutcomeUnknownType,
	OutcomeUnmapped,
	OutcomeDuplicate,
	OutcomeStorageError,
	OutcomeSQLError,
	OutcomeException,
}

// TerminalOutcomes lists the outcomes that partition the examined instances.
var TerminalOutcomes = []Outcome{
	OutcomeLoaded,
	OutcomeStoredIncomplete,
	OutcomeParseError,
	OutcomeQueued,
	OutcomeError,
	OutcomeUnknownType,
	OutcomeUnmapped,
	OutcomeDuplicate,
	OutcomeStorageError,
	OutcomeSQLError,
	OutcomeException,
}

// IsTerminal reports whether o is one of TerminalOutcomes.
func (o Outcome) IsTerminal() bool {
	for _, t := range TerminalOutcomes {
		if t == o {
			return true
		}
	}
	return false
}

// OutcomeByName returns the Outcome with the given name, or ok=false.
func OutcomeByName(name string) (Outcome, bool) {
	for _, o := range AllOutcomes {
		if string(o) == name {
			return o, true
		}
	}
	return "", false
}
