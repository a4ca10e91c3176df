package model

import "time"

// ParseKind tags the result of parsing one raw instance.
type ParseKind string

const (
	ParseOK           ParseKind = "ok"
	ParseFailed       ParseKind = "parse_error"
	ParseQueued       ParseKind = "queued"
	ParseGenericError ParseKind = "error"
	ParseUnknownType  ParseKind = "unknown_type"
)

// ParseResult carries either parsed data (Kind == ParseOK) or a failure kind
// with a message.
type ParseResult struct {
	Kind    ParseKind
	Data    *ParsedInstance
	Message string
}

// StoreKind tags the result of storing one parsed instance.
type StoreKind string

const (
	StoreOK        StoreKind = "stored"
	StoreDuplicate StoreKind = "duplicate"
	// StoreFailed is a failure reported by the database itself.
	StoreFailed StoreKind = "storage_error"
	// StoreTransport is a failure to reach or talk to the database.
	StoreTransport StoreKind = "sql_error"
)

// StoreResult is the tagged outcome of a store call.
type StoreResult struct {
	Kind    StoreKind
	Message string
}

// StoreOptions control how a parsed instance is written.
type StoreOptions struct {
	Replace        bool
	AddToHistory   bool
	RecalcEligible bool
	DryRun         bool
}

// RemoveFilter selects stored instances for window-scoped removal.
// Start is inclusive and End exclusive.
type RemoveFilter struct {
	Start       time.Time
	End         time.Time
	ResourceID  *int64
	KernelDefID *int64
}

// Covers reports whether removing f would delete the stored row of inst.
// A nil filter covers nothing.
func (f *RemoveFilter) Covers(inst *ParsedInstance) bool {
	if f == nil {
		return false
	}
	if inst.Collected.Before(f.Start) || !inst.Collected.Before(f.End) {
		return false
	}
	if f.ResourceID != nil && inst.ResourceID != *f.ResourceID {
		return false
	}
	if f.KernelDefID != nil && inst.KernelDefID != *f.KernelDefID {
		return false
	}
	return true
}

// ControlScope narrows a control band recomputation. When Recalculate is
// false only missing bands are computed.
type ControlScope struct {
	ResourceID  *int64
	KernelDefID *int64
	Recalculate bool
}
