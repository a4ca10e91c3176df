package model

import "time"

// RawInstance is one benchmark execution as returned by instance discovery.
// It is consumed once by the ingestion controller and not retained.
type RawInstance struct {
	InstanceID int64
	Kernel     string // kernel basename, e.g. "namd"
	NumUnits   int
	Collected  time.Time
	Completed  bool
	JobID      string
	Body       string
	Message    string
	Stderr     string
}

// MetricValue is a single numeric result reported by an instance.
type MetricValue struct {
	Name  string
	Unit  string
	Value float64
}

// ParameterValue is an input parameter an instance was run with.
type ParameterValue struct {
	Name  string `json:"name"`
	Unit  string `json:"unit,omitempty"`
	Value string `json:"value"`
}

// Instance statuses as stored in the warehouse.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// ParsedInstance is the structured form of one instance, annotated with the
// resource and kernel identity the warehouse needs to store it.
type ParsedInstance struct {
	// Resource identity
	ResourceID       int64
	ResourceName     string
	ResourceNickname string
	ResourceVisible  bool

	// Kernel identity. KernelDefID and KernelID are zero when the catalog
	// does not know the kernel or the scale.
	ProcessorUnit  string
	KernelDefID    int64
	KernelName     string
	KernelBasename string
	KernelVisible  bool
	KernelID       int64
	NumUnits       int

	// Payload
	InstanceID int64
	Collected  time.Time
	Completed  bool
	Status     string
	JobID      string
	Message    string
	Stderr     string
	Body       string
	EnvVersion string
	Metrics    []MetricValue
	Parameters []ParameterValue
}
