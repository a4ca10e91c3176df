package model

// Resource is a compute system on which app kernels run.
type Resource struct {
	ID       int64  `db:"resource_id"`
	Name     string `db:"resource"`
	Nickname string `db:"nickname"`
	Visible  bool   `db:"visible"`
	Enabled  bool   `db:"enabled"`
}

// Processor unit kinds an app kernel scale is expressed in.
const (
	ProcessorUnitNode = "node"
	ProcessorUnitCore = "core"
)

// KernelDefinition describes one app kernel type, independent of scale.
type KernelDefinition struct {
	ID            int64  `db:"ak_def_id"`
	Name          string `db:"name"`
	Basename      string `db:"ak_base_name"`
	ProcessorUnit string `db:"processor_unit"`
	Visible       bool   `db:"visible"`
	Enabled       bool   `db:"enabled"`
}
