package sql

import (
	"embed"
)

// Migrations holds the warehouse schema, applied in filename order.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// ExplorerSchema is the shape of the explorer tables, for local and test
// explorer databases.
//
//go:embed explorer/akrr_schema.sql
var ExplorerSchema string

//go:embed queries/load_resources.sql
var LoadResources string

//go:embed queries/load_kernel_defs.sql
var LoadKernelDefs string

//go:embed queries/load_kernel_index.sql
var LoadKernelIndex string

//go:embed queries/register_kernel_def.sql
var RegisterKernelDef string

//go:embed queries/register_kernel.sql
var RegisterKernel string

//go:embed queries/delete_instance.sql
var DeleteInstance string

//go:embed queries/insert_instance.sql
var InsertInstance string

//go:embed queries/upsert_metric.sql
var UpsertMetric string

//go:embed queries/calculate_controls.sql
var CalculateControls string

//go:embed queries/insert_ingestion_log.sql
var InsertIngestionLog string

//go:embed queries/last_successful_ingestion.sql
var LastSuccessfulIngestion string

//go:embed queries/recent_ingestions.sql
var RecentIngestions string
