package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	StoreOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_store_operations_total",
			Help: "Document store calls by operation and outcome",
		},
		[]string{"op", "outcome"}, // get|create|set|update|delete|query|query_group , ok|not_found|transient|error
	)

	StoreRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_store_retries_total",
			Help: "Retried document store calls after a transient failure",
		},
		[]string{"op"},
	)

	RepositoryOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_repository_operations_total",
			Help: "Entity repository operations by kind, operation and outcome",
		},
		[]string{"kind", "op", "outcome"},
	)

	TenantCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_tenant_cache_lookups_total",
			Help: "Tenant directory cache lookups",
		},
		[]string{"result"}, // hit|miss|error|evict
	)

	MigrationDocuments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_migration_documents_total",
			Help: "Legacy documents processed by the migration auditor",
		},
		[]string{"outcome", "kind"},
	)

	MigrationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_migration_runs_total",
			Help: "Migration runs by result",
		},
		[]string{"result"}, // ok|regression|error
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		StoreOps,
		StoreRetries,
		RepositoryOps,
		TenantCache,
		MigrationDocuments,
		MigrationRuns,
	)
}
