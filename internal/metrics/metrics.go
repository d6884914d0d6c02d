package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation labels for EntityOperations
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

var (
	EntityOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aurora_entity_operations_total",
			Help: "Total number of committed entity writes",
		},
		[]string{"entity", "operation"},
	)

	EntityOperationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aurora_entity_operation_failures_total",
			Help: "Total number of entity writes rolled back",
		},
		[]string{"entity", "operation"},
	)

	LifecycleTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aurora_lifecycle_transitions_total",
			Help: "Total number of alert and incident lifecycle transitions",
		},
		[]string{"entity", "transition"},
	)

	MembershipChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aurora_incident_membership_changes_total",
			Help: "Total number of alert attach and detach operations on incidents",
		},
		[]string{"change"},
	)

	CatalogSeedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aurora_catalog_seed_rows_total",
			Help: "Total number of catalog rows created or refreshed by seeding",
		},
		[]string{"result"},
	)
)

// RecordOperation counts one entity write, split by outcome
func RecordOperation(entity, operation string, err error) {
	if err != nil {
		EntityOperationFailures.WithLabelValues(entity, operation).Inc()
		return
	}
	EntityOperations.WithLabelValues(entity, operation).Inc()
}

// WriteTextfile dumps every registered metric to path in the Prometheus text
// format, for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
