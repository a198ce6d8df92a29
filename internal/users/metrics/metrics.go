package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the users module.
// Tracks provisioning outcomes and critical path durations.
type Metrics struct {
	UsersCreated      prometheus.Counter
	UsersDeleted      prometheus.Counter
	PartialCreates    prometheus.Counter
	PartialDeletes    prometheus.Counter
	MirrorLagged      prometheus.Counter
	CreateDuration    prometheus.Histogram
	UpdateDuration    prometheus.Histogram
	ListMergeDuration prometheus.Histogram
}

// New creates a new Metrics instance with all users module metrics registered.
func New() *Metrics {
	return &Metrics{
		UsersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_users_created_total",
			Help: "Total number of users fully provisioned",
		}),
		UsersDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_users_deleted_total",
			Help: "Total number of users fully deprovisioned",
		}),
		PartialCreates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_users_partial_creates_total",
			Help: "Total number of creates that left a principal without a row",
		}),
		PartialDeletes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_users_partial_deletes_total",
			Help: "Total number of deletes that removed the row but not the principal",
		}),
		MirrorLagged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registrar_users_mirror_lagged_total",
			Help: "Total number of updates whose directory mirror write failed",
		}),
		CreateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "registrar_user_create_duration_seconds",
			Help:    "Duration of CreateUser operations (dual write path)",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		UpdateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "registrar_user_update_duration_seconds",
			Help:    "Duration of UpdateUser operations (row write plus mirror)",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		ListMergeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "registrar_user_list_merge_duration_seconds",
			Help:    "Duration of GetUsers row and directory merge",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementUsersCreated records a fully provisioned user.
func (m *Metrics) IncrementUsersCreated() {
	m.UsersCreated.Inc()
}

// IncrementUsersDeleted records a fully deprovisioned user.
func (m *Metrics) IncrementUsersDeleted() {
	m.UsersDeleted.Inc()
}

// IncrementPartialCreates records a create that stopped after the
// principal write.
func (m *Metrics) IncrementPartialCreates() {
	m.PartialCreates.Inc()
}

// IncrementPartialDeletes records a delete that stopped after the
// row removal.
func (m *Metrics) IncrementPartialDeletes() {
	m.PartialDeletes.Inc()
}

// IncrementMirrorLagged records an update whose attribute mirror
// write failed.
func (m *Metrics) IncrementMirrorLagged() {
	m.MirrorLagged.Inc()
}

// ObserveCreate records the duration of a CreateUser operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCreate(start time.Time) {
	m.CreateDuration.Observe(time.Since(start).Seconds())
}

// ObserveUpdate records the duration of an UpdateUser operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveUpdate(start time.Time) {
	m.UpdateDuration.Observe(time.Since(start).Seconds())
}

// ObserveListMerge records the duration of a GetUsers merge.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveListMerge(start time.Time) {
	m.ListMergeDuration.Observe(time.Since(start).Seconds())
}
