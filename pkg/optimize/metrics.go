package optimize

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "otr_optimize_tasks_scheduled_total",
		Help: "Optimization tasks handed to workers",
	})

	tasksFinished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "otr_optimize_tasks_finished_total",
		Help: "Optimization tasks finished, faulted ones included",
	})

	taskFaults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "otr_optimize_task_faults_total",
		Help: "Optimization tasks that panicked",
	})

	// arbitrationTotal counts arbitration outcomes.
	// Labels: "won", "lost", "late"
	arbitrationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otr_optimize_arbitrations_total",
		Help: "Arbitration outcomes of finished tasks",
	}, []string{"outcome"})
)
