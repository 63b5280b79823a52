package assignment

import (
	"github.com/wolfman30/leadops-platform/internal/appointments"
	"github.com/wolfman30/leadops-platform/internal/closers"
)

// RoundRobin returns a planner that hands the i-th assignable target to the
// (i mod N)-th eligible closer, closers taken in the order given. Ineligible
// closers never receive work; with no eligible closers the plan is empty.
func RoundRobin(pool []closers.Closer) appointments.Planner {
	eligible := closers.Eligible(pool)
	return func(targets []appointments.Appointment) []appointments.Assignment {
		if len(eligible) == 0 {
			return nil
		}
		plan := make([]appointments.Assignment, 0, len(targets))
		for _, a := range targets {
			if !a.Assignable() {
				continue
			}
			next := eligible[len(plan)%len(eligible)]
			plan = append(plan, appointments.Assignment{AppointmentID: a.ID, CloserID: next.ID})
		}
		return plan
	}
}
