package timetable

import "sort"

// Demand is a subject still waiting for weekly hours to be placed.
type Demand struct {
	Subject   Subject
	Staff     []string
	Remaining int
}

// DemandQueue holds every placeable demand of a cohort plus the subjects that
// had no candidate staff.
type DemandQueue struct {
	demands      []*Demand
	unassignable []string
}

// BuildDemands derives demands from the cohort subjects and staff assignments.
// Assignments for subjects outside the list are ignored. ErrNoAssignments is
// returned when no subject has any candidate staff.
func BuildDemands(subjects []Subject, assignments []Assignment) (*DemandQueue, error) {
	staffBySubject := make(map[string]map[string]struct{}, len(subjects))
	for _, a := range assignments {
		if a.StaffID == "" || a.SubjectID == "" {
			continue
		}
		if staffBySubject[a.SubjectID] == nil {
			staffBySubject[a.SubjectID] = make(map[string]struct{})
		}
		staffBySubject[a.SubjectID][a.StaffID] = struct{}{}
	}

	ordered := make([]Subject, len(subjects))
	copy(ordered, subjects)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	q := &DemandQueue{}
	staffed := false
	seen := make(map[string]bool, len(ordered))
	for _, subject := range ordered {
		if seen[subject.ID] {
			continue
		}
		seen[subject.ID] = true

		staffSet := staffBySubject[subject.ID]
		if len(staffSet) == 0 {
			q.unassignable = append(q.unassignable, subject.ID)
			continue
		}
		staffed = true
		if subject.WeeklyHours <= 0 {
			continue
		}
		staff := make([]string, 0, len(staffSet))
		for id := range staffSet {
			staff = append(staff, id)
		}
		sort.Strings(staff)
		q.demands = append(q.demands, &Demand{Subject: subject, Staff: staff, Remaining: subject.WeeklyHours})
	}

	if !staffed {
		return nil, ErrNoAssignments
	}
	return q, nil
}

// Demands returns every placeable demand in stable subject order.
func (q *DemandQueue) Demands() []*Demand {
	return q.demands
}

// Pending returns demands that still need hours, in stable subject order.
func (q *DemandQueue) Pending() []*Demand {
	out := make([]*Demand, 0, len(q.demands))
	for _, d := range q.demands {
		if d.Remaining > 0 {
			out = append(out, d)
		}
	}
	return out
}

// TotalRemaining sums the unmet hours of all demands.
func (q *DemandQueue) TotalRemaining() int {
	total := 0
	for _, d := range q.demands {
		total += d.Remaining
	}
	return total
}

// Shortfalls lists demands that still have unmet hours.
func (q *DemandQueue) Shortfalls() []Shortfall {
	var out []Shortfall
	for _, d := range q.demands {
		if d.Remaining > 0 {
			out = append(out, Shortfall{SubjectID: d.Subject.ID, UnmetHours: d.Remaining})
		}
	}
	return out
}

// Unassignable lists subject IDs that had no candidate staff.
func (q *DemandQueue) Unassignable() []string {
	out := make([]string, len(q.unassignable))
	copy(out, q.unassignable)
	return out
}
