package enums

// AssignmentStatus tracks a delivery assignment row.
type AssignmentStatus string

const (
	AssignmentStatusAssigned  AssignmentStatus = "assigned"
	AssignmentStatusCompleted AssignmentStatus = "completed"
	AssignmentStatusCancelled AssignmentStatus = "cancelled"
)

var validAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusAssigned,
	AssignmentStatusCompleted,
	AssignmentStatusCancelled,
}

// String implements fmt.Stringer.
func (v AssignmentStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known AssignmentStatus.
func (v AssignmentStatus) IsValid() bool {
	return contains(validAssignmentStatuses, v)
}

// ParseAssignmentStatus converts raw input into a AssignmentStatus.
func ParseAssignmentStatus(value string) (AssignmentStatus, error) {
	return parse(validAssignmentStatuses, value, "assignment status")
}

// IsActive reports whether the assignment still binds the order.
func (v AssignmentStatus) IsActive() bool {
	return v != AssignmentStatusCancelled
}
