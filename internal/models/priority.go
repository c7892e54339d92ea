package models

// Priority classes recognized on tokens and appointments. Unknown values
// sort with PriorityNone so an unexpected class never jumps the queue.
const (
	PriorityNone      = "no"
	PriorityElderly   = "elderly"
	PriorityDisabled  = "disabled"
	PriorityPregnant  = "pregnant"
	PriorityEmergency = "emergency"
)

// priorityRanks is the single source of truth for call-next ordering.
// Selection is rank DESC, queue_position ASC; elderly and disabled share a
// band and fall back to FIFO between each other.
var priorityRanks = map[string]int{
	PriorityNone:      0,
	PriorityElderly:   1,
	PriorityDisabled:  1,
	PriorityPregnant:  2,
	PriorityEmergency: 3,
}

func PriorityRank(priorityType string) int {
	return priorityRanks[priorityType]
}

func ValidPriority(priorityType string) bool {
	_, ok := priorityRanks[priorityType]
	return ok
}

// PriorityClasses returns every known class paired with its rank, for
// building storage-side ordering expressions from the same table the
// in-process comparator uses.
func PriorityClasses() map[string]int {
	classes := make(map[string]int, len(priorityRanks))
	for class, rank := range priorityRanks {
		classes[class] = rank
	}
	return classes
}
