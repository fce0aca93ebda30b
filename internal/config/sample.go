package config

import "time"

// SampleBatch returns the built-in university workload: six independent
// tasks that each need one unit of staff plus one unit of a task-specific
// resource.
func SampleBatch() *Batch {
	sec := func(n int) Duration { return Duration(time.Duration(n) * time.Second) }
	return &Batch{
		Resources: map[string]int{
			"computers":     2,
			"staff":         3,
			"accounts":      1,
			"rooms":         2,
			"researchers":   1,
			"study_spaces":  4,
			"meeting_rooms": 1,
		},
		Tasks: []TaskSpec{
			{Name: "Registering for Courses", Priority: 2, Duration: sec(5), Category: "Registration", Resources: map[string]int{"computers": 1, "staff": 1}},
			{Name: "Paying Fees", Priority: 1, Duration: sec(3), Category: "Finance", Resources: map[string]int{"accounts": 1, "staff": 1}},
			{Name: "Scheduling Exams", Priority: 3, Duration: sec(4), Category: "Exams", Resources: map[string]int{"rooms": 1, "staff": 1}},
			{Name: "Research Project", Priority: 6, Duration: sec(6), Category: "Research", Resources: map[string]int{"researchers": 1, "staff": 1}},
			{Name: "Library Study", Priority: 8, Duration: sec(3), Category: "Study", Resources: map[string]int{"study_spaces": 1, "staff": 1}},
			{Name: "Group Discussion", Priority: 4, Duration: sec(4), Category: "Discussion", Resources: map[string]int{"meeting_rooms": 1, "staff": 1}},
		},
	}
}
