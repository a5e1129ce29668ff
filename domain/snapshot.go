package domain

// Snapshot is the serialisable representation of the full store state. Each
// slice preserves insertion order so an import reproduces iteration order.
type Snapshot struct {
	Users         []User         `json:"users"`
	Organizations []Organization `json:"organizations"`
	Memberships   []Membership   `json:"memberships"`
	Tasks         []Task         `json:"tasks"`
	MicroTasks    []MicroTask    `json:"microTasks"`
}
