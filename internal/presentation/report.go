package presentation

// Report is the offline summary of a join.
type Report struct {
	Facilities int              `json:"facilities" yaml:"facilities"`
	Regions    []RegionSummary  `json:"regions" yaml:"regions"`
	Unassigned []string         `json:"unassigned" yaml:"unassigned"`
	Ambiguous  []AmbiguousEntry `json:"ambiguous" yaml:"ambiguous"`
}

// AmbiguousEntry names a facility that matched several regions.
type AmbiguousEntry struct {
	Facility string   `json:"facility" yaml:"facility"`
	Assigned string   `json:"assigned" yaml:"assigned"`
	Regions  []string `json:"regions" yaml:"regions"`
}

// Report summarizes the current index and counts.
func (e *Engine) Report() Report {
	r := Report{
		Facilities: len(e.index.Facilities()),
		Regions:    e.RegionSummaries(),
		Unassigned: []string{},
		Ambiguous:  []AmbiguousEntry{},
	}

	for _, f := range e.index.Unassigned() {
		r.Unassigned = append(r.Unassigned, f.Name)
	}
	for _, a := range e.index.Ambiguities() {
		r.Ambiguous = append(r.Ambiguous, AmbiguousEntry{
			Facility: a.Facility.Name,
			Assigned: a.Facility.RegionName,
			Regions:  a.Regions,
		})
	}

	return r
}
