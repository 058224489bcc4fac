package models

import "errors"

// Mode selects the receipt template.
type Mode int

const (
	ModeSingle Mode = iota
	ModeFamily
)

func (m Mode) String() string {
	if m == ModeFamily {
		return "family"
	}
	return "single"
}

var (
	ErrNoVoter         = errors.New("no voter data available")
	ErrNoFamilyMembers = errors.New("no family members to print")
)

// PrintJob is one receipt to print.
type PrintJob struct {
	Primary Voter
	Family  []Voter
	Mode    Mode
}

// NewPrintJob builds a job; family mode is chosen when family is true.
func NewPrintJob(primary Voter, members []Voter, family bool) PrintJob {
	job := PrintJob{Primary: primary, Mode: ModeSingle}
	if family {
		job.Mode = ModeFamily
		job.Family = members
	}
	return job
}

// Records returns the voters in print order: primary first, then members.
func (j PrintJob) Records() []Voter {
	if j.Mode != ModeFamily {
		return []Voter{j.Primary}
	}
	return append([]Voter{j.Primary}, j.Family...)
}

// IsFamily reports whether the job prints the family template
func (j PrintJob) IsFamily() bool {
	return j.Mode == ModeFamily && len(j.Family) > 0
}

// Validate rejects jobs that cannot be printed.
func (j PrintJob) Validate() error {
	if j.Primary.Name == "" && j.Primary.VoterID == "" && j.Primary.ID == "" {
		return ErrNoVoter
	}
	if j.Mode == ModeFamily && len(j.Family) == 0 {
		return ErrNoFamilyMembers
	}
	return nil
}
