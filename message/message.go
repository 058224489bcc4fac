// Package message produces the text shared with voters over messaging apps.
// It follows the receipt's field order so both read the same.
package message

import (
	"strconv"
	"strings"

	"github.com/nixxel-company-limited/booth-printer/models"
)

// Composer builds share text for one candidate.
type Composer struct {
	Candidate models.Candidate
	Labels    models.Labels
}

// New uses MarathiLabels.
func New(candidate models.Candidate) *Composer {
	return &Composer{Candidate: candidate, Labels: models.MarathiLabels}
}

func bold(s string) string {
	return "*" + s + "*"
}

// Compose returns the message for job: a bold header, one label:value
// block per record and the appeal line.
func (c *Composer) Compose(job models.PrintJob) string {
	var sb strings.Builder

	sb.WriteString(bold(c.Candidate.Party) + "\n")
	sb.WriteString(bold(c.Candidate.Name) + "\n")

	if job.IsFamily() {
		sb.WriteString(bold(c.Labels.FamilyTitle) + "\n\n")
		for i, v := range job.Records() {
			sb.WriteString(bold(strconv.Itoa(i+1)+") "+v.Display(models.FieldName)) + "\n")
			for _, f := range models.MemberFields {
				sb.WriteString(c.Labels.Label(f) + ": " + v.Display(f) + "\n")
			}
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString(bold(c.Labels.SingleTitle) + "\n\n")
		for _, f := range models.RecordFields {
			sb.WriteString(bold(c.Labels.Label(f)+":") + " " + job.Primary.Display(f) + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(c.Labels.Appeal(c.Candidate, bold) + "\n\n")
	return sb.String()
}

// Compose builds the share text for job with the default labels.
func Compose(candidate models.Candidate, job models.PrintJob) string {
	return New(candidate).Compose(job)
}
