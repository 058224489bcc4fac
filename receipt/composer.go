// Package receipt composes the voter receipt and renders it off-screen.
package receipt

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/nixxel-company-limited/booth-printer/layout"
	"github.com/nixxel-company-limited/booth-printer/models"
)

// Receipt geometry in logical units.
const (
	Width   = 230
	Padding = 10
	Scale   = 2
)

// ErrCapture wraps any failure to render or capture the receipt.
var ErrCapture = errors.New("receipt capture failed")

// scratch is the off-screen surface a receipt is drawn on.
type scratch interface {
	Render(markup string) error
	Capture() (*image.RGBA, error)
	Close() error
}

// Options configures a Composer.
type Options struct {
	Fonts  *layout.Fonts
	Labels models.Labels
}

// Composer renders print jobs for one candidate.
type Composer struct {
	candidate  models.Candidate
	labels     models.Labels
	newScratch func() scratch
}

// New creates a composer; nil fonts fall back to the embedded Go fonts and
// empty labels to MarathiLabels.
func New(candidate models.Candidate, opts Options) (*Composer, error) {
	fonts := opts.Fonts
	if fonts == nil {
		var err error
		if fonts, err = layout.DefaultFonts(); err != nil {
			return nil, err
		}
	}

	labels := opts.Labels
	if labels.Fields == nil {
		labels = models.MarathiLabels
	}

	return &Composer{
		candidate: candidate,
		labels:    labels,
		newScratch: func() scratch {
			return layout.NewSurface(fonts, Width, Padding, Scale)
		},
	}, nil
}

// Compose renders job to a bitmap Width*Scale pixels wide. The scratch
// surface is closed on every path.
func (c *Composer) Compose(job models.PrintJob) (img image.Image, err error) {
	surface := c.newScratch()
	defer func() {
		if cerr := surface.Close(); cerr != nil && err == nil {
			img, err = nil, fmt.Errorf("%w: %v", ErrCapture, cerr)
		}
	}()

	if err := surface.Render(c.Layout(job)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapture, err)
	}

	captured, err := surface.Capture()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapture, err)
	}
	return captured, nil
}

// Layout returns the receipt markup for job. Every voter and candidate
// value is escaped.
func (c *Composer) Layout(job models.PrintJob) string {
	var sb strings.Builder

	c.header(&sb)
	if job.IsFamily() {
		c.familyBody(&sb, job.Records())
	} else {
		c.singleBody(&sb, job.Primary)
	}
	c.footer(&sb)

	return sb.String()
}

func (c *Composer) header(sb *strings.Builder) {
	fmt.Fprintf(sb, `<p align="center" bold size="13">%s</p>`, Escape(c.candidate.Party))
	fmt.Fprintf(sb, `<p align="center" bold size="18" gap="4">%s</p>`, Escape(c.candidate.Name))
	fmt.Fprintf(sb, `<p align="center" bold>%s</p>`, Escape(c.candidate.Slogan))
	fmt.Fprintf(sb, `<p align="center" bold gap="4" rule="bottom" pad="8">%s</p>`, Escape(c.candidate.Area))
}

func (c *Composer) singleBody(sb *strings.Builder, v models.Voter) {
	fmt.Fprintf(sb, `<p align="center" bold gap="6">%s</p>`, Escape(c.labels.SingleTitle))
	for i, f := range models.RecordFields {
		gap := "4"
		if i == 0 {
			gap = "6"
		}
		fmt.Fprintf(sb, `<p gap="%s"><b>%s:</b> %s</p>`, gap, Escape(c.labels.Label(f)), Escape(v.Display(f)))
	}
}

func (c *Composer) familyBody(sb *strings.Builder, records []models.Voter) {
	fmt.Fprintf(sb, `<p align="center" bold gap="6">%s</p>`, Escape(c.labels.FamilyTitle))
	for i, v := range records {
		fmt.Fprintf(sb, `<p bold gap="6">%s) %s</p>`, strconv.Itoa(i+1), Escape(v.Display(models.FieldName)))
		for j, f := range models.MemberFields {
			attrs := `gap="2"`
			if j == len(models.MemberFields)-1 {
				attrs = `gap="4" rule="bottom" pad="10"`
			}
			fmt.Fprintf(sb, `<p %s>%s: %s</p>`, attrs, Escape(c.labels.Label(f)), Escape(v.Display(f)))
		}
	}
}

func (c *Composer) footer(sb *strings.Builder) {
	l := c.labels
	fmt.Fprintf(sb, `<p size="13" gap="6" rule="top">%s<b>%s</b>%s<b>%s</b>%s</p>`,
		Escape(l.AppealLead), Escape(c.candidate.Name),
		Escape(l.AppealSymbol), Escape(c.candidate.Symbol),
		Escape(l.AppealTail))
	fmt.Fprintf(sb, `<p align="center" bold gap="6">%s</p>`, Escape(c.candidate.Name))
	sb.WriteString(`<space size="18"/>`)
}
