package models

import "strings"

// NotAvailable is printed in place of an empty field.
const NotAvailable = "N/A"

// Voter is a snapshot of one voter document.
type Voter struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	VoterID               string   `json:"voterId"`
	SerialNumber          string   `json:"serialNumber"`
	BoothNumber           string   `json:"boothNumber"`
	Gender                string   `json:"gender"`
	Age                   string   `json:"age"`
	PollingStationAddress string   `json:"pollingStationAddress"`
	Phone                 string   `json:"phone,omitempty"`
	WhatsApp              string   `json:"whatsapp,omitempty"`
	FamilyIDs             []string `json:"familyMembers,omitempty"`
}

// Field names a printable voter attribute.
type Field int

const (
	FieldName Field = iota
	FieldVoterID
	FieldSerialNumber
	FieldBoothNumber
	FieldGender
	FieldAge
	FieldPollingStation
)

// RecordFields is the order fields appear in a single-voter record.
var RecordFields = []Field{
	FieldName,
	FieldVoterID,
	FieldSerialNumber,
	FieldBoothNumber,
	FieldGender,
	FieldAge,
	FieldPollingStation,
}

// MemberFields is RecordFields without the name, which heads a numbered
// family block instead.
var MemberFields = RecordFields[1:]

// Field returns the raw value of f.
func (v Voter) Field(f Field) string {
	switch f {
	case FieldName:
		return v.Name
	case FieldVoterID:
		return v.VoterID
	case FieldSerialNumber:
		return v.SerialNumber
	case FieldBoothNumber:
		return v.BoothNumber
	case FieldGender:
		return v.Gender
	case FieldAge:
		return v.Age
	case FieldPollingStation:
		return v.PollingStationAddress
	}
	return ""
}

// Display returns the trimmed value of f, or NotAvailable.
func (v Voter) Display(f Field) string {
	if s := strings.TrimSpace(v.Field(f)); s != "" {
		return s
	}
	return NotAvailable
}

// WithField returns a copy of v with f set to value.
func (v Voter) WithField(f Field, value string) Voter {
	switch f {
	case FieldName:
		v.Name = value
	case FieldVoterID:
		v.VoterID = value
	case FieldSerialNumber:
		v.SerialNumber = value
	case FieldBoothNumber:
		v.BoothNumber = value
	case FieldGender:
		v.Gender = value
	case FieldAge:
		v.Age = value
	case FieldPollingStation:
		v.PollingStationAddress = value
	}
	return v
}

// ContactField is a contact number stored on a voter document.
type ContactField string

const (
	ContactPhone    ContactField = "phone"
	ContactWhatsApp ContactField = "whatsapp"
)

// Valid reports whether c names a known contact field
func (c ContactField) Valid() bool {
	return c == ContactPhone || c == ContactWhatsApp
}

// Contact returns the stored number for c
func (v Voter) Contact(c ContactField) string {
	switch c {
	case ContactPhone:
		return v.Phone
	case ContactWhatsApp:
		return v.WhatsApp
	}
	return ""
}
