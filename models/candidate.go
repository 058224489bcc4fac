package models

// Candidate is the campaign branding printed on every receipt and message.
type Candidate struct {
	Name    string `mapstructure:"name" json:"name"`
	Party   string `mapstructure:"party" json:"party"`
	Slogan  string `mapstructure:"slogan" json:"slogan"`
	Area    string `mapstructure:"area" json:"area"`
	Symbol  string `mapstructure:"symbol" json:"symbol"`
	Contact string `mapstructure:"contact" json:"contact"`
}

// Labels are the captions used on receipts and messages.
type Labels struct {
	SingleTitle string
	FamilyTitle string
	Fields      map[Field]string

	// The appeal line reads AppealLead + name + AppealSymbol + symbol + AppealTail.
	AppealLead   string
	AppealSymbol string
	AppealTail   string
}

// MarathiLabels is the default caption set.
var MarathiLabels = Labels{
	SingleTitle: "मतदार तपशील",
	FamilyTitle: "कुटुंब तपशील",
	Fields: map[Field]string{
		FieldName:           "नाव",
		FieldVoterID:        "मतदार आयडी",
		FieldSerialNumber:   "अनुक्रमांक",
		FieldBoothNumber:    "बूथ क्रमांक",
		FieldGender:         "लिंग",
		FieldAge:            "वय",
		FieldPollingStation: "मतदान केंद्र",
	},
	AppealLead:   "मी आपला ",
	AppealSymbol: " माझी निशाणी ",
	AppealTail:   " या चिन्हावर मतदान करून मला प्रचंड बहुमतांनी विजय करा",
}

// Label returns the caption for f
func (l Labels) Label(f Field) string {
	return l.Fields[f]
}

// Appeal builds the closing appeal line, passing the candidate name and
// symbol through emphasize.
func (l Labels) Appeal(c Candidate, emphasize func(string) string) string {
	return l.AppealLead + emphasize(c.Name) + l.AppealSymbol + emphasize(c.Symbol) + l.AppealTail
}
