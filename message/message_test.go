package message

import (
	"strings"
	"testing"

	"github.com/nixxel-company-limited/booth-printer/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var candidate = models.Candidate{
	Name:   "जननेता",
	Party:  "जननेता जनता पार्टी",
	Symbol: "कमळ",
}

const appeal = "मी आपला *जननेता* माझी निशाणी *कमळ* या चिन्हावर मतदान करून मला प्रचंड बहुमतांनी विजय करा\n\n"

func TestComposeSingle(t *testing.T) {
	v := models.Voter{Name: "अ ब", VoterID: "V1", SerialNumber: "5", BoothNumber: "12", Gender: "M", Age: "40"}

	msg := New(candidate).Compose(models.NewPrintJob(v, nil, false))

	assert.Equal(t, "*जननेता जनता पार्टी*\n"+
		"*जननेता*\n"+
		"*मतदार तपशील*\n\n"+
		"*नाव:* अ ब\n"+
		"*मतदार आयडी:* V1\n"+
		"*अनुक्रमांक:* 5\n"+
		"*बूथ क्रमांक:* 12\n"+
		"*लिंग:* M\n"+
		"*वय:* 40\n"+
		"*मतदान केंद्र:* N/A\n\n"+
		appeal, msg)
}

func TestComposeFamily(t *testing.T) {
	primary := models.Voter{Name: "Head", VoterID: "H1"}
	members := []models.Voter{{Name: "Spouse"}, {Name: "Child", Age: "9"}}

	msg := New(candidate).Compose(models.NewPrintJob(primary, members, true))

	assert.True(t, strings.HasSuffix(msg, appeal))
	assert.Equal(t, 1, strings.Count(msg, "मी आपला"))
	assert.Contains(t, msg, "*कुटुंब तपशील*\n\n*1) Head*\nमतदार आयडी: H1\n")
	assert.Contains(t, msg, "*2) Spouse*\nमतदार आयडी: N/A\n")
	assert.Contains(t, msg, "*3) Child*\n")
	assert.Contains(t, msg, "वय: 9\n")
	assert.NotContains(t, msg, "4)")

	first := strings.Index(msg, "*1) ")
	second := strings.Index(msg, "*2) ")
	third := strings.Index(msg, "*3) ")
	assert.True(t, first < second && second < third)
}

func TestNormalizePhone(t *testing.T) {
	valid := map[string]string{
		"9876543210":     "9876543210",
		"98765 43210":    "9876543210",
		"(987) 654-3210": "9876543210",
	}
	for raw, want := range valid {
		got, err := NormalizePhone(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}

	for _, raw := range []string{"", "12345", "98765432101", "abcdefghij", "९८७६५४३२१०"} {
		_, err := NormalizePhone(raw)
		assert.ErrorIs(t, err, ErrInvalidPhone, raw)
	}
}

func TestHasPhone(t *testing.T) {
	assert.True(t, HasPhone("9876543210"))
	assert.False(t, HasPhone("98765 43210"))
	assert.False(t, HasPhone(""))
}
