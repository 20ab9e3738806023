package docscan

import (
	"testing"

	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `<?xml version="1.0" encoding="UTF-8"?>
<PrintLetterBarcodeData uid="234567890123" name="Ravi  Kumar" gender="M" yob="1979"
  co="S/O: Ram Prasad" house="12" street="Canal Road" lm="" loc="Rampur" vtc="Rampur"
  po="Rampur" dist="Meerut" subdist="Sardhana" state="Uttar Pradesh" pc="250342"/>`

func TestParse(t *testing.T) {
	d, err := Parse(samplePayload)
	require.NoError(t, err)

	assert.Equal(t, "Ravi Kumar", d.Name)
	assert.Equal(t, "Ram Prasad", d.FatherName)
	assert.Equal(t, "male", d.Gender)
	assert.Equal(t, "1979", d.YearOfBirth)
	assert.Equal(t, "234567890123", d.NationalID)
	assert.Equal(t, "Rampur", d.Village)
	assert.Equal(t, "12, Canal Road, Rampur, Sardhana", d.Address)
	assert.Equal(t, "Meerut", d.District)
	assert.Equal(t, "250342", d.Pincode)
	assert.Equal(t, SourceLocal, d.Source)
}

func TestParse_DOBAndPartialID(t *testing.T) {
	d, err := Parse(`<PrintLetterBarcodeData uid="xxxxxxxx0123" name="Sita" gender="F" dob="05/08/1990" co="W/O Mohan"/>`)
	require.NoError(t, err)
	assert.Equal(t, "1990", d.YearOfBirth)
	assert.Equal(t, "female", d.Gender)
	assert.Equal(t, "Mohan", d.FatherName)
	assert.Empty(t, d.NationalID)
}

func TestParse_Rejects(t *testing.T) {
	for name, payload := range map[string]string{
		"empty":        "  ",
		"plain text":   "hello",
		"broken xml":   `<PrintLetterBarcodeData name="x"`,
		"missing name": `<PrintLetterBarcodeData uid="234567890123"/>`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(payload)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}
}
