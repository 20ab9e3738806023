// Package docscan turns the QR payload printed on a national ID card into
// a customer draft.
package docscan

import (
	"encoding/xml"
	"regexp"
	"strings"

	"github.com/nimasrn/farm-ledger/internal/idcrypt"
	"github.com/nimasrn/farm-ledger/internal/model"
)

const SourceLocal = "local"

// card mirrors the attributes of the PrintLetterBarcodeData element.
type card struct {
	XMLName  xml.Name `xml:"PrintLetterBarcodeData"`
	UID      string   `xml:"uid,attr"`
	Name     string   `xml:"name,attr"`
	Gender   string   `xml:"gender,attr"`
	YOB      string   `xml:"yob,attr"`
	DOB      string   `xml:"dob,attr"`
	CareOf   string   `xml:"co,attr"`
	House    string   `xml:"house,attr"`
	Street   string   `xml:"street,attr"`
	Landmark string   `xml:"lm,attr"`
	Locality string   `xml:"loc,attr"`
	VTC      string   `xml:"vtc,attr"`
	PO       string   `xml:"po,attr"`
	District string   `xml:"dist,attr"`
	SubDist  string   `xml:"subdist,attr"`
	State    string   `xml:"state,attr"`
	Pincode  string   `xml:"pc,attr"`
}

var careOfPrefix = regexp.MustCompile(`(?i)^\s*(s|d|w|c)\s*/\s*o\s*[:.]?\s*`)

// Parse reads an XML card payload. Anything else is a validation error.
func Parse(payload string) (*model.CustomerDraft, error) {
	payload = strings.TrimSpace(strings.TrimPrefix(payload, "\ufeff"))
	if payload == "" {
		return nil, model.ValidationError("payload is required")
	}
	if !strings.Contains(payload, "<PrintLetterBarcodeData") {
		return nil, model.ValidationError("unsupported QR payload")
	}

	var c card
	if err := xml.Unmarshal([]byte(payload), &c); err != nil {
		return nil, model.ValidationError("malformed QR payload")
	}
	if strings.TrimSpace(c.Name) == "" {
		return nil, model.ValidationError("QR payload has no name")
	}

	d := &model.CustomerDraft{
		Name:        clean(c.Name),
		FatherName:  careOf(c.CareOf),
		Gender:      gender(c.Gender),
		YearOfBirth: year(c.YOB, c.DOB),
		Village:     firstNonEmpty(c.VTC, c.Locality),
		Address:     join(c.House, c.Street, c.Landmark, c.Locality, c.PO, c.SubDist),
		District:    clean(c.District),
		State:       clean(c.State),
		Pincode:     clean(c.Pincode),
		Source:      SourceLocal,
	}
	if id := idcrypt.Clean(c.UID); len(id) == idcrypt.Digits {
		d.NationalID = id
	}
	return d, nil
}

func careOf(s string) string {
	return clean(careOfPrefix.ReplaceAllString(s, ""))
}

func gender(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M", "MALE":
		return "male"
	case "F", "FEMALE":
		return "female"
	case "":
		return ""
	}
	return "other"
}

func year(yob, dob string) string {
	if y := clean(yob); len(y) == 4 {
		return y
	}
	dob = clean(dob)
	// dd/mm/yyyy, dd-mm-yyyy or yyyy-mm-dd
	if len(dob) == 10 {
		if dob[4] == '-' {
			return dob[:4]
		}
		return dob[6:]
	}
	return ""
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = clean(v); v != "" {
			return v
		}
	}
	return ""
}

func join(parts ...string) string {
	var out []string
	seen := map[string]bool{}
	for _, p := range parts {
		p = clean(p)
		if p == "" || seen[strings.ToLower(p)] {
			continue
		}
		seen[strings.ToLower(p)] = true
		out = append(out, p)
	}
	return strings.Join(out, ", ")
}
