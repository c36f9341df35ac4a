package patient

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Records written by the older browser dashboard used camelCase keys, a
// first/last name pair on some screens, string durations and "2.50 MB"
// sizes. Decoding accepts both shapes; encoding only ever writes the
// canonical one.

type legacyPatient struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	FirstNameSnake  string `json:"first_name"`
	LastNameSnake   string `json:"last_name"`
	DateOfBirth     string `json:"dateOfBirth"`
	MedicalHistory  string `json:"medicalHistory"`
	LastVisit       string `json:"lastVisit"`
	NextAppointment string `json:"nextAppointment"`
}

func (p *Patient) UnmarshalJSON(b []byte) error {
	type plain Patient
	aux := struct {
		*plain
		legacyPatient
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	l := aux.legacyPatient
	if p.Name == "" {
		first := firstNonEmpty(l.FirstName, l.FirstNameSnake)
		last := firstNonEmpty(l.LastName, l.LastNameSnake)
		p.Name = strings.TrimSpace(first + " " + last)
	}
	fill(&p.DateOfBirth, l.DateOfBirth)
	fill(&p.MedicalHistory, l.MedicalHistory)
	fill(&p.LastVisit, l.LastVisit)
	fill(&p.NextAppointment, l.NextAppointment)
	return nil
}

type legacyConsultation struct {
	StartTime   string          `json:"startTime"`
	EndTime     string          `json:"endTime"`
	Duration    json.RawMessage `json:"duration"`
	ICD10Codes  []string        `json:"icd10Codes"`
	CPTCode1    string          `json:"cptCode1"`
	CPTCode2    string          `json:"cptCode2"`
	OTName      string          `json:"otName"`
	OTSignature string          `json:"otSignature"`
	ShareNoteTo string          `json:"shareSOAPNoteTo"`
}

func (c *Consultation) UnmarshalJSON(b []byte) error {
	type plain Consultation
	aux := struct {
		*plain
		legacyConsultation
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	l := aux.legacyConsultation
	fill(&c.StartTime, l.StartTime)
	fill(&c.EndTime, l.EndTime)
	fill(&c.SignerName, l.OTName)
	fill(&c.Signature, l.OTSignature)
	fill(&c.ShareNoteWith, l.ShareNoteTo)
	if len(c.DiagnosisCodes) == 0 && len(l.ICD10Codes) > 0 {
		c.DiagnosisCodes = l.ICD10Codes
	}
	if len(c.ProcedureCodes) == 0 {
		for _, code := range []string{l.CPTCode1, l.CPTCode2} {
			if code != "" {
				c.ProcedureCodes = append(c.ProcedureCodes, code)
			}
		}
	}
	if c.DurationMinutes == 0 {
		if n, ok := looseInt(l.Duration); ok {
			c.DurationMinutes = n
		} else {
			deriveDuration(&c.ConsultationFields)
		}
	}
	return nil
}

func (d *Document) UnmarshalJSON(b []byte) error {
	type plain Document
	aux := struct {
		*plain
		Size       json.RawMessage `json:"size"`
		UploadDate string          `json:"uploadDate"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	if n, ok := sizeBytes(aux.Size); ok {
		d.Size = n
	}
	if d.UploadedAt.IsZero() && aux.UploadDate != "" {
		if t, err := time.Parse("2006-01-02", aux.UploadDate); err == nil {
			d.UploadedAt = t
		}
	}
	return nil
}

func fill(dst *string, legacy string) {
	if *dst == "" {
		*dst = legacy
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// looseInt reads a JSON number or a numeric string.
func looseInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return n, err == nil
}

// sizeBytes reads a byte count or a "2.50 MB" / "512 KB" label.
func sizeBytes(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	fields := strings.Fields(strings.ToUpper(s))
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	unit := "B"
	if len(fields) > 1 {
		unit = fields[1]
	}
	switch unit {
	case "GB":
		v *= 1 << 30
	case "MB":
		v *= 1 << 20
	case "KB":
		v *= 1 << 10
	}
	return int64(v), true
}
