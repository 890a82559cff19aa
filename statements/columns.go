// Package statements reads bank statement and historical payment
// spreadsheets (CSV or XLSX) whose headers vary from bank to bank.
package statements

import (
	"fmt"
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Field is a logical column the importers understand.
type Field string

const (
	FieldBank        Field = "bank"
	FieldAuthNumber  Field = "authNumber"
	FieldReference   Field = "reference"
	FieldAmount      Field = "amount"
	FieldDate        Field = "date"
	FieldCarnet      Field = "carnet"
	FieldStudentID   Field = "studentId"
	FieldStudentName Field = "studentName"
	FieldApprovedFee Field = "approvedMonthlyFee"
	FieldConcept     Field = "concept"
)

// Column describes how a field is recognized in a header row. Keywords are
// matched as lowercase substrings, in the order the columns are listed.
type Column struct {
	Field    Field
	Keywords []string
	Required bool
}

// maxHeaderDistance is the edit distance under which a header with no
// keyword substring is still accepted as that keyword.
const maxHeaderDistance = 2

var headerDistance = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// StatementColumns maps bank statement exports. Date is tried before amount
// so value-date headers such as "Fecha Valor" stay dates.
var StatementColumns = []Column{
	{Field: FieldBank, Keywords: []string{"banco", "bank"}, Required: true},
	{Field: FieldAuthNumber, Keywords: []string{"autoriz", "auth"}},
	{Field: FieldReference, Keywords: []string{"referencia", "reference", "ref", "documento", "boleta"}, Required: true},
	{Field: FieldDate, Keywords: []string{"fecha", "date"}, Required: true},
	{Field: FieldAmount, Keywords: []string{"monto", "amount", "importe", "valor", "credito", "crédito"}, Required: true},
}

// HistoricalColumns maps the historical payments spreadsheet. Either carnet
// or studentId must be present; that is checked by the importer. Bank is
// tried before student name so "Nombre del Banco" is the bank.
var HistoricalColumns = []Column{
	{Field: FieldStudentID, Keywords: []string{"student_id", "studentid", "id estudiante", "id_estudiante"}},
	{Field: FieldCarnet, Keywords: []string{"carnet", "carné", "carne", "codigo", "código"}},
	{Field: FieldBank, Keywords: []string{"banco", "bank"}},
	{Field: FieldStudentName, Keywords: []string{"nombre", "name", "estudiante", "alumno"}},
	{Field: FieldApprovedFee, Keywords: []string{"aprobad", "approved", "mensualidad"}},
	{Field: FieldReference, Keywords: []string{"boleta", "recibo", "receipt", "referencia", "documento"}, Required: true},
	{Field: FieldDate, Keywords: []string{"fecha", "date"}, Required: true},
	{Field: FieldAmount, Keywords: []string{"monto", "amount", "importe", "valor"}, Required: true},
	{Field: FieldConcept, Keywords: []string{"concepto", "concept", "descripci"}},
}

// MissingColumnsError is returned when a required field has no header.
type MissingColumnsError struct {
	Fields []Field
}

func (e *MissingColumnsError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return fmt.Sprintf("missing required columns: %s", strings.Join(names, ", "))
}

// MapHeaders assigns header indexes to fields. A header goes to the first
// column with a keyword it contains; headers without a hit fall back to the
// closest keyword within maxHeaderDistance edits. Each field takes the first
// header assigned to it.
func MapHeaders(headers []string, columns []Column) (map[Field]int, error) {
	mapping := make(map[Field]int)
	var unmatched []int

	for i, raw := range headers {
		header := cleanHeader(raw)
		if header == "" {
			continue
		}
		if field, ok := substringField(header, columns); ok {
			if _, taken := mapping[field]; !taken {
				mapping[field] = i
			}
			continue
		}
		unmatched = append(unmatched, i)
	}

	for _, i := range unmatched {
		field, ok := closestField(cleanHeader(headers[i]), columns)
		if !ok {
			continue
		}
		if _, taken := mapping[field]; !taken {
			mapping[field] = i
		}
	}

	var missing []Field
	for _, col := range columns {
		if _, ok := mapping[col.Field]; col.Required && !ok {
			missing = append(missing, col.Field)
		}
	}
	if len(missing) > 0 {
		return mapping, &MissingColumnsError{Fields: missing}
	}
	return mapping, nil
}

func cleanHeader(raw string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
}

func substringField(header string, columns []Column) (Field, bool) {
	for _, col := range columns {
		for _, kw := range col.Keywords {
			if strings.Contains(header, kw) {
				return col.Field, true
			}
		}
	}
	return "", false
}

func closestField(header string, columns []Column) (Field, bool) {
	type hit struct {
		field    Field
		distance int
		order    int
	}
	var hits []hit
	order := 0
	for _, col := range columns {
		for _, kw := range col.Keywords {
			order++
			if len([]rune(kw)) <= maxHeaderDistance+1 {
				continue
			}
			d := levenshtein.DistanceForStrings([]rune(header), []rune(kw), headerDistance)
			if d <= maxHeaderDistance {
				hits = append(hits, hit{field: col.Field, distance: d, order: order})
			}
		}
	}
	if len(hits) == 0 {
		return "", false
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].distance != hits[j].distance {
			return hits[i].distance < hits[j].distance
		}
		return hits[i].order < hits[j].order
	})
	return hits[0].field, true
}
