package statements

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestMapHeadersBySubstring(t *testing.T) {
	headers := []string{"Fecha Operación", "Banco Emisor", "No. Referencia", "Monto (Q)", "Número de Autorización"}

	mapping, err := MapHeaders(headers, StatementColumns)
	require.NoError(t, err)
	assert.Equal(t, 0, mapping[FieldDate])
	assert.Equal(t, 1, mapping[FieldBank])
	assert.Equal(t, 2, mapping[FieldReference])
	assert.Equal(t, 3, mapping[FieldAmount])
	assert.Equal(t, 4, mapping[FieldAuthNumber])
}

func TestMapHeadersKeepsValueDateAsDate(t *testing.T) {
	headers := []string{"Fecha", "Fecha Valor", "Referencia", "Crédito", "Banco"}

	mapping, err := MapHeaders(headers, StatementColumns)
	require.NoError(t, err)
	assert.Equal(t, 0, mapping[FieldDate])
	assert.Equal(t, 2, mapping[FieldReference])
	assert.Equal(t, 3, mapping[FieldAmount])
	assert.Equal(t, 4, mapping[FieldBank])
}

func TestMapHeadersBankNameIsBank(t *testing.T) {
	headers := []string{"Carnet", "Nombre del Banco", "Nombre", "Boleta", "Monto", "Fecha"}

	mapping, err := MapHeaders(headers, HistoricalColumns)
	require.NoError(t, err)
	assert.Equal(t, 1, mapping[FieldBank])
	assert.Equal(t, 2, mapping[FieldStudentName])
	assert.Equal(t, 4, mapping[FieldAmount])
	assert.Equal(t, 5, mapping[FieldDate])
}

func TestMapHeadersFallsBackToEditDistance(t *testing.T) {
	headers := []string{"banko", "boletta", "amont", "fech"}

	mapping, err := MapHeaders(headers, StatementColumns)
	require.NoError(t, err)
	assert.Equal(t, 0, mapping[FieldBank])
	assert.Equal(t, 1, mapping[FieldReference])
	assert.Equal(t, 2, mapping[FieldAmount])
	assert.Equal(t, 3, mapping[FieldDate])
}

func TestMapHeadersReportsMissingColumns(t *testing.T) {
	_, err := MapHeaders([]string{"Banco", "Monto"}, StatementColumns)

	var missing *MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []Field{FieldReference, FieldDate}, missing.Fields)
}

func TestParseCSVWithSemicolons(t *testing.T) {
	data := []byte("\xef\xbb\xbfBanco;Referencia;Monto;Fecha\n" +
		"BI;R100;1.000,00;06/01/2024\n" +
		";;;\n" +
		"Banrural;545109 / 1740192;250;2024-01-07\n")

	table, err := Parse("estado.csv", data, StatementColumns)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)

	first := table.Rows[0]
	assert.Equal(t, 2, first.Number)
	assert.Equal(t, "BI", first.Get(FieldBank))
	assert.Equal(t, "1.000,00", first.Get(FieldAmount))
	assert.Equal(t, "", first.Get(FieldAuthNumber))
	assert.Equal(t, 4, table.Rows[1].Number)
}

func TestParseXLSXUsesRawValues(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Bank", "Reference", "Amount", "Date"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"BI", "R100", 1000, 45297}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := Parse("statement.xlsx", buf.Bytes(), StatementColumns)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "1000", table.Rows[0].Get(FieldAmount))
	assert.Equal(t, "45297", table.Rows[0].Get(FieldDate))
}

func TestParseRejectsLegacyExcel(t *testing.T) {
	_, err := Parse("statement.xls", []byte{0xD0, 0xCF}, StatementColumns)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseHistoricalColumns(t *testing.T) {
	data := []byte("Carnet,Nombre Estudiante,No. Boleta,Monto,Fecha de Pago,Cuota Aprobada,Banco,Concepto\n" +
		"2024-001,Ana López,R-1,1000,05/01/2024,1000,BI,Mensualidad enero\n")

	table, err := Parse("historico.csv", data, HistoricalColumns)
	require.NoError(t, err)
	row := table.Rows[0]
	assert.Equal(t, "2024-001", row.Get(FieldCarnet))
	assert.Equal(t, "Ana López", row.Get(FieldStudentName))
	assert.Equal(t, "R-1", row.Get(FieldReference))
	assert.Equal(t, "1000", row.Get(FieldApprovedFee))
	assert.Equal(t, "Mensualidad enero", row.Get(FieldConcept))
}
