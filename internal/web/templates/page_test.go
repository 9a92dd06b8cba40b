package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPage_InitialState(t *testing.T) {
	var buf bytes.Buffer
	err := Page(PageData{
		KeyColumn:   "ID",
		OutputName:  "output.xlsx",
		MaxFileSize: 32 << 20,
		Result:      ResultData{Status: "Please upload both files."},
	}).Render(context.Background(), &buf)
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, `name="keys"`)
	assert.Contains(t, html, `name="data"`)
	assert.Contains(t, html, "Please upload both files.")
	assert.Contains(t, html, `id="download-button" disabled`)
	assert.Contains(t, html, "32 MB")
	assert.NotContains(t, html, `<table id="preview">`)
}

func TestResult_EscapesCells(t *testing.T) {
	var buf bytes.Buffer
	err := Result(ResultData{
		Status:      "Files successfully processed. Preview below.",
		Columns:     []string{"ID", "<b>Name</b>"},
		Rows:        [][]string{{"1", "a & b"}},
		TotalRows:   12,
		CanDownload: true,
		OutputName:  "output.xlsx",
	}).Render(context.Background(), &buf)
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "&lt;b&gt;Name&lt;/b&gt;")
	assert.Contains(t, html, "a &amp; b")
	assert.Contains(t, html, `data-can-download="true"`)
	assert.Contains(t, html, "Showing 1 of 12 rows.")
}

func TestResult_Failure(t *testing.T) {
	var buf bytes.Buffer
	err := Result(ResultData{
		Status: "Error: One or both files are missing an 'ID' column.",
		Code:   "MissingKeyColumn",
		Failed: true,
	}).Render(context.Background(), &buf)
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "status-error")
	assert.Contains(t, html, "missing an &#39;ID&#39; column")
	assert.True(t, strings.Contains(html, `data-can-download="false"`))
	assert.NotContains(t, html, "<table")
}

func TestErrorAlert(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ErrorAlert("Too many requests", "Please wait", "RATE001").Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), "Error code: RATE001")
}
