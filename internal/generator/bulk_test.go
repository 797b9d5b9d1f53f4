package generator

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"DF-FIDELITY/internal/errs"
	"DF-FIDELITY/internal/models"
	"DF-FIDELITY/internal/render"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bulkDataset(rows int) *Dataset {
	d := &Dataset{Headers: []string{"client_name", "date"}}
	for i := 1; i <= rows; i++ {
		d.Rows = append(d.Rows, []string{fmt.Sprintf("Client %d", i), "2026-01-15"})
	}
	return d
}

func bulkMapping() map[string]string {
	return map[string]string{"Client Name": "client_name", "Date": "date", "Notes": ""}
}

func textTemplate() *models.DocumentTemplate {
	tmpl := templateFixture()
	tmpl.Content = "<p>{{Client Name}} / {{Date}} / {{Notes}}</p>"
	return tmpl
}

func TestRunBulkArchiveContents(t *testing.T) {
	tmpl := textTemplate()

	archive, err := RunBulk(context.Background(), BulkInput{
		Template: tmpl,
		Dataset:  bulkDataset(7),
		Mapping:  bulkMapping(),
	}, render.NewRenderer(), nil)
	require.NoError(t, err)

	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	require.Len(t, reader.File, 7)

	for i, f := range reader.File {
		assert.Equal(t, fmt.Sprintf("Invoice_Bulk_Export/Invoice_%d.doc", i+1), f.Name)

		rc, err := f.Open()
		require.NoError(t, err)
		var body bytes.Buffer
		_, err = body.ReadFrom(rc)
		rc.Close()
		require.NoError(t, err)

		assert.True(t, strings.Contains(body.String(), fmt.Sprintf("Client %d / 2026-01-15 / n/a", i+1)),
			"row %d values substituted, unmapped field on its default", i+1)
	}
}

func TestRunBulkProgressSequence(t *testing.T) {
	tmpl := textTemplate()

	var reports []int
	_, err := RunBulk(context.Background(), BulkInput{
		Template: tmpl,
		Dataset:  bulkDataset(12),
		Mapping:  bulkMapping(),
	}, render.NewRenderer(), func(processed int) {
		reports = append(reports, processed)
	})
	require.NoError(t, err)

	assert.Equal(t, []int{5, 10, 12}, reports, "cumulative count per batch, total exactly once")
}

func TestRunBulkEmptyDataset(t *testing.T) {
	archive, err := RunBulk(context.Background(), BulkInput{
		Template: textTemplate(),
		Dataset:  bulkDataset(0),
		Mapping:  bulkMapping(),
	}, render.NewRenderer(), nil)
	require.NoError(t, err)

	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	assert.Empty(t, reader.File, "an empty dataset yields a valid empty archive")
}

func TestRunBulkIsDeterministic(t *testing.T) {
	input := BulkInput{
		Template: textTemplate(),
		Dataset:  bulkDataset(6),
		Mapping:  bulkMapping(),
	}

	first, err := RunBulk(context.Background(), input, render.NewRenderer(), nil)
	require.NoError(t, err)
	second, err := RunBulk(context.Background(), input, render.NewRenderer(), nil)
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical inputs must produce byte-identical archives")
}

func TestRunBulkOverlayMode(t *testing.T) {
	tmpl := templateFixture() // no Content: overlay artifacts

	archive, err := RunBulk(context.Background(), BulkInput{
		Template:  tmpl,
		Dataset:   bulkDataset(2),
		Mapping:   bulkMapping(),
		MasterPNG: masterFixture(t),
	}, render.NewRenderer(), nil)
	require.NoError(t, err)

	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	require.Len(t, reader.File, 2)
	assert.Equal(t, "Invoice_Bulk_Export/Invoice_1.png", reader.File[0].Name)
}

func TestRunBulkOverlayModeRequiresMaster(t *testing.T) {
	_, err := RunBulk(context.Background(), BulkInput{
		Template: templateFixture(),
		Dataset:  bulkDataset(1),
		Mapping:  bulkMapping(),
	}, render.NewRenderer(), nil)

	var validationErr *errs.ValidationError
	require.True(t, errors.As(err, &validationErr))
}

func TestRunBulkFailureDiscardsPartialOutput(t *testing.T) {
	tmpl := templateFixture()

	var reports []int
	archive, err := RunBulk(context.Background(), BulkInput{
		Template:  tmpl,
		Dataset:   bulkDataset(9),
		Mapping:   bulkMapping(),
		MasterPNG: []byte("corrupt master"),
	}, render.NewRenderer(), func(processed int) {
		reports = append(reports, processed)
	})

	require.Error(t, err)
	assert.Nil(t, archive, "no partial archive on failure")

	var batchErr *errs.BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, 1, batchErr.Row)
	assert.Empty(t, reports, "the failing batch never reports progress")
}

func TestRunBulkCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunBulk(ctx, BulkInput{
		Template: textTemplate(),
		Dataset:  bulkDataset(3),
		Mapping:  bulkMapping(),
	}, render.NewRenderer(), nil)

	var batchErr *errs.BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Q1_Report_2026", sanitizeName("Q1 Report/2026"))
	assert.Equal(t, "template", sanitizeName(""))
	assert.Equal(t, "plain-name_1.2", sanitizeName("plain-name_1.2"))
}
