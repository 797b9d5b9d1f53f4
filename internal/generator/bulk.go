package generator

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"time"

	"DF-FIDELITY/internal/errs"
	"DF-FIDELITY/internal/models"
	"DF-FIDELITY/internal/render"

	"k8s.io/klog/v2"
)

// BatchSize bounds memory per batch and sets the granularity of
// progress reporting. It is an implementation constant, not
// user-configurable.
const BatchSize = 5

// archiveEpoch pins zip entry timestamps so identical inputs produce
// byte-identical archives.
var archiveEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// BulkInput is one bulk production run: a template snapshot, a parsed
// dataset, and a field-to-header mapping that may be partially empty.
type BulkInput struct {
	Template *models.DocumentTemplate
	Dataset  *Dataset
	// Mapping maps field names to CSV headers; "" means unmapped, the
	// field falls back to its default value.
	Mapping map[string]string
	// MasterPNG is required for overlay-mode templates (no text body).
	MasterPNG []byte
}

// ProgressFunc receives the cumulative processed row count after each
// batch. The sequence is monotonically increasing and reaches the total
// exactly once, on the final batch.
type ProgressFunc func(processed int)

// RunBulk produces one artifact per data row, batched, and packages all
// outputs into a single archive. Rows are processed sequentially in
// file order so progress reporting and archive contents are
// reproducible. On any unrecoverable error the partial archive is
// discarded, never returned half-complete.
func RunBulk(ctx context.Context, in BulkInput, renderer *render.Renderer, progress ProgressFunc) ([]byte, error) {
	tmpl := in.Template
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	if tmpl.Content == "" && in.MasterPNG == nil {
		return nil, errs.NewValidationError("template has neither a text body nor a master image")
	}

	headerIndex := make(map[string]int, len(in.Mapping))
	for field, header := range in.Mapping {
		if header == "" {
			continue
		}
		if idx := in.Dataset.HeaderIndex(header); idx >= 0 {
			headerIndex[field] = idx
		}
	}

	var buf bytes.Buffer
	archive := zip.NewWriter(&buf)
	folder := sanitizeName(tmpl.Name) + "_Bulk_Export/"

	total := len(in.Dataset.Rows)
	processed := 0

	for start := 0; start < total; start += BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, &errs.BatchError{Row: processed + 1, Err: err}
		}

		end := start + BatchSize
		if end > total {
			end = total
		}

		for i := start; i < end; i++ {
			ordinal := i + 1
			values := rowValues(tmpl, in.Dataset, headerIndex, in.Dataset.Rows[i])
			if err := writeArtifact(archive, folder, tmpl, in.MasterPNG, renderer, values, ordinal); err != nil {
				return nil, &errs.BatchError{Row: ordinal, Err: err}
			}
		}

		processed = end
		if progress != nil {
			progress(processed)
		}
	}

	if err := archive.Close(); err != nil {
		return nil, &errs.BatchError{Row: processed, Err: fmt.Errorf("failed to finalize archive: %w", err)}
	}

	klog.V(4).Infof("bulk run for template %s produced %d artifacts", tmpl.ID, total)
	return buf.Bytes(), nil
}

// rowValues materializes one row-scoped value map: each field resolves
// through its mapped header index, falling back to its default value
// when unmapped or blank.
func rowValues(tmpl *models.DocumentTemplate, dataset *Dataset, headerIndex map[string]int, row []string) map[string]string {
	values := make(map[string]string, len(tmpl.Fields))
	for _, field := range tmpl.Fields {
		value := ""
		if idx, ok := headerIndex[field.Name]; ok && idx < len(row) {
			value = row[idx]
		}
		if value == "" {
			value = field.DefaultValue
		}
		values[field.Name] = value
	}
	return values
}

func writeArtifact(archive *zip.Writer, folder string, tmpl *models.DocumentTemplate, masterPNG []byte, renderer *render.Renderer, values map[string]string, ordinal int) error {
	var data []byte
	var ext string

	if tmpl.Content != "" {
		content := render.ReplaceContent(tmpl.Content, tmpl.Fields, values)
		data = []byte(render.BuildDocHTML(content))
		ext = ".doc"
	} else {
		rendered, err := renderer.Overlay(masterPNG, tmpl.Fields, values, render.Options{Export: true})
		if err != nil {
			return err
		}
		data = rendered
		ext = ".png"
	}

	// Stable, collision-free naming: template name plus row ordinal.
	name := fmt.Sprintf("%s%s_%d%s", folder, sanitizeName(tmpl.Name), ordinal, ext)
	w, err := archive.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: archiveEpoch,
	})
	if err != nil {
		return fmt.Errorf("failed to create archive entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}
	return nil
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitizeName(name string) string {
	clean := unsafeNameChars.ReplaceAllString(name, "_")
	if clean == "" {
		clean = "template"
	}
	return clean
}
