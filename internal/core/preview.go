package core

// DefaultPreviewRows is how many joined rows are shown on screen.
const DefaultPreviewRows = 10

// View is everything the display needs for one pipeline run.
type View struct {
	Stage       Stage     `json:"stage"`
	Status      string    `json:"status"`
	Code        ErrorKind `json:"code,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	Columns     []string  `json:"columns,omitempty"`
	Preview     [][]Value `json:"-"`
	TotalRows   int       `json:"total_rows"`
	CanDownload bool      `json:"can_download"`
}

// PreviewCells returns the preview as display strings. Missing values are
// rendered as empty strings.
func (v View) PreviewCells() [][]string {
	out := make([][]string, len(v.Preview))
	for i, row := range v.Preview {
		cells := make([]string, len(row))
		for j, val := range row {
			cells[j] = val.String()
		}
		out[i] = cells
	}
	return out
}

// PreviewValues returns the preview as plain scalars aligned with Columns.
// Missing values become nil.
func (v View) PreviewValues() [][]any {
	out := make([][]any, len(v.Preview))
	for i, row := range v.Preview {
		vals := make([]any, len(row))
		for j, val := range row {
			vals[j] = val.Interface()
		}
		out[i] = vals
	}
	return out
}

// Present renders a JoinResult for display. On success the status is
// SuccessStatus and the first limit rows are included (all rows when the
// table is shorter; limit <= 0 means DefaultPreviewRows). On failure the
// status is the error message and there is no preview.
func Present(result JoinResult, limit int) View {
	if limit <= 0 {
		limit = DefaultPreviewRows
	}

	t, ok := result.Table()
	if !ok {
		v := View{Stage: StageFailed, Status: MissingFilesStatus, Code: KindMissingFiles}
		if je := result.Err(); je != nil {
			v.Status = je.Message()
			v.Code = je.Kind
			v.Detail = je.Detail()
			if je.Kind == KindMissingFiles {
				v.Stage = StageAwaitingFiles
			}
		}
		return v
	}

	return View{
		Stage:       StageRendered,
		Status:      SuccessStatus,
		Columns:     t.Columns,
		Preview:     t.Head(limit),
		TotalRows:   t.Len(),
		CanDownload: true,
	}
}
