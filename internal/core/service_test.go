package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csvInput(name, body string) *Input {
	return &Input{Name: name, Reader: strings.NewReader(body), Size: int64(len(body))}
}

func TestService_Run_Joins(t *testing.T) {
	svc := NewService(Options{}, nil)

	run, err := svc.Run(context.Background(), Request{
		Keys: csvInput("keys.csv", "ID,Name\n1,x\n2,y\n3,z\n"),
		Data: csvInput("data.csv", "ID,Val\n2,10\n3,20\n"),
	})
	require.NoError(t, err)

	require.True(t, run.Result.OK())
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, SuccessStatus, run.View.Status)
	assert.Equal(t, []string{"ID", "Name", "Val"}, run.View.Columns)
	assert.Equal(t, [][]string{{"1", "x", ""}, {"2", "y", "10"}, {"3", "z", "20"}}, run.View.PreviewCells())
	assert.Equal(t, 3, run.KeysRows)
	assert.Equal(t, 2, run.DataRows)

	art, err := svc.Export(run, FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "output.xlsx", art.Name)
	assert.NotEmpty(t, art.Data)
}

func TestService_Run_MixedFormats(t *testing.T) {
	svc := NewService(Options{}, nil)

	xlsx := buildWorkbook(t, map[string]any{"A1": "ID", "B1": "Val", "A2": 1, "B2": "from xlsx"})
	run, err := svc.Run(context.Background(), Request{
		Keys: csvInput("keys.csv", "ID\n1\n"),
		Data: &Input{Name: "data.xlsx", Reader: bytes.NewReader(xlsx.Bytes()), Size: int64(xlsx.Len())},
	})
	require.NoError(t, err)
	require.True(t, run.Result.OK())
	assert.Equal(t, [][]string{{"1", "from xlsx"}}, run.View.PreviewCells())
}

func TestService_Run_MissingFiles(t *testing.T) {
	svc := NewService(Options{}, nil)

	run, err := svc.Run(context.Background(), Request{Keys: csvInput("keys.csv", "ID\n1\n")})
	require.NoError(t, err)

	assert.False(t, run.Result.OK())
	assert.Equal(t, "Please upload both files.", run.View.Status)
	assert.Equal(t, StageAwaitingFiles, run.View.Stage)
	assert.Empty(t, run.View.Preview)

	_, err = svc.Export(run, FormatXLSX)
	assert.ErrorIs(t, err, ErrNoArtifact)
}

func TestService_Run_MissingKeyColumn(t *testing.T) {
	svc := NewService(Options{}, nil)

	run, err := svc.Run(context.Background(), Request{
		Keys: csvInput("keys.csv", "Name\nx\n"),
		Data: csvInput("data.csv", "ID,Val\n1,2\n"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Error: One or both files are missing an 'ID' column.", run.View.Status)
	assert.Equal(t, KindMissingKeyColumn, run.View.Code)
	assert.Contains(t, run.View.Detail, "keys.csv")
	assert.False(t, run.View.CanDownload)
}

func TestService_Run_UnreadableFile(t *testing.T) {
	svc := NewService(Options{}, nil)

	run, err := svc.Run(context.Background(), Request{
		Keys: csvInput("keys.csv", "ID\n1\n"),
		Data: &Input{Name: "data.xlsx", Reader: strings.NewReader("garbage"), Size: 7},
	})
	require.NoError(t, err)

	require.NotNil(t, run.Result.Err())
	assert.Equal(t, KindUnreadableFile, run.Result.Err().Kind)
	assert.Equal(t, "Error: Could not read data file (data.xlsx). Upload a valid .xlsx or .csv file.", run.View.Status)
}

func TestService_Run_FileTooLarge(t *testing.T) {
	svc := NewService(Options{MaxFileSize: 8}, nil)

	_, err := svc.Run(context.Background(), Request{
		Keys: csvInput("keys.csv", "ID\n1\n"),
		Data: csvInput("data.csv", "ID,Val\n1,2\n3,4\n"),
	})
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestService_Run_Busy(t *testing.T) {
	svc := NewService(Options{MaxConcurrent: 1, MaxWait: 50 * time.Millisecond}, nil)
	require.True(t, svc.limiter.TryAcquire())
	defer svc.limiter.Release()

	_, err := svc.Run(context.Background(), Request{
		Keys: csvInput("keys.csv", "ID\n1\n"),
		Data: csvInput("data.csv", "ID\n1\n"),
	})
	assert.True(t, errors.Is(err, ErrTooManyRuns))
	assert.Equal(t, 1, svc.LimiterStatus().Active)
}

func TestService_Run_RecordsHistory(t *testing.T) {
	history := NewMemoryHistory(10)
	svc := NewService(Options{}, history)

	ctx := ContextWithIPAddress(context.Background(), "192.0.2.1")
	ctx = ContextWithUserAgent(ctx, "test-agent")

	_, err := svc.Run(ctx, Request{
		Keys: csvInput("keys.csv", "ID\n1\n1\n"),
		Data: csvInput("data.csv", "ID,Val\n1,a\n1,b\n"),
	})
	require.NoError(t, err)
	_, err = svc.Run(ctx, Request{})
	require.NoError(t, err)

	recs, err := svc.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, KindMissingFiles, recs[0].Code)
	assert.Equal(t, StageAwaitingFiles, recs[0].Stage)

	joined := recs[1]
	assert.Equal(t, StageRendered, joined.Stage)
	assert.Empty(t, joined.Code)
	assert.Equal(t, "keys.csv", joined.KeysFile)
	assert.Equal(t, "data.csv", joined.DataFile)
	assert.Equal(t, 4, joined.OutputRows)
	assert.Equal(t, 2, joined.Columns)
	assert.Equal(t, "192.0.2.1", joined.IPAddress)
	assert.Equal(t, "test-agent", joined.UserAgent)
}

func TestService_RunIsRepeatable(t *testing.T) {
	svc := NewService(Options{}, nil)
	req := func() Request {
		return Request{
			Keys: csvInput("keys.csv", "ID,Name\n1,x\n2,y\n"),
			Data: csvInput("data.csv", "ID,Name\n1,p\n1,q\n"),
		}
	}

	first, err := svc.Run(context.Background(), req())
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), req())
	require.NoError(t, err)

	a, _ := first.Result.Table()
	b, _ := second.Result.Table()
	assert.Equal(t, a, b)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestService_PruneJob(t *testing.T) {
	history := NewMemoryHistory(10)
	svc := NewService(Options{}, history)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, history.Record(ctx, RunRecord{ID: "old", CreatedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, history.Record(ctx, RunRecord{ID: "new", CreatedAt: now.Add(-time.Hour)}))

	removed := svc.runPruneJob(ctx, PruneConfig{Retention: 24 * time.Hour}.withDefaults())
	assert.EqualValues(t, 1, removed)

	recs, err := svc.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "new", recs[0].ID)
}

func TestService_PruneSchedulerStops(t *testing.T) {
	svc := NewService(Options{}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.StartPruneScheduler(ctx, PruneConfig{Interval: 10 * time.Millisecond})
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}
