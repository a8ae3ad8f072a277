package utils

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestDiscoverBooks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.csv"))
	touch(t, filepath.Join(dir, "a.XLSX"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, ".hidden.csv"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755))

	fm := NewFileManager(dir, "", "")
	got, err := fm.DiscoverBooks([]string{".csv", ".xlsx"})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "a.XLSX"), filepath.Join(dir, "b.csv")}, got)
}

func TestArchiveBook(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	in := filepath.Join(root, "in")
	archive := filepath.Join(root, "archive")

	fm := NewFileManager(in, filepath.Join(root, "out"), archive)
	require.NoError(t, fm.EnsureDirectories())

	book := filepath.Join(in, "trip.csv")
	touch(t, book)

	// Disabled archiving leaves the book in place.
	got, err := fm.ArchiveBook(book)
	require.NoError(t, err)
	assert.Equal(t, book, got)
	assert.True(t, FileExists(book))

	fm.ArchiveOnSuccess = true
	got, err = fm.ArchiveBook(book)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(archive, "trip.csv"), got)
	assert.False(t, FileExists(book))
	assert.True(t, FileExists(got))

	// A second book of the same name does not overwrite the first.
	touch(t, book)
	second, err := fm.ArchiveBook(book)
	require.NoError(t, err)
	assert.NotEqual(t, got, second)
	assert.True(t, FileExists(got))
	assert.True(t, FileExists(second))
}

func TestGenerateOutputFileName(t *testing.T) {
	t.Parallel()

	name := GenerateOutputFileName("{project}_{date}_{uuid}", ".xml", map[string]string{"project": "Ski trip/2024"})

	pattern := regexp.MustCompile(`^Ski_trip_2024_\d{4}-\d{2}-\d{2}_[0-9a-f-]{36}\.xml$`)
	assert.Regexp(t, pattern, name)

	assert.Equal(t, "fixed.csv", GenerateOutputFileName("fixed.csv", ".csv", nil))
	assert.Equal(t, "fixed.csv", GenerateOutputFileName("fixed", ".csv", nil))
}

func TestSanitizeFileName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a_b_c", SanitizeFileName("a/b:c"))
	assert.Equal(t, "unnamed", SanitizeFileName("  "))
	assert.Equal(t, "Zoë", SanitizeFileName("Zoë"))
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "state.json")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestWriteErrorLog(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	path, err := WriteErrorLog(nil, dir)
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = WriteErrorLog([]ErrorLogEntry{{
		Timestamp:   time.Now(),
		FileName:    "trip.csv",
		ErrorCode:   "SHARE_MISMATCH",
		Message:     `bill "dinner": shares sum to 0.9, expected 1`,
		BillID:      "dinner",
		RowNumber:   3,
		Participant: "",
	}}, dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Total Errors: 1")
	assert.Contains(t, string(data), "SHARE_MISMATCH")
	assert.Contains(t, string(data), "Row Number:  3")
	assert.NotContains(t, string(data), "Participant:")
}

func TestWriteSummaryLog(t *testing.T) {
	t.Parallel()

	start := time.Now()
	path, err := WriteSummaryLog(ProcessingSummary{
		RunID:           "run-1",
		StartTime:       start,
		EndTime:         start.Add(time.Second),
		TotalFiles:      2,
		SuccessfulFiles: 1,
		FailedFiles:     1,
		ProcessedFiles:  []ProcessedFileInfo{{InputFile: "a.csv", OutputFile: "a.txt", Transactions: 2, Volume: "60.00"}},
		FailedFilesList: []FailedFileInfo{{InputFile: "b.csv", ErrorMessage: "boom", ErrorCode: "UNKNOWN"}},
	}, t.TempDir())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Run ID:         run-1")
	assert.Contains(t, string(data), "Volume:       60.00")
	assert.Contains(t, string(data), "Error: boom")
}
