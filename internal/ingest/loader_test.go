package ingest

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSONArray(t *testing.T) {
	input := `[
		{"number": "INC001", "short_description": "VPN drops", "description": "VPN disconnects hourly",
		 "category": "Network", "priority": 2, "created_at": "2024-03-01T08:00:00Z", "resolved_at": "2024-03-01 10:30:00"},
		{"number": "", "short_description": "", "description": ""}
	]`
	incidents, err := NewLoader(nil).Load(strings.NewReader(input), FormatJSON)
	require.NoError(t, err)
	require.Len(t, incidents, 1)

	inc := incidents[0]
	assert.Equal(t, "INC001", inc.Number)
	assert.Equal(t, "2", inc.Priority)
	require.NotNil(t, inc.CreatedAt)
	require.NotNil(t, inc.ResolvedAt)
	hours, ok := inc.ResolutionDuration()
	require.True(t, ok)
	assert.Equal(t, 150*time.Minute, hours)
}

func TestLoadJSONTableEnvelope(t *testing.T) {
	input := `{"result": [{
		"number": "INC002", "short_description": "Printer jam",
		"assignment_group": {"display_value": "Desktop Support", "link": "https://example/api"},
		"sys_created_on": "2024-03-02 09:00:00", "close_notes": "Cleared tray"
	}]}`
	incidents, err := NewLoader(nil).Load(strings.NewReader(input), FormatJSON)
	require.NoError(t, err)
	require.Len(t, incidents, 1)
	assert.Equal(t, "Desktop Support", incidents[0].AssignmentGroup)
	assert.Equal(t, "Printer jam", incidents[0].Description, "description falls back to short description")
	assert.Equal(t, "Cleared tray", incidents[0].Resolution())
	require.NotNil(t, incidents[0].CreatedAt)
}

func TestLoadJSONIncidentsEnvelope(t *testing.T) {
	input := `{"incidents": [{"number": "INC003", "short_description": "Disk full"}]}`
	incidents, err := NewLoader(nil).Load(strings.NewReader(input), FormatJSON)
	require.NoError(t, err)
	require.Len(t, incidents, 1)
	assert.Equal(t, "INC003", incidents[0].Number)
}

func TestLoadEmptyInput(t *testing.T) {
	incidents, err := NewLoader(nil).Load(strings.NewReader("  "), FormatJSON)
	require.NoError(t, err)
	assert.Empty(t, incidents)

	incidents, err = NewLoader(nil).Load(strings.NewReader(""), FormatCSV)
	require.NoError(t, err)
	assert.Empty(t, incidents)
}

func TestLoadCSVHeaderAliases(t *testing.T) {
	input := "\uFEFFIncident Number,Short Description,Description,Category,Assignment Group,Resolution Notes,Created,Resolved\n" +
		"INC010,Outlook crash,Outlook crashes on start,Email,Messaging,Repaired Office install,03/04/2024 08:00,03/04/2024 09:00\n" +
		",,,,,,,\n"
	incidents, err := NewLoader(nil).Load(strings.NewReader(input), FormatCSV)
	require.NoError(t, err)
	require.Len(t, incidents, 1)

	inc := incidents[0]
	assert.Equal(t, "INC010", inc.Number)
	assert.Equal(t, "Outlook crash", inc.ShortDescription)
	assert.Equal(t, "Messaging", inc.AssignmentGroup)
	assert.Equal(t, "Repaired Office install", inc.ResolutionNotes)
	d, ok := inc.ResolutionDuration()
	require.True(t, ok)
	assert.Equal(t, time.Hour, d)
}

func TestNewRecordResolvesKeyCollisions(t *testing.T) {
	raw := map[string]string{" PRIORITY ": "", "Priority": "2", "priority": "4", "Category": "Network"}
	for i := 0; i < 50; i++ {
		rec := NewRecord(raw)
		assert.Equal(t, "2", rec["priority"])
		assert.Equal(t, "Network", rec["category"])
	}

	input := "Number,Short Description,Priority,priority\nINC020,Printer jam,2,4\n"
	for i := 0; i < 20; i++ {
		incidents, err := NewLoader(nil).Load(strings.NewReader(input), FormatCSV)
		require.NoError(t, err)
		require.Len(t, incidents, 1)
		assert.Equal(t, "2", incidents[0].Priority)
	}
}

func TestLoadRejectsBadTimestamp(t *testing.T) {
	input := `[{"number": "INC004", "short_description": "x", "created_at": "yesterday"}]`
	_, err := NewLoader(nil).Load(strings.NewReader(input), FormatJSON)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INC004")
}

func TestLoadUnsupportedFormat(t *testing.T) {
	_, err := NewLoader(nil).Load(strings.NewReader("[]"), "xml")
	require.Error(t, err)
}

func TestLoadFileDetectsFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "incidents.CSV")
	require.NoError(t, os.WriteFile(path, []byte("number,short_description\nINC020,Badge reader offline\n"), 0o600))

	incidents, err := NewLoader(nil).LoadFile(path)
	require.NoError(t, err)
	require.Len(t, incidents, 1)
	assert.Equal(t, "INC020", incidents[0].Number)

	_, err = NewLoader(nil).LoadFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestWriteJSONIndents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}
