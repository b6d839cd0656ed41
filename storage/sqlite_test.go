package storage

import (
	"path/filepath"
	"testing"
	"time"

	"immo_scrooper/models"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ops.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_RunLifecycleAndStats(t *testing.T) {
	s := newTestSQLite(t)

	run := &models.ScrapeRun{SiteID: "willhaben", StartedAt: time.Now().Add(-time.Minute), Status: models.RunStatusRunning}
	id, err := s.CreateRun(run)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	run.ID = id
	if err := s.Log(&id, models.LogLevelInfo, "found 12 listings", "willhaben"); err != nil {
		t.Fatalf("log: %v", err)
	}

	finished := time.Now()
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.ListingsFound = 12
	run.ListingsInserted = 5
	run.ListingsRejected = 3
	if err := s.UpdateRun(run); err != nil {
		t.Fatalf("update run: %v", err)
	}
	if err := s.UpdateSiteStats("willhaben"); err != nil {
		t.Fatalf("update stats: %v", err)
	}

	runs, err := s.ListRuns(10)
	if err != nil || len(runs) != 1 {
		t.Fatalf("list runs: %v (%d)", err, len(runs))
	}
	if runs[0].ListingsInserted != 5 || runs[0].FinishedAt == nil {
		t.Fatalf("unexpected run %+v", runs[0])
	}

	stats, err := s.ListSiteStats()
	if err != nil || len(stats) != 1 {
		t.Fatalf("list stats: %v (%d)", err, len(stats))
	}
	if stats[0].TotalInserted != 5 || stats[0].TotalRejected != 3 || stats[0].SuccessRate != 1 {
		t.Fatalf("unexpected stats %+v", stats[0])
	}

	logs, err := s.RunLogs(id)
	if err != nil || len(logs) != 1 || logs[0].Source != "willhaben" {
		t.Fatalf("unexpected logs %+v (%v)", logs, err)
	}
}

func TestSQLiteStore_Rejections(t *testing.T) {
	s := newTestSQLite(t)

	r := &models.Rejection{
		URL:     "https://example.at/cheap",
		Source:  "derstandard",
		Reasons: []models.RejectionReason{models.ReasonPriceTooLow, models.ReasonAreaTooSmall},
	}
	if err := s.SaveRejection(nil, r); err != nil {
		t.Fatalf("save rejection: %v", err)
	}

	got, err := s.ListRejections(10)
	if err != nil || len(got) != 1 {
		t.Fatalf("list rejections: %v (%d)", err, len(got))
	}
	if !got[0].Has(models.ReasonPriceTooLow) || !got[0].Has(models.ReasonAreaTooSmall) {
		t.Fatalf("reasons lost: %+v", got[0])
	}
}

func TestSQLiteStore_CommandQueue(t *testing.T) {
	s := newTestSQLite(t)

	if _, err := s.InsertCommand(models.CmdScrapeSite, &models.CommandParams{Site: "willhaben"}); err != nil {
		t.Fatalf("insert command: %v", err)
	}
	if _, err := s.InsertCommand(models.CmdPause, nil); err != nil {
		t.Fatalf("insert command: %v", err)
	}

	cmds, err := s.GetPendingCommands()
	if err != nil || len(cmds) != 2 {
		t.Fatalf("pending: %v (%d)", err, len(cmds))
	}
	params, err := s.ParseCommandParams(&cmds[0])
	if err != nil || params.Site != "willhaben" {
		t.Fatalf("unexpected params %+v (%v)", params, err)
	}
	if params, _ := s.ParseCommandParams(&cmds[1]); params.Site != "" {
		t.Fatalf("expected empty params for pause")
	}

	if err := s.MarkCommandProcessed(cmds[0].ID); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	cmds, _ = s.GetPendingCommands()
	if len(cmds) != 1 || cmds[0].Command != models.CmdPause {
		t.Fatalf("unexpected pending commands %+v", cmds)
	}
}
