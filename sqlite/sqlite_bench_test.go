package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/fwojciec/kura"
	"github.com/fwojciec/kura/sqlite"
	"github.com/stretchr/testify/require"
)

// BenchmarkRecordPage simulates a crawl workload: one run recording many pages.
func BenchmarkRecordPage(b *testing.B) {
	db := sqlite.NewDB(filepath.Join(b.TempDir(), "bench.db"))
	require.NoError(b, db.Open())
	b.Cleanup(func() { db.Close() })

	svc := sqlite.NewManifestService(db)
	ctx := context.Background()

	run := &kura.Run{Seed: "http://example.com/"}
	require.NoError(b, svc.CreateRun(ctx, run))

	for i := 0; b.Loop(); i++ {
		rec := &kura.PageRecord{
			RunID:  run.ID,
			URL:    fmt.Sprintf("http://example.com/p%d.html", i),
			Slug:   fmt.Sprintf("p%d", i),
			Depth:  1,
			Status: kura.PageSaved,
		}
		if err := svc.RecordPage(ctx, rec); err != nil {
			b.Fatal(err)
		}
	}
}
