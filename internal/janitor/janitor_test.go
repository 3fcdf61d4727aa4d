package janitor

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"meter-image-backend/config"
	"meter-image-backend/internal/storage"
)

func stageStale(t *testing.T, d *storage.Dir, name string) {
	t.Helper()
	_, err := d.Stage(name, strings.NewReader("abandoned bytes"))
	require.NoError(t, err)
	old := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(d.Path(name)+".part", old, old))
}

func TestService_SweepOnce(t *testing.T) {
	files, err := storage.NewDir(t.TempDir())
	require.NoError(t, err)

	stageStale(t, files, "1_20250101_000000_dead.jpg")
	_, err = files.Stage("2_20250101_000000_live.jpg", strings.NewReader("in flight"))
	require.NoError(t, err)

	cfg := &config.StorageConfig{SweepIntervalMinutes: 15, StaleStagingMinutes: 60}
	svc := NewService(cfg, files, zap.NewNop())
	svc.SweepOnce()

	_, err = os.Stat(files.Path("1_20250101_000000_dead.jpg") + ".part")
	assert.True(t, os.IsNotExist(err), "the abandoned staging file should be removed")
	_, err = os.Stat(files.Path("2_20250101_000000_live.jpg") + ".part")
	assert.NoError(t, err, "an in-flight staging file must survive")
}

func TestService_RunSweepsImmediatelyAndStops(t *testing.T) {
	files, err := storage.NewDir(t.TempDir())
	require.NoError(t, err)
	stageStale(t, files, "3_20250101_000000_dead.jpg")

	cfg := &config.StorageConfig{SweepIntervalMinutes: 15, StaleStagingMinutes: 60}
	svc := NewService(cfg, files, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	// The first sweep happens before the timer loop starts.
	require.Eventually(t, func() bool {
		_, err := os.Stat(files.Path("3_20250101_000000_dead.jpg") + ".part")
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Run did not stop after the context was cancelled")
	}
}
