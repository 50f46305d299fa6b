package vertex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
	"github.com/google/uuid"

	"github.com/silent-stones/vertex-universal-orchestrator/models"
)

// SnapshotWriter persists one status snapshot per poll round. Write failures
// are logged and swallowed; a broken disk must never stop the monitor.
type SnapshotWriter struct {
	dir string
}

func NewSnapshotWriter(dir string) *SnapshotWriter {
	return &SnapshotWriter{dir: dir}
}

func (w *SnapshotWriter) Write(snapshot models.StatusSnapshot) {
	if err := w.write(snapshot); err != nil {
		logs.GetLogger().Errorf("Error saving status snapshot: %v", err)
	}
}

func (w *SnapshotWriter) write(snapshot models.StatusSnapshot) error {
	if err := os.MkdirAll(w.dir, os.ModePerm); err != nil {
		return fmt.Errorf("failed create snapshot dir %s: %w", w.dir, err)
	}

	// Second-granularity timestamps collide when rounds run close together;
	// the uuid suffix keeps every round's file distinct.
	fileName := fmt.Sprintf("%s_status_%s_%s.json",
		snapshot.ExperimentName,
		time.Now().Format("20060102_150405"),
		uuid.NewString()[:8])

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed marshal snapshot: %w", err)
	}

	snapshotFile := filepath.Join(w.dir, fileName)
	if err := os.WriteFile(snapshotFile, data, 0644); err != nil {
		return fmt.Errorf("failed write snapshot file %s: %w", snapshotFile, err)
	}
	logs.GetLogger().Debugf("Status snapshot saved to %s", snapshotFile)
	return nil
}
