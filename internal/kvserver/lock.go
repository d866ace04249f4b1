package kvserver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kvsdb/kvs/internal/kvserr"
)

// engineLockFileName is deliberately placed in the process working
// directory rather than inside the data directory — a known quirk kept
// intentionally rather than fixed out from under existing deployments.
const engineLockFileName = "engine.lock"

// checkEngineLock enforces the engine-lock compatibility contract: if
// engine.lock is absent, it is created holding engineName; if present, it
// must already equal engineName.
func checkEngineLock(workingDir, engineName string) error {
	path := filepath.Join(workingDir, engineLockFileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if werr := os.WriteFile(path, []byte(engineName), 0o644); werr != nil {
			return kvserr.Wrap(kvserr.Io, "writing engine-lock file", werr)
		}
		return nil
	}
	if err != nil {
		return kvserr.Wrap(kvserr.Io, "reading engine-lock file", err)
	}
	existing := strings.TrimSpace(string(data))
	if existing != engineName {
		return kvserr.New(kvserr.WrongEngine,
			fmt.Sprintf("engine-lock file specifies %q but server selected %q", existing, engineName))
	}
	return nil
}
