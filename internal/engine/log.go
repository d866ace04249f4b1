package engine

import (
	"bufio"
	"encoding/json"
	"io"
	"os"

	"github.com/kvsdb/kvs/internal/kvserr"
	"go.uber.org/zap"
)

// logFileName is the fixed on-disk log file name within the engine's
// data directory.
const logFileName = "x.log"

// replayLog opens (creating if absent) the log file at dir/x.log and
// scans it line by line to rebuild the in-memory index. It returns the
// index, the byte offset at end-of-file (the running offset counter),
// and an error if a trailing line is malformed — a trailing malformed
// line aborts load rather than being silently dropped.
func replayLog(path string, logger *zap.Logger) (map[string]storeValue, int64, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, 0, kvserr.Wrap(kvserr.Io, "opening log for replay", err)
	}
	defer f.Close()

	index := make(map[string]storeValue)
	reader := bufio.NewReader(f)
	var offset int64

	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			if readErr != nil {
				return nil, 0, kvserr.New(kvserr.Corruption, "trailing malformed (unterminated) log line")
			}
			lineLen := int64(len(line))
			var rec record
			if jsonErr := json.Unmarshal(line[:len(line)-1], &rec); jsonErr != nil {
				return nil, 0, kvserr.Wrap(kvserr.Corruption, "malformed log line", jsonErr)
			}
			switch {
			case rec.Set != nil:
				index[rec.Set.Key] = fileValue(offset, lineLen)
			case rec.Remove != nil:
				delete(index, rec.Remove.Key)
			case rec.Get != nil:
				logger.Warn("ignoring Get record found during log replay", zap.String("key", rec.Get.Key))
			default:
				return nil, 0, kvserr.New(kvserr.Corruption, "log line has no recognized variant")
			}
			offset += lineLen
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, 0, kvserr.Wrap(kvserr.Io, "reading log during replay", readErr)
		}
	}
	return index, offset, nil
}

// readRecordAt opens an independent read-only handle on path, seeks to
// offset, reads exactly length bytes, and parses them as a Set record.
// Independent handles let readers proceed concurrently with the writer
// appending further on in the same file.
func readRecordAt(path string, offset, length int64) (value string, corrupted bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, kvserr.Wrap(kvserr.Io, "opening log for read-through", err)
	}
	defer f.Close()

	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return "", false, kvserr.Wrap(kvserr.Io, "reading log record", err)
	}
	line := buf
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	var rec record
	if jsonErr := json.Unmarshal(line, &rec); jsonErr != nil {
		return "", true, nil
	}
	if rec.Set == nil {
		return "", true, nil
	}
	return rec.Set.Value, false, nil
}
