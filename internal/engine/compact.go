package engine

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kvsdb/kvs/internal/kvserr"
	"go.uber.org/zap"
)

// compact rewrites the log to contain exactly one Set record per live
// key, reclaiming space from superseded Set/Remove records. It runs on
// the writer goroutine, so it needs no coordination with other writes,
// but it takes the index lock for the duration since readers must see
// either the old or the new set of File offsets, never a mix.
//
// Implementation note: an in-place truncate-and-rewrite risks a torn log
// file if the process dies mid-compaction, so this implementation writes
// the rewritten log to a temp file and renames it over the original
// instead.
func (c *kvsCore) compact() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	materialized := make(map[string]string, len(c.index))
	for key, sv := range c.index {
		if sv.memory != nil {
			materialized[key] = *sv.memory
			continue
		}
		value, corrupted, err := readRecordAt(c.logPath, sv.offset, sv.length)
		if err != nil {
			return kvserr.Wrap(kvserr.Io, "reading record during compaction", err)
		}
		if corrupted {
			c.metrics.corruptLines.Inc()
			c.logger.Error("dropping corrupt entry during compaction", zap.String("key", key))
			continue
		}
		materialized[key] = value
	}

	tmpPath := filepath.Join(c.dir, fmt.Sprintf(".%s.compact", logFileName))
	newIndex := make(map[string]storeValue, len(materialized))
	var offset int64
	var newWriteFile *os.File

	err := guardedWrite(c.breaker, func() error {
		tmpFile, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return fmt.Errorf("opening compaction temp file: %w", err)
		}

		writer := bufio.NewWriter(tmpFile)
		for key, value := range materialized {
			line, encErr := encodeSet(key, value)
			if encErr != nil {
				tmpFile.Close()
				os.Remove(tmpPath)
				return fmt.Errorf("encoding record during compaction: %w", encErr)
			}
			if _, werr := writer.Write(line); werr != nil {
				tmpFile.Close()
				os.Remove(tmpPath)
				return fmt.Errorf("writing compaction temp file: %w", werr)
			}
			newIndex[key] = fileValue(offset, int64(len(line)))
			offset += int64(len(line))
		}
		if err := writer.Flush(); err != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("flushing compaction temp file: %w", err)
		}
		if err := tmpFile.Close(); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("closing compaction temp file: %w", err)
		}

		if err := c.writeFile.Close(); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("closing active log before rename: %w", err)
		}
		if err := os.Rename(tmpPath, c.logPath); err != nil {
			return fmt.Errorf("renaming compacted log into place: %w", err)
		}

		newWriteFile, err = os.OpenFile(c.logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("reopening log after compaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.index = newIndex
	c.writeFile = newWriteFile
	c.offset = offset
	c.cache.purge()
	c.metrics.compactions.Inc()
	c.logger.Info("compaction complete",
		zap.Int("live_keys", len(newIndex)),
		zap.Int64("new_offset", offset))
	return nil
}
