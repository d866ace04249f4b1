package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/kvsdb/kvs/internal/kvserr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// compactionThreshold is the reference cadence: every this-many writes,
// the writer thread triggers a compaction.
const compactionThreshold = 2048

const readCacheSize = 4096

// KvsEngine is a lightweight, cloneable handle onto a log-structured
// storage engine. Copying a KvsEngine value shares the underlying core —
// any number of copies may be handed to worker-pool goroutines.
type KvsEngine struct {
	core *kvsCore
}

type writerRequest struct {
	remove bool
	key    string
	value  string
	reply  chan error
}

type readerRequest struct {
	key   string
	reply chan readerReply
}

type readerReply struct {
	value string
	ok    bool
	err   error
}

type kvsCore struct {
	dir     string
	logPath string
	logger  *zap.Logger
	metrics *engineMetrics
	cache   *readCache
	breaker *gobreaker.CircuitBreaker

	mu    sync.RWMutex // guards index
	index map[string]storeValue

	// The following fields are touched only by the single writer
	// goroutine and therefore need no lock.
	writeFile *os.File
	offset    int64
	opCount   int64

	writerReqs chan writerRequest
	readerReqs chan readerRequest
	done       chan struct{}
	wg         sync.WaitGroup

	closeOnce sync.Once
}

// Open opens (or creates) a kvs data directory and returns a KvsEngine
// handle. It scans the log to rebuild the index before returning, per the
// engine's lifecycle contract.
func Open(dir string, logger *zap.Logger, reg prometheus.Registerer) (KvsEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return KvsEngine{}, kvserr.Wrap(kvserr.Io, "creating data directory", err)
	}
	logPath := filepath.Join(dir, logFileName)

	index, offset, err := replayLog(logPath, logger)
	if err != nil {
		return KvsEngine{}, err
	}

	writeFile, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return KvsEngine{}, kvserr.Wrap(kvserr.Io, "opening log for append", err)
	}

	metrics := newEngineMetrics(reg, NameKvs)

	core := &kvsCore{
		dir:        dir,
		logPath:    logPath,
		logger:     logger,
		metrics:    metrics,
		cache:      newReadCache(readCacheSize),
		index:      index,
		writeFile:  writeFile,
		offset:     offset,
		writerReqs: make(chan writerRequest),
		readerReqs: make(chan readerRequest),
		done:       make(chan struct{}),
	}
	core.breaker = newWriterBreaker(fmt.Sprintf("kvs-writer-%s", dir), func() {
		metrics.breakerTrips.Inc()
		logger.Warn("writer circuit breaker tripped open", zap.String("dir", dir))
	})

	core.wg.Add(1)
	go core.writerLoop()

	readerWorkers := runtime.NumCPU()
	if readerWorkers < 1 {
		readerWorkers = 1
	}
	for i := 0; i < readerWorkers; i++ {
		core.wg.Add(1)
		go core.readerLoop()
	}

	logger.Info("kvs engine opened",
		zap.String("dir", dir),
		zap.Int64("index_entries", int64(len(index))),
		zap.Int64("log_offset", offset),
		zap.Int("reader_workers", readerWorkers))

	return KvsEngine{core: core}, nil
}

func (e KvsEngine) Name() string { return NameKvs }

func (e KvsEngine) Set(ctx context.Context, key, value string) error {
	reply := make(chan error, 1)
	req := writerRequest{key: key, value: value, reply: reply}
	select {
	case e.core.writerReqs <- req:
	case <-e.core.done:
		return kvserr.New(kvserr.Internal, "engine closed")
	case <-ctx.Done():
		return kvserr.Wrap(kvserr.Internal, "set canceled", ctx.Err())
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return kvserr.Wrap(kvserr.Internal, "set canceled", ctx.Err())
	}
}

func (e KvsEngine) Remove(ctx context.Context, key string) error {
	reply := make(chan error, 1)
	req := writerRequest{remove: true, key: key, reply: reply}
	select {
	case e.core.writerReqs <- req:
	case <-e.core.done:
		return kvserr.New(kvserr.Internal, "engine closed")
	case <-ctx.Done():
		return kvserr.Wrap(kvserr.Internal, "remove canceled", ctx.Err())
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return kvserr.Wrap(kvserr.Internal, "remove canceled", ctx.Err())
	}
}

func (e KvsEngine) Get(ctx context.Context, key string) (string, bool, error) {
	reply := make(chan readerReply, 1)
	req := readerRequest{key: key, reply: reply}
	select {
	case e.core.readerReqs <- req:
	case <-e.core.done:
		return "", false, kvserr.New(kvserr.Internal, "engine closed")
	case <-ctx.Done():
		return "", false, kvserr.Wrap(kvserr.Internal, "get canceled", ctx.Err())
	}
	select {
	case r := <-reply:
		return r.value, r.ok, r.err
	case <-ctx.Done():
		return "", false, kvserr.Wrap(kvserr.Internal, "get canceled", ctx.Err())
	}
}

// Close stops the writer and reader goroutines and closes the log file.
// It is safe to call multiple times; only the first call has effect.
// Close should be called once by the engine's owner (typically the
// server), never by individual clones handed to worker goroutines.
func (e KvsEngine) Close() error {
	var err error
	e.core.closeOnce.Do(func() {
		close(e.core.done)
		e.core.wg.Wait()
		err = e.core.writeFile.Close()
		e.core.logger.Info("kvs engine closed", zap.String("dir", e.core.dir))
	})
	return err
}

func (c *kvsCore) readerLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case req := <-c.readerReqs:
			value, ok, err := c.doGet(req.key)
			req.reply <- readerReply{value: value, ok: ok, err: err}
		}
	}
}

func (c *kvsCore) doGet(key string) (string, bool, error) {
	c.metrics.gets.Inc()

	c.mu.RLock()
	sv, present := c.index[key]
	c.mu.RUnlock()
	if !present {
		return "", false, nil
	}
	if sv.memory != nil {
		return *sv.memory, true, nil
	}

	if cached, ok := c.cache.get(key); ok {
		c.metrics.cacheHits.Inc()
		return cached, true, nil
	}
	c.metrics.cacheMisses.Inc()

	offset, length := sv.offset, sv.length
	value, ok, err := c.cache.faultThrough(key, func() (string, bool, error) {
		v, corrupted, err := readRecordAt(c.logPath, offset, length)
		if err != nil {
			return "", false, err
		}
		if corrupted {
			c.metrics.corruptLines.Inc()
			c.logger.Error("corrupt log record encountered on read-through",
				zap.String("key", key), zap.Int64("offset", offset), zap.Int64("length", length))
			return "", false, nil
		}
		return v, true, nil
	})
	return value, ok, err
}

func (c *kvsCore) writerLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case req := <-c.writerReqs:
			var err error
			if req.remove {
				err = c.doRemove(req.key)
			} else {
				err = c.doSet(req.key, req.value)
			}
			req.reply <- err
		}
	}
}

func (c *kvsCore) doSet(key, value string) error {
	c.mu.Lock()
	c.index[key] = memoryValue(value)
	c.mu.Unlock()
	c.cache.invalidate(key)

	line, err := encodeSet(key, value)
	if err != nil {
		return kvserr.Wrap(kvserr.Internal, "encoding set record", err)
	}
	if err := c.appendLine(line); err != nil {
		return err
	}
	c.metrics.sets.Inc()
	c.afterWrite()
	return nil
}

func (c *kvsCore) doRemove(key string) error {
	c.mu.Lock()
	_, existed := c.index[key]
	if existed {
		delete(c.index, key)
	}
	c.mu.Unlock()
	c.cache.invalidate(key)

	line, err := encodeRemove(key)
	if err != nil {
		return kvserr.Wrap(kvserr.Internal, "encoding remove record", err)
	}
	if err := c.appendLine(line); err != nil {
		return err
	}
	c.metrics.removes.Inc()
	c.afterWrite()

	if !existed {
		return kvserr.ErrKeyNotFound
	}
	return nil
}

func (c *kvsCore) appendLine(line []byte) error {
	return guardedWrite(c.breaker, func() error {
		n, err := c.writeFile.Write(line)
		if err != nil {
			return err
		}
		c.offset += int64(n)
		return nil
	})
}

// afterWrite increments the operation counter and triggers compaction
// when it crosses the reference threshold. Called only from the writer
// goroutine, so opCount needs no synchronization.
func (c *kvsCore) afterWrite() {
	c.opCount++
	if c.opCount >= compactionThreshold {
		c.opCount = 0
		if err := c.compact(); err != nil {
			c.logger.Error("compaction failed", zap.Error(err))
		}
	}
}
