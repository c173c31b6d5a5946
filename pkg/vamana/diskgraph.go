package vamana

import (
	"container/list"
	"encoding/binary"
	"math"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"

	"github.com/therealutkarshpriyadarshi/vamana/pkg/observability"
)

// diskHeaderLen is the fixed-size file header: size, dimension,
// entryPoint, maxDegree, each a big-endian int32.
const diskHeaderLen = 16

// DiskGraph is the SSD-resident reader of spec.md §4.6: a flat file of
// fixed-size per-node records with no offset table, addressed by
// ordinal as HEADER_LEN + i*RECORD_LEN and backed by an mmap'd view so
// the OS page cache -- not a Go-side buffer -- holds hot pages. A
// bounded LRU keeps the last-touched nodes' decoded (vector,
// neighbors) pairs off the hot path.
//
// Grounded on pkg/diskann/disk_graph.go's DiskGraph/DiskNode pair,
// restructured from variable-length little-endian records plus an
// in-memory nodeIndex offset map (loadIndex replays the whole file on
// open) to the spec's fixed-size big-endian layout with O(1) addressed
// access, and from a *os.File read/seek pair to mmap-go (grounded on
// go-mizu-mizu's mmap_unix.go mmapReader).
type DiskGraph struct {
	file      *os.File
	data      mmap.MMap
	size      int
	dimension int
	maxDegree int
	recordLen int

	entryPoint Ordinal
	hasEntry   bool

	cacheMu    sync.Mutex
	cacheCap   int
	cacheList  *list.List
	cacheIndex map[Ordinal]*list.Element

	onHit  func()
	onMiss func()

	logger *observability.Logger
}

type diskCacheEntry struct {
	ord       Ordinal
	vector    Vector
	neighbors []Ordinal
}

// WriteGraph serializes an in-heap Graph's nodes and backing vectors
// into the spec.md §4.6 fixed-size record format: a 16-byte header
// followed by one record per ordinal, each holding the full vector and
// a fixed-width (maxDegree-wide, -1-padded) neighbor list.
//
// Grounded on pkg/diskann/build.go's writeToDisk, replacing its
// per-node variable-length append (PQ code + explicit vector offset,
// no full vector) with the fixed record this package's O(1)-addressed
// reader requires.
func WriteGraph(path string, g *Graph) error {
	n := g.Size()
	if n == 0 {
		return invalidArgf("cannot write an empty graph to disk")
	}
	dim := g.Dimension()
	entry, _ := g.EntryPoint()

	f, err := os.Create(path)
	if err != nil {
		observability.Errorf("failed to create disk graph file %q: %v", path, err)
		return ioErrf("creating disk graph file %q: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, diskHeaderLen)
	binary.BigEndian.PutUint32(header[0:4], uint32(n))
	binary.BigEndian.PutUint32(header[4:8], uint32(dim))
	binary.BigEndian.PutUint32(header[8:12], uint32(entry))
	binary.BigEndian.PutUint32(header[12:16], uint32(g.m))
	if _, err := f.Write(header); err != nil {
		observability.Errorf("failed to write disk graph header to %q: %v", path, err)
		return ioErrf("writing disk graph header: %w", err)
	}

	recordLen := 4*dim + 4 + 4*g.m
	record := make([]byte, recordLen)
	for ord := Ordinal(0); int(ord) < n; ord++ {
		v, err := g.store.VectorValue(ord)
		if err != nil {
			return err
		}
		neighbors := g.Neighbors(ord).Ordinals()
		if len(neighbors) > g.m {
			return invalidArgf("node %d has %d neighbors, exceeds maxDegree %d", ord, len(neighbors), g.m)
		}

		for d, x := range v {
			binary.BigEndian.PutUint32(record[d*4:d*4+4], math.Float32bits(x))
		}
		off := 4 * dim
		binary.BigEndian.PutUint32(record[off:off+4], uint32(len(neighbors)))
		off += 4
		for i := 0; i < g.m; i++ {
			slot := record[off+i*4 : off+i*4+4]
			if i < len(neighbors) {
				binary.BigEndian.PutUint32(slot, neighbors[i])
			} else {
				binary.BigEndian.PutUint32(slot, 0xFFFFFFFF) // -1 padding
			}
		}
		if _, err := f.Write(record); err != nil {
			observability.Errorf("failed to write node %d record to %q: %v", ord, path, err)
			return ioErrf("writing node %d record: %w", ord, err)
		}
	}
	observability.Info("wrote disk graph", map[string]interface{}{"path": path, "nodes": n, "max_degree": g.m})
	return nil
}

// OpenDiskGraph mmaps an on-disk graph file written by WriteGraph,
// read-only, and wraps it in a cacheCapacity-bounded LRU of decoded
// nodes.
func OpenDiskGraph(path string, cacheCapacity int) (*DiskGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		observability.Errorf("failed to open disk graph file %q: %v", path, err)
		return nil, ioErrf("opening disk graph file %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		observability.Errorf("failed to stat disk graph file %q: %v", path, err)
		return nil, ioErrf("stat disk graph file %q: %w", path, err)
	}
	if info.Size() < diskHeaderLen {
		f.Close()
		observability.Error("disk graph file too short for a header", map[string]interface{}{"path": path, "size": info.Size()})
		return nil, corruptf("file %q too short for a header", path)
	}

	data, err := mmap.MapRegion(f, int(info.Size()), mmap.RDONLY, 0, 0)
	if err != nil {
		f.Close()
		observability.Errorf("failed to mmap disk graph file %q: %v", path, err)
		return nil, ioErrf("mmap disk graph file %q: %w", path, err)
	}

	size := int(binary.BigEndian.Uint32(data[0:4]))
	dim := int(binary.BigEndian.Uint32(data[4:8]))
	entry := Ordinal(binary.BigEndian.Uint32(data[8:12]))
	maxDegree := int(binary.BigEndian.Uint32(data[12:16]))
	recordLen := 4*dim + 4 + 4*maxDegree

	wantSize := int64(diskHeaderLen) + int64(size)*int64(recordLen)
	if info.Size() != wantSize {
		data.Unmap()
		f.Close()
		observability.Error("disk graph file size does not match header", map[string]interface{}{"path": path, "size": info.Size(), "want": wantSize})
		return nil, corruptf("file %q size %d does not match header (want %d)", path, info.Size(), wantSize)
	}

	if cacheCapacity <= 0 {
		cacheCapacity = 4096
	}
	observability.Info("opened disk graph", map[string]interface{}{"path": path, "nodes": size, "dimension": dim})
	return &DiskGraph{
		file:       f,
		data:       data,
		size:       size,
		dimension:  dim,
		maxDegree:  maxDegree,
		recordLen:  recordLen,
		entryPoint: entry,
		hasEntry:   size > 0,
		cacheCap:   cacheCapacity,
		cacheList:  list.New(),
		cacheIndex: make(map[Ordinal]*list.Element),
		logger:     observability.NewDefaultLogger(),
	}, nil
}

// SetLogger overrides the disk graph's logger (a DiskGraph from
// OpenDiskGraph otherwise logs at INFO to stdout via
// observability.NewDefaultLogger).
func (d *DiskGraph) SetLogger(logger *observability.Logger) {
	d.logger = logger
}

// SetCacheObservers registers hook functions invoked on each cache hit
// and miss, for wiring into pkg/observability's Metrics.CacheHits/
// CacheMisses counters. Either may be nil.
func (d *DiskGraph) SetCacheObservers(onHit, onMiss func()) {
	d.onHit = onHit
	d.onMiss = onMiss
}

func (d *DiskGraph) Size() int      { return d.size }
func (d *DiskGraph) Dimension() int { return d.dimension }
func (d *DiskGraph) MaxDegree() int { return d.maxDegree }

// EntryPoint implements NeighborLister.
func (d *DiskGraph) EntryPoint() (Ordinal, bool) {
	if !d.hasEntry {
		return 0, false
	}
	return d.entryPoint, true
}

// NeighborOrdinals implements NeighborLister, reading through the LRU.
func (d *DiskGraph) NeighborOrdinals(ord Ordinal) ([]Ordinal, error) {
	e, err := d.lookup(ord)
	if err != nil {
		return nil, err
	}
	return e.neighbors, nil
}

// VectorValue implements the read side of VectorStore, reading through
// the LRU. The returned slice aliases cached storage -- callers must
// copy before retaining it, per VectorStore.IsValueShared's contract.
func (d *DiskGraph) VectorValue(ord Ordinal) (Vector, error) {
	e, err := d.lookup(ord)
	if err != nil {
		return nil, err
	}
	return e.vector, nil
}

func (d *DiskGraph) IsValueShared() bool { return true }

func (d *DiskGraph) recordOffset(ord Ordinal) int64 {
	return diskHeaderLen + int64(ord)*int64(d.recordLen)
}

func (d *DiskGraph) readRecord(ord Ordinal) (*diskCacheEntry, error) {
	if int(ord) >= d.size {
		return nil, invalidArgf("ordinal %d out of range [0, %d)", ord, d.size)
	}
	off := d.recordOffset(ord)
	rec := d.data[off : off+int64(d.recordLen)]

	vector := make(Vector, d.dimension)
	for i := 0; i < d.dimension; i++ {
		bits := binary.BigEndian.Uint32(rec[i*4 : i*4+4])
		vector[i] = math.Float32frombits(bits)
	}

	nOff := 4 * d.dimension
	count := int(binary.BigEndian.Uint32(rec[nOff : nOff+4]))
	nOff += 4
	if count > d.maxDegree {
		return nil, corruptf("node %d neighbor count %d exceeds maxDegree %d", ord, count, d.maxDegree)
	}
	neighbors := make([]Ordinal, count)
	for i := 0; i < count; i++ {
		neighbors[i] = binary.BigEndian.Uint32(rec[nOff+i*4 : nOff+i*4+4])
	}

	return &diskCacheEntry{ord: ord, vector: vector, neighbors: neighbors}, nil
}

// lookup returns a node's decoded record, filling it from the mmap'd
// file on a cache miss and promoting it to the front of the LRU on a
// hit. Grounded on the (now-folded-in) teacher pkg/search/cache.go's
// container/list-based LRUCache, narrowed from a string-keyed general
// cache to one keyed directly on Ordinal.
func (d *DiskGraph) lookup(ord Ordinal) (*diskCacheEntry, error) {
	d.cacheMu.Lock()
	if el, ok := d.cacheIndex[ord]; ok {
		d.cacheList.MoveToFront(el)
		entry := el.Value.(*diskCacheEntry)
		d.cacheMu.Unlock()
		if d.onHit != nil {
			d.onHit()
		}
		return entry, nil
	}
	d.cacheMu.Unlock()

	if d.onMiss != nil {
		d.onMiss()
	}
	entry, err := d.readRecord(ord)
	if err != nil {
		return nil, err
	}

	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()
	if el, ok := d.cacheIndex[ord]; ok {
		d.cacheList.MoveToFront(el)
		return el.Value.(*diskCacheEntry), nil
	}
	el := d.cacheList.PushFront(entry)
	d.cacheIndex[ord] = el
	if d.cacheList.Len() > d.cacheCap {
		back := d.cacheList.Back()
		if back != nil {
			evicted := back.Value.(*diskCacheEntry).ord
			d.cacheList.Remove(back)
			delete(d.cacheIndex, evicted)
			d.logger.Debug("evicting cache entry", map[string]interface{}{"ordinal": evicted, "capacity": d.cacheCap})
		}
	}
	return entry, nil
}

// Close unmaps the file and releases the underlying descriptor.
func (d *DiskGraph) Close() error {
	if d.data != nil {
		if err := d.data.Unmap(); err != nil {
			d.file.Close()
			return ioErrf("unmapping disk graph: %w", err)
		}
	}
	return d.file.Close()
}
