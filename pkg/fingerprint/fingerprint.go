// Package fingerprint computes the content identity of a file.
//
// The fingerprint is a blake2b tree hash over fixed-size leaves: two files
// with identical bytes always produce the same fingerprint, regardless of
// name, location or timestamps. Hashing is streamed so a full file is never
// held in memory, and leaves are hashed by a small worker pool.
package fingerprint

import (
	"bytes"
	"encoding/hex"
	"io"
	"runtime"
	"sync"

	units "github.com/docker/go-units"
	blake2b "github.com/minio/blake2b-simd"
)

type chunkInput struct {
	part       int
	partBuffer []byte
	lastChunk  bool
	leafSize   uint32
	level      int
}

type chunkOutput struct {
	digest []byte
	part   int
	err    error
}

// Option configures a Maker
type Option func(*Maker)

// LeafSize overrides the tree hash leaf size
func LeafSize(sz int64) Option {
	return func(m *Maker) {
		m.leafSize = uint32(sz)
	}
}

// NumberOfWorkers overrides the number of leaf hashing workers
func NumberOfWorkers(no int) Option {
	return func(m *Maker) {
		m.numberOfWorkers = no
	}
}

// Size overrides the digest size in bytes
func Size(sz uint8) Option {
	return func(m *Maker) {
		m.size = sz
	}
}

// New builds a fingerprint Maker
func New(opts ...Option) *Maker {
	m := &Maker{
		leafSize:        uint32(5 * units.MB),
		numberOfWorkers: runtime.NumCPU(),
		size:            64,
	}
	for _, apply := range opts {
		apply(m)
	}
	return m
}

// Maker computes fingerprints
type Maker struct {
	size            uint8
	leafSize        uint32
	numberOfWorkers int
}

// LeafSize yields the configured leaf size
func (m *Maker) LeafSize() uint32 {
	return m.leafSize
}

// Process computes the fingerprint of a byte stream of known size
func (m *Maker) Process(r io.Reader, size int64) (digest []byte, err error) {
	var wg sync.WaitGroup
	chunks := make(chan chunkInput)
	results := make(chan chunkOutput)

	for i := 0; i < m.numberOfWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.processChunk(chunks, results)
		}()
	}

	readErrC := make(chan error, 1)
	go func() {
		defer close(chunks)
		for part, totalSize := 0, int64(0); ; part++ {
			partBuffer := make([]byte, m.leafSize)
			n, e := io.ReadFull(r, partBuffer)
			if e != nil && e != io.EOF && e != io.ErrUnexpectedEOF {
				readErrC <- e
				return
			}
			if n == 0 && part > 0 {
				break
			}
			partBuffer = partBuffer[:n]

			totalSize += int64(n)
			lastChunk := uint32(n) < m.leafSize || uint32(n) == m.leafSize && totalSize == size

			chunks <- chunkInput{part: part, partBuffer: partBuffer, lastChunk: lastChunk, leafSize: m.leafSize, level: 0}

			if lastChunk {
				break
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// collect leaf digests keyed by chunk number
	// (the number of chunks is unknown upfront when reading a stream)
	digestHash := make(map[int][]byte)
	for res := range results {
		if res.err != nil && err == nil {
			err = res.err
		}
		digestHash[res.part] = res.digest
	}
	select {
	case e := <-readErrC:
		return nil, e
	default:
	}
	if err != nil {
		return nil, err
	}

	sz := int(m.size)
	b := make([]byte, len(digestHash)*sz)
	for index, val := range digestHash {
		offset := sz * index
		copy(b[offset:offset+sz], val)
	}

	rootBlake, err := blake2b.New(&blake2b.Config{
		Size: blake2b.Size,
		Tree: &blake2b.Tree{
			Fanout:        0,
			MaxDepth:      2,
			LeafSize:      m.leafSize,
			NodeOffset:    0,
			NodeDepth:     1,
			InnerHashSize: m.size,
			IsLastNode:    true,
		},
	})
	if err != nil {
		return nil, err
	}

	rootBlake.Reset()
	if _, err = io.Copy(rootBlake, bytes.NewBuffer(b)); err != nil {
		return nil, err
	}
	return rootBlake.Sum(nil), nil
}

// ProcessHex computes the fingerprint of a byte stream as a hex string
func (m *Maker) ProcessHex(r io.Reader, size int64) (string, error) {
	digest, err := m.Process(r, size)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(digest), nil
}

// Worker routine for computing the hash of one leaf
func (m *Maker) processChunk(rx <-chan chunkInput, tx chan<- chunkOutput) {
	for c := range rx {
		blake, err := blake2b.New(&blake2b.Config{
			Size: blake2b.Size,
			Tree: &blake2b.Tree{
				Fanout:        0,
				MaxDepth:      2,
				LeafSize:      c.leafSize,
				NodeOffset:    uint64(c.part),
				NodeDepth:     0,
				InnerHashSize: m.size,
				IsLastNode:    c.lastChunk,
			},
		})
		if err != nil {
			tx <- chunkOutput{part: c.part, err: err}
			continue
		}

		blake.Reset()
		if _, err = io.Copy(blake, bytes.NewBuffer(c.partBuffer)); err != nil {
			tx <- chunkOutput{part: c.part, err: err}
			continue
		}
		tx <- chunkOutput{digest: blake.Sum(nil), part: c.part}
	}
}
