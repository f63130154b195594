package memstore

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/MatiasNAmendola/Nxdb/lib/store"
)

// Constants for the snapshot file format
const (
	magicNum        = "NXDBSTOR" // File format identifier
	memstoreVersion = 1          // Snapshot format version
)

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists the committed state of the store to the writer.
//
// Thread-safety: This method is thread-safe. It serializes the committed
// state snapshot and never blocks readers or concurrent mutations.
func (s *memStore) Save(w io.Writer) error {
	// Use a buffered writer for better performance
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	st := s.state.Load()

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}

	// Write format version
	if err := binary.Write(bw, binary.LittleEndian, uint8(memstoreVersion)); err != nil {
		return err
	}

	// Write id allocator state
	if err := binary.Write(bw, binary.LittleEndian, s.nextID.Load()); err != nil {
		return err
	}

	// Write node count
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(st.nodes))); err != nil {
		return err
	}

	// Write nodes in document order
	for _, n := range st.nodes {
		if err := binary.Write(bw, binary.LittleEndian, n.id); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint8(n.rec.Kind)); err != nil {
			return err
		}

		// Write name
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(n.rec.Name))); err != nil {
			return err
		}
		if _, err := bw.WriteString(n.rec.Name); err != nil {
			return err
		}

		// Write value
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(n.rec.Value))); err != nil {
			return err
		}
		if _, err := bw.Write(n.rec.Value); err != nil {
			return err
		}
	}

	// Flush buffer to ensure all data is written
	return bw.Flush()
}

// Load restores the store state from the reader, replacing the current
// committed state.
//
// Thread-safety: This method serializes against Apply but should not be
// called while readers assume a stable state.
func (s *memStore) Load(r io.Reader) error {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	// Use a buffered reader for better performance
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return store.NewErrorf(store.RetCInternalError, "load: %v", err)
	}
	if string(magicBytes) != magicNum {
		return store.NewError(store.RetCInternalError, "invalid file format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return store.NewErrorf(store.RetCInternalError, "load: %v", err)
	}
	if int(version) != memstoreVersion {
		return store.NewErrorf(store.RetCInternalError, "unsupported version: %d (expected %d)", version, memstoreVersion)
	}

	// Read id allocator state
	var nextID uint64
	if err := binary.Read(br, binary.LittleEndian, &nextID); err != nil {
		return store.NewErrorf(store.RetCInternalError, "load: %v", err)
	}

	// Read node count
	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return store.NewErrorf(store.RetCInternalError, "load: %v", err)
	}

	nodes := make([]node, 0, count)
	for i := uint64(0); i < count; i++ {
		var n node

		if err := binary.Read(br, binary.LittleEndian, &n.id); err != nil {
			return store.NewErrorf(store.RetCInternalError, "load node %d: %v", i, err)
		}

		var kind uint8
		if err := binary.Read(br, binary.LittleEndian, &kind); err != nil {
			return store.NewErrorf(store.RetCInternalError, "load node %d: %v", i, err)
		}
		n.rec.Kind = store.Kind(kind)

		// Read name
		var nameLen uint32
		if err := binary.Read(br, binary.LittleEndian, &nameLen); err != nil {
			return store.NewErrorf(store.RetCInternalError, "load node %d: %v", i, err)
		}
		nameBytes := make([]byte, nameLen)
		if _, err := io.ReadFull(br, nameBytes); err != nil {
			return store.NewErrorf(store.RetCInternalError, "load node %d: %v", i, err)
		}
		n.rec.Name = string(nameBytes)

		// Read value
		var valueLen uint32
		if err := binary.Read(br, binary.LittleEndian, &valueLen); err != nil {
			return store.NewErrorf(store.RetCInternalError, "load node %d: %v", i, err)
		}
		n.rec.Value = make([]byte, valueLen)
		if _, err := io.ReadFull(br, n.rec.Value); err != nil {
			return store.NewErrorf(store.RetCInternalError, "load node %d: %v", i, err)
		}

		nodes = append(nodes, n)
	}

	s.nextID.Store(nextID)
	s.state.Store(newTableState(nodes))
	return nil
}
