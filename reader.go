package iabmxf

type readerState int

const (
	readerBegin readerState = iota
	readerReady
)

// Reader implements the clip-wrapped IAB-in-MXF read path: OpenRead parses
// the header partition's structural metadata and the footer's index
// table, and ReadFrame seeks directly to a frame's stream offset using
// that index rather than scanning the clip from the start.
type Reader struct {
	file   File
	logger Logger
	state  readerState

	header *HeaderMetadata
	primer *primer
	index  *IndexTable

	essenceUL      UL
	clipValueStart int64
	fileSize       int64

	lastFrameIndex int
	lastFrameBytes []byte
}

// essenceBodySID is the fixed BodySID this container format always uses for
// the clip's essence, whether it is carried directly in the header
// partition or in a dedicated body partition. WriteMetadata's generic
// streams are allocated SIDs starting at 2, so this value never collides
// with them.
const essenceBodySID uint32 = 1

// NewReader binds a Reader to f. If logger is nil, defaultLogSink is used.
func NewReader(f File, logger Logger) *Reader {
	if logger == nil {
		logger = defaultLogSink
	}
	return &Reader{file: f, logger: logger, state: readerBegin, lastFrameIndex: -1}
}

// OpenRead parses the header partition's primer and structural metadata,
// confirms the essence descriptor and track this package requires are
// present, locates the clip's essence (directly in the header partition,
// or in a dedicated body partition the RIP points to), locates the footer
// partition through the trailing RIP, and loads the index table from it.
func (r *Reader) OpenRead() error {
	if r.state != readerBegin {
		return errState
	}
	if err := r.file.Seek(0); err != nil {
		return newResult(FAIL, "OpenRead: %v", err)
	}

	headerPartition, err := r.readHeaderPartition()
	if err != nil {
		return err
	}
	if err := r.verifyRequiredMetadata(); err != nil {
		return err
	}
	afterHeader, err := r.file.Tell()
	if err != nil {
		return newResult(FAIL, "OpenRead: %v", err)
	}

	rip, err := r.readTrailingRIP()
	if err != nil {
		return err
	}
	if len(rip.Entries) < 2 {
		return newResult(FORMAT, "OpenRead: RIP has fewer than 2 entries")
	}
	switch {
	case len(rip.Entries) == 3:
		r.logger.Debug("OpenRead: three-pair RIP")
	case len(rip.Entries) > 3:
		r.logger.Debug("OpenRead: RIP carries %d entries, generic-stream metadata present", len(rip.Entries))
	}
	footer := rip.Entries[len(rip.Entries)-1]

	if headerPartition.BodySID == essenceBodySID {
		// the clip's essence is embedded directly in the header partition;
		// its KL starts where readHeaderPartition stopped.
		if err := r.file.Seek(afterHeader); err != nil {
			return newResult(FAIL, "OpenRead: %v", err)
		}
		if err := r.locateClipKL(); err != nil {
			return err
		}
	} else {
		bodyEntry, ok := findBodyPartitionEntry(rip, essenceBodySID)
		if !ok {
			return newResult(FORMAT, "OpenRead: header carries no essence and no body partition declares body SID %d", essenceBodySID)
		}
		if err := r.readBodyPartition(bodyEntry.ByteOffset); err != nil {
			return err
		}
		if err := r.locateClipKL(); err != nil {
			return err
		}
	}

	if err := r.readFooterIndex(footer.ByteOffset); err != nil {
		return err
	}

	r.lastFrameIndex = -1
	r.lastFrameBytes = nil
	r.state = readerReady
	return nil
}

// findBodyPartitionEntry returns the RIP entry (excluding the header and
// footer pairs) carrying sid, if any.
func findBodyPartitionEntry(rip *RIP, sid uint32) (RIPEntry, bool) {
	if len(rip.Entries) < 2 {
		return RIPEntry{}, false
	}
	for _, e := range rip.Entries[1 : len(rip.Entries)-1] {
		if e.BodySID == sid {
			return e, true
		}
	}
	return RIPEntry{}, false
}

// readBodyPartition seeks to offset and parses the body partition pack
// that carries the clip's essence, leaving the file positioned at its
// essence element's KL.
func (r *Reader) readBodyPartition(offset uint64) error {
	if err := r.file.Seek(int64(offset)); err != nil {
		return newResult(FAIL, "OpenRead: %v", err)
	}
	key, value, err := readKLV(r.file)
	if err != nil {
		return newResult(FAIL, "OpenRead: read body partition: %v", err)
	}
	if !isPartitionPack(key) {
		return newResult(FORMAT, "OpenRead: expected body partition, got %s", key)
	}
	bp, err := decodePartitionValue(value)
	if err != nil {
		return newResult(FORMAT, "OpenRead: decode body partition: %v", err)
	}
	if bp.BodySID != essenceBodySID {
		r.logger.Warn("OpenRead: body partition at %d declares body SID %d, expected %d", offset, bp.BodySID, essenceBodySID)
	}
	return nil
}

// locateClipKL peeks the KL at the current file position, confirms it is
// this package's clip-wrapped IAB essence element (ignoring byte 15, the
// stream number), and records essence_start. The file is left positioned
// at the essence element's KL, ready for FinalizeClip's back-patch logic
// or for a caller that wants to walk the clip manually.
func (r *Reader) locateClipKL() error {
	pos, err := r.file.Tell()
	if err != nil {
		return newResult(FAIL, "OpenRead: %v", err)
	}
	key, _, _, err := readKL(r.file)
	if err != nil {
		return newResult(FAIL, "OpenRead: locate clip KL: %v", err)
	}
	if !key.EqualEssenceFamily(ULIABEssenceClipWrappedElement) {
		r.logger.Error("OpenRead: unexpected essence UL %s, expected %s", key, ULIABEssenceClipWrappedElement)
		return newResult(FORMAT, "OpenRead: expected clip-wrapped IAB essence element, got %s", key)
	}
	if err := r.file.Seek(pos); err != nil {
		return newResult(FAIL, "OpenRead: %v", err)
	}
	r.essenceUL = key
	r.clipValueStart = pos + 24
	return nil
}

// readHeaderPartition parses the header partition pack, the primer pack,
// and the structural metadata batch that follows it, stopping exactly
// HeaderByteCount bytes after the partition pack (the primer, the sets and
// the fill item OpenWrite counted into that field), without assuming what
// immediately follows: that may be
// the clip's essence KL directly, a body partition pack, or nothing at all
// if the footer comes next.
func (r *Reader) readHeaderPartition() (*Partition, error) {
	key, value, err := readKLV(r.file)
	if err != nil {
		return nil, newResult(FAIL, "OpenRead: read header partition: %v", err)
	}
	if !isPartitionPack(key) {
		return nil, newResult(FORMAT, "OpenRead: expected partition pack, got %s", key)
	}
	partition, err := decodePartitionValue(value)
	if err != nil {
		return nil, newResult(FORMAT, "OpenRead: decode header partition: %v", err)
	}

	batchStart, err := r.file.Tell()
	if err != nil {
		return nil, newResult(FAIL, "OpenRead: %v", err)
	}
	batchEnd := batchStart + int64(partition.HeaderByteCount)

	r.header = newHeaderMetadata()
	for {
		pos, err := r.file.Tell()
		if err != nil {
			return nil, newResult(FAIL, "OpenRead: %v", err)
		}
		if pos >= batchEnd {
			return partition, nil
		}
		key, value, err := readKLV(r.file)
		if err != nil {
			return nil, newResult(FAIL, "OpenRead: read header set: %v", err)
		}
		switch {
		case key == ULPrimerPack:
			p, err := decodePrimerValue(value)
			if err != nil {
				return nil, newResult(FORMAT, "OpenRead: decode primer pack: %v", err)
			}
			r.primer = p
		case isFillItem(key):
			// padding inside the structural metadata batch
		default:
			if _, ok := structuralTypeNames[key]; !ok {
				r.logger.Warn("OpenRead: unrecognized structural metadata type %s", key)
			}
			o := decodeObject(key, value)
			if err := r.header.Add(o); err != nil {
				return nil, err
			}
		}
	}
}

func (r *Reader) verifyRequiredMetadata() error {
	if r.header.GetByType(ULIABEssenceDescriptor) == nil {
		return newResult(FORMAT, "OpenRead: missing IABEssenceDescriptor")
	}
	if r.header.GetByType(ULIABSoundfieldLabelSubDescriptor) == nil {
		return newResult(FORMAT, "OpenRead: missing IABSoundfieldLabelSubDescriptor")
	}
	if r.header.GetByType(ULTimelineTrack) == nil {
		return newResult(FORMAT, "OpenRead: missing Track")
	}
	return nil
}

// readTrailingRIP reads the 4-byte trailing length that every RIP pack
// ends with, then seeks backward by that many bytes to read the whole
// pack from its key.
func (r *Reader) readTrailingRIP() (*RIP, error) {
	// the RIP pack's own trailing 4-byte length sits at end of file
	if r.fileSize == 0 {
		endPos, err := r.seekEnd()
		if err != nil {
			return nil, newResult(FAIL, "OpenRead: %v", err)
		}
		r.fileSize = endPos
	}
	endPos := r.fileSize
	if endPos < 4 {
		return nil, newResult(FORMAT, "OpenRead: file too short for a RIP trailer")
	}
	if err := r.file.Seek(endPos - 4); err != nil {
		return nil, newResult(FAIL, "OpenRead: %v", err)
	}
	var trailer [4]byte
	if err := readFull(r.file, trailer[:]); err != nil {
		return nil, newResult(FAIL, "OpenRead: read RIP trailer: %v", err)
	}
	ripPackLen := int64(beUint32(trailer[:]))
	if ripPackLen <= 0 || ripPackLen > endPos {
		return nil, newResult(FORMAT, "OpenRead: implausible RIP pack length %d", ripPackLen)
	}
	if err := r.file.Seek(endPos - ripPackLen); err != nil {
		return nil, newResult(FAIL, "OpenRead: %v", err)
	}
	key, value, err := readKLV(r.file)
	if err != nil {
		return nil, newResult(FAIL, "OpenRead: read RIP: %v", err)
	}
	if key != ULRandomIndexPack {
		return nil, newResult(FORMAT, "OpenRead: expected RIP, got %s", key)
	}
	if len(value) < 4 {
		return nil, newResult(FORMAT, "OpenRead: RIP value too short")
	}
	return decodeRIPValue(value[:len(value)-4])
}

// seekEnd seeks to end of file by probing forward; File has no SEEK_END,
// so callers that need it read through the file once.
func (r *Reader) seekEnd() (int64, error) {
	const probe = 64 * 1024
	var buf [probe]byte
	var pos int64
	if err := r.file.Seek(0); err != nil {
		return 0, err
	}
	for {
		n, err := r.file.Read(buf[:])
		pos += int64(n)
		if err != nil {
			break
		}
		if n == 0 {
			break
		}
	}
	return pos, nil
}

func (r *Reader) readFooterIndex(footerOffset uint64) error {
	if err := r.file.Seek(int64(footerOffset)); err != nil {
		return newResult(FAIL, "OpenRead: seek footer: %v", err)
	}
	key, value, err := readKLV(r.file)
	if err != nil {
		return newResult(FAIL, "OpenRead: read footer partition: %v", err)
	}
	if !isPartitionPack(key) {
		return newResult(FORMAT, "OpenRead: expected footer partition, got %s", key)
	}
	if _, err := decodePartitionValue(value); err != nil {
		return newResult(FORMAT, "OpenRead: decode footer partition: %v", err)
	}

	key, value, err = readKLV(r.file)
	if err != nil {
		return newResult(FAIL, "OpenRead: read index table segment: %v", err)
	}
	if key != ULIndexTableSegment {
		return newResult(FORMAT, "OpenRead: expected index table segment, got %s", key)
	}
	idx, err := decodeIndexTableValue(value)
	if err != nil {
		return newResult(FORMAT, "OpenRead: decode index table: %v", err)
	}
	r.index = idx
	return nil
}

// GetFrameCount returns the number of frames this clip's index table
// records.
func (r *Reader) GetFrameCount() (int, error) {
	if r.state != readerReady {
		return 0, errState
	}
	return r.index.GetDuration(), nil
}

// ReadFrame returns the complete preamble+frame buffer for frameNumber
// (as produced by EncodeIABFrame), using the index table to seek directly
// to its stream offset. Re-reading the same frameNumber consecutively is
// served from a one-frame cache without touching the file again.
func (r *Reader) ReadFrame(frameNumber int) ([]byte, error) {
	if r.state != readerReady {
		return nil, errState
	}
	if frameNumber == r.lastFrameIndex && r.lastFrameBytes != nil {
		return r.lastFrameBytes, nil
	}
	entry, err := r.index.Lookup(frameNumber)
	if err != nil {
		r.logger.Error("ReadFrame: frame index %d out of range", frameNumber)
		return nil, err
	}
	if err := r.file.Seek(r.clipValueStart + int64(entry.StreamOffset)); err != nil {
		return nil, newResult(FAIL, "ReadFrame: seek: %v", err)
	}
	buf, err := readFrameBuffer(r.file)
	if err != nil {
		return nil, err
	}
	r.lastFrameIndex = frameNumber
	r.lastFrameBytes = buf
	return buf, nil
}

// ReadMetadata locates the generic-stream body partition carrying sid
// (as written by Writer.WriteMetadata) and returns its raw payload.
func (r *Reader) ReadMetadata(sid uint32) ([]byte, error) {
	if r.state != readerReady {
		return nil, errState
	}
	rip, err := r.readTrailingRIP()
	if err != nil {
		return nil, err
	}
	var offset uint64
	found := false
	for _, e := range rip.Entries {
		if e.BodySID == sid {
			offset = e.ByteOffset
			found = true
			break
		}
	}
	if !found {
		return nil, newResult(FORMAT, "ReadMetadata: no generic stream with SID %d", sid)
	}
	if err := r.file.Seek(int64(offset)); err != nil {
		return nil, newResult(FAIL, "ReadMetadata: %v", err)
	}
	key, value, err := readKLV(r.file)
	if err != nil {
		return nil, newResult(FAIL, "ReadMetadata: read partition: %v", err)
	}
	if !isPartitionPack(key) {
		return nil, newResult(FORMAT, "ReadMetadata: expected partition pack, got %s", key)
	}
	// the body partition carries this generic stream's own descriptive
	// sets ahead of its payload; skip past them to reach it.
	for {
		key, value, err = readKLV(r.file)
		if err != nil {
			return nil, newResult(FAIL, "ReadMetadata: read payload: %v", err)
		}
		if key == ULGenericStreamDataElement {
			return value, nil
		}
		if isFillItem(key) {
			continue
		}
		// a descriptive structural set; decoding is not needed to serve
		// the raw payload, so it is simply skipped.
	}
}

// Metadata returns the header metadata tree OpenRead parsed.
func (r *Reader) Metadata() *HeaderMetadata {
	return r.header
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
