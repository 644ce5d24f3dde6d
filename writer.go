package iabmxf

// Rational is a numerator/denominator pair used for edit rates and sample
// rates throughout the header metadata.
type Rational struct {
	Numerator, Denominator int32
}

func (r Rational) internal() rational { return rational{r.Numerator, r.Denominator} }

// WriterInfo carries the identification properties a Writer stamps into
// the Identification set on OpenWrite.
type WriterInfo struct {
	CompanyName string
	ProductName string
	ProductUID  UUID

	// BodyPartitioned, when true, carries the clip's essence in its own
	// body partition after the header instead of directly inside the
	// header partition's bytes. This is the three-partition layout
	// (header/body/footer) a Reader recognizes via the RIP entry whose
	// BodySID matches essenceBodySID; the default, false, is the
	// single-partition layout where the header partition itself carries
	// the essence body SID.
	BodyPartitioned bool
}

// IABEssenceDescriptorInfo describes the essence a Writer is about to
// carry: the edit rate of the clip and the audio properties of the IAB
// program it wraps.
type IABEssenceDescriptorInfo struct {
	EditRate         Rational
	SampleRate       Rational
	ChannelCount     uint32
	QuantizationBits uint32
}

// IABSoundfieldLabelSubDescriptor is the caller-supplied soundfield label
// template OpenWrite clones into the header metadata, identifying the
// specific MCA channel/soundfield configuration of the essence.
type IABSoundfieldLabelSubDescriptor struct {
	MCATagName           string
	MCATagSymbol         string
	MCALabelDictionaryID UL
	MCALinkID            UUID
}

type writerState int

const (
	writerBegin writerState = iota
	writerReady
	writerRunning
	writerClipDone
)

// Writer implements the clip-wrapped IAB-in-MXF write path: OpenWrite
// establishes the header partition and reserves a clip KL, WriteFrame
// streams opaque frames into the clip's value, FinalizeClip back-patches
// the clip's length once it is known, and FinalizeMxf appends the index
// table, RIP, and footer partition before resetting to BEGIN.
type Writer struct {
	file   File
	logger Logger
	state  writerState

	header *HeaderMetadata
	primer *primer

	essenceUL            UL
	headerPartitionStart int64
	bodyPartitioned      bool
	bodyPartitionStart   int64
	clipKLStart          int64
	streamOffset         uint64

	editRate    Rational
	bodySID     uint32
	indexSID    uint32
	index       *IndexTable
	rip         *RIP
	nextTrackID  uint32
	genericStreamID uint32

	headerByteCount uint64
}

// NewWriter binds a Writer to f. If logger is nil, defaultLogSink is used.
func NewWriter(f File, logger Logger) *Writer {
	if logger == nil {
		logger = defaultLogSink
	}
	return &Writer{
		file:            f,
		logger:          logger,
		state:           writerBegin,
		bodySID:         1,
		indexSID:        1,
		nextTrackID:     2,
		genericStreamID: 2,
		rip:             &RIP{},
	}
}

const reservedHeaderBytes = 16 * 1024

// OpenWrite builds the header metadata tree describing this IAB essence,
// writes the header partition and its primer/structural-metadata batch,
// pads the header out to reservedHeaderBytes so later generic-stream
// metadata partitions never have to move it, and reserves the 24-byte KL
// the clip's essence element will live inside (16-byte key, 8-byte
// long-form BER length left at zero and patched by FinalizeClip).
func (w *Writer) OpenWrite(info WriterInfo, descriptor IABEssenceDescriptorInfo, soundfield IABSoundfieldLabelSubDescriptor) error {
	if w.state != writerBegin {
		return errState
	}
	w.editRate = descriptor.EditRate
	w.index = &IndexTable{EditRateNumerator: descriptor.EditRate.Numerator, EditRateDenominator: descriptor.EditRate.Denominator}
	w.header = newHeaderMetadata()
	w.primer = newPrimer()

	if err := w.buildHeaderMetadata(info, descriptor, soundfield); err != nil {
		w.reset()
		return err
	}

	startPos, err := w.file.Tell()
	if err != nil {
		w.reset()
		return newResult(FAIL, "OpenWrite: %v", err)
	}
	w.headerPartitionStart = startPos
	w.bodyPartitioned = info.BodyPartitioned

	// build the primer and structural-metadata batch into memory first, so
	// the header partition pack can declare an exact HeaderByteCount
	// without a back-patch.
	primerKLV, err := encodeKLV(ULPrimerPack, w.primer.encode())
	if err != nil {
		w.reset()
		return newResult(FAIL, "OpenWrite: encode primer pack: %v", err)
	}
	batch := append([]byte{}, primerKLV...)
	for _, o := range w.header.Objects {
		setKLV, err := encodeKLV(o.Type, encodeObject(w.primer, o))
		if err != nil {
			w.reset()
			return newResult(FAIL, "OpenWrite: encode structural set %s: %v", o.Name, err)
		}
		batch = append(batch, setKLV...)
	}

	headerBodySID := w.bodySID
	if w.bodyPartitioned {
		headerBodySID = 0
	}
	headerPartition := &Partition{
		Kind:               KindHeader,
		MajorVersion:       1,
		MinorVersion:       2,
		KAGSize:            1,
		ThisPartition:      uint64(startPos),
		BodySID:            headerBodySID,
		OperationalPattern: ULOPAtom,
		EssenceContainers:  []UL{ULIABEssenceClipWrappedContainer},
	}
	partitionKLV, err := encodeKLV(partitionUL(KindHeader), headerPartition.encodeValue())
	if err != nil {
		w.reset()
		return newResult(FAIL, "OpenWrite: encode header partition: %v", err)
	}
	if pad := reservedHeaderBytes - len(partitionKLV) - len(batch); pad > 0 {
		fillKLV, err := encodeKLV(ULFillItem, make([]byte, fillValueLen(int64(pad))))
		if err != nil {
			w.reset()
			return newResult(FAIL, "OpenWrite: pad header: %v", err)
		}
		batch = append(batch, fillKLV...)
	}
	headerPartition.HeaderByteCount = uint64(len(batch))
	if partitionKLV, err = encodeKLV(partitionUL(KindHeader), headerPartition.encodeValue()); err != nil {
		w.reset()
		return newResult(FAIL, "OpenWrite: encode header partition: %v", err)
	}

	if _, err := w.file.Write(partitionKLV); err != nil {
		w.reset()
		return newResult(FAIL, "OpenWrite: write header partition: %v", err)
	}
	if _, err := w.file.Write(batch); err != nil {
		w.reset()
		return newResult(FAIL, "OpenWrite: write header metadata batch: %v", err)
	}

	pos, err := w.file.Tell()
	if err != nil {
		w.reset()
		return newResult(FAIL, "OpenWrite: %v", err)
	}
	w.headerByteCount = headerPartition.HeaderByteCount

	if w.bodyPartitioned {
		w.bodyPartitionStart = pos
		bodyPartition := &Partition{
			Kind:               KindBody,
			MajorVersion:       1,
			MinorVersion:       2,
			KAGSize:            1,
			ThisPartition:      uint64(pos),
			PreviousPartition:  uint64(startPos),
			BodySID:            w.bodySID,
			OperationalPattern: ULOPAtom,
			EssenceContainers:  []UL{ULIABEssenceClipWrappedContainer},
		}
		if err := writeKLV(w.file, partitionUL(KindBody), bodyPartition.encodeValue()); err != nil {
			w.reset()
			return newResult(FAIL, "OpenWrite: write body partition: %v", err)
		}
		if pos, err = w.file.Tell(); err != nil {
			w.reset()
			return newResult(FAIL, "OpenWrite: %v", err)
		}
	}

	w.essenceUL = ULIABEssenceClipWrappedElement
	w.essenceUL[13] = 0x01 // clip-wrapped (already 1 in the base label; set explicitly)
	w.essenceUL[15] = 0x01 // stream number

	w.clipKLStart = pos
	var reservedKL [24]byte
	copy(reservedKL[:16], w.essenceUL[:])
	reservedKL[16] = 0x87 // 8-byte long-form BER marker, value patched at FinalizeClip
	if _, err := w.file.Write(reservedKL[:]); err != nil {
		w.reset()
		return newResult(FAIL, "OpenWrite: reserve clip KL: %v", err)
	}
	w.streamOffset = 0
	w.state = writerReady
	w.logger.Debug("OpenWrite: header partition at %d, clip value starts at %d", startPos, pos+24)
	return nil
}

// fillValueLen returns the KLV value length n such that 16 (key) +
// bestBERWidth(n) (the length field writeKLV will choose) + n equals
// total, so a single fill item pads the header out to an exact byte
// count.
func fillValueLen(total int64) int {
	for width := 1; width <= 9; width++ {
		n := total - 16 - int64(width)
		if n < 0 {
			continue
		}
		if bestBERWidth(uint64(n)) == width {
			return int(n)
		}
	}
	return 0
}

func (w *Writer) buildHeaderMetadata(info WriterInfo, descriptor IABEssenceDescriptorInfo, soundfield IABSoundfieldLabelSubDescriptor) error {
	add := func(o *Object) (*Object, error) {
		if err := w.header.Add(o); err != nil {
			return nil, err
		}
		return o, nil
	}

	identification := newObject(ULIdentification, "Identification")
	identification.Fields["CompanyName"] = info.CompanyName
	identification.Fields["ProductName"] = info.ProductName
	identification.Fields["ProductUID"] = info.ProductUID
	if _, err := add(identification); err != nil {
		return err
	}

	subDescriptor := newObject(ULIABSoundfieldLabelSubDescriptor, "IABSoundfieldLabelSubDescriptor")
	subDescriptor.Fields["MCATagName"] = soundfield.MCATagName
	subDescriptor.Fields["MCATagSymbol"] = soundfield.MCATagSymbol
	subDescriptor.Fields["MCALabelDictionaryID"] = soundfield.MCALabelDictionaryID
	subDescriptor.Fields["MCALinkID"] = soundfield.MCALinkID
	if _, err := add(subDescriptor); err != nil {
		return err
	}

	essenceDescriptor := newObject(ULIABEssenceDescriptor, "IABEssenceDescriptor")
	essenceDescriptor.Fields["SampleRate"] = descriptor.EditRate.internal()
	essenceDescriptor.Fields["AudioSamplingRate"] = descriptor.SampleRate.internal()
	essenceDescriptor.Fields["ChannelCount"] = descriptor.ChannelCount
	essenceDescriptor.Fields["QuantizationBits"] = descriptor.QuantizationBits
	essenceDescriptor.Fields["SoundEssenceCoding"] = ULImmersiveAudioCoding
	essenceDescriptor.Fields["SubDescriptors"] = []UUID{subDescriptor.InstanceUID}
	if _, err := add(essenceDescriptor); err != nil {
		return err
	}

	sourceClip := newObject(ULSourceClip, "SourceClip")
	if _, err := add(sourceClip); err != nil {
		return err
	}

	sequence := newObject(ULSequence, "Sequence")
	sequence.Fields["DataDefinition"] = ULSoundDataDef
	sequence.Fields["StructuralComponents"] = []UUID{sourceClip.InstanceUID}
	sequence.Fields["DurationPresent"] = false
	if _, err := add(sequence); err != nil {
		return err
	}

	track := newObject(ULTimelineTrack, "TimelineTrack")
	track.Fields["TrackID"] = uint32(1)
	track.Fields["TrackName"] = "IAB"
	track.Fields["Sequence"] = sequence.InstanceUID
	track.Fields["EditRate"] = descriptor.EditRate.internal()
	if _, err := add(track); err != nil {
		return err
	}

	sourcePackage := newObject(ULSourcePackage, "SourcePackage")
	id, err := NewUUID()
	if err != nil {
		return err
	}
	sourcePackage.Fields["PackageUID"] = id
	sourcePackage.Fields["Tracks"] = []UUID{track.InstanceUID}
	sourcePackage.Fields["Descriptor"] = essenceDescriptor.InstanceUID
	if _, err := add(sourcePackage); err != nil {
		return err
	}

	materialPackage := newObject(ULMaterialPackage, "MaterialPackage")
	matID, err := NewUUID()
	if err != nil {
		return err
	}
	materialPackage.Fields["PackageUID"] = matID
	materialPackage.Fields["Tracks"] = []UUID{track.InstanceUID}
	if _, err := add(materialPackage); err != nil {
		return err
	}

	contentStorage := newObject(ULContentStorage, "ContentStorage")
	contentStorage.Fields["Packages"] = []UUID{materialPackage.InstanceUID, sourcePackage.InstanceUID}
	if _, err := add(contentStorage); err != nil {
		return err
	}

	preface := newObject(ULPreface, "Preface")
	preface.Fields["ContentStorage"] = contentStorage.InstanceUID
	preface.Fields["OperationalPattern"] = ULOPAtom
	if _, err := add(preface); err != nil {
		return err
	}
	return nil
}

// WriteFrame appends one opaque, already-framed IAB frame (built with
// EncodeIABFrame) to the clip's value and records its starting offset in
// the index table.
func (w *Writer) WriteFrame(frame []byte) error {
	if w.state != writerReady && w.state != writerRunning {
		return errState
	}
	w.index.PushIndexEntry(IndexEntry{StreamOffset: w.streamOffset})
	if _, err := w.file.Write(frame); err != nil {
		return newResult(FAIL, "WriteFrame: %v", err)
	}
	w.streamOffset += uint64(len(frame))
	w.state = writerRunning
	return nil
}

// FinalizeClip back-patches the clip KL's reserved 8-byte BER length with
// the clip value's final size, then restores the file position to the end
// of the clip so further partitions append after it. Once the clip is
// finalized no more frames may be written; WriteMetadata and FinalizeMxf
// both require this to have run first, since either would otherwise land
// inside the still-open clip value.
func (w *Writer) FinalizeClip() error {
	if w.state != writerReady && w.state != writerRunning {
		return errState
	}
	endPos, err := w.file.Tell()
	if err != nil {
		return newResult(FAIL, "FinalizeClip: %v", err)
	}
	if err := w.file.Seek(w.clipKLStart + 16); err != nil {
		return newResult(FAIL, "FinalizeClip: seek to length field: %v", err)
	}
	var lenBuf []byte
	lenBuf, ok := writeBER(lenBuf, w.streamOffset, 8)
	if !ok {
		return newResult(FAIL, "FinalizeClip: BER encode of clip length %d", w.streamOffset)
	}
	if _, err := w.file.Write(lenBuf); err != nil {
		return newResult(FAIL, "FinalizeClip: patch length: %v", err)
	}
	if err := w.file.Seek(endPos); err != nil {
		return newResult(FAIL, "FinalizeClip: restore position: %v", err)
	}
	w.state = writerClipDone
	return nil
}

// FinalizeMxf writes the footer partition (carrying the index table
// segment for every frame WriteFrame pushed) and the trailing RIP, then
// always resets the Writer to BEGIN, mirroring the reference writer's
// unconditional Reset() in the face of any finalize error.
func (w *Writer) FinalizeMxf() error {
	defer w.reset()
	if w.state != writerClipDone {
		return errState
	}

	leading := []RIPEntry{{BodySID: 0, ByteOffset: uint64(w.headerPartitionStart)}}
	if w.bodyPartitioned {
		leading = append(leading, RIPEntry{BodySID: w.bodySID, ByteOffset: uint64(w.bodyPartitionStart)})
	}
	w.rip.Entries = append(leading, w.rip.Entries...)

	footerStart, err := w.file.Tell()
	if err != nil {
		return newResult(FAIL, "FinalizeMxf: %v", err)
	}

	instanceUID, err := NewUUID()
	if err != nil {
		return err
	}
	indexValue := w.index.encode(instanceUID, w.indexSID, w.bodySID)

	footerPartition := &Partition{
		Kind:               KindFooter,
		MajorVersion:       1,
		MinorVersion:       2,
		KAGSize:            1,
		ThisPartition:      uint64(footerStart),
		IndexByteCount:     uint64(0), // patched in below once KLV is framed
		IndexSID:           w.indexSID,
		OperationalPattern: ULOPAtom,
		EssenceContainers:  []UL{ULIABEssenceClipWrappedContainer},
	}
	// measure the index table segment's full KLV size before writing the
	// partition pack, so IndexByteCount is correct in one pass.
	indexKLV := writeUL(nil, ULIndexTableSegment)
	var ok bool
	indexKLV, ok = writeBER(indexKLV, uint64(len(indexValue)), bestBERWidth(uint64(len(indexValue))))
	if !ok {
		return newResult(FAIL, "FinalizeMxf: BER encode index table length")
	}
	indexKLV = append(indexKLV, indexValue...)
	footerPartition.IndexByteCount = uint64(len(indexKLV))

	if err := writeKLV(w.file, partitionUL(KindFooter), footerPartition.encodeValue()); err != nil {
		return newResult(FAIL, "FinalizeMxf: write footer partition: %v", err)
	}
	if _, err := w.file.Write(indexKLV); err != nil {
		return newResult(FAIL, "FinalizeMxf: write index table segment: %v", err)
	}
	w.rip.Entries = append(w.rip.Entries, RIPEntry{BodySID: 0, ByteOffset: uint64(footerStart)})

	if err := writeKLV(w.file, ULRandomIndexPack, w.rip.encode()); err != nil {
		return newResult(FAIL, "FinalizeMxf: write RIP: %v", err)
	}
	return nil
}

// WriteMetadata writes an RP 2057-style text-based generic-stream metadata
// partition carrying payload, addressable later by a Reader's ReadMetadata
// through the RIP entry this call appends.
func (w *Writer) WriteMetadata(mimeType, languageCode string, payload []byte) error {
	if w.state != writerClipDone {
		return errState
	}
	partitionStart, err := w.file.Tell()
	if err != nil {
		return newResult(FAIL, "WriteMetadata: %v", err)
	}
	sid := w.genericStreamID

	textSet := newObject(ULGenericStreamTextBasedSet, "GenericStreamTextBasedSet")
	textSet.Fields["TextDataDescription"] = "RP2057"
	textSet.Fields["TextMIMEMediaType"] = mimeType
	textSet.Fields["RFC5646TextLanguageCode"] = languageCode
	textSet.Fields["PayloadSchemeID"] = ULTextBasedFramework
	textSet.Fields["GenericStreamSID"] = sid
	if err := w.header.Add(textSet); err != nil {
		return err
	}

	framework := newObject(ULTextBasedDMFramework, "TextBasedDMFramework")
	framework.Fields["ObjectRef"] = textSet.InstanceUID
	if err := w.header.Add(framework); err != nil {
		return err
	}

	segment := newObject(ULDMSegment, "DMSegment")
	segment.Fields["DataDefinition"] = ULDescriptiveMetaDataDef
	segment.Fields["DMFramework"] = framework.InstanceUID
	segment.Fields["DurationPresent"] = false
	if err := w.header.Add(segment); err != nil {
		return err
	}

	trackID := w.nextTrackID
	track := newObject(ULStaticTrack, "StaticTrack")
	track.Fields["TrackID"] = trackID
	track.Fields["TrackName"] = "GenericStreamText"
	track.Fields["Sequence"] = segment.InstanceUID
	if err := w.header.Add(track); err != nil {
		return err
	}

	partition := &Partition{
		Kind:               KindBody,
		MajorVersion:       1,
		MinorVersion:       2,
		KAGSize:            1,
		ThisPartition:      uint64(partitionStart),
		BodySID:            sid,
		OperationalPattern: ULOPAtom,
	}
	if err := writeKLV(w.file, partitionUL(KindBody), partition.encodeValue()); err != nil {
		return newResult(FAIL, "WriteMetadata: write partition: %v", err)
	}
	// the header partition is already flushed and padded by this point, so
	// the descriptive sets this generic stream needs travel with its own
	// body partition instead of the main structural metadata batch.
	for _, o := range []*Object{textSet, framework, segment, track} {
		if err := writeKLV(w.file, o.Type, encodeObject(w.primer, o)); err != nil {
			return newResult(FAIL, "WriteMetadata: write %s: %v", o.Name, err)
		}
	}
	if err := writeKLV(w.file, ULGenericStreamDataElement, payload); err != nil {
		return newResult(FAIL, "WriteMetadata: write payload: %v", err)
	}

	w.rip.Entries = append(w.rip.Entries, RIPEntry{BodySID: sid, ByteOffset: uint64(partitionStart)})
	w.genericStreamID++
	w.nextTrackID++
	return nil
}

// Close releases the underlying file. It does not finalize anything; call
// FinalizeClip and FinalizeMxf first.
func (w *Writer) Close() error {
	return w.file.Close()
}

func (w *Writer) reset() {
	w.state = writerBegin
	w.header = nil
	w.primer = nil
	w.index = nil
	w.rip = &RIP{}
	w.streamOffset = 0
	w.clipKLStart = 0
	w.headerByteCount = 0
	w.bodyPartitioned = false
	w.bodyPartitionStart = 0
	w.bodySID = 1
	w.indexSID = 1
	w.nextTrackID = 2
	w.genericStreamID = 2
}
