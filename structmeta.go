package iabmxf

import "encoding/binary"

// fieldKind tags how a structural-metadata property is encoded inside a
// local set's value, so the decoder can walk Fields without a schema
// negotiation step with the caller.
type fieldKind byte

const (
	kindUint32 fieldKind = iota
	kindUint64
	kindString
	kindUUID
	kindUL
	kindUUIDList
	kindBool
	kindRational
)

// fieldSpec is one property of a structural-metadata type: its local tag
// (fixed per type, the way a real MXF dictionary assigns static tags to
// properties) and how to encode/decode it.
type fieldSpec struct {
	Tag  uint16
	Name string
	Kind fieldKind
}

// schema lists every property this package round-trips for a given
// structural-metadata type. Fields entries not listed here are not
// encoded, so they do not survive a write/read round trip; on decode,
// local tags not listed for the type are ignored.
var schema = map[UL][]fieldSpec{
	ULIABEssenceDescriptor: {
		{0x3001, "SampleRate", kindRational},
		{0x3002, "AudioSamplingRate", kindRational},
		{0x3003, "ChannelCount", kindUint32},
		{0x3004, "QuantizationBits", kindUint32},
		{0x3005, "SoundEssenceCoding", kindUL},
		{0x3006, "SubDescriptors", kindUUIDList},
	},
	ULIABSoundfieldLabelSubDescriptor: {
		{0x3101, "MCATagName", kindString},
		{0x3102, "MCATagSymbol", kindString},
		{0x3103, "MCALabelDictionaryID", kindUL},
		{0x3104, "MCALinkID", kindUUID},
	},
	ULPreface: {
		{0x3201, "ContentStorage", kindUUID},
		{0x3202, "OperationalPattern", kindUL},
		{0x3203, "ConformsToSpecifications", kindUUIDList},
		{0x3204, "DMSchemes", kindUUIDList},
	},
	ULIdentification: {
		{0x3301, "CompanyName", kindString},
		{0x3302, "ProductName", kindString},
		{0x3303, "ProductUID", kindUUID},
	},
	ULContentStorage: {
		{0x3401, "Packages", kindUUIDList},
	},
	ULMaterialPackage: {
		{0x3501, "PackageUID", kindUUID},
		{0x3502, "Tracks", kindUUIDList},
	},
	ULSourcePackage: {
		{0x3601, "PackageUID", kindUUID},
		{0x3602, "Tracks", kindUUIDList},
		{0x3603, "Descriptor", kindUUID},
	},
	ULTimelineTrack: {
		{0x3701, "TrackID", kindUint32},
		{0x3702, "TrackName", kindString},
		{0x3703, "Sequence", kindUUID},
		{0x3704, "EditRate", kindRational},
	},
	ULStaticTrack: {
		{0x3801, "TrackID", kindUint32},
		{0x3802, "TrackName", kindString},
		{0x3803, "Sequence", kindUUID},
	},
	ULSequence: {
		{0x3901, "DataDefinition", kindUL},
		{0x3902, "StructuralComponents", kindUUIDList},
		{0x3903, "DurationPresent", kindBool},
	},
	ULDMSegment: {
		{0x3a01, "DataDefinition", kindUL},
		{0x3a02, "EventComment", kindString},
		{0x3a03, "DMFramework", kindUUID},
		{0x3a04, "DurationPresent", kindBool},
	},
	ULTextBasedDMFramework: {
		{0x3b01, "ObjectRef", kindUUID},
	},
	ULGenericStreamTextBasedSet: {
		{0x3c01, "TextDataDescription", kindString},
		{0x3c02, "TextMIMEMediaType", kindString},
		{0x3c03, "RFC5646TextLanguageCode", kindString},
		{0x3c04, "PayloadSchemeID", kindUL},
		{0x3c05, "GenericStreamSID", kindUint32},
	},
}

// rational mirrors the Rational pairs used for edit/sample rates.
type rational struct {
	Numerator, Denominator int32
}

func encodeField(kind fieldKind, v interface{}) []byte {
	switch kind {
	case kindUint32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], v.(uint32))
		return b[:]
	case kindUint64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], v.(uint64))
		return b[:]
	case kindString:
		return []byte(v.(string))
	case kindUUID:
		u := v.(UUID)
		return u[:]
	case kindUL:
		u := v.(UL)
		return u[:]
	case kindBool:
		if v.(bool) {
			return []byte{1}
		}
		return []byte{0}
	case kindRational:
		r := v.(rational)
		var b [8]byte
		binary.BigEndian.PutUint32(b[0:4], uint32(r.Numerator))
		binary.BigEndian.PutUint32(b[4:8], uint32(r.Denominator))
		return b[:]
	case kindUUIDList:
		ids := v.([]UUID)
		buf := make([]byte, 8)
		binary.BigEndian.PutUint32(buf[0:4], uint32(len(ids)))
		binary.BigEndian.PutUint32(buf[4:8], KeyLen)
		for _, id := range ids {
			buf = append(buf, id[:]...)
		}
		return buf
	}
	return nil
}

func decodeField(kind fieldKind, b []byte) interface{} {
	switch kind {
	case kindUint32:
		if len(b) < 4 {
			return uint32(0)
		}
		return binary.BigEndian.Uint32(b)
	case kindUint64:
		if len(b) < 8 {
			return uint64(0)
		}
		return binary.BigEndian.Uint64(b)
	case kindString:
		return string(b)
	case kindUUID:
		var u UUID
		copy(u[:], b)
		return u
	case kindUL:
		var u UL
		copy(u[:], b)
		return u
	case kindBool:
		return len(b) > 0 && b[0] != 0
	case kindRational:
		if len(b) < 8 {
			return rational{}
		}
		return rational{
			Numerator:   int32(binary.BigEndian.Uint32(b[0:4])),
			Denominator: int32(binary.BigEndian.Uint32(b[4:8])),
		}
	case kindUUIDList:
		if len(b) < 8 {
			return []UUID(nil)
		}
		n := int(binary.BigEndian.Uint32(b[0:4]))
		width := int(binary.BigEndian.Uint32(b[4:8]))
		rest := b[8:]
		out := make([]UUID, 0, n)
		for i := 0; i < n && len(rest) >= width; i++ {
			var id UUID
			copy(id[:], rest[:width])
			out = append(out, id)
			rest = rest[width:]
		}
		return out
	}
	return nil
}

// encodeObject turns an Object's Fields into the set-value bytes (a run of
// local sets), using the static tags from schema. The primer is not
// consulted and no primer tags are allocated.
func encodeObject(p *primer, o *Object) []byte {
	specs := schema[o.Type]
	var sets []localSet
	for _, spec := range specs {
		v, ok := o.Fields[spec.Name]
		if !ok {
			continue
		}
		sets = append(sets, localSet{Tag: spec.Tag, Value: encodeField(spec.Kind, v)})
	}
	// InstanceUID is always tag 0x3c0a by convention, present on every set.
	sets = append([]localSet{{Tag: instanceUIDTag, Value: o.InstanceUID[:]}}, sets...)
	return encodeLocalSets(sets)
}

const instanceUIDTag = 0x3c0a

// decodeObject parses a structural metadata set's value into a fresh
// Object of the given type, using the static schema for that type to
// interpret each local tag's value.
func decodeObject(typ UL, value []byte) *Object {
	o := newObject(typ, recognizeStructuralType(typ))
	specs := schema[typ]
	byTag := map[uint16]fieldSpec{}
	for _, s := range specs {
		byTag[s.Tag] = s
	}
	for _, ls := range decodeLocalSets(value) {
		if ls.Tag == instanceUIDTag {
			copy(o.InstanceUID[:], ls.Value)
			continue
		}
		if spec, ok := byTag[ls.Tag]; ok {
			o.Fields[spec.Name] = decodeField(spec.Kind, ls.Value)
		}
	}
	return o
}
