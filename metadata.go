package iabmxf

// Object is a single interchange object in the header-metadata tree: a
// typed set identified by its UL, addressable by InstanceUID. Ownership is
// a strict tree — every Object listed in HeaderMetadata.Objects is owned by
// it; cross-references between objects are InstanceUID values resolved
// through HeaderMetadata.ByUID / HeaderMetadata.GetByType, never pointers.
type Object struct {
	Type        UL
	Name        string
	InstanceUID UUID
	Fields      map[string]interface{}
}

func newObject(typ UL, name string) *Object {
	return &Object{Type: typ, Name: name, Fields: map[string]interface{}{}}
}

// Well-known structural-metadata type ULs.
var (
	ULPreface                          = ul(0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01, 0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x2f, 0x00)
	ULIdentification                   = ul(0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01, 0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x30, 0x00)
	ULContentStorage                   = ul(0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01, 0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x18, 0x00)
	ULMaterialPackage                  = ul(0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01, 0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x36, 0x00)
	ULSourcePackage                    = ul(0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01, 0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x37, 0x00)
	ULTimelineTrack                    = ul(0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01, 0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x3b, 0x00)
	ULStaticTrack                      = ul(0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01, 0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x3a, 0x00)
	ULSequence                         = ul(0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01, 0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x0f, 0x00)
	ULSourceClip                       = ul(0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01, 0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x11, 0x00)
	ULDMSegment                        = ul(0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01, 0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x41, 0x00)
	ULTextBasedDMFramework             = ul(0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01, 0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x44, 0x00)
	ULGenericStreamTextBasedSet        = ul(0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01, 0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x45, 0x00)
	ULIABEssenceDescriptor             = ul(0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01, 0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x5c, 0x00)
	ULIABSoundfieldLabelSubDescriptor  = ul(0x06, 0x0e, 0x2b, 0x34, 0x02, 0x53, 0x01, 0x01, 0x0d, 0x01, 0x01, 0x01, 0x01, 0x01, 0x5d, 0x00)
)

var structuralTypeNames = map[UL]string{
	ULPreface:                         "Preface",
	ULIdentification:                  "Identification",
	ULContentStorage:                  "ContentStorage",
	ULMaterialPackage:                 "MaterialPackage",
	ULSourcePackage:                   "SourcePackage",
	ULTimelineTrack:                   "TimelineTrack",
	ULStaticTrack:                     "StaticTrack",
	ULSequence:                        "Sequence",
	ULSourceClip:                      "SourceClip",
	ULDMSegment:                       "DMSegment",
	ULTextBasedDMFramework:            "TextBasedDMFramework",
	ULGenericStreamTextBasedSet:       "GenericStreamTextBasedSet",
	ULIABEssenceDescriptor:            "IABEssenceDescriptor",
	ULIABSoundfieldLabelSubDescriptor: "IABSoundfieldLabelSubDescriptor",
}

// HeaderMetadata is the navigable tree of interchange objects carried in a
// partition's header. It owns every Object it contains; the only
// cross-references are InstanceUID values stashed in an object's Fields.
type HeaderMetadata struct {
	Objects []*Object
	byUID   map[UUID]*Object
}

func newHeaderMetadata() *HeaderMetadata {
	return &HeaderMetadata{byUID: map[UUID]*Object{}}
}

// Add links a freshly created Object into the tree, generating an
// InstanceUID for it if one has not already been assigned.
func (h *HeaderMetadata) Add(o *Object) error {
	if o.InstanceUID == (UUID{}) {
		id, err := NewUUID()
		if err != nil {
			return err
		}
		o.InstanceUID = id
	}
	h.Objects = append(h.Objects, o)
	h.byUID[o.InstanceUID] = o
	return nil
}

// GetByType returns the single instance of the given type, or nil.
func (h *HeaderMetadata) GetByType(typ UL) *Object {
	for _, o := range h.Objects {
		if o.Type == typ {
			return o
		}
	}
	return nil
}

// GetAllByType returns every instance of the given type.
func (h *HeaderMetadata) GetAllByType(typ UL) []*Object {
	var out []*Object
	for _, o := range h.Objects {
		if o.Type == typ {
			out = append(out, o)
		}
	}
	return out
}

// ByUID resolves a cross-reference InstanceUID to its owning Object.
func (h *HeaderMetadata) ByUID(id UUID) *Object { return h.byUID[id] }

// recognizeStructuralType returns the display name for a structural
// metadata set's type UL.
func recognizeStructuralType(typ UL) string {
	if name, ok := structuralTypeNames[typ]; ok {
		return name
	}
	return "<[Unknown]>"
}
