package iabmxf

import "os"

// File is the seekable-file-I/O collaborator the Writer and Reader state
// machines are built on. It is kept minimal and stdlib-shaped (Tell/Seek/
// Read/Write) so that any io.ReadWriteSeeker-backed type can stand in for
// it in tests.
type File interface {
	Tell() (int64, error)
	Seek(offset int64) error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// osFile is the default File implementation, wrapping *os.File for
// sequential KLV scanning and in-place length back-patching.
type osFile struct {
	f *os.File
}

// OpenFileForWrite opens name for reading and writing, truncating any
// existing content, and returns it as a File ready for NewWriter.
func OpenFileForWrite(name string) (File, error) {
	return openFileWrite(name)
}

// OpenFileForRead opens name read-only and returns it as a File ready for
// NewReader.
func OpenFileForRead(name string) (File, error) {
	return openFileRead(name)
}

func openFileWrite(name string) (*osFile, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &osFile{f: f}, nil
}

func openFileRead(name string) (*osFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return &osFile{f: f}, nil
}

func (o *osFile) Tell() (int64, error) { return o.f.Seek(0, os.SEEK_CUR) }

func (o *osFile) Seek(offset int64) error {
	_, err := o.f.Seek(offset, os.SEEK_SET)
	return err
}

func (o *osFile) Read(p []byte) (int, error)  { return o.f.Read(p) }
func (o *osFile) Write(p []byte) (int, error) { return o.f.Write(p) }
func (o *osFile) Close() error                { return o.f.Close() }
