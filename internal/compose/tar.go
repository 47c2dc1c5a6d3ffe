package compose

import (
	"archive/tar"
	"time"
)

const rootName = "root"

// rootOwned resets ownership so that every entry installs as root:root
func rootOwned(hdr *tar.Header) *tar.Header {
	hdr.Uid = 0
	hdr.Gid = 0
	hdr.Uname = rootName
	hdr.Gname = rootName
	return hdr
}

// regularFile builds the header of an in-memory regular file
func regularFile(name string, mode int64, size int64, modTime time.Time) *tar.Header {
	return rootOwned(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     mode,
		Size:     size,
		ModTime:  modTime,
	})
}
