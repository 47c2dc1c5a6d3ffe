package index

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ralt/debbuild/internal/utils"
)

// ReleaseFileInfo contains information about a file in the release
type ReleaseFileInfo struct {
	Path     string
	Checksum *utils.Checksum
}

// ReleaseInfo holds the descriptive fields of a flat repository Release
type ReleaseInfo struct {
	Origin        string
	Label         string
	Date          time.Time
	Architectures []string
}

// GenerateReleaseFile creates the Release file of a flat repository
func GenerateReleaseFile(info ReleaseInfo, files []ReleaseFileInfo) []byte {
	var buf bytes.Buffer

	if info.Origin != "" {
		fmt.Fprintf(&buf, "Origin: %s\n", info.Origin)
	}
	if info.Label != "" {
		fmt.Fprintf(&buf, "Label: %s\n", info.Label)
	}
	if len(info.Architectures) > 0 {
		fmt.Fprintf(&buf, "Architectures: %s\n", strings.Join(info.Architectures, " "))
	}
	fmt.Fprintf(&buf, "Date: %s\n", info.Date.UTC().Format(time.RFC1123Z))

	sections := []struct {
		name string
		sum  func(*utils.Checksum) string
	}{
		{"MD5Sum", func(c *utils.Checksum) string { return c.MD5 }},
		{"SHA1", func(c *utils.Checksum) string { return c.SHA1 }},
		{"SHA256", func(c *utils.Checksum) string { return c.SHA256 }},
		{"SHA512", func(c *utils.Checksum) string { return c.SHA512 }},
	}
	for _, section := range sections {
		fmt.Fprintf(&buf, "%s:\n", section.name)
		for _, file := range files {
			fmt.Fprintf(&buf, " %s %d %s\n", section.sum(file.Checksum), file.Checksum.Size, file.Path)
		}
	}

	return buf.Bytes()
}

// CalculateReleaseFileInfos calculates checksums for the index files
func CalculateReleaseFileInfos(basePath string, files []string) ([]ReleaseFileInfo, error) {
	var infos []ReleaseFileInfo

	for _, file := range files {
		checksum, err := utils.CalculateChecksums(filepath.Join(basePath, file))
		if err != nil {
			return nil, fmt.Errorf("failed to calculate checksum for %s: %w", file, err)
		}

		infos = append(infos, ReleaseFileInfo{
			Path:     file,
			Checksum: checksum,
		})
	}

	return infos, nil
}

// architectures lists the distinct Architecture fields of entries
func architectures(entries []Entry) []string {
	seen := make(map[string]bool)
	var arches []string
	for _, e := range entries {
		arch := e.Fields.Get("Architecture")
		if arch == "" || seen[arch] {
			continue
		}
		seen[arch] = true
		arches = append(arches, arch)
	}
	sort.Strings(arches)
	return arches
}
