// Package models holds the wire and in-memory data types shared across the
// download and decryption core: the archive manifest, its parts, and the
// bundle's inner file listing.
package models

import (
	"encoding/base64"
	"fmt"
	"sort"
)

// FileEntry describes one inner file of a bundle archive.
type FileEntry struct {
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
}

// PartInfo describes one ciphertext part as returned by the manifest
// endpoint. Parts are unordered on the wire; callers sort by Index.
type PartInfo struct {
	Index int64  `json:"index"`
	Size  int64  `json:"size"`
	Hash  string `json:"hash"` // lowercase hex SHA-256
	URL   string `json:"url"`
}

// Manifest is the archive manifest returned by GET /api/archives/<id>/parts.
type Manifest struct {
	ArchiveID      string      `json:"archive_id"`
	IsBundle       bool        `json:"is_bundle"`
	ChunkSizeBytes int64       `json:"chunk_size_bytes,omitempty"`
	IV             string      `json:"iv"`       // base64, 12 bytes decoded
	AuthTag        string      `json:"auth_tag"` // base64, 16 bytes decoded
	OriginalSize   *int64      `json:"original_size,omitempty"`
	EncryptedSize  *int64      `json:"encrypted_size,omitempty"`
	DownloadName   string      `json:"download_name,omitempty"`
	DisplayName    string      `json:"display_name,omitempty"`
	Files          []FileEntry `json:"files,omitempty"`
	Parts          []PartInfo  `json:"parts"`
}

// DecodedIV base64-decodes IV and validates its length is exactly 12 bytes.
func (m *Manifest) DecodedIV() ([]byte, error) {
	iv, err := base64.StdEncoding.DecodeString(m.IV)
	if err != nil {
		return nil, fmt.Errorf("invalid_iv: %w", err)
	}
	if len(iv) != 12 {
		return nil, fmt.Errorf("invalid_iv: expected 12 bytes, got %d", len(iv))
	}
	return iv, nil
}

// DecodedAuthTag base64-decodes auth_tag and validates its length is
// exactly 16 bytes.
func (m *Manifest) DecodedAuthTag() ([]byte, error) {
	tag, err := base64.StdEncoding.DecodeString(m.AuthTag)
	if err != nil {
		return nil, fmt.Errorf("invalid_auth_tag: %w", err)
	}
	if len(tag) != 16 {
		return nil, fmt.Errorf("invalid_auth_tag: expected 16 bytes, got %d", len(tag))
	}
	return tag, nil
}

// SortedParts returns the manifest's parts sorted ascending by index. It
// does not mutate the manifest.
func (m *Manifest) SortedParts() []PartInfo {
	parts := make([]PartInfo, len(m.Parts))
	copy(parts, m.Parts)
	sort.Slice(parts, func(i, j int) bool { return parts[i].Index < parts[j].Index })
	return parts
}

// TotalBytes returns OriginalSize if known, else EncryptedSize, else nil.
func (m *Manifest) TotalBytes() *int64 {
	if m.OriginalSize != nil {
		return m.OriginalSize
	}
	return m.EncryptedSize
}

// DisplayNameFor computes the display name for the archive, or for one
// entry when fileIndex selects a file out of a bundle, before
// sanitization.
func (m *Manifest) DisplayNameFor(fileIndex *int) string {
	if fileIndex != nil {
		idx := *fileIndex
		if idx >= 0 && idx < len(m.Files) && m.Files[idx].OriginalName != "" {
			return m.Files[idx].OriginalName
		}
	}
	if m.DownloadName != "" {
		return m.DownloadName
	}
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return "download.bin"
}
