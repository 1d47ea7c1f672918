// Package archive writes immutable, versioned contract snapshots: the
// generated artifact plus the exact inputs that produced it.
package archive

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/accord/internal/providers"
	"github.com/JaimeStill/accord/internal/templates"
)

// HashAlgorithm names the digest recorded on every snapshot.
const HashAlgorithm = "sha256"

const (
	keyRoot      = "contracts"
	snapshotFile = "snapshot.json"
	versionTime  = "20060102T150405.000000000Z"
)

// Namespace seeds deterministic contract ids.
var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/JaimeStill/accord/contracts"))

// Snapshot is the immutable record of one generation. The DOCX shell is
// not embedded; ShellHash identifies the exact shell the artifact used.
type Snapshot struct {
	ContractID  uuid.UUID           `json:"contract_id"`
	Version     string              `json:"version"`
	GeneratedAt time.Time           `json:"generated_at"`
	Provider    providers.Record    `json:"provider"`
	Template    templates.Template  `json:"template"`
	ShellHash   string              `json:"shell_hash,omitempty"`
	Mappings    []templates.Mapping `json:"mappings,omitempty"`
	Warnings    []string            `json:"warnings"`
	Filename    string              `json:"filename"`
	ContentType string              `json:"content_type"`
	Size        int64               `json:"size"`
	PageCount   *int                `json:"page_count,omitempty"`
	Algorithm   string              `json:"algorithm"`
	Hash        string              `json:"hash"`
	Key         string              `json:"key"`
	Ref         string              `json:"ref"`
}

// StoreCommand carries an artifact and the inputs it was generated from.
type StoreCommand struct {
	Artifact    []byte
	Filename    string
	ContentType string
	Provider    providers.Record
	Template    templates.Template
	Mappings    []templates.Mapping
	Warnings    []string
}

// ContractID derives the logical contract id for a provider and template.
// Every generation of the same pair shares it.
func ContractID(providerID, templateID uuid.UUID) uuid.UUID {
	name := make([]byte, 0, 32)
	name = append(name, providerID[:]...)
	name = append(name, templateID[:]...)
	return uuid.NewSHA1(Namespace, name)
}

// Digest returns the hex digest of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NewVersion returns a lexically sortable version stamp for t.
func NewVersion(t time.Time) string {
	var suffix [4]byte
	_, _ = rand.Read(suffix[:])
	return t.UTC().Format(versionTime) + "-" + hex.EncodeToString(suffix[:])
}

func contractPrefix(contractID uuid.UUID) string {
	return path.Join(keyRoot, contractID.String()) + "/"
}

func versionPrefix(contractID uuid.UUID, version string) string {
	return path.Join(keyRoot, contractID.String(), version)
}

func artifactKey(contractID uuid.UUID, version, filename string) string {
	return path.Join(versionPrefix(contractID, version), filename)
}

func snapshotKey(contractID uuid.UUID, version string) string {
	return path.Join(versionPrefix(contractID, version), snapshotFile)
}
