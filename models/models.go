package models

import (
	"time"
)

// Paper status and provenance values.
const (
	StatusApproved = "approved"

	MetadataSourceJSON     = "json"     // Sidecar file was found and parsed
	MetadataSourceFilename = "filename" // Reconstructed from the encoded file name

	UnknownAuthor   = "Unknown Author"
	NoAbstract      = "No abstract available"
	DefaultCategory = "Research"
	DefaultStrand   = "General"

	// LocalFileURL marks a paper that has no backing file in the store.
	LocalFileURL = "#"
)

// User status values.
const (
	UserPending  = "pending"
	UserApproved = "approved"
)

// Paper represents one uploaded research document.
type Paper struct {
	ID             string    `json:"id"`             // Store-assigned id, or paper_<unixMillis> when added locally
	Name           string    `json:"name,omitempty"` // Object name in the documents bucket
	Title          string    `json:"title"`
	Authors        []string  `json:"authors"` // Never empty once normalized
	Abstract       string    `json:"abstract"`
	Category       string    `json:"category"`
	Strand         string    `json:"strand"`
	Year           string    `json:"year"`
	Adviser        string    `json:"adviser,omitempty"`
	Keywords       []string  `json:"keywords"`
	Views          int       `json:"views"`
	Downloads      int       `json:"downloads"`
	FileURL        string    `json:"fileUrl"`
	FileName       string    `json:"fileName"`
	Format         string    `json:"format,omitempty"` // File extension without the dot
	Size           int64     `json:"size,omitempty"`   // Bytes
	Status         string    `json:"status"`
	MetadataSource string    `json:"metadataSource,omitempty"`
	CreatedAt      time.Time `json:"createdAt"` // UTC
}

// HasFile reports whether the paper is backed by an object in the documents bucket.
func (p Paper) HasFile() bool {
	return p.FileURL != "" && p.FileURL != LocalFileURL
}

// PaperMetadata is the sidecar JSON stored next to a document under the same base name.
type PaperMetadata struct {
	Title      string    `json:"title"`
	Authors    []string  `json:"authors"`
	Abstract   string    `json:"abstract"`
	Category   string    `json:"category"`
	Strand     string    `json:"strand"`
	Year       string    `json:"year"`
	Adviser    string    `json:"adviser"`
	Keywords   []string  `json:"keywords"`
	Views      int       `json:"views"`
	Downloads  int       `json:"downloads"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// User represents an account record in the credentials bucket.
// Password is stored and compared as plain text.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"` // Natural key for merge/dedup
	Password  string    `json:"password"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public returns a copy of the user without the password.
func (u User) Public() User {
	u.Password = ""
	return u
}

// StatRecord is the authoritative cross-session counter state for one paper.
type StatRecord struct {
	PaperID     string    `json:"paperId"`
	Views       int       `json:"views"`
	Downloads   int       `json:"downloads"`
	LastUpdated time.Time `json:"lastUpdated"`
}
