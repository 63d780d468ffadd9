package book

// Defaults applied to every staged record.
const (
	DefaultStatus   = "Not started"
	DefaultFormat   = "Physical"
	DefaultProgress = 0
	UnknownTitle    = "Unknown Title"
	UnknownAuthor   = "Unknown Author"
)

// Metadata is one resolved book as staged on disk and published to Notion.
// The JSON keys are the staged file format.
type Metadata struct {
	Title    string   `json:"Title"`
	Status   string   `json:"Status"`
	Pages    *int     `json:"Pages"`
	Progress int      `json:"Progress"`
	Authors  []string `json:"Author"`
	Format   string   `json:"Format"`
	ISBN     string   `json:"ISBN"`
	CoverURL string   `json:"Cover"`
	Summary  string   `json:"Summary"`
}

// NewMetadata returns a record for isbn with the reading defaults filled in.
func NewMetadata(isbn string) *Metadata {
	return &Metadata{
		Title:    UnknownTitle,
		Status:   DefaultStatus,
		Progress: DefaultProgress,
		Authors:  []string{},
		Format:   DefaultFormat,
		ISBN:     isbn,
	}
}
