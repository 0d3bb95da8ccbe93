package indexer

// Chunk represents a segment of extracted document text.
type Chunk struct {
	Index int    // Chunk index within the document (starts at 0)
	Text  string // Chunk text content
}

// Source is one document to ingest, as listed in the manifest.
type Source struct {
	// Ref is the scope the document's chunks are stored under (e.g., "fy23-report").
	Ref string `yaml:"ref"`
	// URL is an http(s) or file URL, or a local path.
	URL string `yaml:"url"`
	// Title is optional; PDFs and plain text fall back to Ref, Markdown to its first heading.
	Title string `yaml:"title,omitempty"`
}

// Format is the detected document format.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)
