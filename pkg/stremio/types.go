package stremio

// Manifest represents a Stremio addon manifest
type Manifest struct {
	ID          string            `json:"id"`
	Version     string            `json:"version"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Resources   []string          `json:"resources"`
	Types       []string          `json:"types"`
	IDPrefixes  []string          `json:"idPrefixes"`
	Catalogs    []ManifestCatalog `json:"catalogs"`
}

// ManifestCatalog represents a Stremio manifest catalog entry
type ManifestCatalog struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MetaPreview represents a catalog item
type MetaPreview struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Poster string `json:"poster"`
}

// MetasResponse is the body of a catalog response
type MetasResponse struct {
	Metas []MetaPreview `json:"metas"`
}

// Stream represents a Stremio stream
type Stream struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// StreamsResponse is the body of a stream response
type StreamsResponse struct {
	Streams []Stream `json:"streams"`
}
