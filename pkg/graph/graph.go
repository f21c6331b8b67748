package graph

// Book is the raw material supplied by a document source: the full text plus
// display metadata.
type Book struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Text   string `json:"text"`
}

// CharacterCount is one row of the aggregated character table.
type CharacterCount struct {
	Name     string `json:"name"`
	Mentions int    `json:"mentions"`
}

// Edge is an undirected, aggregated interaction between two characters.
// From/To are the lexicographically sorted pair; Count is the number of
// contributing observations and Strength the accumulated sentiment sum.
type Edge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Count    int    `json:"count"`
	Strength int    `json:"strength"`
}

// Graph is the final analysis artifact for one book and mode.
//
// Partial is set when the batch deadline fired before every chunk was
// extracted; partial graphs are returned to the caller but never cached, so
// a later request can produce the complete version.
type Graph struct {
	BookID       string           `json:"book_id"`
	Title        string           `json:"title"`
	Author       string           `json:"author"`
	NamesOnly    bool             `json:"names_only"`
	Partial      bool             `json:"partial,omitempty"`
	Characters   []CharacterCount `json:"characters"`
	Interactions []Edge           `json:"interactions"`
}
