package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for chunk documents.
//
//  1. Full-text search on chunk text with English stemming
//  2. Exact matching on the chunk keyword set
//  3. Exact book filter
//  4. Numeric ranges on chunk times for the heard-so-far boundary
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// --- Text fields ---

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = en.AnalyzerName
	textFieldMapping.Store = true
	textFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("text", textFieldMapping)

	// --- Keyword fields ---

	// Keywords are already lower-cased and trimmed at chunk build time
	keywordsFieldMapping := bleve.NewTextFieldMapping()
	keywordsFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("keywords", keywordsFieldMapping)

	bookFieldMapping := bleve.NewTextFieldMapping()
	bookFieldMapping.Analyzer = keyword.Name
	bookFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("book_id", bookFieldMapping)

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	// --- Numeric fields ---

	for _, field := range []string{"chunk_id", "start_time", "end_time"} {
		numericFieldMapping := bleve.NewNumericFieldMapping()
		numericFieldMapping.Store = true
		docMapping.AddFieldMappingsAt(field, numericFieldMapping)
	}

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
