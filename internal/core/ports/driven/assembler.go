package driven

// DocumentAssembler reassembles a complete document from its stored
// single-page sub-documents.
type DocumentAssembler interface {
	// Assemble merges the page blobs, in order, into one document.
	Assemble(pages [][]byte) ([]byte, error)
}
