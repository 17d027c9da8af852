package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docstash-cli/internal/core/domain"
)

// uriScheme is the custom URI scheme for docstash resources.
const uriScheme = "docstash://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing documents.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "documents",
		Name:        "documents",
		Description: "List of all ingested documents",
		MIMEType:    "application/json",
	}, s.handleDocumentList)

	// Template for document metadata, including its pages.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}",
		Name:        "document",
		Description: "Metadata for one document: title, description and per-page gists",
		MIMEType:    "application/json",
	}, s.handleDocument)

	// Template for the full reconstructed PDF.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}/pdf",
		Name:        "document-pdf",
		Description: "The complete PDF reconstructed from stored pages",
		MIMEType:    "application/pdf",
	}, s.handleDocumentPDF)

	// Template for single-page PDFs.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}/pages/{pageNumber}",
		Name:        "document-page",
		Description: "A single-page PDF extracted during ingestion",
		MIMEType:    "application/pdf",
	}, s.handlePagePDF)

	// Template for figure images.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "figures/{figureId}",
		Name:        "figure",
		Description: "Image blob captured from a page during ingestion",
	}, s.handleFigure)

	// Template for table renderings.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "tables/{tableId}/image",
		Name:        "table-image",
		Description: "Rendered table image captured during parsing",
	}, s.handleTableImage)
}

// documentInfo is the JSON shape of one document in listings.
type documentInfo struct {
	ID          int64   `json:"document_id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	PageCount   int     `json:"page_count"`
	Resource    string  `json:"resource"`
}

// pageInfo is the JSON shape of one page in document metadata.
type pageInfo struct {
	ID         int64   `json:"page_id"`
	Number     int     `json:"page_number"`
	Gist       *string `json:"gist"`
	TextLength int     `json:"text_length"`
	DataBytes  int     `json:"data_bytes"`
	Resource   string  `json:"resource"`
}

// handleDocumentList returns all documents as JSON.
func (s *Server) handleDocumentList(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	docs, err := s.library.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	infos := make([]documentInfo, len(docs))
	for i, doc := range docs {
		infos[i] = documentInfo{
			ID:          doc.ID,
			Title:       doc.Title,
			Description: doc.Description,
			PageCount:   doc.PageCount,
			Resource:    documentURI(doc.ID),
		}
	}

	return jsonResult(req.Params.URI, infos)
}

// handleDocument returns one document's metadata with its page list.
func (s *Server) handleDocument(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id, ok := extractDocumentID(req.Params.URI, "")
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	doc, err := s.library.GetDocument(ctx, id)
	if err != nil {
		return nil, s.mapError(req.Params.URI, err)
	}

	pages, err := s.library.ListPages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}

	pageInfos := make([]pageInfo, len(pages))
	for i, page := range pages {
		pageInfos[i] = pageInfo{
			ID:         page.ID,
			Number:     page.Number,
			Gist:       page.Gist,
			TextLength: page.TextLength,
			DataBytes:  page.DataLength,
			Resource:   pageURI(id, page.Number),
		}
	}

	payload := struct {
		documentInfo
		PDF   string     `json:"pdf_resource"`
		Pages []pageInfo `json:"pages"`
	}{
		documentInfo: documentInfo{
			ID:          doc.ID,
			Title:       doc.Title,
			Description: doc.Description,
			PageCount:   doc.PageCount,
			Resource:    documentURI(doc.ID),
		},
		PDF:   documentURI(doc.ID) + "/pdf",
		Pages: pageInfos,
	}

	return jsonResult(req.Params.URI, payload)
}

// handleDocumentPDF returns the reassembled whole-document PDF.
func (s *Server) handleDocumentPDF(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id, ok := extractDocumentID(req.Params.URI, "/pdf")
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	data, err := s.library.DocumentData(ctx, id)
	if err != nil {
		return nil, s.mapError(req.Params.URI, err)
	}

	return s.blobResult(req.Params.URI, data, "application/pdf")
}

// handlePagePDF returns one stored single-page PDF.
func (s *Server) handlePagePDF(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	docID, pageNumber, ok := extractPageRef(req.Params.URI)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	data, err := s.library.PageData(ctx, docID, pageNumber)
	if err != nil {
		return nil, s.mapError(req.Params.URI, err)
	}

	return s.blobResult(req.Params.URI, data, "application/pdf")
}

// handleFigure returns a figure's image bytes.
func (s *Server) handleFigure(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id, ok := extractID(req.Params.URI, uriScheme+"figures/", "")
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	data, mimeType, err := s.library.FigureData(ctx, id)
	if err != nil {
		return nil, s.mapError(req.Params.URI, err)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return s.blobResult(req.Params.URI, data, mimeType)
}

// handleTableImage returns a table's rendered raster image.
func (s *Server) handleTableImage(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id, ok := extractID(req.Params.URI, uriScheme+"tables/", "/image")
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	data, err := s.library.TableImage(ctx, id)
	if err != nil {
		return nil, s.mapError(req.Params.URI, err)
	}
	if len(data) == 0 {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	return s.blobResult(req.Params.URI, data, "image/jpeg")
}

// mapError converts store errors into protocol errors.
func (s *Server) mapError(uri string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return mcp.ResourceNotFoundError(uri)
	}
	return err
}

// blobResult wraps binary data, enforcing the size limit.
func (s *Server) blobResult(uri string, data []byte, mimeType string) (*mcp.ReadResourceResult, error) {
	if int64(len(data)) > s.maxBlobSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d",
			ErrResourceTooLarge, uri, len(data), s.maxBlobSize)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: mimeType,
			Blob:     data,
		}},
	}, nil
}

// jsonResult marshals payload as an indented JSON text resource.
func jsonResult(uri string, payload any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// documentURI builds the metadata URI for a document.
func documentURI(id int64) string {
	return fmt.Sprintf("%sdocuments/%d", uriScheme, id)
}

// pageURI builds the single-page PDF URI.
func pageURI(documentID int64, pageNumber int) string {
	return fmt.Sprintf("%sdocuments/%d/pages/%d", uriScheme, documentID, pageNumber)
}

// extractDocumentID parses a URI like docstash://documents/{id}{suffix}.
func extractDocumentID(uri, suffix string) (int64, bool) {
	return extractID(uri, uriScheme+"documents/", suffix)
}

// extractID parses the numeric segment between prefix and suffix.
func extractID(uri, prefix, suffix string) (int64, bool) {
	if !strings.HasPrefix(uri, prefix) {
		return 0, false
	}
	rest := strings.TrimPrefix(uri, prefix)
	if suffix != "" {
		if !strings.HasSuffix(rest, suffix) {
			return 0, false
		}
		rest = strings.TrimSuffix(rest, suffix)
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// extractPageRef parses docstash://documents/{id}/pages/{n}.
func extractPageRef(uri string) (int64, int, bool) {
	const prefix = uriScheme + "documents/"
	if !strings.HasPrefix(uri, prefix) {
		return 0, 0, false
	}
	parts := strings.Split(strings.TrimPrefix(uri, prefix), "/")
	if len(parts) != 3 || parts[1] != "pages" {
		return 0, 0, false
	}
	docID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || docID < 1 {
		return 0, 0, false
	}
	pageNumber, err := strconv.Atoi(parts[2])
	if err != nil || pageNumber < 1 {
		return 0, 0, false
	}
	return docID, pageNumber, true
}
