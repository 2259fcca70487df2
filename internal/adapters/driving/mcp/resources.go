package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	uriScheme = "mediafilter://"

	// maxTextResource caps bitstream content returned as text.
	maxTextResource = 1 << 20
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "formats",
		Name:        "formats",
		Description: "The bitstream format registry",
		MIMEType:    "application/json",
	}, s.handleFormatsResource)

	// Handles contain a slash, so the template uses reserved expansion.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "items/{+handle}",
		Name:        "item",
		Description: "An item with its bundles and bitstreams",
		MIMEType:    "application/json",
	}, s.handleItemResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "bitstreams/{id}",
		Name:        "bitstream-content",
		Description: "Text content of a bitstream, such as extracted text",
		MIMEType:    "text/plain",
	}, s.handleBitstreamResource)
}

func (s *Server) handleFormatsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Items == nil {
		return jsonResult(req.Params.URI, "[]"), nil
	}

	formats, err := s.ports.Items.Formats(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing formats: %w", err)
	}

	type formatInfo struct {
		Name       string   `json:"name"`
		MIMEType   string   `json:"mime_type"`
		Extensions []string `json:"extensions,omitempty"`
	}

	infos := make([]formatInfo, len(formats))
	for i, f := range formats {
		infos[i] = formatInfo{
			Name:       f.ShortDescription,
			MIMEType:   f.MIMEType,
			Extensions: f.Extensions,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling formats: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

func (s *Server) handleItemResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Items == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	handle := extractItemHandle(req.Params.URI)
	if handle == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	details, err := s.ports.Items.Get(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}

	type bitstreamInfo struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Format      string `json:"format"`
		Size        int64  `json:"size"`
		Description string `json:"description,omitempty"`
		DerivedFrom string `json:"derived_from,omitempty"`
		URI         string `json:"uri"`
	}
	type bundleInfo struct {
		Name       string          `json:"name"`
		Bitstreams []bitstreamInfo `json:"bitstreams"`
	}
	type itemInfo struct {
		Handle  string       `json:"handle"`
		Name    string       `json:"name"`
		Bundles []bundleInfo `json:"bundles"`
	}

	info := itemInfo{
		Handle:  details.Item.Handle,
		Name:    details.Item.Name,
		Bundles: make([]bundleInfo, len(details.Bundles)),
	}
	for i, b := range details.Bundles {
		bi := bundleInfo{Name: b.Bundle.Name, Bitstreams: make([]bitstreamInfo, len(b.Bitstreams))}
		for j, bs := range b.Bitstreams {
			bi.Bitstreams[j] = bitstreamInfo{
				ID:          bs.Bitstream.ID,
				Name:        bs.Bitstream.Name,
				Format:      bs.Format,
				Size:        bs.Bitstream.Size,
				Description: bs.Bitstream.Description,
				DerivedFrom: bs.Bitstream.DerivedFrom(),
				URI:         uriScheme + "bitstreams/" + bs.Bitstream.ID,
			}
		}
		info.Bundles[i] = bi
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling item: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

func (s *Server) handleBitstreamResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Items == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	id := extractBitstreamID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	rc, err := s.ports.Items.Content(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("opening bitstream: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxTextResource+1))
	if err != nil {
		return nil, fmt.Errorf("reading bitstream: %w", err)
	}
	if len(data) > maxTextResource || !utf8.Valid(data) {
		return nil, fmt.Errorf("bitstream %s is not readable as text", id)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     string(data),
		}},
	}, nil
}

func jsonResult(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		}},
	}
}

func itemURI(handle string) string {
	return uriScheme + "items/" + handle
}

// extractItemHandle extracts the handle from a URI like mediafilter://items/local/1a2b3c4d.
func extractItemHandle(uri string) string {
	const prefix = uriScheme + "items/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	return strings.TrimPrefix(uri, prefix)
}

// extractBitstreamID extracts the ID from a URI like mediafilter://bitstreams/{id}.
func extractBitstreamID(uri string) string {
	const prefix = uriScheme + "bitstreams/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
