// Package eml extracts saved email messages such as course announcements.
package eml

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
	"github.com/custodia-labs/studyrag/internal/extractors/html"
	"github.com/custodia-labs/studyrag/internal/extractors/plaintext"
)

// MIMEType is the media type of a saved message.
const MIMEType = "message/rfc822"

// maxDepth bounds nested multipart recursion.
const maxDepth = 5

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles RFC 822 messages. The header block becomes the first
// section, titled with the subject, and each body part a further section.
type Extractor struct {
	html  *html.Extractor
	plain *plaintext.Extractor
}

// New creates a new email extractor.
func New() *Extractor {
	return &Extractor{html: html.New(), plain: plaintext.New()}
}

// Name returns the strategy name.
func (e *Extractor) Name() string {
	return "eml"
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 50
}

// Extract parses the message and returns its header and text parts.
func (e *Extractor) Extract(ctx context.Context, in *driven.ExtractInput) ([]domain.Section, error) {
	if in == nil {
		return nil, domain.ErrInvalidInput
	}

	msg, err := mail.ReadMessage(bytes.NewReader(in.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptFile, err)
	}

	subject := decodeHeader(msg.Header.Get("Subject"))
	var header strings.Builder
	for _, name := range []string{"From", "To", "Date", "Subject"} {
		if v := decodeHeader(msg.Header.Get(name)); v != "" {
			fmt.Fprintf(&header, "%s: %s\n", name, v)
		}
	}

	var sections []domain.Section
	if header.Len() > 0 {
		sections = append(sections, domain.Section{Title: subject, Text: strings.TrimSpace(header.String())})
	}

	body, err := e.body(ctx, msg.Header.Get("Content-Type"), decode(msg.Header.Get("Content-Transfer-Encoding"), msg.Body), 0)
	if err != nil {
		return nil, err
	}
	for _, s := range body {
		if s.Title == "" {
			s.Title = subject
		}
		sections = append(sections, s)
	}
	return sections, nil
}

func (e *Extractor) body(ctx context.Context, contentType string, r io.Reader, depth int) ([]domain.Section, error) {
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		if depth >= maxDepth || params["boundary"] == "" {
			return nil, nil
		}
		return e.multipart(ctx, r, params["boundary"], mediaType == "multipart/alternative", depth)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptFile, err)
	}
	return e.text(ctx, mediaType, data)
}

// multipart collects text parts. Alternatives keep only the plain text
// rendering when one exists.
func (e *Extractor) multipart(ctx context.Context, r io.Reader, boundary string, alternative bool, depth int) ([]domain.Section, error) {
	mr := multipart.NewReader(r, boundary)

	var plain, rich []domain.Section
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		if isAttachment(part) {
			part.Close()
			continue
		}

		ct := part.Header.Get("Content-Type")
		sections, err := e.body(ctx, ct, decode(part.Header.Get("Content-Transfer-Encoding"), part), depth+1)
		part.Close()
		if err != nil {
			continue
		}
		if mediaType, _, _ := mime.ParseMediaType(ct); mediaType == "text/html" {
			rich = append(rich, sections...)
		} else {
			plain = append(plain, sections...)
		}
	}

	if alternative && len(plain) > 0 {
		return plain, nil
	}
	return append(plain, rich...), nil
}

func (e *Extractor) text(ctx context.Context, mediaType string, data []byte) ([]domain.Section, error) {
	input := &driven.ExtractInput{Data: data, MIMEType: mediaType}
	switch {
	case mediaType == "text/html":
		return e.html.Extract(ctx, input)
	case strings.HasPrefix(mediaType, "text/"):
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, nil
		}
		return e.plain.Extract(ctx, input)
	default:
		return nil, nil
	}
}

// decode undoes a transfer encoding. multipart.Reader already handles
// quoted-printable parts.
func decode(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}

func isAttachment(part *multipart.Part) bool {
	disposition, _, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	return err == nil && disposition == "attachment"
}

// decodeHeader decodes RFC 2047 encoded words, keeping the raw value on error.
func decodeHeader(header string) string {
	if header == "" {
		return ""
	}
	decoded, err := new(mime.WordDecoder).DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}
