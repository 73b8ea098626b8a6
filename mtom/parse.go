package mtom

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/goliatone/go-carriers/core"
	"github.com/goliatone/go-carriers/soap"
)

// Payload and Part give callers local names for the domain payload types.
type Payload = core.ShipmentPayload

type Part = core.PayloadPart

const pdfMagic = "%PDF"

const defaultContentType = "application/octet-stream"

// Parse splits a multipart/MTOM body on the given boundary. The first part
// is the root XML document; the remaining parts are decoded per their
// declared transfer encoding and kept in body order. Every XOP
// href="cid:..." reference in the root must resolve to a part. A part
// declared application/pdf whose bytes lack the PDF signature picks up a
// content integrity warning and parsing continues.
func Parse(raw []byte, boundary string) (Payload, error) {
	if strings.TrimSpace(boundary) == "" {
		return Payload{}, fmt.Errorf("mtom: multipart boundary missing")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return Payload{}, fmt.Errorf("mtom: multipart body is empty")
	}

	reader := multipart.NewReader(bytes.NewReader(raw), boundary)
	var payload Payload
	index := map[string]struct{}{}
	sawRoot := false
	for seq := 0; ; seq++ {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Payload{}, fmt.Errorf("mtom: read multipart part: %w", err)
		}
		content, err := io.ReadAll(part)
		if err != nil {
			return Payload{}, fmt.Errorf("mtom: read multipart part body: %w", err)
		}
		contentID := normalizeContentID(part.Header.Get("Content-ID"))
		decoded, err := decodeTransferContent(content, part.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			return Payload{}, fmt.Errorf("mtom: part %q: %w", partLabel(contentID, seq), err)
		}
		if !sawRoot {
			payload.RootContentID = contentID
			payload.Root = decoded
			sawRoot = true
			continue
		}

		extracted := Part{
			ContentID:   contentID,
			ContentType: partMediaType(part.Header.Get("Content-Type")),
			Content:     decoded,
		}
		extracted.Filename = partFilename(part.Header.Get("Content-Disposition"), extracted, seq)
		if warning, flagged := integrityWarning(extracted); flagged {
			extracted.Warnings = append(extracted.Warnings, warning)
		}
		if contentID != "" {
			index[contentID] = struct{}{}
		}
		payload.Parts = append(payload.Parts, extracted)
	}
	if !sawRoot {
		return Payload{}, fmt.Errorf("mtom: multipart body has no parts")
	}
	if err := resolveReferences(payload.Root, index); err != nil {
		return Payload{}, err
	}
	return payload, nil
}

// resolveReferences checks that every cid href in the root document points
// at an extracted part. Hrefs outside the cid scheme are ignored.
func resolveReferences(root []byte, index map[string]struct{}) error {
	if len(bytes.TrimSpace(root)) == 0 {
		return fmt.Errorf("mtom: multipart root part is empty")
	}
	doc, err := soap.Parse(root)
	if err != nil {
		return fmt.Errorf("mtom: malformed root document: %w", err)
	}
	for _, include := range doc.All("Include") {
		href := strings.TrimSpace(include.Attr("href"))
		if !strings.HasPrefix(href, "cid:") {
			continue
		}
		cid := contentIDFromHref(href)
		if _, ok := index[cid]; !ok {
			return fmt.Errorf("mtom: unresolved content id %q", cid)
		}
	}
	return nil
}

func decodeTransferContent(content []byte, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "binary", "8bit", "7bit":
		return content, nil
	case "base64":
		compact := strings.Map(func(r rune) rune {
			switch r {
			case '\r', '\n', ' ', '\t':
				return -1
			}
			return r
		}, string(content))
		decoded, err := base64.StdEncoding.DecodeString(compact)
		if err != nil {
			return nil, fmt.Errorf("decode base64 content: %w", err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("unsupported content transfer encoding %q", encoding)
	}
}

func integrityWarning(part Part) (core.Warning, bool) {
	if part.ContentType != "application/pdf" {
		return core.Warning{}, false
	}
	if bytes.HasPrefix(part.Content, []byte(pdfMagic)) {
		return core.Warning{}, false
	}
	return core.Warning{
		Code:      core.WarningCodeContentIntegrity,
		ContentID: part.ContentID,
		Message:   "declared application/pdf without %PDF signature",
	}, true
}

func normalizeContentID(value string) string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "<")
	value = strings.TrimSuffix(value, ">")
	return strings.TrimSpace(value)
}

func contentIDFromHref(href string) string {
	cid := strings.TrimPrefix(href, "cid:")
	if unescaped, err := url.PathUnescape(cid); err == nil {
		cid = unescaped
	}
	return cid
}

func partMediaType(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultContentType
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		if idx := strings.IndexByte(value, ';'); idx >= 0 {
			value = value[:idx]
		}
		return strings.ToLower(strings.TrimSpace(value))
	}
	return mediaType
}

// partFilename prefers the declared disposition filename and otherwise
// derives a stable name from the content id and media type. Extension
// lookup uses a fixed table so output never depends on host mime tables.
func partFilename(disposition string, part Part, seq int) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := strings.TrimSpace(params["filename"]); name != "" {
				return name
			}
		}
	}
	base := sanitizeFilenameBase(part.ContentID)
	if base == "" {
		base = fmt.Sprintf("part-%d", seq)
	}
	return base + extensionForMediaType(part.ContentType)
}

var mediaTypeExtensions = map[string]string{
	"application/pdf":          ".pdf",
	"application/xml":          ".xml",
	"text/xml":                 ".xml",
	"application/xop+xml":      ".xml",
	"text/plain":               ".txt",
	"application/zip":          ".zip",
	"application/octet-stream": ".bin",
}

func extensionForMediaType(mediaType string) string {
	if ext, ok := mediaTypeExtensions[mediaType]; ok {
		return ext
	}
	return ".bin"
}

func sanitizeFilenameBase(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		default:
			return '-'
		}
	}, strings.TrimSpace(value))
}

func partLabel(contentID string, seq int) string {
	if contentID != "" {
		return contentID
	}
	return fmt.Sprintf("#%d", seq)
}
