package render

import (
	"bytes"
	"fmt"
	"strings"
)

// A4 media box in PDF points, with a small margin and a fixed line height
// for the built-in Courier font.
const (
	pdfPageWidth  = 595
	pdfPageHeight = 842
	pdfMargin     = 40
	pdfFontSize   = 10
	pdfLineHeight = 12
)

// writeTextPDF emits a minimal PDF 1.4 document with one Courier text page
// per chunk of lines that fits the page height.
func writeTextPDF(lines []string) []byte {
	linesPerPage := (pdfPageHeight - 2*pdfMargin) / pdfLineHeight
	if linesPerPage < 1 {
		linesPerPage = 1
	}

	var pages [][]string
	for start := 0; start < len(lines); start += linesPerPage {
		end := start + linesPerPage
		if end > len(lines) {
			end = len(lines)
		}
		pages = append(pages, lines[start:end])
	}
	if len(pages) == 0 {
		pages = [][]string{{""}}
	}

	// Object layout: 1 catalog, 2 pages, 3 font, then per page one page
	// object and one content stream.
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"", // placeholder, filled once page ids are known
		"<< /Type /Font /Subtype /Type1 /BaseFont /Courier >>",
	}

	var pageIDs []int
	for _, pageLines := range pages {
		contentID := len(objects) + 2 // page object comes first
		pageID := len(objects) + 1
		pageIDs = append(pageIDs, pageID)

		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			pdfPageWidth, pdfPageHeight, contentID))

		stream := buildContentStream(pageLines)
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(stream), stream))
	}

	kids := make([]string, len(pageIDs))
	for i, id := range pageIDs {
		kids[i] = fmt.Sprintf("%d 0 R", id)
	}
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pageIDs))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefStart)

	return buf.Bytes()
}

func buildContentStream(lines []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "BT\n/F1 %d Tf\n%d %d Td\n%d TL\n", pdfFontSize, pdfMargin, pdfPageHeight-pdfMargin, pdfLineHeight)
	for _, line := range lines {
		fmt.Fprintf(&b, "(%s) '\n", escapePDFString(line))
	}
	b.WriteString("ET\n")
	return b.String()
}

func escapePDFString(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`, "\r", "")
	return replacer.Replace(s)
}
