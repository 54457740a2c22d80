package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"gwi.com/support-chatbot/internal/domain"
)

// DOCXLoader reads paragraph text from word/document.xml.
type DOCXLoader struct{}

func NewDOCXLoader() *DOCXLoader {
	return &DOCXLoader{}
}

func (l *DOCXLoader) Load(_ context.Context, data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: not a docx archive", domain.ErrInvalidDocument)
	}
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("%w: cannot open document.xml", domain.ErrInvalidDocument)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: cannot read document.xml", domain.ErrInvalidDocument)
		}
		return parseDocumentXML(content)
	}
	return "", fmt.Errorf("%w: docx has no word/document.xml", domain.ErrInvalidDocument)
}

// parseDocumentXML walks the body in document order. Paragraphs become
// lines; a table row becomes one line of tab-separated cells, so tables stay
// next to the text around them.
func parseDocumentXML(content []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))

	var (
		lines     []string
		paragraph strings.Builder
		inRun     bool
		inText    bool
		rows      [][]string
		cells     [][]string
	)
	emit := func(line string) {
		if len(cells) > 0 {
			cells[len(cells)-1] = append(cells[len(cells)-1], line)
			return
		}
		lines = append(lines, line)
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: malformed document.xml", domain.ErrInvalidDocument)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "p":
				paragraph.Reset()
			case "r":
				inRun = true
			case "t":
				inText = true
			case "tab":
				if inRun {
					paragraph.WriteString("\t")
				}
			case "tr":
				rows = append(rows, nil)
			case "tc":
				cells = append(cells, nil)
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "p":
				emit(paragraph.String())
				paragraph.Reset()
			case "r":
				inRun = false
			case "t":
				inText = false
			case "tc":
				if len(cells) == 0 || len(rows) == 0 {
					continue
				}
				cell := strings.Join(cells[len(cells)-1], " ")
				cells = cells[:len(cells)-1]
				rows[len(rows)-1] = append(rows[len(rows)-1], cell)
			case "tr":
				if len(rows) == 0 {
					continue
				}
				row := strings.Join(rows[len(rows)-1], "\t")
				rows = rows[:len(rows)-1]
				emit(row)
			}
		case xml.CharData:
			if inText {
				paragraph.Write(el)
			}
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}
