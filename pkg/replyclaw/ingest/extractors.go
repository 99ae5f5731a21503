package ingest

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ── Plain text ──

type textExtractor struct{}

func (textExtractor) Format() Format { return FormatText }

// ExtractFile reads the file as UTF-8, dropping invalid byte sequences.
func (textExtractor) ExtractFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

// ── PDF ──

type pdfExtractor struct{}

func (pdfExtractor) Format() Format { return FormatPDF }

// ExtractFile concatenates the plain text of every page in order.
func (pdfExtractor) ExtractFile(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		b.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// ── DOCX ──

type docxExtractor struct{}

func (docxExtractor) Format() Format { return FormatDOCX }

// ExtractFile returns the document paragraphs joined by newlines.
func (docxExtractor) ExtractFile(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	part := findPart(&zr.Reader, "word/document.xml")
	if part == nil {
		return "", errors.New("word/document.xml not found")
	}
	rc, err := part.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	groups, err := readParagraphs(rc, "")
	if err != nil {
		return "", fmt.Errorf("parsing document.xml: %w", err)
	}
	if len(groups) == 0 {
		return "", nil
	}
	return strings.Join(groups[0], "\n"), nil
}

// ── PPTX ──

type pptxExtractor struct{}

func (pptxExtractor) Format() Format { return FormatPPTX }

var slidePart = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// ExtractFile walks slides in numeric order and, within a slide, every text
// shape in document order (group shapes included). Each shape contributes its
// paragraphs followed by a newline.
func (pptxExtractor) ExtractFile(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	type slide struct {
		n    int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		m := slidePart.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{n: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var b strings.Builder
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", s.n, err)
		}
		shapes, err := readParagraphs(rc, "sp")
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", s.n, err)
		}
		for _, paras := range shapes {
			b.WriteString(strings.Join(paras, "\n"))
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// ── OOXML helpers ──

func findPart(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// readParagraphs streams an OOXML part and collects paragraph text (<*:p>
// built from <*:t> runs). With group == "" all paragraphs land in one group;
// otherwise a new group starts at each outermost <*:group> element and
// paragraphs outside any group are ignored.
func readParagraphs(r io.Reader, group string) ([][]string, error) {
	dec := xml.NewDecoder(r)

	var (
		groups  [][]string
		current []string
		para    strings.Builder
		inPara  bool
		inRun   bool
		inText  bool
		depth   int
	)
	collecting := func() bool { return group == "" || depth > 0 }
	flushPara := func() {
		if inPara && collecting() {
			current = append(current, para.String())
		}
		para.Reset()
		inPara = false
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case group:
				depth++
				if depth == 1 {
					current = nil
				}
			case "p":
				flushPara()
				inPara = true
			case "r":
				inRun = true
			case "t":
				inText = true
			case "tab":
				if inPara && inRun {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if inPara {
					para.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch el.Name.Local {
			case group:
				flushPara()
				depth--
				if depth == 0 {
					groups = append(groups, current)
					current = nil
				}
			case "p":
				flushPara()
			case "r":
				inRun = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inPara && inText {
				para.Write(el)
			}
		}
	}

	if group == "" {
		flushPara()
		if current != nil {
			groups = append(groups, current)
		}
	}
	return groups, nil
}
