package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExtractBytes_plain(t *testing.T) {
	tests := []struct {
		name    string
		ext     string
		content []byte
		want    string
	}{
		{"txt", ".txt", []byte("Hello world\nLine 2"), "Hello world\nLine 2"},
		{"markdown utf8", ".md", []byte("caf\xc3\xa9"), "café"},
		{"invalid utf8", ".rst", []byte("hello\x80world"), "hello�world"},
		{"uppercase ext", ".TXT", []byte("upper"), "upper"},
		{"trimmed", ".txt", []byte("\n\n  padded text \n"), "padded text"},
	}
	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ExtractBytes(tt.content, tt.ext)
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := NewExtractor().ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Title\nValue 1\tValue 2" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_excelSheets(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "cats")
	f.SetCellValue("Sheet1", "A3", "purr")
	if _, err := f.NewSheet("Dogs"); err != nil {
		t.Fatal(err)
	}
	f.SetCellValue("Dogs", "A1", "bark")
	if _, err := f.NewSheet("Empty"); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := NewExtractor().ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if want := "Sheet1\ncats\npurr\n\nDogs\nbark"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractBytes_unsupported(t *testing.T) {
	e := NewExtractor()
	for _, ext := range []string{".exe", ".pptx", ""} {
		if _, err := e.ExtractBytes([]byte("data"), ext); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("ext %q: err = %v, want ErrUnsupportedFormat", ext, err)
		}
	}
}

func TestExtract_file(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(path, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "File content" {
		t.Errorf("got %q", got)
	}

	if _, err := NewExtractor().Extract(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSupported(t *testing.T) {
	for _, ext := range []string{".pdf", ".PDF", ".txt", ".docx", ".xlsx", ".odt", ".rtf"} {
		if !Supported(ext) {
			t.Errorf("Supported(%q) = false", ext)
		}
	}
	if Supported(".zip") {
		t.Error("Supported(.zip) = true")
	}
	want := []string{".docx", ".md", ".odt", ".pdf", ".rst", ".rtf", ".txt", ".xlsx"}
	if got := SupportedExtensions(); !reflect.DeepEqual(got, want) {
		t.Errorf("SupportedExtensions = %v, want %v", got, want)
	}
}

type zipPart struct{ name, body string }

func buildZip(t *testing.T, parts ...zipPart) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, p := range parts {
		f, err := w.Create(p.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(p.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

const docxBody = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
	`<w:p w:rsidR="001"><w:r><w:t>Cats are </w:t></w:r><w:r><w:t xml:space="preserve">mammals.</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>Dogs</w:t><w:tab/><w:t>too.</w:t></w:r></w:p>` +
	`</w:body></w:document>`

func TestExtractBytes_docx(t *testing.T) {
	content := buildZip(t, zipPart{"word/document.xml", docxBody})
	got, err := NewExtractor().ExtractBytes(content, ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Cats are mammals.\nDogs\ttoo." {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docxContentTypes(t *testing.T) {
	types := `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Override ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml" PartName="/word/document2.xml"/>` +
		`</Types>`
	content := buildZip(t,
		zipPart{"[Content_Types].xml", types},
		zipPart{"word/document2.xml", docxBody},
	)
	got, err := NewExtractor().ExtractBytes(content, ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Cats are mammals.\nDogs\ttoo." {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docxInvalid(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("not a zip"), ".docx"); err == nil {
		t.Error("expected error for non-zip input")
	}
	empty := buildZip(t, zipPart{"other.xml", "<x/>"})
	if _, err := e.ExtractBytes(empty, ".docx"); err == nil {
		t.Error("expected error when document part is missing")
	}
}
