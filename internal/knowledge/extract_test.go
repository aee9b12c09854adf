package knowledge

import (
	"errors"
	"testing"
)

func TestExtractText_Txt(t *testing.T) {
	text, err := ExtractText("notes.txt", []byte("  plain travel notes  "))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if text != "plain travel notes" {
		t.Errorf("text = %q", text)
	}
}

func TestExtractText_Markdown(t *testing.T) {
	text, err := ExtractText("guide.md", []byte("# Kyoto\nVisit the **temples**."))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if text != "Kyoto\nVisit the temples." {
		t.Errorf("text = %q", text)
	}
}

func TestExtractText_UnsupportedFormat(t *testing.T) {
	_, err := ExtractText("report.docx", []byte("data"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExtractText_EmptyFile(t *testing.T) {
	_, err := ExtractText("empty.txt", []byte("   "))
	if !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("err = %v, want ErrEmptyDocument", err)
	}
}

func TestExtractText_InvalidUTF8(t *testing.T) {
	_, err := ExtractText("binary.txt", []byte{0xff, 0xfe, 0x00})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestFetchURL_RejectsBadScheme(t *testing.T) {
	if _, _, err := FetchURL(t.Context(), "ftp://example.com/file"); err == nil {
		t.Error("expected error for non-http scheme")
	}
	if _, _, err := FetchURL(t.Context(), "not a url"); err == nil {
		t.Error("expected error for garbage URL")
	}
}

func TestScopeValid(t *testing.T) {
	if !ScopeOrgPublic.Valid() || !ScopePrivate.Valid() {
		t.Error("known scopes reported invalid")
	}
	if Scope("everyone").Valid() {
		t.Error("unknown scope reported valid")
	}
}
