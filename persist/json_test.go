package persist

import (
	"os"
	"path/filepath"
	"testing"
)

type testPayload struct {
	Value int
	Name  string
}

func TestSaveLoadJSON(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "data.json")
	meta := Metadata{Header: "Test Payload", Version: "1.0"}

	want := testPayload{Value: 7, Name: "shard"}
	if err := SaveJSON(meta, want, filename); err != nil {
		t.Fatal(err)
	}

	var got testPayload
	if err := LoadJSON(meta, &got, filename); err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("LoadJSON returned %+v, want %+v", got, want)
	}
}

func TestLoadJSONMetadataMismatch(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "data.json")
	meta := Metadata{Header: "Test Payload", Version: "1.0"}

	if err := SaveJSON(meta, testPayload{Value: 1}, filename); err != nil {
		t.Fatal(err)
	}

	wrong := Metadata{Header: "Test Payload", Version: "2.0"}
	var got testPayload
	if err := LoadJSON(wrong, &got, filename); err == nil {
		t.Fatal("expected a metadata mismatch error")
	}
}

func TestLoadJSONRejectsTempSuffix(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "data.json"+tempSuffix)
	var got testPayload
	err := LoadJSON(Metadata{}, &got, filename)
	if err != ErrBadFilenameSuffix {
		t.Fatalf("expected ErrBadFilenameSuffix, got %v", err)
	}
}

func TestLoadJSONChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "data.json")
	meta := Metadata{Header: "Test Payload", Version: "1.0"}
	if err := SaveJSON(meta, testPayload{Value: 1}, filename); err != nil {
		t.Fatal(err)
	}

	// Corrupt the file on disk by overwriting it with a mismatched
	// checksum but otherwise well-formed envelope.
	corrupt := []byte(`{"Metadata":{"Header":"Test Payload","Version":"1.0"},"Checksum":"00","Data":{"Value":1,"Name":""}}`)
	if err := os.WriteFile(filename, corrupt, 0600); err != nil {
		t.Fatal(err)
	}

	var got testPayload
	if err := LoadJSON(meta, &got, filename); err == nil {
		t.Fatal("expected a checksum mismatch error")
	}
}
