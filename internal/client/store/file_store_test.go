package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	fs := NewFileStore(path)

	if _, ok, err := fs.Get(KeyAccessToken); err != nil || ok {
		t.Fatalf("empty store Get = (%v, %v)", ok, err)
	}

	if err := fs.Set(KeyAccessToken, []byte(`"tok-1"`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := fs.Set(KeyQRPayment, []byte(`{"paymentId":"p1"}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// um processo novo sobre o mesmo arquivo enxerga o estado anterior
	fs2 := NewFileStore(path)
	raw, ok, err := fs2.Get(KeyAccessToken)
	if err != nil || !ok {
		t.Fatalf("Get after reopen = (%v, %v)", ok, err)
	}
	if !bytes.Equal(raw, []byte(`"tok-1"`)) {
		t.Fatalf("value = %s", raw)
	}

	if err := fs2.Delete(KeyAccessToken); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := fs2.Get(KeyAccessToken); ok {
		t.Fatal("deleted key still present")
	}
	if _, ok, _ := fs2.Get(KeyQRPayment); !ok {
		t.Fatal("unrelated key was lost")
	}

	// apagar chave ausente não é erro
	if err := fs2.Delete("missing"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestFileStorePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	fs := NewFileStore(path)

	if err := fs.Set(KeyRefreshToken, []byte(`"r1"`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm = %o, want 600", perm)
	}
}
