package db

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationFS_HasPairedFiles(t *testing.T) {
	entries, err := fs.ReadDir(MigrationFS, "migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Fatalf("expected paired migrations, got up=%d down=%d", ups, downs)
	}
}

func TestMigrate_ValidatesInput(t *testing.T) {
	if err := Migrate("", "up"); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
	if err := Migrate("postgres://localhost/x", "sideways"); err == nil {
		t.Fatalf("expected error for bad direction")
	}
}
