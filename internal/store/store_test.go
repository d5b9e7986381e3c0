package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestInsertAndLatestBuild(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "asgiship.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	// schema is idempotent
	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("re-init schema: %v", err)
	}

	rec := &BuildRecord{
		Image:      "campaigns-api:latest",
		BaseRef:    "index.docker.io/library/python:3.11-slim@sha256:abc",
		BaseDigest: "sha256:abc",
		DepsKey:    "sha256:deps1",
		AppKey:     "sha256:app1",
		Status:     StatusSucceeded,
		Duration:   42 * time.Second,
	}
	if err := InsertBuild(ctx, db, rec); err != nil {
		t.Fatalf("insert build: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("insert did not assign an id")
	}

	// a later build with the same deps key but a new app key
	second := &BuildRecord{
		Image:      "campaigns-api:latest",
		BaseRef:    rec.BaseRef,
		BaseDigest: rec.BaseDigest,
		DepsKey:    "sha256:deps1",
		AppKey:     "sha256:app2",
		Status:     StatusSucceeded,
		Duration:   3 * time.Second,
	}
	if err := InsertBuild(ctx, db, second); err != nil {
		t.Fatalf("insert second build: %v", err)
	}

	latest, err := LatestBuild(ctx, db, "campaigns-api:latest")
	if err != nil {
		t.Fatalf("latest build: %v", err)
	}
	if latest == nil {
		t.Fatal("latest build is nil")
	}
	if latest.AppKey != "sha256:app2" {
		t.Errorf("latest app key = %s, want sha256:app2", latest.AppKey)
	}
	if latest.DepsKey != rec.DepsKey {
		t.Errorf("deps key changed between builds: %s != %s", latest.DepsKey, rec.DepsKey)
	}
}

func TestLatestBuildUnknownImage(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "asgiship.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	rec, err := LatestBuild(ctx, db, "never-built:latest")
	if err != nil {
		t.Fatalf("latest build: %v", err)
	}
	if rec != nil {
		t.Errorf("got record %+v for unknown image, want nil", rec)
	}
}

func TestInsertFailedBuild(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "asgiship.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	msg := "resolve base: manifest unknown"
	rec := &BuildRecord{
		Image:   "campaigns-api:latest",
		BaseRef: "python:3.99-slim",
		Status:  StatusFailed,
		Error:   &msg,
	}
	if err := InsertBuild(ctx, db, rec); err != nil {
		t.Fatalf("insert failed build: %v", err)
	}

	latest, err := LatestBuild(ctx, db, "campaigns-api:latest")
	if err != nil {
		t.Fatalf("latest build: %v", err)
	}
	if latest.Status != StatusFailed {
		t.Errorf("status = %s, want %s", latest.Status, StatusFailed)
	}
	if latest.Error == nil || *latest.Error != msg {
		t.Errorf("error = %v, want %q", latest.Error, msg)
	}
}
