package identity

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestExportUnknownIdentity(t *testing.T) {
	reg := NewRegistry(2)
	if _, err := reg.Export("ghost"); !errors.Is(err, ErrUnknownIdentity) {
		t.Errorf("Export(unknown) error = %v; want ErrUnknownIdentity", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	clock := fixedClock(t)
	reg := NewRegistry(3, WithClock(clock))

	at := time.Date(2026, 1, 2, 3, 4, 5, 600000000, time.UTC)
	rec := &Record{
		UserID: "alice",
		Samples: []Sample{
			{Encoding: []float64{0.125, -0.25, 0.5}, CapturedAt: at, ImagePath: "captured_images/a1.jpg", SampleID: "alice_1"},
			{Encoding: []float64{0.0625, 0.75, -0.125}, CapturedAt: at.Add(time.Second), ImagePath: "captured_images/a2.jpg", SampleID: "alice_2"},
		},
		EnrolledAt:          at,
		SampleCount:         2,
		AuthenticationCount: 7,
	}
	last := at.Add(time.Minute)
	rec.LastAuthentication = &last

	if err := reg.Insert(ctx, rec, false); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	exp, err := reg.Export("alice")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if exp.Version != DatabaseVersion || exp.UserID != "alice" {
		t.Errorf("export meta = (%q, %q)", exp.Version, exp.UserID)
	}

	// round trip through the serialized form, as a real transfer would
	raw, err := json.Marshal(exp)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded ExportRecord
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	imported, err := reg.Import(ctx, &decoded, true)
	if err != nil {
		t.Fatalf("Import(overwrite) error = %v", err)
	}
	if !reflect.DeepEqual(imported, rec) {
		t.Errorf("imported record differs from original:\n got %+v\nwant %+v", imported, rec)
	}
}

func TestImportDuplicateWithoutOverwrite(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(2)
	mustInsert(t, reg, "alice", []float64{1, 0})

	exp, err := reg.Export("alice")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if _, err := reg.Import(ctx, exp, false); !errors.Is(err, ErrDuplicateIdentity) {
		t.Errorf("Import(duplicate, overwrite=false) error = %v; want ErrDuplicateIdentity", err)
	}
}

func TestImportOverwriteReplacesSamples(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(2)
	mustInsert(t, reg, "alice", []float64{1, 0}, []float64{0, 1}, []float64{1, 1})

	exp := &ExportRecord{
		UserID: "alice",
		UserData: &Record{
			UserID:      "alice",
			Samples:     []Sample{{Encoding: []float64{0.5, 0.5}}},
			EnrolledAt:  time.Unix(100, 0).UTC(),
			SampleCount: 1,
		},
		ExportedAt: time.Unix(200, 0).UTC(),
		Version:    DatabaseVersion,
	}

	if _, err := reg.Import(ctx, exp, true); err != nil {
		t.Fatalf("Import(overwrite) error = %v", err)
	}
	rec, _ := reg.Get("alice")
	if len(rec.Samples) != 1 {
		t.Errorf("samples after overwrite = %d; want 1 (replaced, not merged)", len(rec.Samples))
	}
}

func TestImportRollsBackWhenSaveFails(t *testing.T) {
	ctx := context.Background()
	saver := &failingSaver{err: errors.New("disk full")}
	reg := NewRegistry(2, WithSaver(saver))

	exp := &ExportRecord{
		UserID: "alice",
		UserData: &Record{
			UserID:      "alice",
			Samples:     []Sample{{Encoding: []float64{1, 0}}},
			SampleCount: 1,
		},
	}
	if _, err := reg.Import(ctx, exp, false); err == nil {
		t.Fatal("Import succeeded despite failing saver")
	}
	if _, ok := reg.Get("alice"); ok {
		t.Error("failed import left the record behind")
	}
}

func TestImportRejectsMismatchedUserID(t *testing.T) {
	reg := NewRegistry(2)
	exp := &ExportRecord{
		UserID: "alice",
		UserData: &Record{
			UserID:      "bob",
			Samples:     []Sample{{Encoding: []float64{1, 0}}},
			SampleCount: 1,
		},
	}
	if _, err := reg.Import(context.Background(), exp, false); err == nil {
		t.Error("Import accepted an export whose user_id disagrees with its record")
	}
}

func TestImportRejectsWrongDimension(t *testing.T) {
	reg := NewRegistry(2)
	exp := &ExportRecord{
		UserID: "alice",
		UserData: &Record{
			UserID:      "alice",
			Samples:     []Sample{{Encoding: []float64{1, 0, 0}}},
			SampleCount: 1,
		},
	}
	var de *DimensionError
	if _, err := reg.Import(context.Background(), exp, false); !errors.As(err, &de) {
		t.Errorf("Import(wrong dim) error = %v; want DimensionError", err)
	}
}
