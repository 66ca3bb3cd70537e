package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"fileqa/internal/config"
	"fileqa/internal/table"
)

func openTestTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.Open(config.EngineSQLite, nil)
	if err != nil {
		t.Fatalf("table.Open failed: %v", err)
	}
	if err := tbl.Load(context.Background(), strings.NewReader(companiesCSV)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return tbl
}

func TestDatasetStoreAddGetDelete(t *testing.T) {
	store := NewDatasetStore(4)
	defer store.Close()

	ds := store.Add("companies.csv", openTestTable(t))
	if ds.ID == "" {
		t.Fatal("Expected a generated id")
	}

	got, err := store.Get(ds.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "companies.csv" {
		t.Errorf("Expected name companies.csv, got %q", got.Name)
	}

	if err := store.Delete(ds.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ds.ID); !errors.Is(err, errDatasetNotFound) {
		t.Errorf("Expected errDatasetNotFound, got %v", err)
	}
	if err := store.Delete(ds.ID); !errors.Is(err, errDatasetNotFound) {
		t.Errorf("Expected errDatasetNotFound on second delete, got %v", err)
	}
}

func TestDatasetStoreEvictsOldest(t *testing.T) {
	store := NewDatasetStore(2)
	defer store.Close()

	first := store.Add("first.csv", openTestTable(t))
	second := store.Add("second.csv", openTestTable(t))
	third := store.Add("third.csv", openTestTable(t))

	if store.Len() != 2 {
		t.Fatalf("Expected 2 datasets, got %d", store.Len())
	}
	if _, err := store.Get(first.ID); err == nil {
		t.Error("Expected the oldest dataset to be evicted")
	}
	if first.Table.Loaded() {
		t.Error("Expected the evicted table to be closed")
	}
	for _, ds := range []*Dataset{second, third} {
		if _, err := store.Get(ds.ID); err != nil {
			t.Errorf("Expected %s to be kept: %v", ds.Name, err)
		}
	}
}

func TestDatasetStoreClose(t *testing.T) {
	store := NewDatasetStore(0)
	ds := store.Add("companies.csv", openTestTable(t))

	store.Close()
	if store.Len() != 0 {
		t.Errorf("Expected an empty store, got %d", store.Len())
	}
	if ds.Table.Loaded() {
		t.Error("Expected the table to be closed")
	}
}
