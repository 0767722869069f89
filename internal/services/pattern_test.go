package services

import (
	"testing"

	"fleet-route-service/internal/domain"
)

func TestUnionStopSetInjectsMissingEnd(t *testing.T) {
	stops := []domain.Stop{
		mkStop(t, "Lunes", "A", "1.0, 2.0"),
		mkStop(t, "Martes", "B", "3.0, 4.0"),
		mkStop(t, "Martes", "A", "1.0, 2.0"),
	}
	end := mkStop(t, "Lunes", "Bodega", "9.0, 9.0")

	set := UnionStopSet(stops, &end)

	if set.Len() != 3 {
		t.Fatalf("union has %d stops, want 3 (A deduped, Bodega injected)", set.Len())
	}
	if set.Stops[2].Label != "Bodega" {
		t.Errorf("injected end is %q at position 2", set.Stops[2].Label)
	}

	// Already present: no duplicate injection.
	withEnd := append(stops, end)
	set = UnionStopSet(withEnd, &end)
	if set.Len() != 3 {
		t.Errorf("union re-injected a present end: %d stops", set.Len())
	}
}

func TestReplicateTourFiltersToPresentStops(t *testing.T) {
	pattern := domain.VehicleTour{VehicleID: 2, Stops: []domain.Stop{
		mkStop(t, "Lunes", "A", "1.0, 2.0"),
		mkStop(t, "Lunes", "B", "3.0, 4.0"),
		mkStop(t, "Lunes", "C", "5.0, 6.0"),
	}}

	// Martes lacks B; its own rows carry the Martes day tag.
	present := map[string]domain.Stop{
		"A": mkStop(t, "Martes", "A", "1.0, 2.0"),
		"C": mkStop(t, "Martes", "C", "5.0, 6.0"),
	}

	replica, ok := ReplicateTour(pattern, present, "")
	if !ok {
		t.Fatal("expected a replica")
	}
	if replica.VehicleID != 2 {
		t.Errorf("vehicle id = %d, want the pattern's id", replica.VehicleID)
	}
	if got := replica.Labels(); len(got) != 2 || got[0] != "A" || got[1] != "C" {
		t.Errorf("replica labels = %v, want [A C] in pattern order", got)
	}
	if replica.Stops[0].Day != "Martes" {
		t.Errorf("replica uses day %q rows, want the target day's own stops", replica.Stops[0].Day)
	}
}

func TestReplicateTourSkipsThinDays(t *testing.T) {
	pattern := domain.VehicleTour{VehicleID: 1, Stops: []domain.Stop{
		mkStop(t, "Lunes", "A", "1.0, 2.0"),
		mkStop(t, "Lunes", "B", "3.0, 4.0"),
	}}

	present := map[string]domain.Stop{
		"A": mkStop(t, "Martes", "A", "1.0, 2.0"),
	}

	if _, ok := ReplicateTour(pattern, present, ""); ok {
		t.Error("a one-stop replica should be skipped")
	}
}

func TestReplicateTourKeepsForcedEndLast(t *testing.T) {
	pattern := domain.VehicleTour{VehicleID: 1, Stops: []domain.Stop{
		mkStop(t, "Lunes", "Bodega", "9.0, 9.0"),
		mkStop(t, "Lunes", "A", "1.0, 2.0"),
		mkStop(t, "Lunes", "B", "3.0, 4.0"),
	}}

	present := map[string]domain.Stop{
		"A":      mkStop(t, "Martes", "A", "1.0, 2.0"),
		"B":      mkStop(t, "Martes", "B", "3.0, 4.0"),
		"Bodega": mkStop(t, "Martes", "Bodega", "9.0, 9.0"),
	}

	replica, ok := ReplicateTour(pattern, present, "Bodega")
	if !ok {
		t.Fatal("expected a replica")
	}
	labels := replica.Labels()
	if labels[len(labels)-1] != "Bodega" {
		t.Errorf("labels = %v, forced end must be last", labels)
	}

	// Day without its own Bodega row: the canonical copy is appended.
	delete(present, "Bodega")
	replica, ok = ReplicateTour(pattern, present, "Bodega")
	if !ok {
		t.Fatal("expected a replica")
	}
	labels = replica.Labels()
	if labels[len(labels)-1] != "Bodega" {
		t.Errorf("labels = %v, canonical end must be appended", labels)
	}
	if replica.Stops[len(replica.Stops)-1].Day != "Lunes" {
		t.Error("appended end should be the canonical copy")
	}
}
