package tdp

import "testing"

func TestFake_singleFilterInvariant(t *testing.T) {
	f := NewFake(100)
	demux := f.Demux()
	if _, err := demux.SetFilter(0x0000, 0x00); err != nil {
		t.Fatalf("first SetFilter: %v", err)
	}
	if _, err := demux.SetFilter(0x0100, 0x02); err == nil {
		t.Fatal("expected error installing a second concurrent filter")
	}
	if err := demux.FreeFilter(1); err != nil {
		t.Fatalf("FreeFilter: %v", err)
	}
	if _, err := demux.SetFilter(0x0100, 0x02); err != nil {
		t.Fatalf("SetFilter after free: %v", err)
	}
}

func TestFake_streamHygiene(t *testing.T) {
	f := NewFake(100)
	player := f.Player()
	h1, err := player.StreamCreate(1, 0x101, 0)
	if err != nil {
		t.Fatalf("StreamCreate: %v", err)
	}
	if f.OpenStreamCount() != 1 {
		t.Fatalf("OpenStreamCount = %d, want 1", f.OpenStreamCount())
	}
	if err := player.StreamRemove(h1); err != nil {
		t.Fatalf("StreamRemove: %v", err)
	}
	if f.OpenStreamCount() != 0 {
		t.Fatalf("OpenStreamCount = %d, want 0", f.OpenStreamCount())
	}
}

func TestFake_volumeRoundTrip(t *testing.T) {
	f := NewFake(1000)
	player := f.Player()
	if err := player.VolumeSet(250); err != nil {
		t.Fatalf("VolumeSet: %v", err)
	}
	v, err := player.VolumeGet()
	if err != nil {
		t.Fatalf("VolumeGet: %v", err)
	}
	if v != 250 {
		t.Errorf("VolumeGet = %d, want 250", v)
	}
	if player.VolumeMax() != 1000 {
		t.Errorf("VolumeMax = %d, want 1000", player.VolumeMax())
	}
}
