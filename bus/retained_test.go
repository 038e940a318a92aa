package bus

import "testing"

func TestRetainedStore_SetGet(t *testing.T) {
	s := NewRetainedStore()

	if got := s.Get("foo"); got != nil {
		t.Errorf("Get on empty store = %v, want nil", got)
	}

	msg := &Message{Topic: "foo", Data: 1, Retain: true}
	s.Set("foo", msg)

	if got := s.Get("foo"); got != msg {
		t.Errorf("Get returned %v, want the stored message", got)
	}
}

func TestRetainedStore_LastWriteWins(t *testing.T) {
	s := NewRetainedStore()

	s.Set("foo", &Message{Topic: "foo", Data: "old"})
	s.Set("foo", &Message{Topic: "foo", Data: "new"})

	got := s.Get("foo")
	if got == nil || got.Data != "new" {
		t.Errorf("Get = %v, want the newest message", got)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestRetainedStore_ExactTopicOnly(t *testing.T) {
	s := NewRetainedStore()
	s.Set("contacts.item.state.1", &Message{Topic: "contacts.item.state.1"})

	// Lookups are by literal topic; patterns find nothing directly.
	if s.Get("contacts.item.state.*") != nil {
		t.Error("pattern lookup should return nil; replay scans All instead")
	}
}

func TestRetainedStore_All(t *testing.T) {
	s := NewRetainedStore()
	s.Set("a.1", &Message{Topic: "a.1"})
	s.Set("a.2", &Message{Topic: "a.2"})
	s.Set("b.1", &Message{Topic: "b.1"})

	all := s.All()
	if len(all) != 3 {
		t.Fatalf("All returned %d entries, want 3", len(all))
	}

	// Snapshot stays valid while the store mutates.
	s.Clear("a.1")
	if len(all) != 3 {
		t.Error("snapshot should be unaffected by later mutation")
	}

	p := MustPattern("a.*")
	matched := 0
	for _, msg := range all {
		if p.Matches(msg.Topic) {
			matched++
		}
	}
	if matched != 2 {
		t.Errorf("pattern scan matched %d entries, want 2", matched)
	}
}

func TestRetainedStore_Clear(t *testing.T) {
	s := NewRetainedStore()
	s.Set("foo", &Message{Topic: "foo"})

	s.Clear("foo")
	if s.Get("foo") != nil {
		t.Error("Clear should remove the entry")
	}

	// Unknown topics are a no-op.
	s.Clear("missing")
}

func TestRetainedStore_Reset(t *testing.T) {
	s := NewRetainedStore()
	s.Set("foo", &Message{Topic: "foo"})
	s.Set("bar", &Message{Topic: "bar"})

	s.Reset()
	if s.Len() != 0 {
		t.Errorf("Len after Reset = %d, want 0", s.Len())
	}
}
