package bus

import "testing"

func noopSubscriber() Subscriber {
	return SubscriberFunc(func(*Message) error { return nil })
}

func TestRegistry_RegisterAssignsUniqueIDs(t *testing.T) {
	r := NewRegistry()

	a := r.Register([]Pattern{MustPattern("foo")}, noopSubscriber(), SubscribeOptions{})
	b := r.Register([]Pattern{MustPattern("foo")}, noopSubscriber(), SubscribeOptions{})

	if a.ID() == "" || b.ID() == "" {
		t.Fatal("subscriptions should get non-empty ids")
	}
	if a.ID() == b.ID() {
		t.Error("subscription ids should be unique")
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
}

func TestRegistry_MatchingPreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()

	first := r.Register([]Pattern{MustPattern("foo.*")}, noopSubscriber(), SubscribeOptions{Owner: "first"})
	r.Register([]Pattern{MustPattern("other")}, noopSubscriber(), SubscribeOptions{})
	second := r.Register([]Pattern{MustPattern("*")}, noopSubscriber(), SubscribeOptions{Owner: "second"})
	third := r.Register([]Pattern{MustPattern("foo.bar")}, noopSubscriber(), SubscribeOptions{Owner: "third"})

	matched := r.Matching([]string{"foo", "bar"})
	if len(matched) != 3 {
		t.Fatalf("Matching returned %d subscriptions, want 3", len(matched))
	}
	if matched[0] != first || matched[1] != second || matched[2] != third {
		t.Error("Matching should preserve registration order")
	}
}

func TestRegistry_MultiplePatternsMatchOnce(t *testing.T) {
	r := NewRegistry()

	// Both patterns match the topic; the subscription appears once.
	r.Register([]Pattern{MustPattern("foo.*"), MustPattern("*.bar")}, noopSubscriber(), SubscribeOptions{})

	matched := r.Matching([]string{"foo", "bar"})
	if len(matched) != 1 {
		t.Errorf("Matching returned %d entries, want 1", len(matched))
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()

	s := r.Register([]Pattern{MustPattern("foo")}, noopSubscriber(), SubscribeOptions{})
	r.Unregister(s.ID())

	if r.Len() != 0 {
		t.Errorf("Len after Unregister = %d, want 0", r.Len())
	}

	// Idempotent: repeated and unknown ids are a no-op.
	r.Unregister(s.ID())
	r.Unregister("never-registered")
}

func TestRegistry_SnapshotSurvivesMutation(t *testing.T) {
	r := NewRegistry()

	a := r.Register([]Pattern{MustPattern("foo")}, noopSubscriber(), SubscribeOptions{})
	b := r.Register([]Pattern{MustPattern("foo")}, noopSubscriber(), SubscribeOptions{})

	matched := r.Matching([]string{"foo"})
	r.Unregister(a.ID())
	r.Unregister(b.ID())

	if len(matched) != 2 {
		t.Errorf("snapshot has %d entries after mutation, want 2", len(matched))
	}
}

func TestSubscription_Patterns(t *testing.T) {
	r := NewRegistry()
	s := r.Register([]Pattern{MustPattern("foo.*"), MustPattern("*")}, noopSubscriber(), SubscribeOptions{Owner: "widget"})

	got := s.Patterns()
	if len(got) != 2 || got[0] != "foo.*" || got[1] != "*" {
		t.Errorf("Patterns = %v, want [foo.* *]", got)
	}
	if s.Owner() != "widget" {
		t.Errorf("Owner = %q, want widget", s.Owner())
	}
}
