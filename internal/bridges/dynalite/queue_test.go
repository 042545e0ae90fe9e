package dynalite

import (
	"errors"
	"sync"
	"testing"
)

func TestRegistrationQueueFlushesInOrder(t *testing.T) {
	q := NewRegistrationQueue()

	var lights []Entity
	for ch := 1; ch <= 5; ch++ {
		e := testLight("h", ChannelKey(1, ch))
		lights = append(lights, e)
		delivered, err := q.AddEntityWhenRegistered(CategoryLight, e)
		if err != nil {
			t.Fatalf("AddEntityWhenRegistered() error = %v", err)
		}
		if delivered {
			t.Fatal("entity delivered before a callback was registered")
		}
	}
	if q.Pending(CategoryLight) != 5 {
		t.Fatalf("Pending(light) = %d, want 5", q.Pending(CategoryLight))
	}

	var c collector
	if err := q.RegisterAddEntities(CategoryLight, c.add); err != nil {
		t.Fatalf("RegisterAddEntities() error = %v", err)
	}

	got := c.all()
	if len(got) != len(lights) {
		t.Fatalf("delivered %d entities, want %d", len(got), len(lights))
	}
	for i := range lights {
		if got[i] != lights[i] {
			t.Errorf("delivery[%d] = %s, want %s", i, got[i].UniqueID(), lights[i].UniqueID())
		}
	}
	if c.batchCount() != 1 {
		t.Errorf("batches = %d, want 1", c.batchCount())
	}
	if q.Pending(CategoryLight) != 0 {
		t.Errorf("Pending(light) after flush = %d, want 0", q.Pending(CategoryLight))
	}
}

func TestRegistrationQueueDeliversDirectlyOnceRegistered(t *testing.T) {
	q := NewRegistrationQueue()
	var c collector
	_ = q.RegisterAddEntities(CategorySwitch, c.add)

	sw := newChannelSwitch(entitySpec{host: "h", key: ChannelKey(1, 1)}, &mockDevice{})
	delivered, err := q.AddEntityWhenRegistered(CategorySwitch, sw)
	if err != nil || !delivered {
		t.Fatalf("AddEntityWhenRegistered() = %v, %v; want true, nil", delivered, err)
	}
	if len(c.all()) != 1 {
		t.Errorf("delivered %d entities, want 1", len(c.all()))
	}

	// Other categories still queue.
	delivered, _ = q.AddEntityWhenRegistered(CategoryLight, testLight("h", ChannelKey(1, 2)))
	if delivered {
		t.Error("light delivered without a light callback")
	}
}

func TestRegistrationQueueReplaceDoesNotRedeliver(t *testing.T) {
	q := NewRegistrationQueue()
	_, _ = q.AddEntityWhenRegistered(CategoryCover, testLight("h", ChannelKey(1, 1)))

	var first, second collector
	_ = q.RegisterAddEntities(CategoryCover, first.add)
	_ = q.RegisterAddEntities(CategoryCover, second.add)

	if len(first.all()) != 1 {
		t.Errorf("first callback got %d, want 1", len(first.all()))
	}
	if len(second.all()) != 0 {
		t.Errorf("replacement callback got %d, want 0", len(second.all()))
	}

	_, _ = q.AddEntityWhenRegistered(CategoryCover, testLight("h", ChannelKey(1, 2)))
	if len(second.all()) != 1 {
		t.Errorf("replacement callback got %d after new entity, want 1", len(second.all()))
	}
}

func TestRegistrationQueueErrors(t *testing.T) {
	q := NewRegistrationQueue()

	if err := q.RegisterAddEntities("sensor", func([]Entity) {}); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("RegisterAddEntities(sensor) error = %v, want ErrUnknownCategory", err)
	}
	if err := q.RegisterAddEntities(CategoryLight, nil); !errors.Is(err, ErrNilCallback) {
		t.Errorf("RegisterAddEntities(nil) error = %v, want ErrNilCallback", err)
	}
	if _, err := q.AddEntityWhenRegistered("sensor", testLight("h", ChannelKey(1, 1))); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("AddEntityWhenRegistered(sensor) error = %v, want ErrUnknownCategory", err)
	}
}

func TestRegistrationQueueReset(t *testing.T) {
	q := NewRegistrationQueue()
	var c collector
	_ = q.RegisterAddEntities(CategoryLight, c.add)
	_, _ = q.AddEntityWhenRegistered(CategorySwitch, testLight("h", ChannelKey(1, 1)))

	q.Reset()

	if q.Registered(CategoryLight) {
		t.Error("Registered(light) = true after Reset")
	}
	if q.Pending(CategorySwitch) != 0 {
		t.Errorf("Pending(switch) = %d after Reset, want 0", q.Pending(CategorySwitch))
	}
}

func TestRegistrationQueueDropsStaleGeneration(t *testing.T) {
	q := NewRegistrationQueue()
	gen := q.Generation()

	q.Reset()
	if q.Generation() == gen {
		t.Fatal("Generation() unchanged after Reset")
	}

	stale := testLight("h", ChannelKey(1, 1))
	if _, err := q.AddEntityForGeneration(gen, CategoryLight, stale); !errors.Is(err, ErrQueueReset) {
		t.Fatalf("AddEntityForGeneration(stale) error = %v, want ErrQueueReset", err)
	}
	if q.Pending(CategoryLight) != 0 {
		t.Errorf("Pending(light) = %d, want 0", q.Pending(CategoryLight))
	}

	var c collector
	_ = q.RegisterAddEntities(CategoryLight, c.add)
	if got := c.all(); len(got) != 0 {
		t.Errorf("stale entity delivered after re-registration: %d entities", len(got))
	}

	fresh := testLight("h", ChannelKey(1, 2))
	delivered, err := q.AddEntityForGeneration(q.Generation(), CategoryLight, fresh)
	if err != nil || !delivered {
		t.Errorf("AddEntityForGeneration(current) = %v, %v; want true, nil", delivered, err)
	}
}

func TestRegistrationQueueConcurrentExactlyOnce(t *testing.T) {
	q := NewRegistrationQueue()
	var c collector

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n + 1)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, _ = q.AddEntityWhenRegistered(CategoryLight, testLight("h", ChannelKey(1+i/100, 1+i%100)))
		}(i)
	}
	go func() {
		defer wg.Done()
		_ = q.RegisterAddEntities(CategoryLight, c.add)
	}()
	wg.Wait()

	seen := make(map[string]int)
	for _, e := range c.all() {
		seen[e.UniqueID()]++
	}
	if len(seen) != n {
		t.Fatalf("delivered %d distinct entities, want %d", len(seen), n)
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("%s delivered %d times", id, count)
		}
	}
}
