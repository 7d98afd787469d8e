// README: Registry fan-out, disconnect hook, and backpressure-drop tests.
package realtime

import (
	"testing"

	"leafline/internal/types"
)

func TestPublish_ReachesTopicSubscribers(t *testing.T) {
	r := NewRegistry()
	customer := r.Connect("u1", types.RoleCustomer)
	driver := r.Connect("d1", types.RoleDriver)
	admin := r.Connect("a1", types.RoleAdmin)

	if n := r.Publish(TopicUser("u1"), NewEvent("order_update", nil)); n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	if ev := <-customer.Events; ev.Type != "order_update" {
		t.Fatalf("customer got %q", ev.Type)
	}
	select {
	case ev := <-driver.Events:
		t.Fatalf("driver received stray event %q", ev.Type)
	default:
	}

	if n := r.Publish(TopicDrivers, NewEvent("new_order", nil)); n != 1 {
		t.Fatalf("drivers delivered = %d, want 1", n)
	}
	if ev := <-driver.Events; ev.Type != "new_order" {
		t.Fatalf("driver got %q", ev.Type)
	}
	if n := r.Publish(TopicAdmins, NewEvent("order_placed", nil)); n != 1 {
		t.Fatalf("admins delivered = %d, want 1", n)
	}
	if ev := <-admin.Events; ev.Type != "order_placed" {
		t.Fatalf("admin got %q", ev.Type)
	}
}

func TestDisconnect_StopsDeliveryAndClosesChannel(t *testing.T) {
	r := NewRegistry()
	s := r.Connect("u1", types.RoleCustomer)
	r.Disconnect(s)

	if n := r.Publish(TopicUser("u1"), NewEvent("order_update", nil)); n != 0 {
		t.Fatalf("delivered = %d after disconnect", n)
	}
	if _, open := <-s.Events; open {
		t.Fatal("events channel still open after disconnect")
	}

	// double disconnect is a no-op
	r.Disconnect(s)
}

func TestDriverDisconnectHook_FiresOnLastSession(t *testing.T) {
	r := NewRegistry()
	var gone []types.ID
	r.OnDriverDisconnect(func(id types.ID) { gone = append(gone, id) })

	first := r.Connect("d1", types.RoleDriver)
	second := r.Connect("d1", types.RoleDriver)

	r.Disconnect(first)
	if len(gone) != 0 {
		t.Fatalf("hook fired with a session still live: %v", gone)
	}
	r.Disconnect(second)
	if len(gone) != 1 || gone[0] != "d1" {
		t.Fatalf("hook calls = %v, want [d1]", gone)
	}
}

func TestDriverDisconnectHook_NotFiredForCustomers(t *testing.T) {
	r := NewRegistry()
	fired := false
	r.OnDriverDisconnect(func(types.ID) { fired = true })

	s := r.Connect("u1", types.RoleCustomer)
	r.Disconnect(s)
	if fired {
		t.Fatal("hook fired for a customer session")
	}
}

func TestPublish_DropsWhenBufferFull(t *testing.T) {
	r := NewRegistry()
	s := r.Connect("u1", types.RoleCustomer)

	for i := 0; i < sessionBuffer; i++ {
		if n := r.Publish(TopicUser("u1"), NewEvent("tick", nil)); n != 1 {
			t.Fatalf("fill publish %d delivered %d", i, n)
		}
	}
	// buffer is full; the next event is dropped for this session
	if n := r.Publish(TopicUser("u1"), NewEvent("overflow", nil)); n != 0 {
		t.Fatalf("overflow delivered = %d, want 0", n)
	}

	drained := 0
	for {
		select {
		case <-s.Events:
			drained++
			continue
		default:
		}
		break
	}
	if drained != sessionBuffer {
		t.Fatalf("drained = %d, want %d", drained, sessionBuffer)
	}
}

func TestIsConnected(t *testing.T) {
	r := NewRegistry()
	if r.IsConnected("u1") {
		t.Fatal("connected before any session")
	}
	s := r.Connect("u1", types.RoleCustomer)
	if !r.IsConnected("u1") {
		t.Fatal("not connected with live session")
	}
	r.Disconnect(s)
	if r.IsConnected("u1") {
		t.Fatal("still connected after disconnect")
	}
}
