package profile

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pders01/restodash/internal/api"
	"github.com/pders01/restodash/internal/cache"
	"github.com/pders01/restodash/internal/devapi"
	"github.com/pders01/restodash/internal/metrics"
	"github.com/pders01/restodash/internal/models"
	"github.com/pders01/restodash/internal/mutation"
	"github.com/pders01/restodash/internal/notify"
)

// fakeAPI lets a test hold profile writes open and decide their outcome
type fakeAPI struct {
	mu         sync.Mutex
	restaurant models.ManagedRestaurant
	fetches    int
	updates    []models.UpdateProfileRequest
	writeGate  chan error
}

func (f *fakeAPI) GetManagedRestaurant(ctx context.Context) (*models.ManagedRestaurant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	r := f.restaurant
	return &r, nil
}

func (f *fakeAPI) UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) error {
	f.mu.Lock()
	f.updates = append(f.updates, req)
	gate := f.writeGate
	f.mu.Unlock()

	if gate == nil {
		return nil
	}
	return <-gate
}

func TestUpdateRollsBackOnFailure(t *testing.T) {
	fake := &fakeAPI{
		restaurant: models.ManagedRestaurant{ID: "r1", Name: "Bob's Diner"},
		writeGate:  make(chan error),
	}
	rec := &notify.Recorder{}
	svc := NewService(cache.New[models.ManagedRestaurant](), fake, rec)

	current, err := svc.Current(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if current.Name != "Bob's Diner" || current.Description != nil {
		t.Fatalf("unexpected snapshot: %+v", current)
	}

	p, err := svc.Start(context.Background(), models.UpdateProfileRequest{
		Name:        "Bob's Café",
		Description: models.StringPtr("Best coffee"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cached, _ := svc.Cached()
	if cached.Name != "Bob's Café" || cached.DescriptionOr("") != "Best coffee" {
		t.Errorf("expected optimistic value before settlement, got %+v", cached)
	}
	if cached.ID != "r1" {
		t.Errorf("expected server fields to be carried over, got %+v", cached)
	}

	fake.writeGate <- errors.New("500")
	outcome, err := p.Wait()

	var werr *mutation.RemoteWriteError
	if !errors.As(err, &werr) {
		t.Fatalf("expected RemoteWriteError, got %v", err)
	}
	if outcome.State != mutation.StateSettledRolledBack {
		t.Errorf("expected rolled back, got %s", outcome.State)
	}

	cached, _ = svc.Cached()
	if cached.Name != "Bob's Diner" || cached.Description != nil {
		t.Errorf("expected rollback to the original snapshot, got %+v", cached)
	}

	last, ok := rec.Last()
	if !ok || last.Level != notify.LevelError || last.Message != notify.MsgProfileUpdateFailed {
		t.Errorf("expected failure notification, got %+v", last)
	}
	if fake.fetches != 1 {
		t.Errorf("expected 1 fetch, got %d", fake.fetches)
	}
}

func TestUpdateSendsOnlyProfileFields(t *testing.T) {
	fake := &fakeAPI{restaurant: models.ManagedRestaurant{ID: "r1", Name: "Bob's Diner", ManagerID: "m1"}}
	svc := NewService(cache.New[models.ManagedRestaurant](), fake, nil)

	if _, err := svc.Current(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outcome, err := svc.Update(context.Background(), models.UpdateProfileRequest{Name: "Bob's Café"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.OK() {
		t.Errorf("expected success, got %s", outcome.State)
	}

	if len(fake.updates) != 1 || fake.updates[0].Name != "Bob's Café" || fake.updates[0].Description != nil {
		t.Errorf("unexpected update payloads: %+v", fake.updates)
	}

	cached, _ := svc.Cached()
	if cached.ManagerID != "m1" || cached.Name != "Bob's Café" {
		t.Errorf("unexpected cached snapshot: %+v", cached)
	}
}

func TestUpdateRejectsInvalidProfile(t *testing.T) {
	fake := &fakeAPI{restaurant: models.ManagedRestaurant{Name: "Bob's Diner"}}
	rec := &notify.Recorder{}
	svc := NewService(cache.New[models.ManagedRestaurant](), fake, rec)

	_, err := svc.Update(context.Background(), models.UpdateProfileRequest{Name: "  "})

	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(fake.updates) != 0 {
		t.Error("expected no remote write for an invalid profile")
	}
	if _, ok := svc.Cached(); ok {
		t.Error("expected cache untouched by an invalid profile")
	}
	if len(rec.Notifications()) != 0 {
		t.Error("expected no notification for a rejected form")
	}
}

func TestAgainstDevAPI(t *testing.T) {
	stub := devapi.New(models.ManagedRestaurant{ID: "r1", Name: "Bob's Diner"})
	server := httptest.NewServer(stub.Router())
	defer server.Close()

	client := api.NewClient(api.Options{BaseURL: server.URL})
	collector := metrics.New()
	rec := &notify.Recorder{}
	svc := NewService(cache.New[models.ManagedRestaurant](), client, rec,
		WithObserver(collector),
		WithPolicy(mutation.PolicySerialized),
	)

	if _, err := svc.Current(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Current(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reads, _ := stub.Counts(); reads != 1 {
		t.Errorf("expected 1 remote read, got %d", reads)
	}

	// A successful write keeps the optimistic value
	if _, err := svc.Update(context.Background(), models.UpdateProfileRequest{Name: "Bob's Café"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cached, _ := svc.Cached(); cached.Name != "Bob's Café" {
		t.Errorf("expected Bob's Café, got %s", cached.Name)
	}
	if got := stub.Restaurant().Name; got != "Bob's Café" {
		t.Errorf("expected server to store Bob's Café, got %s", got)
	}

	// A failing write rolls back to the confirmed value
	stub.SetFaults(devapi.Faults{FailWrites: 1})
	if _, err := svc.Update(context.Background(), models.UpdateProfileRequest{Name: "Bob's Bistro"}); err == nil {
		t.Fatal("expected failure")
	}
	if cached, _ := svc.Cached(); cached.Name != "Bob's Café" {
		t.Errorf("expected rollback to Bob's Café, got %s", cached.Name)
	}
	if got := stub.Restaurant().Name; got != "Bob's Café" {
		t.Errorf("expected server to keep Bob's Café, got %s", got)
	}

	ns := rec.Notifications()
	if len(ns) != 2 || ns[0].Level != notify.LevelSuccess || ns[1].Level != notify.LevelError {
		t.Errorf("unexpected notifications: %+v", ns)
	}
	svc.Drain()
}
