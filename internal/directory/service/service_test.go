package service

import (
	"context"
	"testing"

	"measurehub_backend/internal/directory/repository"
	"measurehub_backend/internal/directory/transport"
	"measurehub_backend/platform/logger"
)

// fakeRepo records lookups and returns canned answers. Unused Repository
// methods panic through the embedded nil interface.
type fakeRepo struct {
	repository.Repository

	dealerUsers map[string]int64
	zones       map[string]int64
	createdZone string
	createdName string
	dealerCalls []string
	zoneCalls   []string
}

func (f *fakeRepo) ResolveDealerUserID(_ context.Context, name string) (int64, bool, error) {
	f.dealerCalls = append(f.dealerCalls, name)
	id, ok := f.dealerUsers[name]
	return id, ok, nil
}

func (f *fakeRepo) ResolveZoneID(_ context.Context, name string) (int64, bool, error) {
	f.zoneCalls = append(f.zoneCalls, name)
	id, ok := f.zones[name]
	return id, ok, nil
}

func (f *fakeRepo) CreateZone(_ context.Context, name string) (repository.Zone, error) {
	f.createdZone = name
	return repository.Zone{ID: 1, Name: name, IsActive: true}, nil
}

func (f *fakeRepo) CreateMeasurerName(_ context.Context, name string) (repository.MeasurerName, error) {
	f.createdName = name
	return repository.MeasurerName{ID: 1, Name: name}, nil
}

func newTestService(repo repository.Repository) *Service {
	return New(repo, logger.New("development"))
}

func TestResolveDealerNormalizesLookup(t *testing.T) {
	repo := &fakeRepo{dealerUsers: map[string]int64{"acme": 7}}
	svc := newTestService(repo)

	id, ok, err := svc.ResolveDealer(context.Background(), "  Acme  ")
	if err != nil {
		t.Fatalf("ResolveDealer returned error: %v", err)
	}
	if !ok || id != 7 {
		t.Fatalf("ResolveDealer = (%d, %v), want (7, true)", id, ok)
	}
	if len(repo.dealerCalls) != 1 || repo.dealerCalls[0] != "acme" {
		t.Fatalf("repository queried with %v, want [acme]", repo.dealerCalls)
	}
}

func TestResolveDealerMissIsNotAnError(t *testing.T) {
	repo := &fakeRepo{dealerUsers: map[string]int64{}}
	svc := newTestService(repo)

	id, ok, err := svc.ResolveDealer(context.Background(), "Unknown Dealer")
	if err != nil {
		t.Fatalf("ResolveDealer returned error: %v", err)
	}
	if ok || id != 0 {
		t.Fatalf("ResolveDealer = (%d, %v), want (0, false)", id, ok)
	}
}

func TestResolveDealerEmptyNameSkipsRepository(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo)

	_, ok, err := svc.ResolveDealer(context.Background(), "   ")
	if err != nil {
		t.Fatalf("ResolveDealer returned error: %v", err)
	}
	if ok {
		t.Fatal("ResolveDealer matched a blank name")
	}
	if len(repo.dealerCalls) != 0 {
		t.Fatalf("repository queried %d times for blank input", len(repo.dealerCalls))
	}
}

func TestResolveZoneNormalizesHint(t *testing.T) {
	repo := &fakeRepo{zones: map[string]int64{"north": 3}}
	svc := newTestService(repo)

	id, ok, err := svc.ResolveZone(context.Background(), " NORTH ")
	if err != nil {
		t.Fatalf("ResolveZone returned error: %v", err)
	}
	if !ok || id != 3 {
		t.Fatalf("ResolveZone = (%d, %v), want (3, true)", id, ok)
	}
	if len(repo.zoneCalls) != 1 || repo.zoneCalls[0] != "north" {
		t.Fatalf("repository queried with %v, want [north]", repo.zoneCalls)
	}
}

func TestCreateZoneStoresNormalizedName(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo)

	resp, err := svc.CreateZone(context.Background(), transport.CreateZoneRequest{Name: "  North "})
	if err != nil {
		t.Fatalf("CreateZone returned error: %v", err)
	}
	if repo.createdZone != "north" {
		t.Fatalf("zone stored as %q, want %q", repo.createdZone, "north")
	}
	if resp.Name != "north" {
		t.Fatalf("response name %q, want %q", resp.Name, "north")
	}
}

func TestCreateZoneRejectsBlankName(t *testing.T) {
	svc := newTestService(&fakeRepo{})

	if _, err := svc.CreateZone(context.Background(), transport.CreateZoneRequest{Name: "   "}); err == nil {
		t.Fatal("CreateZone accepted a blank name")
	}
}

func TestCreateMeasurerNameStoresNormalizedName(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo)

	if _, err := svc.CreateMeasurerName(context.Background(), transport.CreateMeasurerNameRequest{Name: "Acme Windows "}); err != nil {
		t.Fatalf("CreateMeasurerName returned error: %v", err)
	}
	if repo.createdName != "acme windows" {
		t.Fatalf("name stored as %q, want %q", repo.createdName, "acme windows")
	}
}

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Acme", "acme"},
		{"  Acme  ", "acme"},
		{"NORTH ZONE", "north zone"},
		{"", ""},
		{"  ", ""},
	}
	for _, tc := range cases {
		if got := normalizeName(tc.in); got != tc.want {
			t.Errorf("normalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
